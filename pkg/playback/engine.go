// ABOUTME: Playback stream engine gating a ring buffer behind a start threshold
// ABOUTME: Ingests float32 LE chunks and renders fixed-size blocks per tick
package playback

import (
	"sync/atomic"

	"github.com/linguflex/voicelink/pkg/audio"
)

// Engine owns one RingBuffer for the lifetime of a single audio stream.
// A new stream gets a new Engine; there is no rewind.
type Engine struct {
	buffer    *RingBuffer
	threshold int
	started   atomic.Bool

	chunks         atomic.Uint64
	bytesIngested  atomic.Uint64
	truncatedBytes atomic.Uint64
}

// EngineStats is a snapshot of engine and buffer state
type EngineStats struct {
	RingStats
	Started        bool
	Threshold      int
	Chunks         uint64
	BytesIngested  uint64
	TruncatedBytes uint64
}

// NewEngine creates an engine with a buffer of capacity samples whose gate
// opens once threshold samples are buffered.
func NewEngine(capacity, threshold int) (*Engine, error) {
	if threshold < 0 || threshold > capacity {
		return nil, ErrThresholdTooLarge
	}
	rb, err := NewRingBuffer(capacity)
	if err != nil {
		return nil, err
	}
	return &Engine{
		buffer:    rb,
		threshold: threshold,
	}, nil
}

// Ingest decodes chunk as little-endian float32 samples and buffers them.
// A trailing partial sample is dropped. Once enough audio is buffered the
// start gate opens and stays open for the life of the engine.
func (e *Engine) Ingest(chunk []byte) {
	e.chunks.Add(1)
	e.bytesIngested.Add(uint64(len(chunk)))
	if rem := len(chunk) % audio.Float32Size; rem != 0 {
		e.truncatedBytes.Add(uint64(rem))
	}

	e.buffer.Push(audio.DecodeFloat32LE(chunk))

	if !e.started.Load() && e.buffer.Available() >= e.threshold {
		e.started.Store(true)
	}
}

// RenderTick returns one block of blockLength samples: buffered audio once
// the gate is open, silence before.
func (e *Engine) RenderTick(blockLength int) []float32 {
	block := make([]float32, blockLength)
	e.RenderInto(block)
	return block
}

// RenderInto is the allocation-free form of RenderTick.
func (e *Engine) RenderInto(dst []float32) {
	if !e.started.Load() {
		clear(dst)
		return
	}
	e.buffer.PullInto(dst)
}

// RenderInterleaved fills an interleaved multi-channel block by pulling
// len(dst)/channels mono samples and duplicating each across every channel.
func (e *Engine) RenderInterleaved(dst []float32, channels int) {
	if channels <= 1 {
		e.RenderInto(dst)
		return
	}
	frames := len(dst) / channels
	e.RenderInto(dst[:frames])

	// expand in place from the back so no source sample is overwritten early
	for i := frames - 1; i >= 0; i-- {
		v := dst[i]
		base := i * channels
		for ch := channels - 1; ch >= 0; ch-- {
			dst[base+ch] = v
		}
	}
	clear(dst[frames*channels:])
}

// Started reports whether the start gate has opened
func (e *Engine) Started() bool {
	return e.started.Load()
}

// Buffered returns the number of samples waiting to be rendered
func (e *Engine) Buffered() int {
	return e.buffer.Available()
}

// Stats returns engine counters merged with the ring buffer snapshot
func (e *Engine) Stats() EngineStats {
	return EngineStats{
		RingStats:      e.buffer.Stats(),
		Started:        e.started.Load(),
		Threshold:      e.threshold,
		Chunks:         e.chunks.Load(),
		BytesIngested:  e.bytesIngested.Load(),
		TruncatedBytes: e.truncatedBytes.Load(),
	}
}
