// ABOUTME: Cancellable pull loop feeding network chunks into an Engine
// ABOUTME: Stops on end of stream, cancellation, or the first read failure
package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
)

// DefaultReadSize is the largest chunk a ReaderSource hands out per Next
const DefaultReadSize = 16 * 1024

// ChunkSource supplies an ordered sequence of byte chunks. Next returns
// io.EOF once the stream has ended. Close must unblock a pending Next.
type ChunkSource interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// Sink receives chunks from the loop
type Sink interface {
	Ingest(chunk []byte)
}

// LoopState describes where an ingest loop is in its life
type LoopState int32

const (
	LoopIdle LoopState = iota
	LoopRunning
	LoopFinished
	LoopCancelled
	LoopFailed
)

func (s LoopState) String() string {
	switch s {
	case LoopIdle:
		return "idle"
	case LoopRunning:
		return "running"
	case LoopFinished:
		return "finished"
	case LoopCancelled:
		return "cancelled"
	case LoopFailed:
		return "failed"
	default:
		return fmt.Sprintf("LoopState(%d)", int32(s))
	}
}

// IngestLoop moves chunks from one source into one sink
type IngestLoop struct {
	source ChunkSource
	sink   Sink
	debug  bool

	state  atomic.Int32
	chunks atomic.Uint64
	bytes  atomic.Uint64
}

// NewIngestLoop binds a source to a sink. The loop owns the source and
// closes it when Run returns.
func NewIngestLoop(source ChunkSource, sink Sink) *IngestLoop {
	return &IngestLoop{source: source, sink: sink}
}

// SetDebug enables per-chunk logging
func (l *IngestLoop) SetDebug(debug bool) {
	l.debug = debug
}

// Run pulls chunks until the source ends (nil), ctx is cancelled
// (ctx.Err()), or a read fails (wrapped error). No chunk is forwarded to
// the sink after cancellation is observed.
func (l *IngestLoop) Run(ctx context.Context) error {
	l.state.Store(int32(LoopRunning))

	var closeOnce sync.Once
	closeSource := func() {
		closeOnce.Do(func() {
			if err := l.source.Close(); err != nil {
				log.Printf("ingest: source close error: %v", err)
			}
		})
	}
	// release the source as soon as cancellation arrives so a blocked read returns
	stop := context.AfterFunc(ctx, closeSource)
	defer func() {
		stop()
		closeSource()
	}()

	for {
		if err := ctx.Err(); err != nil {
			l.state.Store(int32(LoopCancelled))
			return err
		}

		chunk, err := l.source.Next(ctx)
		if ctx.Err() != nil {
			l.state.Store(int32(LoopCancelled))
			return ctx.Err()
		}
		if len(chunk) > 0 {
			l.sink.Ingest(chunk)
			l.chunks.Add(1)
			l.bytes.Add(uint64(len(chunk)))
			if l.debug {
				log.Printf("ingest: chunk %d (%d bytes)", l.chunks.Load(), len(chunk))
			}
		}

		if errors.Is(err, io.EOF) {
			l.state.Store(int32(LoopFinished))
			return nil
		}
		if err != nil {
			l.state.Store(int32(LoopFailed))
			return fmt.Errorf("ingest read failed after %d chunks: %w", l.chunks.Load(), err)
		}
	}
}

// State returns the current loop state
func (l *IngestLoop) State() LoopState {
	return LoopState(l.state.Load())
}

// Chunks returns how many chunks have been forwarded
func (l *IngestLoop) Chunks() uint64 {
	return l.chunks.Load()
}

// Bytes returns how many bytes have been forwarded
func (l *IngestLoop) Bytes() uint64 {
	return l.bytes.Load()
}

// ReaderSource adapts an io.ReadCloser (an HTTP response body, a pipe) into
// a ChunkSource. Each Next returns whatever one Read produced, trimmed to a
// multiple of the alignment set by AlignTo.
type ReaderSource struct {
	r       io.ReadCloser
	size    int
	align   int
	pending []byte // tail held back to keep chunks aligned
}

// NewReaderSource wraps r, reading at most readSize bytes per chunk.
func NewReaderSource(r io.ReadCloser, readSize int) *ReaderSource {
	if readSize <= 0 {
		readSize = DefaultReadSize
	}
	return &ReaderSource{r: r, size: readSize, align: 1}
}

// AlignTo makes every chunk a whole number of n-byte samples. A tail left
// over when the reader ends is still returned as the final chunk.
func (s *ReaderSource) AlignTo(n int) *ReaderSource {
	if n > 0 {
		s.align = n
	}
	return s
}

// Next reads the next chunk. The returned slice is owned by the caller.
func (s *ReaderSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	held := len(s.pending)
	buf := make([]byte, held+s.size)
	copy(buf, s.pending)
	s.pending = s.pending[:0]

	n, err := s.r.Read(buf[held:])
	n += held
	if err != nil || s.align == 1 {
		return buf[:n], err
	}

	keep := n % s.align
	s.pending = append(s.pending, buf[n-keep:n]...)
	return buf[:n-keep], nil
}

// Close closes the underlying reader
func (s *ReaderSource) Close() error {
	return s.r.Close()
}
