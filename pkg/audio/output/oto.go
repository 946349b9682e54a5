// ABOUTME: Oto-based render host
// ABOUTME: Oto pulls float32 bytes from a reader, each Read is one render tick
package output

import (
	"fmt"
	"log"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/linguflex/voicelink/pkg/audio"
)

// Oto output implementation using oto library. Oto allows a single context
// per process, so an Oto output can be opened once.
type Oto struct {
	otoCtx *oto.Context
	player *oto.Player
}

// NewOto creates a new Oto output
func NewOto() Output {
	return &Oto{}
}

// Open creates the oto context and a player fed by r
func (o *Oto) Open(sampleRate, channels int, r Renderer) error {
	if o.otoCtx != nil {
		return fmt.Errorf("oto output already open")
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   20 * time.Millisecond,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	o.otoCtx = ctx
	o.player = ctx.NewPlayer(newRenderReader(r, channels))
	o.player.Play()

	log.Printf("Audio output initialized: %dHz, %d channels (oto/float32)", sampleRate, channels)
	return nil
}

// Close releases output resources
func (o *Oto) Close() error {
	if o.player != nil {
		if err := o.player.Close(); err != nil {
			log.Printf("Warning: oto player close error: %v", err)
		}
		o.player = nil
	}
	if o.otoCtx != nil {
		if err := o.otoCtx.Suspend(); err != nil {
			log.Printf("Warning: oto suspend error: %v", err)
		}
	}
	return nil
}

// renderReader turns Renderer pulls into float32 LE bytes for oto
type renderReader struct {
	renderer Renderer
	channels int
	frame    int // bytes per interleaved frame
	scratch  []float32
}

func newRenderReader(r Renderer, channels int) *renderReader {
	return &renderReader{
		renderer: r,
		channels: channels,
		frame:    channels * audio.Float32Size,
	}
}

// Read renders as many whole frames as fit in p. It never blocks and never
// returns an error; silence covers gaps.
func (rr *renderReader) Read(p []byte) (int, error) {
	frames := len(p) / rr.frame
	if frames == 0 {
		return 0, nil
	}
	total := frames * rr.channels
	if total > len(rr.scratch) {
		rr.scratch = make([]float32, total)
	}
	block := rr.scratch[:total]
	rr.renderer.Render(block, rr.channels)
	audio.PutFloat32LE(p, block)
	return total * audio.Float32Size, nil
}
