//go:build portaudio

// ABOUTME: PortAudio render host
// ABOUTME: Cross-platform float32 callback output using PortAudio
package output

import (
	"fmt"
	"log"

	"github.com/gordonklaus/portaudio"
)

// PortAudio output implementation
type PortAudio struct {
	stream *portaudio.Stream
}

// NewPortAudio creates a new PortAudio output
func NewPortAudio() Output {
	return &PortAudio{}
}

// Open initializes PortAudio and starts a callback stream pulling from r
func (p *PortAudio) Open(sampleRate, channels int, r Renderer) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	stream, err := portaudio.OpenDefaultStream(0, channels, float64(sampleRate), portaudio.FramesPerBufferUnspecified, func(out []float32) {
		r.Render(out, channels)
	})
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start stream: %w", err)
	}
	p.stream = stream

	log.Printf("Audio output initialized: %dHz, %d channels (portaudio/float32)", sampleRate, channels)
	return nil
}

// Close releases resources
func (p *PortAudio) Close() error {
	if p.stream != nil {
		if err := p.stream.Stop(); err != nil {
			return err
		}
		if err := p.stream.Close(); err != nil {
			return err
		}
		p.stream = nil
	}
	return portaudio.Terminate()
}
