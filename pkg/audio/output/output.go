// ABOUTME: Audio output interface definition
// ABOUTME: Render hosts that pull fixed-size blocks from a Renderer
package output

import "fmt"

// Renderer produces one interleaved block of samples per render tick. It is
// called on the audio thread and must not block.
type Renderer interface {
	Render(out []float32, channels int)
}

// RendererFunc adapts a function to Renderer
type RendererFunc func(out []float32, channels int)

// Render calls f
func (f RendererFunc) Render(out []float32, channels int) {
	f(out, channels)
}

// Output represents an audio output device that pulls from a Renderer
type Output interface {
	// Open starts the device; r is invoked on every render tick
	Open(sampleRate, channels int, r Renderer) error

	// Close stops the device and releases resources
	Close() error
}

// Backend names a render host implementation
type Backend string

const (
	BackendMalgo     Backend = "malgo"
	BackendOto       Backend = "oto"
	BackendPortAudio Backend = "portaudio"
)

// New returns the output for backend
func New(backend Backend) (Output, error) {
	switch backend {
	case BackendMalgo, "":
		return NewMalgo(), nil
	case BackendOto:
		return NewOto(), nil
	case BackendPortAudio:
		return NewPortAudio(), nil
	default:
		return nil, fmt.Errorf("unknown output backend %q (supported: malgo, oto, portaudio)", backend)
	}
}
