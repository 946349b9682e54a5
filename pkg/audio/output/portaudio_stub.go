//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package output

import "errors"

var errPortAudioDisabled = errors.New("PortAudio support not enabled (build with -tags portaudio)")

// PortAudio output implementation (stub)
type PortAudio struct{}

// NewPortAudio creates a new PortAudio output
func NewPortAudio() Output {
	return &PortAudio{}
}

// Open always fails without the portaudio build tag
func (p *PortAudio) Open(sampleRate, channels int, r Renderer) error {
	return errPortAudioDisabled
}

// Close releases resources
func (p *PortAudio) Close() error {
	return nil
}
