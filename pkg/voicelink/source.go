// ABOUTME: Speech source abstraction for the voicelink server
// ABOUTME: Provides the AudioSource interface and a finite test tone
package voicelink

import (
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/linguflex/voicelink/internal/server"
)

// AudioSource provides mono float32 speech audio for one utterance
type AudioSource interface {
	// Read fills samples and returns how many were written, io.EOF at the end
	Read(samples []float32) (int, error)

	// SampleRate returns the sample rate of the audio
	SampleRate() int

	// Close closes the audio source
	Close() error
}

// ToneSource generates a sine tone of fixed length
type ToneSource struct {
	frequency  float64
	sampleRate int
	total      int
	index      int
	mu         sync.Mutex
}

// NewToneSource creates a tone generator producing duration of audio
func NewToneSource(frequency float64, sampleRate int, duration time.Duration) *ToneSource {
	if sampleRate == 0 {
		sampleRate = DefaultSampleRate
	}
	return &ToneSource{
		frequency:  frequency,
		sampleRate: sampleRate,
		total:      int(int64(sampleRate) * int64(duration) / int64(time.Second)),
	}
}

func (s *ToneSource) Read(samples []float32) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := s.total - s.index
	if remaining <= 0 {
		return 0, io.EOF
	}
	n := len(samples)
	if n > remaining {
		n = remaining
	}
	for i := 0; i < n; i++ {
		t := float64(s.index+i) / float64(s.sampleRate)
		// half amplitude keeps the tone clear of clipping
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*s.frequency*t))
	}
	s.index += n
	return n, nil
}

func (s *ToneSource) SampleRate() int { return s.sampleRate }
func (s *ToneSource) Close() error    { return nil }

// NewSpeechSource resolves a source description: "" or "tone" for a two
// second 440Hz tone, otherwise an MP3/FLAC path or an HTTP MP3 URL.
func NewSpeechSource(location string, sampleRate int) (AudioSource, error) {
	if location == "" || strings.EqualFold(location, "tone") {
		return NewToneSource(440, sampleRate, 2*time.Second), nil
	}
	return server.NewAudioSource(location)
}
