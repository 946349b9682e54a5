// ABOUTME: WAV recorder for received capture audio
// ABOUTME: Appends 16-bit mono PCM to a file per client connection
package server

import (
	"fmt"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavFormatPCM is the RIFF audio format tag for integer PCM
const wavFormatPCM = 1

// Recorder writes capture audio to a WAV file
type Recorder struct {
	path    string
	file    *os.File
	enc     *wav.Encoder
	format  *audio.Format
	samples int
	mu      sync.Mutex
}

// NewRecorder creates path and prepares a 16-bit mono WAV encoder
func NewRecorder(path string, sampleRate int) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}

	return &Recorder{
		path:   path,
		file:   f,
		enc:    wav.NewEncoder(f, sampleRate, 16, 1, wavFormatPCM),
		format: &audio.Format{NumChannels: 1, SampleRate: sampleRate},
	}, nil
}

// Write appends samples to the recording
func (r *Recorder) Write(samples []int16) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.enc == nil {
		return fmt.Errorf("recorder closed")
	}

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &audio.IntBuffer{Format: r.format, Data: data, SourceBitDepth: 16}
	if err := r.enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write recording: %w", err)
	}
	r.samples += len(samples)
	return nil
}

// Samples returns how many samples have been recorded
func (r *Recorder) Samples() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.samples
}

// Path returns the recording file path
func (r *Recorder) Path() string {
	return r.path
}

// Close finalizes the WAV header and closes the file
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.enc == nil {
		return nil
	}
	encErr := r.enc.Close()
	r.enc = nil
	if err := r.file.Close(); err != nil {
		return err
	}
	return encErr
}
