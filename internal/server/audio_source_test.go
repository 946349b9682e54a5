// ABOUTME: Tests for server speech sources and the WAV recorder
// ABOUTME: Covers source selection errors and recording round-trip
package server

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/wav"
)

func TestNewAudioSourceErrors(t *testing.T) {
	dir := t.TempDir()
	wavPath := filepath.Join(dir, "speech.ogg")
	if err := os.WriteFile(wavPath, []byte("not audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"missing file", filepath.Join(dir, "missing.mp3"), "not found"},
		{"unsupported extension", wavPath, "unsupported audio format"},
		{"corrupt flac", writeFile(t, dir, "bad.flac", "nope"), "FLAC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewAudioSource(tt.path)
			if err == nil {
				src.Close()
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestRecorderWritesReadableWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.wav")
	rec, err := NewRecorder(path, 16000)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	first := []int16{0, 1000, -1000, 32767}
	second := []int16{-32768, 5}
	if err := rec.Write(first); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := rec.Write(second); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if rec.Samples() != 6 {
		t.Errorf("expected 6 samples, got %d", rec.Samples())
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := rec.Write(first); err == nil {
		t.Error("expected error writing after close")
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatal("recording is not a valid WAV file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("FullPCMBuffer: %v", err)
	}
	if dec.SampleRate != 16000 || dec.NumChans != 1 || dec.BitDepth != 16 {
		t.Errorf("unexpected format: %d Hz, %d ch, %d bit", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}

	want := append(append([]int16{}, first...), second...)
	if len(buf.Data) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(buf.Data))
	}
	for i := range want {
		if buf.Data[i] != int(want[i]) {
			t.Errorf("sample %d: expected %d, got %d", i, want[i], buf.Data[i])
		}
	}
}
