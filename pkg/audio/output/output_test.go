// ABOUTME: Audio output interface tests
// ABOUTME: Verifies backends and the oto render reader
package output

import (
	"testing"

	"github.com/linguflex/voicelink/pkg/audio"
)

func TestBackendsImplementOutput(t *testing.T) {
	var _ Output = (*Malgo)(nil)
	var _ Output = (*Oto)(nil)
	var _ Output = (*PortAudio)(nil)
}

func TestNew(t *testing.T) {
	tests := []struct {
		backend Backend
		wantErr bool
	}{
		{BackendMalgo, false},
		{"", false},
		{BackendOto, false},
		{BackendPortAudio, false},
		{"alsa", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.backend), func(t *testing.T) {
			out, err := New(tt.backend)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error for unknown backend")
				}
				return
			}
			if err != nil || out == nil {
				t.Fatalf("New(%q) = %v, %v", tt.backend, out, err)
			}
		})
	}
}

func TestRenderReaderWholeFrames(t *testing.T) {
	calls := 0
	r := RendererFunc(func(out []float32, channels int) {
		calls++
		if channels != 2 {
			t.Errorf("expected 2 channels, got %d", channels)
		}
		for i := range out {
			out[i] = float32(i) / 10
		}
	})
	rr := newRenderReader(r, 2)

	// 3 whole stereo frames plus 5 stray bytes
	p := make([]byte, 3*2*audio.Float32Size+5)
	n, err := rr.Read(p)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 24 {
		t.Fatalf("expected 24 bytes, got %d", n)
	}
	if calls != 1 {
		t.Errorf("expected one render tick per read, got %d", calls)
	}

	samples := audio.DecodeFloat32LE(p[:n])
	for i, s := range samples {
		if s != float32(i)/10 {
			t.Errorf("sample %d: expected %v, got %v", i, float32(i)/10, s)
		}
	}
}

func TestRenderReaderShortBuffer(t *testing.T) {
	rr := newRenderReader(RendererFunc(func([]float32, int) {
		t.Error("renderer called for a buffer smaller than one frame")
	}), 2)
	n, err := rr.Read(make([]byte, 7))
	if n != 0 || err != nil {
		t.Errorf("expected (0, nil), got (%d, %v)", n, err)
	}
}

func TestPortAudioStubOrReal(t *testing.T) {
	out := NewPortAudio()
	if out == nil {
		t.Fatal("NewPortAudio returned nil")
	}
}
