// ABOUTME: Tests for the linear resampler
// ABOUTME: Checks output sizes, continuity across calls, and passthrough
package resample

import (
	"math"
	"testing"
)

func TestResamplerOutputLength(t *testing.T) {
	tests := []struct {
		name    string
		inRate  int
		outRate int
		input   int
		minOut  int
		maxOut  int
	}{
		{"48k to 16k", 48000, 16000, 4800, 1599, 1601},
		{"16k to 48k", 16000, 48000, 1600, 4795, 4801},
		{"44.1k to 48k", 44100, 48000, 4410, 4796, 4801},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.inRate, tt.outRate, 1)
			total := 0
			// feed in uneven pieces to exercise carried state
			input := make([]float32, tt.input)
			for off := 0; off < len(input); {
				end := off + 333
				if end > len(input) {
					end = len(input)
				}
				total += len(r.Process(input[off:end]))
				off = end
			}
			if total < tt.minOut || total > tt.maxOut {
				t.Errorf("expected %d..%d samples, got %d", tt.minOut, tt.maxOut, total)
			}
		})
	}
}

func TestResamplerContinuityAcrossCalls(t *testing.T) {
	const inRate, outRate = 48000, 16000
	sine := make([]float32, inRate/10)
	for i := range sine {
		sine[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / inRate))
	}

	whole := New(inRate, outRate, 1).Process(sine)

	chunked := New(inRate, outRate, 1)
	var pieces []float32
	for off := 0; off < len(sine); off += 128 {
		end := off + 128
		if end > len(sine) {
			end = len(sine)
		}
		pieces = append(pieces, chunked.Process(sine[off:end])...)
	}

	if len(pieces) != len(whole) {
		t.Fatalf("chunked produced %d samples, whole produced %d", len(pieces), len(whole))
	}
	for i := range whole {
		if d := math.Abs(float64(whole[i] - pieces[i])); d > 1e-5 {
			t.Fatalf("sample %d differs by %v", i, d)
		}
	}
}

func TestResamplerStereoInterpolation(t *testing.T) {
	r := New(1, 2, 2)
	out := r.Process([]float32{0, 1, 1, 0})
	// frames: (0,1) then midpoint (0.5,0.5) then (1,0)
	expected := []float32{0, 1, 0.5, 0.5}
	if len(out) < len(expected) {
		t.Fatalf("expected at least %d samples, got %d", len(expected), len(out))
	}
	for i := range expected {
		if out[i] != expected[i] {
			t.Errorf("sample %d: expected %v, got %v", i, expected[i], out[i])
		}
	}
}

func TestResamplerPassthrough(t *testing.T) {
	r := New(48000, 48000, 1)
	if !r.Passthrough() {
		t.Fatal("expected passthrough")
	}
	in := []float32{0.1, 0.2, 0.3}
	out := r.Process(in)
	if len(out) != 3 || out[2] != 0.3 {
		t.Errorf("unexpected output %v", out)
	}
}

func TestResamplerReset(t *testing.T) {
	r := New(48000, 16000, 1)
	r.Process(make([]float32, 100))
	r.Reset()
	if r.primed || r.position != 0 {
		t.Error("reset did not clear state")
	}
}
