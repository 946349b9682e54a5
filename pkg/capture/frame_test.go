// ABOUTME: Tests for capture frame encoding
// ABOUTME: Verifies the bit-exact wire layout and decode round-trip
package capture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestEncodeWireLayout(t *testing.T) {
	frame := Encode([]float32{1.0, -1.0, 0.0}, 48000)

	meta := []byte(`{"sample_rate":48000}`)
	var expected []byte
	expected = binary.LittleEndian.AppendUint32(expected, uint32(len(meta)))
	expected = append(expected, meta...)
	expected = append(expected, 0xff, 0x7f, 0x00, 0x80, 0x00, 0x00)

	if !bytes.Equal(frame, expected) {
		t.Fatalf("expected % x\n     got % x", expected, frame)
	}
	if prefix := frame[:4]; !bytes.Equal(prefix, []byte{0x15, 0x00, 0x00, 0x00}) {
		t.Errorf("expected length prefix 15 00 00 00, got % x", prefix)
	}
}

func TestEncodeEmptyBlock(t *testing.T) {
	frame := Encode(nil, 16000)
	decoded, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Metadata.SampleRate != 16000 || len(decoded.Samples) != 0 {
		t.Errorf("unexpected frame: %+v", decoded)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	rates := []int{8000, 16000, 44100, 48000, 96000}

	for _, rate := range rates {
		block := make([]float32, 128)
		for i := range block {
			// include out-of-range values to exercise clamping
			block[i] = float32(rng.Float64()*3 - 1.5)
		}
		block[0] = float32(math.NaN())
		block[1] = float32(math.Inf(1))

		frame := Encode(block, rate)
		decoded, err := Decode(frame)
		if err != nil {
			t.Fatalf("rate %d: Decode: %v", rate, err)
		}
		if decoded.Metadata.SampleRate != rate {
			t.Errorf("expected rate %d, got %d", rate, decoded.Metadata.SampleRate)
		}

		metaLen := int(binary.LittleEndian.Uint32(frame))
		if payload := len(frame) - 4 - metaLen; payload != len(block)*2 {
			t.Errorf("expected %d payload bytes, got %d", len(block)*2, payload)
		}

		for i, s := range block {
			if got, want := decoded.Samples[i], reference(s); got != want {
				t.Fatalf("rate %d sample %d (%v): expected %d, got %d", rate, i, s, want, got)
			}
		}
	}
}

// reference applies round(clamp(s,-1,1)*32768) clamped to int16
func reference(s float32) int16 {
	v := float64(s)
	if math.IsNaN(v) {
		return 0
	}
	v = math.Max(-1, math.Min(1, v))
	r := math.Round(v * 32768)
	return int16(math.Max(-32768, math.Min(32767, r)))
}

func TestDecodeLegacySampleRateKey(t *testing.T) {
	meta := []byte(`{"sampleRate":44100}`)
	frame := binary.LittleEndian.AppendUint32(nil, uint32(len(meta)))
	frame = append(frame, meta...)
	frame = append(frame, 0x01, 0x00)

	decoded, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Metadata.SampleRate != 44100 {
		t.Errorf("expected 44100, got %d", decoded.Metadata.SampleRate)
	}
	if len(decoded.Samples) != 1 || decoded.Samples[0] != 1 {
		t.Errorf("unexpected samples %v", decoded.Samples)
	}
}

func TestDecodeErrors(t *testing.T) {
	withMeta := func(meta string, payload ...byte) []byte {
		b := binary.LittleEndian.AppendUint32(nil, uint32(len(meta)))
		b = append(b, meta...)
		return append(b, payload...)
	}

	tests := []struct {
		name    string
		frame   []byte
		wantErr error
	}{
		{"empty", nil, ErrShortFrame},
		{"three bytes", []byte{1, 0, 0}, ErrShortFrame},
		{"length past end", []byte{0xff, 0, 0, 0, '{', '}'}, ErrMetadataLength},
		{"huge length", []byte{0xff, 0xff, 0xff, 0xff}, ErrMetadataLength},
		{"odd payload", withMeta(`{"sample_rate":1}`, 0x01), ErrOddPayload},
		{"no rate", withMeta(`{}`), ErrMissingSampleRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.frame)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	if _, err := Decode(withMeta(`not json`)); err == nil {
		t.Error("expected error for invalid JSON metadata")
	}
}

func TestFrameFloat32(t *testing.T) {
	f := Frame{Samples: []int16{-32768, 0, 16384}}
	got := f.Float32()
	want := []float32{-1, 0, 0.5}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}
