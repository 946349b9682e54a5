// ABOUTME: Audio type definitions and sample conversions
// ABOUTME: Endianness-pinned float32/int16 codecs used on the wire
package audio

import (
	"encoding/binary"
	"math"
)

const (
	// Float32Size is the byte width of one float32 sample on the wire
	Float32Size = 4
	// Int16Size is the byte width of one int16 PCM sample on the wire
	Int16Size = 2

	// Int16Scale maps a full-scale float sample onto the int16 range
	Int16Scale = 32768
)

// Format describes an audio stream format
type Format struct {
	SampleRate int
	Channels   int
}

// SamplesPerDuration returns how many mono samples cover ms milliseconds.
func (f Format) SamplesPerDuration(ms int) int {
	return f.SampleRate * ms / 1000
}

// DecodeFloat32LE reinterprets data as little-endian IEEE-754 float32
// samples. Trailing bytes that do not form a whole sample are dropped.
func DecodeFloat32LE(data []byte) []float32 {
	samples := make([]float32, len(data)/Float32Size)
	DecodeFloat32LEInto(samples, data)
	return samples
}

// DecodeFloat32LEInto decodes up to len(dst) whole samples from data and
// returns how many were written.
func DecodeFloat32LEInto(dst []float32, data []byte) int {
	n := len(data) / Float32Size
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*Float32Size:]))
	}
	return n
}

// AppendFloat32LE appends the little-endian encoding of samples to dst.
func AppendFloat32LE(dst []byte, samples []float32) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(s))
	}
	return dst
}

// PutFloat32LE writes samples into dst, which must hold len(samples)*4 bytes.
func PutFloat32LE(dst []byte, samples []float32) {
	for i, s := range samples {
		binary.LittleEndian.PutUint32(dst[i*Float32Size:], math.Float32bits(s))
	}
}

// QuantizeInt16 converts a float sample to int16 using
// clamp(round(sample*32768), -32768, 32767). NaN maps to 0, infinities
// clamp to the nearest end of the range.
func QuantizeInt16(sample float32) int16 {
	v := float64(sample)
	if math.IsNaN(v) {
		return 0
	}
	scaled := math.Round(v * Int16Scale)
	if scaled > math.MaxInt16 {
		return math.MaxInt16
	}
	if scaled < math.MinInt16 {
		return math.MinInt16
	}
	return int16(scaled)
}

// Int16ToFloat32 converts an int16 PCM sample back into [-1, 1).
func Int16ToFloat32(sample int16) float32 {
	return float32(sample) / Int16Scale
}

// AppendInt16LE appends the little-endian encoding of samples to dst.
func AppendInt16LE(dst []byte, samples []int16) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(s))
	}
	return dst
}

// DecodeInt16LE reinterprets data as little-endian int16 samples, dropping
// a trailing odd byte.
func DecodeInt16LE(data []byte) []int16 {
	samples := make([]int16, len(data)/Int16Size)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*Int16Size:]))
	}
	return samples
}

// MixToMono averages interleaved frames down to one channel.
func MixToMono(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		out := make([]float32, len(interleaved))
		copy(out, interleaved)
		return out
	}
	frames := len(interleaved) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += interleaved[i*channels+ch]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
