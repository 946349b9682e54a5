// ABOUTME: Capture frame encoder and decoder
// ABOUTME: u32le JSON length + JSON metadata + little-endian int16 PCM
package capture

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/linguflex/voicelink/pkg/audio"
)

// lengthPrefixSize is the width of the JSON length header
const lengthPrefixSize = 4

var (
	// ErrShortFrame is returned when a frame is too small for its length prefix
	ErrShortFrame = errors.New("capture: frame shorter than length prefix")
	// ErrMetadataLength is returned when the prefix points past the end of the frame
	ErrMetadataLength = errors.New("capture: metadata length exceeds frame")
	// ErrOddPayload is returned when the PCM payload is not whole int16 samples
	ErrOddPayload = errors.New("capture: pcm payload has odd byte length")
	// ErrMissingSampleRate is returned when metadata carries no sample rate
	ErrMissingSampleRate = errors.New("capture: metadata missing sample rate")
)

// Metadata is the JSON header carried by every frame
type Metadata struct {
	SampleRate int `json:"sample_rate"`
}

// Frame is a decoded capture frame
type Frame struct {
	Metadata Metadata
	Samples  []int16
}

// wireMetadata also accepts the camelCase key older senders emit
type wireMetadata struct {
	SampleRate       *int `json:"sample_rate"`
	LegacySampleRate *int `json:"sampleRate"`
}

// Encode quantizes block to int16 and packs it with its sample rate into a
// single binary frame. It has no side effects and cannot fail.
func Encode(block []float32, sampleRate int) []byte {
	// Marshal of a struct with one int field cannot fail
	meta, _ := json.Marshal(Metadata{SampleRate: sampleRate})

	frame := make([]byte, lengthPrefixSize, lengthPrefixSize+len(meta)+len(block)*audio.Int16Size)
	binary.LittleEndian.PutUint32(frame, uint32(len(meta)))
	frame = append(frame, meta...)
	for _, s := range block {
		frame = binary.LittleEndian.AppendUint16(frame, uint16(audio.QuantizeInt16(s)))
	}
	return frame
}

// Decode parses a frame produced by Encode.
func Decode(data []byte) (Frame, error) {
	if len(data) < lengthPrefixSize {
		return Frame{}, ErrShortFrame
	}
	metaLen := binary.LittleEndian.Uint32(data)
	if uint64(metaLen) > uint64(len(data)-lengthPrefixSize) {
		return Frame{}, fmt.Errorf("%w: prefix %d, %d bytes follow", ErrMetadataLength, metaLen, len(data)-lengthPrefixSize)
	}

	metaEnd := lengthPrefixSize + int(metaLen)
	var wire wireMetadata
	if err := json.Unmarshal(data[lengthPrefixSize:metaEnd], &wire); err != nil {
		return Frame{}, fmt.Errorf("capture: invalid metadata: %w", err)
	}

	var meta Metadata
	switch {
	case wire.SampleRate != nil:
		meta.SampleRate = *wire.SampleRate
	case wire.LegacySampleRate != nil:
		meta.SampleRate = *wire.LegacySampleRate
	default:
		return Frame{}, ErrMissingSampleRate
	}

	payload := data[metaEnd:]
	if len(payload)%audio.Int16Size != 0 {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrOddPayload, len(payload))
	}

	return Frame{
		Metadata: meta,
		Samples:  audio.DecodeInt16LE(payload),
	}, nil
}

// Float32 converts the frame's PCM back to float samples in [-1, 1)
func (f Frame) Float32() []float32 {
	out := make([]float32, len(f.Samples))
	for i, s := range f.Samples {
		out[i] = audio.Int16ToFloat32(s)
	}
	return out
}
