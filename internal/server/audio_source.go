// ABOUTME: File and HTTP speech sources for the voicelink server
// ABOUTME: Decodes MP3 and FLAC into mono float32 that ends at EOF
package server

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
)

// Source provides mono float32 speech audio
type Source interface {
	// Read fills samples and returns how many were written, io.EOF at the end
	Read(samples []float32) (int, error)
	// SampleRate returns the sample rate of the audio
	SampleRate() int
	// Close closes the audio source
	Close() error
}

// NewAudioSource opens a speech source from a local MP3/FLAC file or an
// HTTP(S) MP3 URL
func NewAudioSource(pathOrURL string) (Source, error) {
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		log.Printf("Speaking from HTTP URL: %s", pathOrURL)
		return NewHTTPMP3Source(pathOrURL)
	}

	if _, err := os.Stat(pathOrURL); err != nil {
		return nil, fmt.Errorf("audio file not found: %s", pathOrURL)
	}

	ext := strings.ToLower(filepath.Ext(pathOrURL))
	switch ext {
	case ".mp3":
		return NewMP3Source(pathOrURL)
	case ".flac":
		return NewFLACSource(pathOrURL)
	default:
		return nil, fmt.Errorf("unsupported audio format: %s (supported: .mp3, .flac)", ext)
	}
}

// mp3Frames reads 16-bit stereo frames from an MP3 decoder and mixes them to mono
type mp3Frames struct {
	decoder *mp3.Decoder
	buf     []byte
}

// mp3FrameSize is one decoded stereo int16 frame
const mp3FrameSize = 4

func (m *mp3Frames) read(samples []float32) (int, error) {
	need := len(samples) * mp3FrameSize
	if cap(m.buf) < need {
		m.buf = make([]byte, need)
	}
	buf := m.buf[:need]

	n, err := io.ReadFull(m.decoder, buf)
	frames := n / mp3FrameSize
	for i := 0; i < frames; i++ {
		l := int16(binary.LittleEndian.Uint16(buf[i*mp3FrameSize:]))
		r := int16(binary.LittleEndian.Uint16(buf[i*mp3FrameSize+2:]))
		samples[i] = (float32(l) + float32(r)) / 2 / 32768
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		if frames == 0 {
			return 0, io.EOF
		}
		return frames, nil
	}
	if err != nil {
		return frames, fmt.Errorf("mp3 decode: %w", err)
	}
	return frames, nil
}

// MP3Source reads from an MP3 file
type MP3Source struct {
	file   *os.File
	frames mp3Frames
	rate   int
}

// NewMP3Source creates a new MP3 audio source
func NewMP3Source(filePath string) (*MP3Source, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	log.Printf("Loaded MP3: %s (sample rate: %d Hz)", filepath.Base(filePath), decoder.SampleRate())

	return &MP3Source{
		file:   f,
		frames: mp3Frames{decoder: decoder},
		rate:   decoder.SampleRate(),
	}, nil
}

func (s *MP3Source) Read(samples []float32) (int, error) { return s.frames.read(samples) }
func (s *MP3Source) SampleRate() int                     { return s.rate }
func (s *MP3Source) Close() error                        { return s.file.Close() }

// FLACSource reads from a FLAC file
type FLACSource struct {
	file     *os.File
	stream   *flac.Stream
	rate     int
	channels int
	scale    float32
	pending  []float32 // decoded mono samples not yet handed out
}

// NewFLACSource creates a new FLAC audio source
func NewFLACSource(filePath string) (*FLACSource, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	log.Printf("Loaded FLAC: %s (sample rate: %d Hz, channels: %d, bit depth: %d)",
		filepath.Base(filePath), info.SampleRate, info.NChannels, info.BitsPerSample)

	return &FLACSource{
		file:     f,
		stream:   stream,
		rate:     int(info.SampleRate),
		channels: int(info.NChannels),
		scale:    float32(int64(1) << (info.BitsPerSample - 1)),
	}, nil
}

func (s *FLACSource) Read(samples []float32) (int, error) {
	for len(s.pending) < len(samples) {
		frame, err := s.stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("flac decode: %w", err)
		}

		for i := 0; i < int(frame.BlockSize); i++ {
			var sum float32
			for ch := 0; ch < s.channels; ch++ {
				sum += float32(frame.Subframes[ch].Samples[i])
			}
			s.pending = append(s.pending, sum/float32(s.channels)/s.scale)
		}
	}

	if len(s.pending) == 0 {
		return 0, io.EOF
	}
	n := copy(samples, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *FLACSource) SampleRate() int { return s.rate }
func (s *FLACSource) Close() error    { return s.file.Close() }

// HTTPMP3Source streams MP3 from an HTTP URL
type HTTPMP3Source struct {
	response *http.Response
	frames   mp3Frames
	rate     int
}

// NewHTTPMP3Source creates a new HTTP MP3 streaming source
func NewHTTPMP3Source(url string) (*HTTPMP3Source, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch HTTP stream: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	decoder, err := mp3.NewDecoder(resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to decode MP3 stream: %w", err)
	}

	log.Printf("Streaming MP3 from HTTP: %s (sample rate: %d Hz)", url, decoder.SampleRate())

	return &HTTPMP3Source{
		response: resp,
		frames:   mp3Frames{decoder: decoder},
		rate:     decoder.SampleRate(),
	}, nil
}

func (s *HTTPMP3Source) Read(samples []float32) (int, error) { return s.frames.read(samples) }
func (s *HTTPMP3Source) SampleRate() int                     { return s.rate }
func (s *HTTPMP3Source) Close() error                        { return s.response.Body.Close() }
