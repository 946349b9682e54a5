// ABOUTME: Malgo-based render host using miniaudio float32 playback
// ABOUTME: Each device callback is one render tick into the Renderer
package output

import (
	"fmt"
	"log"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/linguflex/voicelink/pkg/audio"
)

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	malgoCtx   *malgo.AllocatedContext
	device     *malgo.Device
	renderer   Renderer
	sampleRate int
	channels   int

	// scratch is reused across callbacks; it only grows if the device asks
	// for a larger period than the one it was opened with
	scratch []float32
	mu      sync.Mutex
}

// NewMalgo creates a new Malgo output
func NewMalgo() Output {
	return &Malgo{}
}

// Open initializes the playback device and starts pulling from r
func (m *Malgo) Open(sampleRate, channels int, r Renderer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return fmt.Errorf("malgo output already open")
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	m.malgoCtx = ctx
	m.renderer = r
	m.sampleRate = sampleRate
	m.channels = channels

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	// pre-size for a generous period so the callback normally never allocates
	m.scratch = make([]float32, 4096*channels)

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, pInputSamples []byte, frameCount uint32) {
			m.dataCallback(pOutputSample, frameCount)
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		m.freeContext()
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		m.freeContext()
		return fmt.Errorf("failed to start device: %w", err)
	}
	m.device = device

	log.Printf("Audio output initialized: %dHz, %d channels (malgo/F32)", sampleRate, channels)
	return nil
}

// dataCallback is called by malgo to fill the audio output buffer
func (m *Malgo) dataCallback(pOutput []byte, frameCount uint32) {
	total := int(frameCount) * m.channels
	if total > len(m.scratch) {
		m.scratch = make([]float32, total)
	}
	block := m.scratch[:total]
	m.renderer.Render(block, m.channels)
	audio.PutFloat32LE(pOutput, block)
}

// Close releases output resources
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			log.Printf("Warning: device stop error: %v", err)
		}
		m.device.Uninit()
		m.device = nil
	}
	m.freeContext()
	return nil
}

// freeContext tears down the malgo context (must hold m.mu)
func (m *Malgo) freeContext() {
	if m.malgoCtx == nil {
		return
	}
	if err := m.malgoCtx.Uninit(); err != nil {
		log.Printf("Warning: malgo context uninit error: %v", err)
	}
	m.malgoCtx.Free()
	m.malgoCtx = nil
}
