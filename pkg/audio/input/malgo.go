// ABOUTME: Malgo-based microphone capture
// ABOUTME: Opens a mono float32 capture device and emits fixed-size blocks
package input

import (
	"fmt"
	"log"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/linguflex/voicelink/pkg/audio"
)

// blockQueue bounds how many unread blocks capture keeps before dropping
const blockQueue = 64

// Malgo captures from the default input device
type Malgo struct {
	malgoCtx  *malgo.AllocatedContext
	device    *malgo.Device
	assembler *assembler
	scratch   []float32
	closeOnce sync.Once
	mu        sync.Mutex
}

// NewMalgo creates a new malgo capture input
func NewMalgo() *Malgo {
	return &Malgo{}
}

// Open starts the capture device
func (m *Malgo) Open(sampleRate, blockSize int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return fmt.Errorf("malgo input already open")
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	m.malgoCtx = ctx
	m.assembler = newAssembler(blockSize, blockQueue)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(m.assembler.size)
	deviceConfig.Alsa.NoMMap = 1

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, pInputSamples []byte, frameCount uint32) {
			m.dataCallback(pInputSamples, frameCount)
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		m.freeContext()
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		m.freeContext()
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	m.device = device

	log.Printf("Audio input initialized: %dHz mono, %d-sample blocks (malgo/F32)", sampleRate, m.assembler.size)
	return nil
}

// dataCallback runs on the capture thread
func (m *Malgo) dataCallback(pInput []byte, frameCount uint32) {
	n := int(frameCount)
	if n > len(m.scratch) {
		m.scratch = make([]float32, n)
	}
	got := audio.DecodeFloat32LEInto(m.scratch[:n], pInput)
	m.assembler.write(m.scratch[:got])
}

// Blocks returns the captured block channel
func (m *Malgo) Blocks() <-chan []float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.assembler == nil {
		return nil
	}
	return m.assembler.out
}

// Dropped returns the number of blocks lost to a full queue
func (m *Malgo) Dropped() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.assembler == nil {
		return 0
	}
	return m.assembler.dropped.Load()
}

// Close stops capture and closes the block channel
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			log.Printf("Warning: capture device stop error: %v", err)
		}
		m.device.Uninit()
		m.device = nil
	}
	m.freeContext()

	if m.assembler != nil {
		m.closeOnce.Do(func() { close(m.assembler.out) })
	}
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
