// ABOUTME: Capture source interface and fixed-size block assembly
// ABOUTME: Regroups device periods into constant-length microphone blocks
package input

import "sync/atomic"

// DefaultBlockSize matches a 128-frame audio render quantum
const DefaultBlockSize = 128

// Input is a microphone capture source delivering mono float32 blocks
type Input interface {
	// Open starts capture at sampleRate, emitting blocks of blockSize samples
	Open(sampleRate, blockSize int) error

	// Blocks returns the channel of captured blocks; it is closed by Close
	Blocks() <-chan []float32

	// Dropped returns how many blocks were discarded because nobody read them
	Dropped() uint64

	// Close stops capture
	Close() error
}

// assembler cuts an arbitrary run of samples into fixed-size blocks
type assembler struct {
	size    int
	pending []float32
	out     chan []float32
	dropped atomic.Uint64
}

func newAssembler(size, queue int) *assembler {
	if size <= 0 {
		size = DefaultBlockSize
	}
	return &assembler{
		size:    size,
		pending: make([]float32, 0, size),
		out:     make(chan []float32, queue),
	}
}

// write appends samples and emits each completed block without blocking.
// A block that does not fit in the queue is dropped.
func (a *assembler) write(samples []float32) {
	for len(samples) > 0 {
		n := a.size - len(a.pending)
		if n > len(samples) {
			n = len(samples)
		}
		a.pending = append(a.pending, samples[:n]...)
		samples = samples[n:]

		if len(a.pending) == a.size {
			select {
			case a.out <- a.pending:
			default:
				a.dropped.Add(1)
			}
			a.pending = make([]float32, 0, a.size)
		}
	}
}
