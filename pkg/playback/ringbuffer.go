// ABOUTME: Fixed-capacity circular store of float32 samples
// ABOUTME: Push drops the tail on overflow, pull fills underruns with silence
package playback

import "sync"

// RingBuffer is a single-producer/single-consumer sample queue shared by the
// ingest lane (Push) and the render lane (Pull). Storage is allocated once.
type RingBuffer struct {
	buffer   []float32
	readPos  int
	writePos int
	size     int
	count    int // unread samples, the source of truth for both cursors

	dropped  uint64 // samples discarded by Push because the buffer was full
	underrun uint64 // silence samples emitted by Pull
	mu       sync.Mutex
}

// RingStats is a snapshot of buffer occupancy and loss counters
type RingStats struct {
	Capacity  int
	Available int
	Dropped   uint64
	Underrun  uint64
}

// NewRingBuffer creates a ring buffer holding capacity samples.
func NewRingBuffer(capacity int) (*RingBuffer, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &RingBuffer{
		buffer: make([]float32, capacity),
		size:   capacity,
	}, nil
}

// Push appends samples in order until the buffer is full and returns how
// many were stored. Anything past capacity is dropped; unread samples are
// never overwritten.
func (rb *RingBuffer) Push(samples []float32) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := len(samples)
	if free := rb.size - rb.count; n > free {
		rb.dropped += uint64(n - free)
		n = free
	}

	written := 0
	for written < n {
		// copy up to the physical end of storage, then wrap
		seg := copy(rb.buffer[rb.writePos:], samples[written:n])
		rb.writePos = (rb.writePos + seg) % rb.size
		written += seg
	}
	rb.count += written
	return written
}

// Pull returns exactly count samples: whatever is buffered, then silence.
func (rb *RingBuffer) Pull(count int) []float32 {
	out := make([]float32, count)
	rb.PullInto(out)
	return out
}

// PullInto fills dst from the buffer, zero-filling any shortfall, and
// returns the number of real samples read. It never allocates or blocks
// beyond the bounded copy.
func (rb *RingBuffer) PullInto(dst []float32) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := len(dst)
	if n > rb.count {
		n = rb.count
	}

	read := 0
	for read < n {
		end := rb.readPos + (n - read)
		if end > rb.size {
			end = rb.size
		}
		seg := copy(dst[read:n], rb.buffer[rb.readPos:end])
		rb.readPos = (rb.readPos + seg) % rb.size
		read += seg
	}
	rb.count -= read

	// Zero-fill remaining if underrun
	if short := len(dst) - read; short > 0 {
		clear(dst[read:])
		rb.underrun += uint64(short)
	}
	return read
}

// Available returns the number of samples available to read
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Free returns the number of free slots in the buffer
func (rb *RingBuffer) Free() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.size - rb.count
}

// Capacity returns the fixed number of sample slots
func (rb *RingBuffer) Capacity() int {
	return rb.size
}

// Stats returns a consistent snapshot of the buffer counters
func (rb *RingBuffer) Stats() RingStats {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return RingStats{
		Capacity:  rb.size,
		Available: rb.count,
		Dropped:   rb.dropped,
		Underrun:  rb.underrun,
	}
}
