// ABOUTME: Tests for the sample ring buffer
// ABOUTME: Covers overflow, underrun, wraparound and concurrent access
package playback

import (
	"math/rand"
	"sync"
	"testing"
)

func seq(from, to int) []float32 {
	out := make([]float32, 0, to-from+1)
	for v := from; v <= to; v++ {
		out = append(out, float32(v))
	}
	return out
}

func equalSamples(t *testing.T, got, want []float32) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d samples, got %d (%v)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d: expected %v, got %v (full: %v)", i, want[i], got[i], got)
		}
	}
}

func TestNewRingBufferRejectsZeroCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		if _, err := NewRingBuffer(capacity); err != ErrInvalidCapacity {
			t.Errorf("capacity %d: expected ErrInvalidCapacity, got %v", capacity, err)
		}
	}
}

func TestRingBufferOverflowDropsTail(t *testing.T) {
	rb, err := NewRingBuffer(10)
	if err != nil {
		t.Fatalf("NewRingBuffer: %v", err)
	}

	written := rb.Push(seq(1, 12))
	if written != 10 {
		t.Errorf("expected 10 written, got %d", written)
	}
	if rb.Available() != 10 {
		t.Errorf("expected 10 available, got %d", rb.Available())
	}

	equalSamples(t, rb.Pull(5), seq(1, 5))
	if rb.Available() != 5 {
		t.Errorf("expected 5 available, got %d", rb.Available())
	}
	equalSamples(t, rb.Pull(5), seq(6, 10))

	stats := rb.Stats()
	if stats.Dropped != 2 {
		t.Errorf("expected 2 dropped, got %d", stats.Dropped)
	}
}

func TestRingBufferOverflowKeepsHead(t *testing.T) {
	tests := []struct {
		capacity int
		extra    int
	}{
		{1, 1},
		{7, 3},
		{64, 1000},
	}

	for _, tt := range tests {
		rb, _ := NewRingBuffer(tt.capacity)
		rb.Push(seq(1, tt.capacity+tt.extra))
		equalSamples(t, rb.Pull(tt.capacity), seq(1, tt.capacity))
	}
}

func TestRingBufferUnderrunFillsSilence(t *testing.T) {
	rb, _ := NewRingBuffer(8)
	rb.Push([]float32{0.5, -0.5, 0.25})

	got := rb.Pull(6)
	equalSamples(t, got, []float32{0.5, -0.5, 0.25, 0, 0, 0})

	if rb.Available() != 0 {
		t.Errorf("expected empty buffer, got %d", rb.Available())
	}
	if rb.Stats().Underrun != 3 {
		t.Errorf("expected 3 underrun samples, got %d", rb.Stats().Underrun)
	}

	equalSamples(t, rb.Pull(2), []float32{0, 0})
}

func TestRingBufferPullIntoOverwritesStaleData(t *testing.T) {
	rb, _ := NewRingBuffer(4)
	rb.Push([]float32{9})

	dst := []float32{7, 7, 7}
	if n := rb.PullInto(dst); n != 1 {
		t.Errorf("expected 1 real sample, got %d", n)
	}
	equalSamples(t, dst, []float32{9, 0, 0})
}

func TestRingBufferWraparound(t *testing.T) {
	rb, _ := NewRingBuffer(5)

	// walk the cursors around the storage several times
	next := 1
	expect := 1
	for round := 0; round < 20; round++ {
		batch := seq(next, next+2)
		rb.Push(batch)
		next += 3
		equalSamples(t, rb.Pull(3), seq(expect, expect+2))
		expect += 3
	}

	rb.Push(seq(100, 104))
	if rb.Free() != 0 {
		t.Errorf("expected full buffer, free=%d", rb.Free())
	}
	equalSamples(t, rb.Pull(5), seq(100, 104))
}

func TestRingBufferCapacityInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const capacity = 37
	rb, _ := NewRingBuffer(capacity)

	// model tracks what an unbounded FIFO with the same drop rule would hold
	var model []float32
	counter := float32(0)

	for op := 0; op < 5000; op++ {
		if rng.Intn(2) == 0 {
			n := rng.Intn(60)
			batch := make([]float32, n)
			for i := range batch {
				counter++
				batch[i] = counter
			}
			written := rb.Push(batch)
			model = append(model, batch[:written]...)
		} else {
			n := rng.Intn(60)
			got := rb.Pull(n)
			have := n
			if have > len(model) {
				have = len(model)
			}
			want := make([]float32, n)
			copy(want, model[:have])
			model = model[have:]
			equalSamples(t, got, want)
		}

		avail := rb.Available()
		if avail < 0 || avail > capacity {
			t.Fatalf("op %d: available %d outside [0, %d]", op, avail, capacity)
		}
		if avail != len(model) {
			t.Fatalf("op %d: available %d, model holds %d", op, avail, len(model))
		}
		if rb.Free() != capacity-avail {
			t.Fatalf("op %d: free %d inconsistent with available %d", op, rb.Free(), avail)
		}
	}
}

func TestRingBufferConcurrentProducerConsumer(t *testing.T) {
	rb, _ := NewRingBuffer(256)
	const total = 20000

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		next := 1
		for next <= total {
			end := next + 31
			if end > total {
				end = total
			}
			written := rb.Push(seq(next, end))
			next += written
		}
	}()

	received := make([]float32, 0, total)
	go func() {
		defer wg.Done()
		block := make([]float32, 16)
		for len(received) < total {
			n := rb.PullInto(block)
			received = append(received, block[:n]...)
		}
	}()

	wg.Wait()

	for i, v := range received {
		if v != float32(i+1) {
			t.Fatalf("sample %d: expected %d, got %v", i, i+1, v)
		}
	}
}
