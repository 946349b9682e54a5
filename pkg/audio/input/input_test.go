// ABOUTME: Tests for capture block assembly
// ABOUTME: Verifies regrouping and non-blocking drop behavior
package input

import "testing"

func TestAssemblerRegroupsSamples(t *testing.T) {
	a := newAssembler(4, 8)

	a.write([]float32{1, 2, 3})
	a.write([]float32{4, 5})
	a.write([]float32{6, 7, 8, 9, 10, 11, 12, 13})

	if len(a.out) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(a.out))
	}
	next := float32(1)
	for i := 0; i < 3; i++ {
		block := <-a.out
		if len(block) != 4 {
			t.Fatalf("block %d: expected 4 samples, got %d", i, len(block))
		}
		for _, s := range block {
			if s != next {
				t.Fatalf("expected %v, got %v", next, s)
			}
			next++
		}
	}
	if len(a.pending) != 1 || a.pending[0] != 13 {
		t.Errorf("expected pending [13], got %v", a.pending)
	}
}

func TestAssemblerBlocksAreIndependent(t *testing.T) {
	a := newAssembler(2, 4)
	a.write([]float32{1, 2, 3, 4})

	first := <-a.out
	second := <-a.out
	first[0] = 99
	if second[0] != 3 {
		t.Errorf("blocks share storage: second = %v", second)
	}
}

func TestAssemblerDropsWhenQueueFull(t *testing.T) {
	a := newAssembler(2, 1)
	a.write([]float32{1, 2, 3, 4, 5, 6})

	if got := a.dropped.Load(); got != 2 {
		t.Errorf("expected 2 dropped blocks, got %d", got)
	}
	block := <-a.out
	if block[0] != 1 {
		t.Errorf("expected the oldest block to survive, got %v", block)
	}
}

func TestAssemblerDefaultSize(t *testing.T) {
	if a := newAssembler(0, 1); a.size != DefaultBlockSize {
		t.Errorf("expected default size %d, got %d", DefaultBlockSize, a.size)
	}
}

func TestMalgoImplementsInput(t *testing.T) {
	var _ Input = (*Malgo)(nil)
}
