package interview

import (
	"math/rand"
	"testing"
)

func TestRotationNoRepeatsUntilExhausted(t *testing.T) {
	pool := len(Patterns())
	r := NewRotation(rand.New(rand.NewSource(42)), pool)

	seen := make(map[int]int)
	for i := 0; i < pool; i++ {
		seen[r.Next()]++
	}
	if len(seen) != pool {
		t.Fatalf("distinct indices in first cycle = %d, want %d", len(seen), pool)
	}
	for idx, n := range seen {
		if n != 1 {
			t.Fatalf("index %d picked %d times in one cycle, want 1", idx, n)
		}
	}
}

func TestRotationRecyclesAfterExhaustion(t *testing.T) {
	pool := len(Patterns())
	r := NewRotation(rand.New(rand.NewSource(7)), pool)

	counts := make(map[int]int)
	for i := 0; i < 15; i++ {
		counts[r.Next()]++
	}
	// 15 draws over a pool of 10: every index once, five twice, never three times.
	twice := 0
	for idx, n := range counts {
		switch n {
		case 1:
		case 2:
			twice++
		default:
			t.Fatalf("index %d picked %d times in 15 draws, want at most 2", idx, n)
		}
	}
	if len(counts) != pool {
		t.Fatalf("distinct indices = %d, want %d", len(counts), pool)
	}
	if twice != 15-pool {
		t.Fatalf("indices picked twice = %d, want %d", twice, 15-pool)
	}
}

func TestRotationSmallPoolRecycles(t *testing.T) {
	r := NewRotation(rand.New(rand.NewSource(3)), 3)
	counts := make(map[int]int)
	for i := 0; i < 9; i++ {
		counts[r.Next()]++
	}
	for idx := 0; idx < 3; idx++ {
		if counts[idx] != 3 {
			t.Fatalf("index %d picked %d times over three full cycles, want 3", idx, counts[idx])
		}
	}
}

func TestRotationEmptyPool(t *testing.T) {
	r := NewRotation(rand.New(rand.NewSource(1)), 0)
	if got := r.Next(); got != -1 {
		t.Fatalf("Next() on empty pool = %d, want -1", got)
	}
}

func TestRotationDeterministicUnderSeed(t *testing.T) {
	a := NewRotation(rand.New(rand.NewSource(99)), 10)
	b := NewRotation(rand.New(rand.NewSource(99)), 10)
	for i := 0; i < 10; i++ {
		if got, want := a.Next(), b.Next(); got != want {
			t.Fatalf("draw %d = %d, want %d", i, got, want)
		}
	}
}
