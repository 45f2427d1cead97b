package interview

import "math/rand"

// Rotation yields indices into a fixed pool without repeats until the
// pool is exhausted, then recycles. It backs both the question
// archetype pool and the resume talking-point pool. The random source
// is injected so selection is deterministic under test.
type Rotation struct {
	rng  *rand.Rand
	size int
	used map[int]bool
}

func NewRotation(rng *rand.Rand, size int) *Rotation {
	return &Rotation{
		rng:  rng,
		size: size,
		used: make(map[int]bool),
	}
}

// Next returns an unused index chosen uniformly at random, or -1 for an
// empty pool. When every index has been used the pool resets and all
// indices become eligible again.
func (r *Rotation) Next() int {
	if r.size <= 0 {
		return -1
	}
	available := make([]int, 0, r.size)
	for i := 0; i < r.size; i++ {
		if !r.used[i] {
			available = append(available, i)
		}
	}
	if len(available) == 0 {
		r.used = make(map[int]bool)
		for i := 0; i < r.size; i++ {
			available = append(available, i)
		}
	}
	idx := available[r.rng.Intn(len(available))]
	r.used[idx] = true
	return idx
}

// UsedCount reports how many indices are marked used in the current
// cycle.
func (r *Rotation) UsedCount() int {
	return len(r.used)
}
