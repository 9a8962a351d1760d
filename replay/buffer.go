package replay

import (
	"fmt"
	"math/rand/v2"
)

// Buffer is a FIFO ring of transitions with uniform sampling.
type Buffer struct {
	storage []Transition
	next    int
	size    int
	rng     *rand.Rand
}

func NewBuffer(capacity int, rng *rand.Rand) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	return &Buffer{
		storage: make([]Transition, capacity),
		rng:     rng,
	}, nil
}

func (b *Buffer) Len() int {
	return b.size
}

func (b *Buffer) Cap() int {
	return len(b.storage)
}

// Add writes t at the cursor. Once full, the oldest transition is overwritten.
func (b *Buffer) Add(t Transition) {
	b.add(t)
}

// add returns the slot t was written to.
func (b *Buffer) add(t Transition) int {
	idx := b.next
	b.storage[idx] = t
	b.next = (b.next + 1) % len(b.storage)
	if b.size < len(b.storage) {
		b.size++
	}
	return idx
}

// At returns the transition stored in slot idx.
func (b *Buffer) At(idx int) (Transition, error) {
	if idx < 0 || idx >= b.size {
		return Transition{}, fmt.Errorf("%w: %d (len=%d)", ErrIndexOutOfRange, idx, b.size)
	}
	return b.storage[idx], nil
}

// Oldest returns the stored transitions from the oldest to the newest.
func (b *Buffer) Oldest() []Transition {
	ts := make([]Transition, 0, b.size)
	start := 0
	if b.size == len(b.storage) {
		start = b.next
	}
	for i := 0; i < b.size; i++ {
		ts = append(ts, b.storage[(start+i)%len(b.storage)])
	}
	return ts
}

// Sample draws n transitions uniformly with replacement.
func (b *Buffer) Sample(n int) (Batch, error) {
	if b.size == 0 {
		return Batch{}, ErrEmptyBuffer
	}
	idxs := make([]int, n)
	for i := range idxs {
		idxs[i] = b.rng.IntN(b.size)
	}
	batch := b.gather(idxs)
	for i := range batch.Weights {
		batch.Weights[i] = 1.0
	}
	return batch, nil
}

func (b *Buffer) gather(idxs []int) Batch {
	ts := make([]Transition, len(idxs))
	for i, idx := range idxs {
		ts[i] = b.storage[idx]
	}
	return Batch{
		Transitions: ts,
		Weights:     make([]float32, len(idxs)),
		Indices:     idxs,
	}
}
