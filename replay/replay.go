// Package replay provides bounded experience-replay buffers for off-policy learning.
//
// Package replay はオフポリシー学習の為の容量固定の経験再生バッファを提供します。
package replay

import (
	"errors"

	tensor3d "github.com/sw965/kaithy/blas32/tensor/3d"
)

var (
	ErrEmptyBuffer     = errors.New("replay buffer is empty")
	ErrInvalidPriority = errors.New("priority must be positive and finite")
	ErrIndexOutOfRange = errors.New("index is out of range")
	ErrLengthMismatch  = errors.New("indices and priorities must have the same length")
	ErrInvalidCapacity = errors.New("capacity must be positive")
	ErrInvalidAlpha    = errors.New("alpha must be non-negative")
)

// Transition is one step of experience (s, a, r, s', done).
type Transition struct {
	Obs     tensor3d.General
	Action  int
	Reward  float32
	NextObs tensor3d.General
	Done    bool
}

// Batch is a sampled mini-batch. Weights are importance-sampling weights
// (all 1 for uniform sampling) and Indices are the buffer slots drawn.
type Batch struct {
	Transitions []Transition
	Weights     []float32
	Indices     []int
}

func (b Batch) Len() int {
	return len(b.Transitions)
}
