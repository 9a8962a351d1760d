package replay

import (
	"fmt"
	"math"
	"math/rand/v2"
)

const (
	// DefaultMinPriority は保存される優先度の下限です。
	DefaultMinPriority = 1e-6
)

// PrioritizedConfig configures a PrioritizedBuffer. MaxPriority <= 0 disables
// the upper clip.
type PrioritizedConfig struct {
	Capacity    int
	Alpha       float64
	MinPriority float64
	MaxPriority float64
}

// PrioritizedBuffer samples transitions with probability proportional to
// priority^alpha (Schaul et al., 2015). Priorities are stored raised to alpha
// in a sum tree so that sampling and updates are O(log n).
type PrioritizedBuffer struct {
	*Buffer
	alpha       float64
	minPriority float64
	maxClip     float64
	maxPriority float64
	sums        *segmentTree
}

func NewPrioritizedBuffer(cfg PrioritizedConfig, rng *rand.Rand) (*PrioritizedBuffer, error) {
	if cfg.Alpha < 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAlpha, cfg.Alpha)
	}
	buf, err := NewBuffer(cfg.Capacity, rng)
	if err != nil {
		return nil, err
	}

	minPriority := cfg.MinPriority
	if minPriority <= 0 {
		minPriority = DefaultMinPriority
	}
	maxClip := cfg.MaxPriority
	if maxClip <= 0 {
		maxClip = math.MaxFloat64
	}

	treeCap := nextPowerOfTwo(cfg.Capacity)
	return &PrioritizedBuffer{
		Buffer:      buf,
		alpha:       cfg.Alpha,
		minPriority: minPriority,
		maxClip:     maxClip,
		maxPriority: math.Min(1.0, maxClip),
		sums:        newSumTree(treeCap),
	}, nil
}

// Add stores t with the maximum priority seen so far, so that every new
// transition is replayed at least once with a high probability.
func (b *PrioritizedBuffer) Add(t Transition) {
	idx := b.Buffer.add(t)
	b.setPriority(idx, b.maxPriority)
}

func (b *PrioritizedBuffer) setPriority(idx int, p float64) {
	pa := math.Pow(p, b.alpha)
	b.sums.set(idx, pa)
}

// Priority returns the priority (before alpha) stored at idx.
func (b *PrioritizedBuffer) Priority(idx int) (float64, error) {
	if idx < 0 || idx >= b.size {
		return 0, fmt.Errorf("%w: %d (len=%d)", ErrIndexOutOfRange, idx, b.size)
	}
	pa := b.sums.get(idx)
	if b.alpha == 0 {
		return pa, nil
	}
	return math.Pow(pa, 1.0/b.alpha), nil
}

// Probability returns P(idx) = p_idx^alpha / sum_j p_j^alpha.
func (b *PrioritizedBuffer) Probability(idx int) (float64, error) {
	if idx < 0 || idx >= b.size {
		return 0, fmt.Errorf("%w: %d (len=%d)", ErrIndexOutOfRange, idx, b.size)
	}
	return b.sums.get(idx) / b.sums.reduce(0, b.size), nil
}

func (b *PrioritizedBuffer) sampleProportional(n int) []int {
	total := b.sums.reduce(0, b.size)
	idxs := make([]int, n)
	for i := range idxs {
		mass := b.rng.Float64() * total
		idx := b.sums.findPrefixSum(mass)
		// 浮動小数点の誤差で未使用の葉に落ちる事があるので丸める
		if idx >= b.size {
			idx = b.size - 1
		}
		idxs[i] = idx
	}
	return idxs
}

// Sample draws n transitions proportionally to priority^alpha and attaches
// importance weights w_i = (N*P(i))^-beta normalised by the batch maximum.
func (b *PrioritizedBuffer) Sample(n int, beta float64) (Batch, error) {
	if b.size == 0 {
		return Batch{}, ErrEmptyBuffer
	}

	idxs := b.sampleProportional(n)
	batch := b.gather(idxs)

	total := b.sums.reduce(0, b.size)
	size := float64(b.size)
	ws := make([]float64, n)
	maxW := 0.0
	for i, idx := range idxs {
		p := b.sums.get(idx) / total
		w := math.Pow(p*size, -beta)
		ws[i] = w
		if w > maxW {
			maxW = w
		}
	}
	for i, w := range ws {
		batch.Weights[i] = float32(w / maxW)
	}
	return batch, nil
}

// UpdatePriorities overwrites the priorities of the given slots. The whole
// call is rejected when any priority is not a positive finite number or any
// index is out of range. Accepted priorities are clamped into
// [MinPriority, MaxPriority].
func (b *PrioritizedBuffer) UpdatePriorities(idxs []int, priorities []float64) error {
	if len(idxs) != len(priorities) {
		return fmt.Errorf("%w: indices=%d priorities=%d", ErrLengthMismatch, len(idxs), len(priorities))
	}

	for i, idx := range idxs {
		p := priorities[i]
		if !(p > 0) || math.IsInf(p, 0) {
			return fmt.Errorf("%w: idx=%d priority=%v", ErrInvalidPriority, idx, p)
		}
		if idx < 0 || idx >= b.size {
			return fmt.Errorf("%w: %d (len=%d)", ErrIndexOutOfRange, idx, b.size)
		}
	}

	for i, idx := range idxs {
		p := math.Min(math.Max(priorities[i], b.minPriority), b.maxClip)
		b.setPriority(idx, p)
		b.maxPriority = math.Max(b.maxPriority, p)
	}
	return nil
}
