package replay

// segmentTree is an array-backed binary tree over a power-of-two number of
// leaves. Node i has children 2i and 2i+1, leaves live at [capacity, 2*capacity).
type segmentTree struct {
	capacity int
	values   []float64
	op       func(a, b float64) float64
	neutral  float64
}

func newSegmentTree(capacity int, op func(a, b float64) float64, neutral float64) *segmentTree {
	values := make([]float64, 2*capacity)
	for i := range values {
		values[i] = neutral
	}
	return &segmentTree{
		capacity: capacity,
		values:   values,
		op:       op,
		neutral:  neutral,
	}
}

func newSumTree(capacity int) *segmentTree {
	return newSegmentTree(capacity, func(a, b float64) float64 { return a + b }, 0.0)
}

func (t *segmentTree) set(idx int, v float64) {
	i := idx + t.capacity
	t.values[i] = v
	for i /= 2; i >= 1; i /= 2 {
		t.values[i] = t.op(t.values[2*i], t.values[2*i+1])
	}
}

func (t *segmentTree) get(idx int) float64 {
	return t.values[idx+t.capacity]
}

// reduce applies op over leaves [start, end).
func (t *segmentTree) reduce(start, end int) float64 {
	result := t.neutral
	lo := start + t.capacity
	hi := end + t.capacity
	for lo < hi {
		if lo&1 == 1 {
			result = t.op(result, t.values[lo])
			lo++
		}
		if hi&1 == 1 {
			hi--
			result = t.op(result, t.values[hi])
		}
		lo /= 2
		hi /= 2
	}
	return result
}

func (t *segmentTree) total() float64 {
	return t.values[1]
}

// findPrefixSum returns the highest index i such that sum(leaves[:i]) <= mass.
// Only meaningful on a sum tree with non-negative leaves.
func (t *segmentTree) findPrefixSum(mass float64) int {
	i := 1
	for i < t.capacity {
		left := 2 * i
		if t.values[left] > mass {
			i = left
		} else {
			mass -= t.values[left]
			i = left + 1
		}
	}
	return i - t.capacity
}

func nextPowerOfTwo(n int) int {
	c := 1
	for c < n {
		c *= 2
	}
	return c
}
