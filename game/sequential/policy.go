package sequential

import (
	"fmt"
	"maps"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/sw965/omw/mathx/randx"
)

type Policy[M comparable] map[M]float32

func (p Policy[M]) ValidateForLegalMoves(legalMoves []M) error {
	if len(legalMoves) == 0 {
		return ErrEmptyLegalMoves
	}
	if len(p) != len(legalMoves) {
		return fmt.Errorf("%w: policy=%d legalMoves=%d", ErrPolicySizeMismatch, len(p), len(legalMoves))
	}

	var sum float32
	for i, m := range legalMoves {
		v, ok := p[m]
		if !ok {
			return fmt.Errorf("%w: idx=%d move=%v", ErrPolicyMissingLegalMove, i, m)
		}

		f64 := float64(v)
		if v < 0 || math.IsNaN(f64) || math.IsInf(f64, 0) {
			return fmt.Errorf("%w: idx=%d move=%v value=%v", ErrPolicyBadValue, i, m, v)
		}
		sum += v
	}

	if sum == 0 {
		return ErrPolicyZeroSum
	}
	return nil
}

type PolicyFunc[S any, M comparable] func(S, []M) (Policy[M], error)

func UniformPolicyFunc[S any, M comparable](state S, legalMoves []M) (Policy[M], error) {
	n := len(legalMoves)
	if n == 0 {
		return nil, ErrEmptyLegalMoves
	}

	p := 1.0 / float32(n)
	policy := Policy[M]{}
	for _, m := range legalMoves {
		policy[m] = p
	}
	return policy, nil
}

type SelectFunc[M, A comparable] func(Policy[M], A, *rand.Rand) (M, error)

// MaxSelectFunc は最大値の手を選びます。同値の手が複数あれば一様に選びます。
func MaxSelectFunc[M, A comparable](policy Policy[M], agent A, rng *rand.Rand) (M, error) {
	if len(policy) == 0 {
		var m M
		return m, ErrEmptyLegalMoves
	}

	var max float32
	moves := []M{}
	for k, v := range policy {
		switch {
		case len(moves) == 0 || v > max:
			max = v
			moves = []M{k}
		case v == max:
			moves = append(moves, k)
		}
	}
	return randx.Choice(moves, rng)
}

// RandomSelectFunc は値に関係なく、方策に含まれる手を一様に選びます。
func RandomSelectFunc[M, A comparable](policy Policy[M], agent A, rng *rand.Rand) (M, error) {
	moves := slices.Collect(maps.Keys(policy))
	return randx.Choice(moves, rng)
}

type Actor[S any, M, A comparable] struct {
	Name       string
	PolicyFunc PolicyFunc[S, M]
	SelectFunc SelectFunc[M, A]
}

func NewRandomActor[S any, M, A comparable](name string) Actor[S, M, A] {
	return Actor[S, M, A]{
		Name:       name,
		PolicyFunc: UniformPolicyFunc[S, M],
		SelectFunc: RandomSelectFunc[M, A],
	}
}

func (a Actor[S, M, A]) Validate() error {
	if a.PolicyFunc == nil {
		return fmt.Errorf("%w: PolicyFunc", ErrNilActorFunc)
	}
	if a.SelectFunc == nil {
		return fmt.Errorf("%w: SelectFunc", ErrNilActorFunc)
	}
	return nil
}

// Move は actor の方策で1手選びます。
func (a Actor[S, M, A]) Move(state S, legalMoves []M, agent A, rng *rand.Rand) (M, error) {
	var zero M
	if len(legalMoves) == 0 {
		return zero, ErrEmptyLegalMoves
	}

	policy, err := a.PolicyFunc(state, legalMoves)
	if err != nil {
		return zero, err
	}
	if err := policy.ValidateForLegalMoves(legalMoves); err != nil {
		return zero, err
	}
	return a.SelectFunc(policy, agent, rng)
}
