// Package optimizer は float32 パラメータ群を勾配で更新する最適化手法を提供します。
package optimizer

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Optimizer updates each parameter group in place with the matching
// gradient group: params[i] and grads[i] must have the same length.
type Optimizer interface {
	Step(params, grads [][]float32) error
}

func checkShapes(params, grads [][]float32) error {
	if len(params) != len(grads) {
		return fmt.Errorf("parameter groups (%d) and gradient groups (%d) differ", len(params), len(grads))
	}
	for i := range params {
		if len(params[i]) != len(grads[i]) {
			return fmt.Errorf("group %d: parameter size %d and gradient size %d differ", i, len(params[i]), len(grads[i]))
		}
	}
	return nil
}

func zerosLike(xs [][]float32) [][]float32 {
	zs := make([][]float32, len(xs))
	for i, x := range xs {
		zs[i] = make([]float32, len(x))
	}
	return zs
}

type Momentum struct {
	LearningRate float32
	Momentum     float32
	velocity     [][]float32
}

func NewMomentum(lr, momentum float32) *Momentum {
	return &Momentum{LearningRate: lr, Momentum: momentum}
}

func (opt *Momentum) Step(params, grads [][]float32) error {
	if err := checkShapes(params, grads); err != nil {
		return err
	}
	if opt.velocity == nil {
		opt.velocity = zerosLike(params)
	}
	for i, w := range params {
		v := opt.velocity[i]
		g := grads[i]
		for j := range w {
			v[j] = (opt.Momentum * v[j]) - (opt.LearningRate * g[j])
			w[j] += v[j]
		}
	}
	return nil
}

// Adam は Kingma & Ba, 2014 の Adam です。
type Adam struct {
	LearningRate float32
	Beta1        float32
	Beta2        float32
	Epsilon      float32
	t            int
	m            [][]float32
	v            [][]float32
}

func NewAdam(lr float32) *Adam {
	return &Adam{
		LearningRate: lr,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
	}
}

func (opt *Adam) Step(params, grads [][]float32) error {
	if err := checkShapes(params, grads); err != nil {
		return err
	}
	if opt.m == nil {
		opt.m = zerosLike(params)
		opt.v = zerosLike(params)
	}
	opt.t++
	// バイアス補正込みの学習率
	t := float32(opt.t)
	lr := opt.LearningRate * math32.Sqrt(1-math32.Pow(opt.Beta2, t)) / (1 - math32.Pow(opt.Beta1, t))

	for i, w := range params {
		m := opt.m[i]
		v := opt.v[i]
		g := grads[i]
		for j := range w {
			m[j] = opt.Beta1*m[j] + (1-opt.Beta1)*g[j]
			v[j] = opt.Beta2*v[j] + (1-opt.Beta2)*g[j]*g[j]
			w[j] -= lr * m[j] / (math32.Sqrt(v[j]) + opt.Epsilon)
		}
	}
	return nil
}

// New returns an optimizer by name ("adam" or "momentum").
func New(name string, lr float32) (Optimizer, error) {
	switch name {
	case "", "adam":
		return NewAdam(lr), nil
	case "momentum":
		return NewMomentum(lr, 0.9), nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q", name)
	}
}
