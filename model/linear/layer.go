package linear

import (
	"github.com/chewxy/math32"
	"github.com/sw965/kaithy/mathx"
)

// LossLayer はTD誤差を受け取るスカラーの損失関数です。
type LossLayer struct {
	Func       func(float32) float32
	Derivative func(float32) float32
}

// NewHuberLossLayer は |x| <= delta で二乗、その外側で線形になる損失です。
func NewHuberLossLayer(delta float32) LossLayer {
	f := func(x float32) float32 {
		abs := math32.Abs(x)
		if abs <= delta {
			return 0.5 * x * x
		}
		return delta * (abs - 0.5*delta)
	}

	d := func(x float32) float32 {
		return mathx.Clip(x, -delta, delta)
	}

	return LossLayer{
		Func:       f,
		Derivative: d,
	}
}
