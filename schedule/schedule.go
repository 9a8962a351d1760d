// Package schedule provides exploration schedules used by the training loop.
package schedule

import (
	"github.com/chewxy/math32"
	"github.com/sw965/kaithy/mathx"
)

// Linear interpolates from Initial at step 0 to Final at step Steps and
// stays at Final afterwards.
type Linear struct {
	Steps   int
	Initial float32
	Final   float32
}

func NewLinear(steps int, initial, final float32) Linear {
	return Linear{Steps: steps, Initial: initial, Final: final}
}

func (l Linear) Value(step int) float32 {
	if l.Steps <= 0 || step >= l.Steps {
		return l.Final
	}
	if step <= 0 {
		return l.Initial
	}
	return mathx.ConvertScale(float32(step), 0, float32(l.Steps), l.Initial, l.Final)
}

// ParamNoiseThreshold は ε-greedy と同じ KL ダイバージェンスになるようなパラメータノイズの閾値を返します。
// Plappert et al., 2017 の Appendix C.1 を参照。
//
//	threshold = -ln(1 - ε + ε/numActions)
func ParamNoiseThreshold(eps float32, numActions int) float32 {
	return -math32.Log(1.0 - eps + eps/float32(numActions))
}
