package linear_test

import (
	"math/rand/v2"
	"testing"

	"github.com/chewxy/math32"
	"github.com/sw965/kaithy/model/linear"
)

func newTestModel(rng *rand.Rand) linear.Model {
	param := linear.NewHeParameter(4, 3, rng)
	for i := range param.Bias.Data {
		param.Bias.Data[i] = float32(rng.Float64())
	}
	return linear.NewModel(param)
}

func TestPredict(t *testing.T) {
	param := linear.NewZerosParameter(2, 3)
	// W = [[1, 2, 3], [4, 5, 6]]
	copy(param.Weight.Data, []float32{1, 2, 3, 4, 5, 6})
	copy(param.Bias.Data, []float32{0.5, 0, -1})
	m := linear.NewModel(param)

	y, err := m.Predict([]float32{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	expected := []float32{9.5, 12, 14}
	for i := range expected {
		if y[i] != expected[i] {
			t.Errorf("y[%d]: want %v, got %v", i, expected[i], y[i])
		}
	}

	if _, err := m.Predict([]float32{1}); err == nil {
		t.Errorf("dimension mismatch must fail")
	}
}

// 数値微分と誤差逆伝播の勾配を比較する
func TestBackPropagateTD(t *testing.T) {
	tests := []struct {
		name   string
		td     float32
		weight float32
	}{
		{name: "正常_二乗領域", td: 0.5, weight: 0.7},
		{name: "正常_線形領域", td: 3.0, weight: 1.0},
		{name: "正常_負の線形領域", td: -2.5, weight: 0.3},
	}

	const h float32 = 1e-2
	const action = 1
	huber := linear.NewHuberLossLayer(1.0)

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rng := rand.New(rand.NewPCG(965, 2024))
			m := newTestModel(rng)
			x := []float32{0.1, 0.4, 0.9, 0.3}

			y, err := m.Predict(x)
			if err != nil {
				t.Fatal(err)
			}
			target := y[action] - tc.td

			lossFunc := func(model linear.Model) float32 {
				y, err := model.Predict(x)
				if err != nil {
					t.Fatal(err)
				}
				return tc.weight * huber.Func(y[action]-target)
			}

			grad := m.Parameter.NewGradBufferZerosLike()
			loss, err := m.BackPropagateTD(x, action, tc.td, tc.weight, huber, &grad)
			if err != nil {
				t.Fatal(err)
			}
			if math32.Abs(loss-lossFunc(m)) > 1e-5 {
				t.Errorf("loss: want %v, got %v", lossFunc(m), loss)
			}

			numerical := func(data []float32, i int) float32 {
				orig := data[i]
				data[i] = orig + h
				plus := lossFunc(m)
				data[i] = orig - h
				minus := lossFunc(m)
				data[i] = orig
				return (plus - minus) / (2 * h)
			}

			for i := range m.Parameter.Weight.Data {
				num := numerical(m.Parameter.Weight.Data, i)
				if math32.Abs(num-grad.Weight.Data[i]) > 1e-3 {
					t.Errorf("weight[%d]: numerical %v, backprop %v", i, num, grad.Weight.Data[i])
				}
			}
			for i := range m.Parameter.Bias.Data {
				num := numerical(m.Parameter.Bias.Data, i)
				if math32.Abs(num-grad.Bias.Data[i]) > 1e-3 {
					t.Errorf("bias[%d]: numerical %v, backprop %v", i, num, grad.Bias.Data[i])
				}
			}
		})
	}
}

func TestGradBufferClipByNorm(t *testing.T) {
	param := linear.NewZerosParameter(1, 2)
	grad := param.NewGradBufferZerosLike()
	copy(grad.Weight.Data, []float32{3, 0})
	copy(grad.Bias.Data, []float32{0, 4})

	norm := grad.ClipByNorm(1.0)
	if math32.Abs(norm-5) > 1e-5 {
		t.Errorf("norm before clip: want 5, got %v", norm)
	}
	if math32.Abs(grad.Nrm2()-1) > 1e-5 {
		t.Errorf("norm after clip: want 1, got %v", grad.Nrm2())
	}

	copy(grad.Weight.Data, []float32{0.3, 0})
	copy(grad.Bias.Data, []float32{0, 0.4})
	grad.ClipByNorm(1.0)
	if grad.Weight.Data[0] != 0.3 || grad.Bias.Data[1] != 0.4 {
		t.Errorf("gradients inside the norm ball must be left alone")
	}
}

func TestGradBuffersTotal(t *testing.T) {
	param := linear.NewZerosParameter(1, 1)
	a := param.NewGradBufferZerosLike()
	b := param.NewGradBufferZerosLike()
	a.Weight.Data[0], b.Weight.Data[0] = 1, 3
	a.Bias.Data[0], b.Bias.Data[0] = 2, 4

	gs := linear.GradBuffers{a, b}
	total := gs.Total()
	if total.Weight.Data[0] != 4 || total.Bias.Data[0] != 6 {
		t.Errorf("total: got %v %v", total.Weight.Data, total.Bias.Data)
	}
}

func TestParameterAxpy(t *testing.T) {
	p := linear.NewZerosParameter(2, 2)
	q := p.Clone()
	for i := range q.Weight.Data {
		q.Weight.Data[i] = 1
	}
	if err := p.Axpy(0.5, q); err != nil {
		t.Fatal(err)
	}
	if p.Weight.Data[3] != 0.5 {
		t.Errorf("want 0.5, got %v", p.Weight.Data[3])
	}
	if err := p.Axpy(1, linear.NewZerosParameter(3, 2)); err == nil {
		t.Errorf("shape mismatch must fail")
	}
}
