package linear

import (
	"fmt"

	"github.com/sw965/kaithy/blas32/vector"
	"gonum.org/v1/gonum/blas/blas32"
)

type Model struct {
	Parameter Parameter
}

func NewModel(param Parameter) Model {
	return Model{Parameter: param}
}

func (m *Model) checkInput(x []float32) error {
	if len(x) != m.Parameter.InputDim() {
		return fmt.Errorf("入力データの次元数(%d)がモデルの入力次元数(%d)と異なります", len(x), m.Parameter.InputDim())
	}
	return nil
}

// Predict は出力層が恒等関数の y = W^T x + b を返します。
func (m *Model) Predict(x []float32) ([]float32, error) {
	if err := m.checkInput(x); err != nil {
		return nil, err
	}
	xv := blas32.Vector{N: len(x), Inc: 1, Data: x}
	y := vector.Affine(xv, m.Parameter.Weight, m.Parameter.Bias)
	return y.Data, nil
}

// BackPropagateTD は出力 action に対するTD誤差 td の損失 weight * loss(td) の勾配を grad に加算し、損失を返します。
// 他の出力の勾配は0です。
func (m *Model) BackPropagateTD(x []float32, action int, td, weight float32, lossLayer LossLayer, grad *GradBuffer) (float32, error) {
	if err := m.checkInput(x); err != nil {
		return 0.0, err
	}
	if action < 0 || action >= m.Parameter.OutputDim() {
		return 0.0, fmt.Errorf("action %d is out of range [0, %d)", action, m.Parameter.OutputDim())
	}

	// dL/dy[action] = weight * loss'(td)
	dLdy := weight * lossLayer.Derivative(td)

	// dL/dW[:, action] = dL/dy * x
	col := blas32.Vector{
		N:    grad.Weight.Rows,
		Inc:  grad.Weight.Stride,
		Data: grad.Weight.Data[action:],
	}
	blas32.Axpy(dLdy, blas32.Vector{N: len(x), Inc: 1, Data: x}, col)

	// dL/db = dL/dy
	grad.Bias.Data[action] += dLdy
	return weight * lossLayer.Func(td), nil
}

func (m Model) Clone() Model {
	m.Parameter = m.Parameter.Clone()
	return m
}
