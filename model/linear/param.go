package linear

import (
	"fmt"
	"math/rand/v2"

	tensor2d "github.com/sw965/kaithy/blas32/tensor/2d"
	"github.com/sw965/kaithy/blas32/vector"
	"gonum.org/v1/gonum/blas/blas32"
)

// Parameter は全結合層 y = W^T x + b のパラメータです。
// Weight は (入力次元, 出力次元) の行列です。
type Parameter struct {
	Weight blas32.General
	Bias   blas32.Vector
}

func NewZerosParameter(inputDim, outputDim int) Parameter {
	return Parameter{
		Weight: tensor2d.NewZeros(inputDim, outputDim),
		Bias:   vector.NewZeros(outputDim),
	}
}

func NewHeParameter(inputDim, outputDim int, rng *rand.Rand) Parameter {
	return Parameter{
		Weight: tensor2d.NewHe(inputDim, outputDim, rng),
		Bias:   vector.NewZeros(outputDim),
	}
}

func (p Parameter) InputDim() int {
	return p.Weight.Rows
}

func (p Parameter) OutputDim() int {
	return p.Weight.Cols
}

func (p Parameter) SameShape(other Parameter) bool {
	return p.Weight.Rows == other.Weight.Rows && p.Weight.Cols == other.Weight.Cols && p.Bias.N == other.Bias.N
}

func (p Parameter) Clone() Parameter {
	return Parameter{
		Weight: tensor2d.Clone(p.Weight),
		Bias:   vector.Clone(p.Bias),
	}
}

func (p Parameter) NewGradBufferZerosLike() GradBuffer {
	return GradBuffer{
		Weight: tensor2d.NewZerosLike(p.Weight),
		Bias:   vector.NewZerosLike(p.Bias),
	}
}

// Vectors は最適化手法に渡す為の生データです。要素はパラメータとメモリを共有します。
func (p Parameter) Vectors() [][]float32 {
	return [][]float32{p.Weight.Data, p.Bias.Data}
}

func (p *Parameter) Axpy(alpha float32, x Parameter) error {
	if !p.SameShape(x) {
		return fmt.Errorf("Parameter sizes do not match in Axpy")
	}
	tensor2d.Axpy(alpha, x.Weight, p.Weight)
	blas32.Axpy(alpha, x.Bias, p.Bias)
	return nil
}

func (p *Parameter) Scal(alpha float32) {
	tensor2d.Scal(alpha, p.Weight)
	blas32.Scal(alpha, p.Bias)
}
