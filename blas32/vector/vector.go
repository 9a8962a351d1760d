package vector

import (
	"slices"

	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

func NewZeros(n int) blas32.Vector {
	return blas32.Vector{
		N:    n,
		Inc:  1,
		Data: make([]float32, n),
	}
}

func NewZerosLike(vec blas32.Vector) blas32.Vector {
	return NewZeros(vec.N)
}

func Clone(vec blas32.Vector) blas32.Vector {
	vec.Data = slices.Clone(vec.Data)
	return vec
}

// Affine は y = w^T x + b を返します。w は (len(x), len(b)) の行列です。
func Affine(x blas32.Vector, w blas32.General, b blas32.Vector) blas32.Vector {
	y := Clone(b)
	blas32.Gemv(blas.Trans, 1.0, w, x, 1.0, y)
	return y
}

// Softmax は数値的に安定な softmax を返します。
func Softmax(xs []float32) []float32 {
	y := make([]float32, len(xs))
	if len(xs) == 0 {
		return y
	}
	max := slices.Max(xs) // オーバーフロー対策
	var sum float32
	for i, x := range xs {
		e := math32.Exp(x - max)
		y[i] = e
		sum += e
	}
	for i := range y {
		y[i] /= sum
	}
	return y
}
