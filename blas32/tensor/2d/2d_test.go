package tensor2d_test

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/sw965/kaithy/blas32/tensor/2d"
	"gonum.org/v1/gonum/blas/blas32"
)

func TestAxpyAndScal(t *testing.T) {
	x := blas32.General{Rows: 2, Cols: 2, Stride: 2, Data: []float32{1, 2, 3, 4}}
	y := tensor2d.NewZerosLike(x)

	tensor2d.Axpy(2.0, x, y)
	if !slices.Equal(y.Data, []float32{2, 4, 6, 8}) {
		t.Errorf("Axpy: got %v", y.Data)
	}

	tensor2d.Scal(0.5, y)
	if !slices.Equal(y.Data, x.Data) {
		t.Errorf("Scal: got %v", y.Data)
	}
}

func TestNewHeIsDeterministic(t *testing.T) {
	a := tensor2d.NewHe(4, 3, rand.New(rand.NewPCG(1, 2)))
	b := tensor2d.NewHe(4, 3, rand.New(rand.NewPCG(1, 2)))
	if !slices.Equal(a.Data, b.Data) {
		t.Errorf("same seed must produce the same matrix")
	}
	c := tensor2d.Clone(a)
	c.Data[0] += 1
	if a.Data[0] == c.Data[0] {
		t.Errorf("clone shares data")
	}
}
