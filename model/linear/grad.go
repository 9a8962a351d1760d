package linear

import (
	"github.com/chewxy/math32"
	tensor2d "github.com/sw965/kaithy/blas32/tensor/2d"
	"github.com/sw965/kaithy/blas32/vector"
	"gonum.org/v1/gonum/blas/blas32"
)

type GradBuffer struct {
	Weight blas32.General
	Bias   blas32.Vector
}

func (g *GradBuffer) NewZerosLike() GradBuffer {
	return GradBuffer{
		Weight: tensor2d.NewZerosLike(g.Weight),
		Bias:   vector.NewZerosLike(g.Bias),
	}
}

func (g *GradBuffer) Axpy(alpha float32, x GradBuffer) {
	tensor2d.Axpy(alpha, x.Weight, g.Weight)
	blas32.Axpy(alpha, x.Bias, g.Bias)
}

func (g *GradBuffer) Scal(alpha float32) {
	tensor2d.Scal(alpha, g.Weight)
	blas32.Scal(alpha, g.Bias)
}

// Nrm2 は重みとバイアスをまとめた大域的なL2ノルムです。
func (g *GradBuffer) Nrm2() float32 {
	w := blas32.Nrm2(tensor2d.ToVector(g.Weight))
	b := blas32.Nrm2(g.Bias)
	return math32.Sqrt(w*w + b*b)
}

// ClipByNorm は大域ノルムが maxNorm を超える場合に勾配を縮小し、縮小前のノルムを返します。
// maxNorm <= 0 の場合は何もしません。
func (g *GradBuffer) ClipByNorm(maxNorm float32) float32 {
	norm := g.Nrm2()
	if maxNorm > 0 && norm > maxNorm {
		g.Scal(maxNorm / norm)
	}
	return norm
}

func (g GradBuffer) Vectors() [][]float32 {
	return [][]float32{g.Weight.Data, g.Bias.Data}
}

type GradBuffers []GradBuffer

func (gs GradBuffers) Total() GradBuffer {
	total := gs[0].NewZerosLike()
	for _, g := range gs {
		total.Axpy(1.0, g)
	}
	return total
}
