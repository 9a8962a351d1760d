package randx

import (
	"math/rand/v2"

	"github.com/sw965/omw/mathx/randx"
)

// NewRngs はワーカー毎に独立した乱数生成器を n 個作ります。
func NewRngs(n int) []*rand.Rand {
	rngs := make([]*rand.Rand, n)
	for i := range rngs {
		rngs[i] = randx.NewPCGFromGlobalSeed()
	}
	return rngs
}

// Normal32 は平均 mean、標準偏差 std の正規乱数を返します。
func Normal32(mean, std float32, rng *rand.Rand) float32 {
	return mean + std*float32(rng.NormFloat64())
}

// Bernoulli は確率 p で true を返します。
func Bernoulli(p float32, rng *rand.Rand) bool {
	return rng.Float32() < p
}
