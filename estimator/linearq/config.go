package linearq

import (
	"fmt"
	"runtime"

	"github.com/sw965/kaithy/estimator"
	"github.com/sw965/kaithy/optimizer"
)

type Config struct {
	Gamma        float32
	LearningRate float32
	DoubleQ      bool
	// GradNormClipping は勾配の大域ノルムの上限です。0以下ならクリップしません。
	GradNormClipping    float32
	DeterministicFilter bool
	RandomFilter        bool
	// MaskChannels のセル毎の和が正の位置は無効な行動として扱います。
	MaskChannels      []int
	Optimizer         string
	Parallel          int
	HuberDelta        float32
	InitialNoiseScale float32
}

func DefaultConfig() Config {
	return Config{
		Gamma:             1.0,
		LearningRate:      5e-4,
		DoubleQ:           true,
		GradNormClipping:  10,
		MaskChannels:      []int{1, 2},
		Optimizer:         "adam",
		Parallel:          runtime.NumCPU(),
		HuberDelta:        1.0,
		InitialNoiseScale: 0.01,
	}
}

func (c Config) Validate() error {
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("Gamma must be in [0, 1], got %v", c.Gamma)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("LearningRate must be positive, got %v", c.LearningRate)
	}
	if c.Parallel <= 0 {
		return fmt.Errorf("Parallel must be positive, got %d", c.Parallel)
	}
	if c.HuberDelta <= 0 {
		return fmt.Errorf("HuberDelta must be positive, got %v", c.HuberDelta)
	}
	if c.InitialNoiseScale < 0 {
		return fmt.Errorf("InitialNoiseScale must not be negative, got %v", c.InitialNoiseScale)
	}
	if (c.DeterministicFilter || c.RandomFilter) && len(c.MaskChannels) == 0 {
		return fmt.Errorf("filters need at least one mask channel")
	}
	if _, err := optimizer.New(c.Optimizer, c.LearningRate); err != nil {
		return err
	}
	return nil
}

func (c Config) spec(channels, rows, cols, numActions int) estimator.Spec {
	return estimator.Spec{
		Kind:                Kind,
		Channels:            channels,
		Rows:                rows,
		Cols:                cols,
		NumActions:          numActions,
		DeterministicFilter: c.DeterministicFilter,
		RandomFilter:        c.RandomFilter,
		MaskChannels:        c.MaskChannels,
		Gamma:               c.Gamma,
		DoubleQ:             c.DoubleQ,
	}
}

// WithSpec は Blob に記録された構築パラメータで c を上書きしたものを返します。
func (c Config) WithSpec(spec estimator.Spec) Config {
	c.DeterministicFilter = spec.DeterministicFilter
	c.RandomFilter = spec.RandomFilter
	c.MaskChannels = spec.MaskChannels
	c.Gamma = spec.Gamma
	c.DoubleQ = spec.DoubleQ
	return c
}
