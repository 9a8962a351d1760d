package deepq

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/sw965/kaithy/replay"
)

var (
	ErrInvalidConfig = errors.New("invalid deepq config")
)

// Locals は Callback に渡される訓練中の状態です。
type Locals struct {
	Step           int
	Episodes       int
	EpisodeRewards []float32
}

// Callback は毎ステップの最初に呼ばれ、true を返すと訓練を打ち切ります。
type Callback func(Locals) bool

type Config struct {
	MaxTimesteps int
	BufferSize   int
	// ExplorationFraction は ε が ExplorationFinalEps まで下がるのにかかる MaxTimesteps の割合です。
	ExplorationFraction float32
	ExplorationFinalEps float32
	TrainFreq           int
	// ValFreq エピソード毎に検証します。0 なら検証しません。
	ValFreq   int
	BatchSize int
	// PrintFreq エピソード毎に進捗を報告します。0 なら報告しません。
	PrintFreq               int
	LearningStarts          int
	TargetNetworkUpdateFreq int

	PrioritizedReplay bool
	Alpha             float64
	Beta0             float64
	// BetaIters が0以下なら MaxTimesteps を使います。
	BetaIters int
	// Eps はTD誤差の絶対値に足して優先度にする正の値です。
	Eps float64
	// MaxPriority は優先度の上限です。0 なら上限を設けません。
	MaxPriority float64

	ParamNoise bool
	Callback   Callback

	// StateFile があれば起動時にパラメータを読み込みます。
	StateFile string
	// CheckpointDir に検証で選ばれた最良のパラメータを保存します。
	CheckpointDir      string
	ValidationEpisodes int
	// PerspectiveChannel は観測テンソルの手番を示すチャンネルです。
	PerspectiveChannel int
	// OpponentIntermediateTransitions が true なら相手の途中の手も (s, a, 0, s', false) として記録します。
	// 報酬0の中間遷移は、相手の次の手番の観測へ繋がります。
	// 相手の最後の手だけは常に (s, a, -reward, 終局, true) として記録され、false でも省略されません。
	OpponentIntermediateTransitions bool

	Logger logrus.FieldLogger
}

func DefaultConfig() Config {
	return Config{
		MaxTimesteps:                    100000,
		BufferSize:                      50000,
		ExplorationFraction:             0.1,
		ExplorationFinalEps:             0.02,
		TrainFreq:                       1,
		ValFreq:                         100,
		BatchSize:                       32,
		PrintFreq:                       100,
		LearningStarts:                  1000,
		TargetNetworkUpdateFreq:         500,
		Alpha:                           0.6,
		Beta0:                           0.4,
		Eps:                             1e-6,
		MaxPriority:                     100,
		CheckpointDir:                   "checkpoints",
		ValidationEpisodes:              200,
		PerspectiveChannel:              0,
		OpponentIntermediateTransitions: true,
	}
}

func (c Config) Validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"MaxTimesteps", c.MaxTimesteps},
		{"BufferSize", c.BufferSize},
		{"TrainFreq", c.TrainFreq},
		{"BatchSize", c.BatchSize},
		{"TargetNetworkUpdateFreq", c.TargetNetworkUpdateFreq},
		{"ValidationEpisodes", c.ValidationEpisodes},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, p.name, p.value)
		}
	}
	if c.ValFreq < 0 || c.PrintFreq < 0 || c.LearningStarts < 0 {
		return fmt.Errorf("%w: ValFreq, PrintFreq and LearningStarts must not be negative", ErrInvalidConfig)
	}
	if c.ExplorationFraction < 0 || c.ExplorationFraction > 1 {
		return fmt.Errorf("%w: ExplorationFraction must be in [0, 1], got %v", ErrInvalidConfig, c.ExplorationFraction)
	}
	if c.ExplorationFinalEps < 0 || c.ExplorationFinalEps > 1 {
		return fmt.Errorf("%w: ExplorationFinalEps must be in [0, 1], got %v", ErrInvalidConfig, c.ExplorationFinalEps)
	}
	if c.PerspectiveChannel < 0 {
		return fmt.Errorf("%w: PerspectiveChannel must not be negative", ErrInvalidConfig)
	}
	if c.PrioritizedReplay {
		if c.Alpha < 0 {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, replay.ErrInvalidAlpha)
		}
		if c.Beta0 < 0 || c.Beta0 > 1 {
			return fmt.Errorf("%w: Beta0 must be in [0, 1], got %v", ErrInvalidConfig, c.Beta0)
		}
		if c.Eps <= 0 {
			return fmt.Errorf("%w: Eps must be positive, got %v", ErrInvalidConfig, c.Eps)
		}
		if c.MaxPriority < 0 {
			return fmt.Errorf("%w: MaxPriority must not be negative, got %v", ErrInvalidConfig, c.MaxPriority)
		}
	}
	return nil
}

func (c Config) logger() logrus.FieldLogger {
	if c.Logger == nil {
		return logrus.StandardLogger()
	}
	return c.Logger
}
