// Package config は .env ファイルと環境変数から訓練の設定を読み込みます。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/sw965/kaithy/deepq"
	"github.com/sw965/kaithy/estimator/linearq"
	"github.com/sw965/kaithy/estimator/tabular"
	"github.com/sw965/kaithy/game/sequential/gomoku"
)

var (
	ErrInvalidValue     = errors.New("invalid config value")
	ErrUnknownEstimator = errors.New("unknown estimator")
)

const Prefix = "KAITHY_"

type File struct {
	Variant string
	// Estimator は linearq.Kind か tabular.Kind です。
	Estimator string
	// OutputPath に訓練後のモデルを保存します。
	OutputPath string
	// SQLitePath が空なら記録を SQLite に残しません。
	SQLitePath string
	LogLevel   logrus.Level

	DeepQ   deepq.Config
	LinearQ linearq.Config
	Tabular tabular.Config
}

func Default() File {
	return File{
		Variant:    "Gomoku9x9-training-camp-v0",
		Estimator:  linearq.Kind,
		OutputPath: "models/gomoku.gob",
		LogLevel:   logrus.InfoLevel,
		DeepQ:      deepq.DefaultConfig(),
		LinearQ:    linearq.DefaultConfig(),
		Tabular:    tabular.DefaultConfig(),
	}
}

func (f File) Validate() error {
	if _, err := gomoku.LookupVariant(f.Variant); err != nil {
		return err
	}
	switch f.Estimator {
	case linearq.Kind:
		if err := f.LinearQ.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidValue, err)
		}
	case tabular.Kind:
		if err := f.Tabular.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidValue, err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEstimator, f.Estimator)
	}
	if f.OutputPath == "" {
		return fmt.Errorf("%w: %sOUTPUT_PATH must not be empty", ErrInvalidValue, Prefix)
	}
	return f.DeepQ.Validate()
}

// both は1つのキーを2つの設定に書き込みます。
func both(a, b func(string) error) func(string) error {
	return func(s string) error {
		if err := a(s); err != nil {
			return err
		}
		return b(s)
	}
}

type binding struct {
	key string
	set func(string) error
}

func stringVar(p *string) func(string) error {
	return func(s string) error {
		*p = s
		return nil
	}
}

func intVar(p *int) func(string) error {
	return func(s string) error {
		v, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*p = v
		return nil
	}
}

func float32Var(p *float32) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return err
		}
		*p = float32(v)
		return nil
	}
}

func float64Var(p *float64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*p = v
		return nil
	}
}

func boolVar(p *bool) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		*p = v
		return nil
	}
}

// intsVar は "1,2" のようなカンマ区切りを読みます。
func intsVar(p *[]int) func(string) error {
	return func(s string) error {
		fields := strings.Split(s, ",")
		vs := make([]int, 0, len(fields))
		for _, field := range fields {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			v, err := strconv.Atoi(field)
			if err != nil {
				return err
			}
			vs = append(vs, v)
		}
		*p = vs
		return nil
	}
}

func levelVar(p *logrus.Level) func(string) error {
	return func(s string) error {
		v, err := logrus.ParseLevel(s)
		if err != nil {
			return err
		}
		*p = v
		return nil
	}
}

func (f *File) bindings() []binding {
	dq := &f.DeepQ
	lq := &f.LinearQ
	tq := &f.Tabular
	return []binding{
		{"VARIANT", stringVar(&f.Variant)},
		{"ESTIMATOR", stringVar(&f.Estimator)},
		{"OUTPUT_PATH", stringVar(&f.OutputPath)},
		{"SQLITE_PATH", stringVar(&f.SQLitePath)},
		{"LOG_LEVEL", levelVar(&f.LogLevel)},

		{"MAX_TIMESTEPS", intVar(&dq.MaxTimesteps)},
		{"BUFFER_SIZE", intVar(&dq.BufferSize)},
		{"EXPLORATION_FRACTION", float32Var(&dq.ExplorationFraction)},
		{"EXPLORATION_FINAL_EPS", float32Var(&dq.ExplorationFinalEps)},
		{"TRAIN_FREQ", intVar(&dq.TrainFreq)},
		{"VAL_FREQ", intVar(&dq.ValFreq)},
		{"BATCH_SIZE", intVar(&dq.BatchSize)},
		{"PRINT_FREQ", intVar(&dq.PrintFreq)},
		{"LEARNING_STARTS", intVar(&dq.LearningStarts)},
		{"TARGET_NETWORK_UPDATE_FREQ", intVar(&dq.TargetNetworkUpdateFreq)},
		{"PRIORITIZED_REPLAY", boolVar(&dq.PrioritizedReplay)},
		{"PRIORITIZED_REPLAY_ALPHA", float64Var(&dq.Alpha)},
		{"PRIORITIZED_REPLAY_BETA0", float64Var(&dq.Beta0)},
		{"PRIORITIZED_REPLAY_BETA_ITERS", intVar(&dq.BetaIters)},
		{"PRIORITIZED_REPLAY_EPS", float64Var(&dq.Eps)},
		{"MAX_PRIORITY", float64Var(&dq.MaxPriority)},
		{"PARAM_NOISE", boolVar(&dq.ParamNoise)},
		{"STATE_FILE", stringVar(&dq.StateFile)},
		{"CHECKPOINT_DIR", stringVar(&dq.CheckpointDir)},
		{"VALIDATION_EPISODES", intVar(&dq.ValidationEpisodes)},
		{"OPPONENT_INTERMEDIATE_TRANSITIONS", boolVar(&dq.OpponentIntermediateTransitions)},

		{"GAMMA", both(float32Var(&lq.Gamma), float32Var(&tq.Gamma))},
		{"LEARNING_RATE", float32Var(&lq.LearningRate)},
		{"DOUBLE_Q", both(boolVar(&lq.DoubleQ), boolVar(&tq.DoubleQ))},
		{"GRAD_NORM_CLIPPING", float32Var(&lq.GradNormClipping)},
		{"DETERMINISTIC_FILTER", boolVar(&lq.DeterministicFilter)},
		{"RANDOM_FILTER", boolVar(&lq.RandomFilter)},
		{"MASK_CHANNELS", intsVar(&lq.MaskChannels)},
		{"OPTIMIZER", stringVar(&lq.Optimizer)},
		{"PARALLEL", intVar(&lq.Parallel)},
		{"HUBER_DELTA", float32Var(&lq.HuberDelta)},
		{"INITIAL_NOISE_SCALE", float32Var(&lq.InitialNoiseScale)},

		{"TABULAR_LEARNING_RATE", float32Var(&tq.LearningRate)},
	}
}

// Keys は読み込む全ての環境変数名です。
func Keys() []string {
	f := Default()
	bs := f.bindings()
	keys := make([]string, len(bs))
	for i, b := range bs {
		keys[i] = Prefix + b.key
	}
	return keys
}

// Parse は env に無いキーを既定値のままにします。
func Parse(env map[string]string) (File, error) {
	f := Default()
	for _, b := range f.bindings() {
		s, ok := env[Prefix+b.key]
		if !ok {
			continue
		}
		if err := b.set(strings.TrimSpace(s)); err != nil {
			return File{}, fmt.Errorf("%w: %s%s=%q: %w", ErrInvalidValue, Prefix, b.key, s, err)
		}
	}
	return f, nil
}

// Load は path の .env を読み、環境変数で上書きしてから Parse します。path が空か存在しなければ環境変数だけを使います。
func Load(path string) (File, error) {
	env := map[string]string{}
	if path != "" {
		read, err := godotenv.Read(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return File{}, fmt.Errorf("read %s: %w", path, err)
		}
		for k, v := range read {
			env[k] = v
		}
	}
	for _, key := range Keys() {
		if v, ok := os.LookupEnv(key); ok {
			env[key] = v
		}
	}
	f, err := Parse(env)
	if err != nil {
		return File{}, err
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}
