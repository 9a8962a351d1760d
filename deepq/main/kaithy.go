package main

import (
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
	tensor3d "github.com/sw965/kaithy/blas32/tensor/3d"
	"github.com/sw965/kaithy/config"
	"github.com/sw965/kaithy/deepq"
	"github.com/sw965/kaithy/estimator"
	"github.com/sw965/kaithy/estimator/linearq"
	"github.com/sw965/kaithy/estimator/tabular"
	"github.com/sw965/kaithy/game/sequential"
	"github.com/sw965/kaithy/game/sequential/gomoku"
	"github.com/sw965/kaithy/mathx/randx"
	"github.com/sw965/kaithy/report"
)

const usage = `usage: kaithy <command> [flags]

commands:
  train     self-play training, writes the model to KAITHY_OUTPUT_PATH
  eval      plays a saved model against the beginner policy
  variants  lists the registered board variants
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var err error
	switch os.Args[1] {
	case "train":
		err = trainCommand(os.Args[2:], logger)
	case "eval":
		err = evalCommand(os.Args[2:], logger)
	case "variants":
		for _, id := range gomoku.VariantIDs() {
			fmt.Println(id)
		}
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.WithError(err).Fatal(os.Args[1] + " failed")
	}
}

func loadConfig(fs *flag.FlagSet, args []string, logger *logrus.Logger) (config.File, error) {
	envPath := fs.String("env", ".env", ".env file, a missing file is ignored")
	variant := fs.String("variant", "", "overrides KAITHY_VARIANT")
	if err := fs.Parse(args); err != nil {
		return config.File{}, err
	}
	f, err := config.Load(*envPath)
	if err != nil {
		return config.File{}, err
	}
	if *variant != "" {
		f.Variant = *variant
		if err := f.Validate(); err != nil {
			return config.File{}, err
		}
	}
	logger.SetLevel(f.LogLevel)
	return f, nil
}

func trainCommand(args []string, logger *logrus.Logger) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	f, err := loadConfig(fs, args, logger)
	if err != nil {
		return err
	}
	_, err = train(f, logger, os.Stdout)
	return err
}

func evalCommand(args []string, logger *logrus.Logger) error {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	model := fs.String("model", "", "model file, defaults to KAITHY_OUTPUT_PATH")
	games := fs.Int("games", 100, "number of games, half of them as white")
	workers := fs.Int("workers", runtime.NumCPU(), "parallel playouts")
	f, err := loadConfig(fs, args, logger)
	if err != nil {
		return err
	}
	path := *model
	if path == "" {
		path = f.OutputPath
	}
	result, err := evaluate(f, path, *games, *workers)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"model":  path,
		"games":  result.Games(),
		"wins":   result.Wins,
		"losses": result.Losses,
		"draws":  result.Draws,
		"score":  result.Score,
	}).Info("evaluation finished")
	return nil
}

func newEstimator(f config.File, rules gomoku.Rules, rng *rand.Rand) (estimator.Estimator, error) {
	switch f.Estimator {
	case linearq.Kind:
		return linearq.New(gomoku.NumChannels, rules.Size, rules.Size, rules.NumCells(), f.LinearQ, rng)
	case tabular.Kind:
		return tabular.New(gomoku.NumChannels, rules.Size, rules.Size, rules.NumCells(), f.Tabular, rng)
	}
	return nil, fmt.Errorf("%w: %q", config.ErrUnknownEstimator, f.Estimator)
}

// loadEstimator は Blob に記録された種類の推定器を作ります。
func loadEstimator(blob estimator.Blob, f config.File, rng *rand.Rand) (estimator.Estimator, error) {
	switch blob.Spec.Kind {
	case linearq.Kind:
		return linearq.Load(blob, f.LinearQ, rng)
	case tabular.Kind:
		return tabular.Load(blob, f.Tabular, rng)
	}
	return nil, fmt.Errorf("%w: %q", config.ErrUnknownEstimator, blob.Spec.Kind)
}

// train は訓練用の環境で自己対局し、初心者相手の環境で検証します。最後のパラメータを OutputPath に保存します。
func train(f config.File, logger *logrus.Logger, out io.Writer) (deepq.Result, error) {
	variant, err := gomoku.LookupVariant(f.Variant)
	if err != nil {
		return deepq.Result{}, err
	}
	rng := randx.NewRngs(1)[0]

	env, err := variant.TrainingCamp().NewEnv(rng)
	if err != nil {
		return deepq.Result{}, err
	}
	valEnv, err := variant.WithBeginner().NewEnv(rng)
	if err != nil {
		return deepq.Result{}, err
	}
	est, err := newEstimator(f, variant.Rules, rng)
	if err != nil {
		return deepq.Result{}, err
	}

	reporters := report.Multi{
		report.NewLogrus(logger),
		report.NewTable(out),
	}
	var store *report.SQLiteStore
	if f.SQLitePath != "" {
		store, err = report.OpenSQLite(f.SQLitePath)
		if err != nil {
			return deepq.Result{}, err
		}
		defer store.Close()
		reporters = append(reporters, store)
	}

	cfg := f.DeepQ
	cfg.Logger = logger
	cfg.PerspectiveChannel = gomoku.TurnChannel
	if cfg.StateFile == "" {
		cfg.StateFile = f.OutputPath
	}

	tr, err := deepq.NewTrainer(env, valEnv, est, cfg, reporters, rng)
	if err != nil {
		return deepq.Result{}, err
	}
	if store != nil {
		if err := store.BeginRun(tr.RunID(), variant.ID, f.Estimator); err != nil {
			return deepq.Result{}, err
		}
	}
	logger.WithFields(logrus.Fields{
		"run":       tr.RunID(),
		"variant":   variant.ID,
		"estimator": f.Estimator,
	}).Info("training started")

	result, err := tr.Run()
	if err != nil {
		return deepq.Result{}, err
	}
	if store != nil {
		if err := store.FinishRun(result); err != nil {
			logger.WithError(err).Warn("recording finished run failed")
		}
	}

	blob, err := est.Snapshot()
	if err != nil {
		return deepq.Result{}, err
	}
	if err := estimator.SaveFile(blob, f.OutputPath); err != nil {
		return deepq.Result{}, err
	}
	logger.WithField("path", f.OutputPath).Info("saved model")
	return result, nil
}

type evalResult struct {
	Wins   int
	Losses int
	Draws  int
	// Score は勝ちを1、引き分けを0.5とした合計です。
	Score float32
}

func (r evalResult) Games() int {
	return r.Wins + r.Losses + r.Draws
}

// evaluate はモデルを先手と後手で半分ずつ初心者と対局させます。
func evaluate(f config.File, modelPath string, games, workers int) (evalResult, error) {
	if games <= 0 || workers <= 0 {
		return evalResult{}, fmt.Errorf("games and workers must be positive: %d, %d", games, workers)
	}
	variant, err := gomoku.LookupVariant(f.Variant)
	if err != nil {
		return evalResult{}, err
	}
	rules := variant.Rules
	blob, err := estimator.LoadFile(modelPath)
	if err != nil {
		return evalResult{}, err
	}
	if blob.Spec.Rows != rules.Size || blob.Spec.Cols != rules.Size {
		return evalResult{}, fmt.Errorf("%w: model board %dx%d, variant %s", estimator.ErrSpecMismatch, blob.Spec.Rows, blob.Spec.Cols, variant.ID)
	}

	rngs := randx.NewRngs(workers + 1)
	est, err := loadEstimator(blob, f, rngs[workers])
	if err != nil {
		return evalResult{}, err
	}

	// 推定器は並行に呼べないので直列化する
	var mu sync.Mutex
	predict := func(obs tensor3d.General) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		actions, err := est.Predict([]tensor3d.General{obs}, estimator.Greedy)
		if err != nil {
			return 0, err
		}
		return actions[0], nil
	}
	model := gomoku.NewPredictActor("model", predict)
	beginner := gomoku.NewBeginnerActor("beginner")
	engine := gomoku.NewEngine()

	result := evalResult{}
	seats := []struct {
		color gomoku.Color
		n     int
	}{
		{gomoku.Black, games - games/2},
		{gomoku.White, games / 2},
	}
	for _, seat := range seats {
		if seat.n == 0 {
			continue
		}
		actors := map[gomoku.Color]sequential.Actor[gomoku.State, int, gomoku.Color]{
			seat.color:            model,
			seat.color.Opposite(): beginner,
		}
		inits := make([]gomoku.State, seat.n)
		for i := range inits {
			inits[i] = gomoku.NewInitState(rules)
		}
		finals, err := engine.Playouts(inits, actors, rngs[:workers])
		if err != nil {
			return evalResult{}, err
		}
		for _, final := range finals {
			switch final.Winner() {
			case seat.color:
				result.Wins++
			case seat.color.Opposite():
				result.Losses++
			default:
				result.Draws++
			}
		}
		total, err := engine.Tally(finals)
		if err != nil {
			return evalResult{}, err
		}
		result.Score += total[seat.color]
	}
	return result, nil
}
