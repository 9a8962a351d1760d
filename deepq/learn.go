// Package deepq は自己対局でQ関数を学習する訓練ループです。
//
// Package deepq implements the self-play deep Q-learning loop: experience
// replay (uniform or prioritized), ε-greedy or parameter-noise exploration,
// target network sync, opponent bookkeeping, periodic validation and best
// checkpoint selection.
package deepq

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	tensor3d "github.com/sw965/kaithy/blas32/tensor/3d"
	"github.com/sw965/kaithy/estimator"
	"github.com/sw965/kaithy/replay"
	"github.com/sw965/kaithy/schedule"
	"gonum.org/v1/gonum/stat"
)

type Phase int

const (
	// Warmup は行動と記録のみを行います。
	Warmup Phase = iota
	Training
	Done
)

func (p Phase) String() string {
	switch p {
	case Warmup:
		return "warmup"
	case Training:
		return "training"
	case Done:
		return "done"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

const meanRewardWindow = 100

type Result struct {
	RunID          string
	Steps          int
	EpisodeRewards []float32
	Best           BestCheckpoint
	// Restored は最良のチェックポイントを推定器に戻したかどうかです。
	Restored bool
	// Stopped は Callback で打ち切られたかどうかです。
	Stopped bool
}

// Trainer は訓練中の全ての可変な状態を持ちます。
type Trainer struct {
	config   Config
	env      Env
	est      estimator.Estimator
	reporter Reporter
	logger   logrus.FieldLogger
	runID    string

	uniform     *replay.Buffer
	prioritized *replay.PrioritizedBuffer
	store       transitionAdder

	exploration schedule.Linear
	beta        schedule.Linear
	target      TargetSync
	opponent    *Opponent
	validator   *Validator
	selector    *CheckpointSelector

	phase          Phase
	step           int
	obs            tensor3d.General
	resetNoise     bool
	running        float32
	episodeRewards []float32
	loss           float32
	start          time.Time
}

// NewTrainer は valEnv が nil なら検証とチェックポイントを行いません。reporter が nil なら何も報告しません。
func NewTrainer(env, valEnv Env, est estimator.Estimator, cfg Config, reporter Reporter, rng *rand.Rand) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if env == nil || est == nil {
		return nil, fmt.Errorf("%w: env and estimator are required", ErrInvalidConfig)
	}
	if reporter == nil {
		reporter = nopReporter{}
	}

	tr := &Trainer{
		config:   cfg,
		env:      env,
		est:      est,
		reporter: reporter,
		runID:    uuid.NewString(),
		target:   TargetSync{Freq: cfg.TargetNetworkUpdateFreq},
	}
	tr.logger = cfg.logger().WithField("run", tr.runID)

	if cfg.PrioritizedReplay {
		buf, err := replay.NewPrioritizedBuffer(replay.PrioritizedConfig{
			Capacity:    cfg.BufferSize,
			Alpha:       cfg.Alpha,
			MaxPriority: cfg.MaxPriority,
		}, rng)
		if err != nil {
			return nil, err
		}
		betaIters := cfg.BetaIters
		if betaIters <= 0 {
			betaIters = cfg.MaxTimesteps
		}
		tr.prioritized = buf
		tr.store = buf
		tr.beta = schedule.NewLinear(betaIters, float32(cfg.Beta0), 1.0)
	} else {
		buf, err := replay.NewBuffer(cfg.BufferSize, rng)
		if err != nil {
			return nil, err
		}
		tr.uniform = buf
		tr.store = buf
	}

	explorationSteps := int(cfg.ExplorationFraction * float32(cfg.MaxTimesteps))
	tr.exploration = schedule.NewLinear(explorationSteps, 1.0, cfg.ExplorationFinalEps)

	tr.opponent = NewOpponent(est, tr.store, cfg.PerspectiveChannel, cfg.OpponentIntermediateTransitions)
	env.SetOpponentPolicy(tr.opponent.Policy)

	if valEnv != nil {
		tr.validator = &Validator{Env: valEnv, Episodes: cfg.ValidationEpisodes}
		tr.selector = NewCheckpointSelector(cfg.CheckpointDir, tr.runID, tr.logger)
	}
	return tr, nil
}

func (tr *Trainer) RunID() string {
	return tr.runID
}

func (tr *Trainer) Phase() Phase {
	return tr.phase
}

// EpisodeRewards は終了したエピソード毎の累積報酬です。
func (tr *Trainer) EpisodeRewards() []float32 {
	rewards := make([]float32, len(tr.episodeRewards))
	copy(rewards, tr.episodeRewards)
	return rewards
}

func (tr *Trainer) Opponent() *Opponent {
	return tr.opponent
}

func (tr *Trainer) BufferLen() int {
	if tr.prioritized != nil {
		return tr.prioritized.Len()
	}
	return tr.uniform.Len()
}

func (tr *Trainer) warmStart() error {
	path := tr.config.StateFile
	if path == "" {
		return nil
	}
	blob, err := estimator.LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		tr.logger.WithField("path", path).Info("no model to load, training starts from scratch")
		return nil
	}
	if err != nil {
		return err
	}
	if err := tr.est.Restore(blob); err != nil {
		return err
	}
	tr.logger.WithField("path", path).Info("loaded model")
	return nil
}

func (tr *Trainer) exploreParams() estimator.ExploreParams {
	eps := tr.exploration.Value(tr.step)
	if !tr.config.ParamNoise {
		return estimator.ExploreParams{Eps: eps, Stochastic: true}
	}
	return estimator.ExploreParams{
		Stochastic:       true,
		ParamNoise:       true,
		ResetNoise:       tr.resetNoise,
		UpdateNoiseScale: true,
		NoiseThreshold:   schedule.ParamNoiseThreshold(eps, tr.env.NumActions()),
	}
}

func (tr *Trainer) meanReward() float32 {
	n := len(tr.episodeRewards)
	if n == 0 {
		return 0
	}
	recent := tr.episodeRewards[max(0, n-meanRewardWindow):]
	xs := make([]float64, len(recent))
	for i, r := range recent {
		xs[i] = float64(r)
	}
	return float32(stat.Mean(xs, nil))
}

func (tr *Trainer) train() error {
	var batch replay.Batch
	var err error
	if tr.prioritized != nil {
		batch, err = tr.prioritized.Sample(tr.config.BatchSize, float64(tr.beta.Value(tr.step)))
	} else {
		batch, err = tr.uniform.Sample(tr.config.BatchSize)
	}
	if err != nil {
		return err
	}

	res, err := tr.est.Update(batch)
	if err != nil {
		return err
	}
	tr.loss = res.Loss

	if tr.prioritized != nil {
		priorities := make([]float64, len(res.TDErrors))
		for i, td := range res.TDErrors {
			priorities[i] = math.Abs(float64(td)) + tr.config.Eps
		}
		if err := tr.prioritized.UpdatePriorities(batch.Indices, priorities); err != nil {
			return err
		}
	}
	return nil
}

func (tr *Trainer) report() {
	p := Progress{
		RunID:      tr.runID,
		Elapsed:    time.Since(tr.start),
		Steps:      tr.step,
		Episodes:   len(tr.episodeRewards),
		MeanReward: tr.meanReward(),
		Exploring:  int(100 * tr.exploration.Value(tr.step)),
		Loss:       tr.loss,
	}
	if err := tr.reporter.Progress(p); err != nil {
		tr.logger.WithError(err).Warn("progress report failed")
	}
}

func (tr *Trainer) validate() error {
	start := time.Now()
	result, err := tr.validator.Validate(tr.est)
	if err != nil {
		return err
	}
	saved, err := tr.selector.Consider(tr.step, result, tr.est)
	if err != nil {
		return err
	}

	r := ValidationReport{
		RunID:    tr.runID,
		Step:     tr.step,
		Episodes: len(tr.episodeRewards),
		Elapsed:  time.Since(start),
		Result:   result,
		Saved:    saved,
		Best:     tr.selector.Best,
	}
	if err := tr.reporter.Validation(r); err != nil {
		tr.logger.WithError(err).Warn("validation report failed")
	}
	return nil
}

// endEpisode は終局の遷移を両者について記録し、環境をリセットします。
func (tr *Trainer) endEpisode(action int, reward float32, terminal tensor3d.General) error {
	ch := tr.config.PerspectiveChannel
	agentSide := perspective(tr.obs, ch)
	tr.store.Add(replay.Transition{
		Obs:     tr.obs,
		Action:  action,
		Reward:  reward,
		NextObs: withPerspective(terminal, ch, agentSide),
		Done:    true,
	})
	tr.opponent.Finish(terminal, 1-agentSide, reward)

	tr.episodeRewards = append(tr.episodeRewards, tr.running)
	tr.running = 0

	obs, err := tr.env.Reset()
	if err != nil {
		return err
	}
	tr.obs = obs
	tr.resetNoise = true
	return nil
}

func (tr *Trainer) doStep() error {
	params := tr.exploreParams()
	tr.opponent.SetExploreParams(params)

	actions, err := tr.est.Predict([]tensor3d.General{tr.obs}, params)
	if err != nil {
		return err
	}
	action := actions[0]
	tr.resetNoise = false

	next, reward, done, err := tr.env.Step(action)
	if err != nil {
		return err
	}
	tr.running += reward

	if done {
		if err := tr.endEpisode(action, reward, next); err != nil {
			return err
		}
	} else {
		tr.store.Add(replay.Transition{Obs: tr.obs, Action: action, Reward: reward, NextObs: next, Done: false})
		tr.obs = next
	}

	if tr.phase == Training && tr.step%tr.config.TrainFreq == 0 {
		if err := tr.train(); err != nil {
			return fmt.Errorf("train at step %d: %w", tr.step, err)
		}
	}

	if tr.target.Due(tr.step, tr.config.LearningStarts) {
		if err := tr.target.Sync(tr.est); err != nil {
			return err
		}
	}

	if !done {
		return nil
	}
	episodes := len(tr.episodeRewards)
	if tr.config.PrintFreq > 0 && episodes%tr.config.PrintFreq == 0 {
		tr.report()
	}
	if tr.validator != nil && tr.config.ValFreq > 0 && episodes%tr.config.ValFreq == 0 {
		if err := tr.validate(); err != nil {
			return fmt.Errorf("validate at step %d: %w", tr.step, err)
		}
	}
	return nil
}

// Run は MaxTimesteps ステップか Callback が止めるまで訓練し、最良のチェックポイントを戻して終わります。
func (tr *Trainer) Run() (Result, error) {
	if err := tr.warmStart(); err != nil {
		return Result{}, err
	}
	if err := tr.target.Sync(tr.est); err != nil {
		return Result{}, err
	}

	obs, err := tr.env.Reset()
	if err != nil {
		return Result{}, err
	}
	tr.obs = obs
	tr.resetNoise = true
	tr.start = time.Now()

	stopped := false
	for tr.step = 0; tr.step < tr.config.MaxTimesteps; tr.step++ {
		if cb := tr.config.Callback; cb != nil {
			if cb(Locals{Step: tr.step, Episodes: len(tr.episodeRewards), EpisodeRewards: tr.EpisodeRewards()}) {
				stopped = true
				break
			}
		}

		tr.phase = Warmup
		if tr.step >= tr.config.LearningStarts {
			tr.phase = Training
		}
		if err := tr.doStep(); err != nil {
			return Result{}, err
		}
	}
	tr.phase = Done

	result := Result{
		RunID:          tr.runID,
		Steps:          tr.step,
		EpisodeRewards: tr.EpisodeRewards(),
		Stopped:        stopped,
	}
	if tr.selector != nil {
		restored, err := tr.selector.RestoreBest(tr.est)
		if err != nil {
			return Result{}, err
		}
		result.Best = tr.selector.Best
		result.Restored = restored
	}
	tr.logger.WithFields(logrus.Fields{
		"steps":    result.Steps,
		"episodes": len(result.EpisodeRewards),
		"stopped":  stopped,
		"restored": result.Restored,
	}).Info("training finished")
	return result, nil
}

// Learn は Trainer を作って Run します。
func Learn(env, valEnv Env, est estimator.Estimator, cfg Config, reporter Reporter, rng *rand.Rand) (Result, error) {
	tr, err := NewTrainer(env, valEnv, est, cfg, reporter, rng)
	if err != nil {
		return Result{}, err
	}
	return tr.Run()
}
