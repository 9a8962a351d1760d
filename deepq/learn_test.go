package deepq_test

import (
	"errors"
	"math"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sw965/kaithy/deepq"
	"github.com/sw965/kaithy/estimator"
)

func newTestConfig(t *testing.T) (deepq.Config, *test.Hook) {
	logger, hook := test.NewNullLogger()
	cfg := deepq.DefaultConfig()
	cfg.MaxTimesteps = 5
	cfg.BufferSize = 100
	cfg.BatchSize = 2
	cfg.LearningStarts = 0
	cfg.TargetNetworkUpdateFreq = 2
	cfg.TrainFreq = 1
	cfg.PrintFreq = 1
	cfg.ValFreq = 2
	cfg.ValidationEpisodes = 10
	cfg.ExplorationFraction = 0.5
	cfg.CheckpointDir = t.TempDir()
	cfg.Logger = logger
	return cfg, hook
}

func newTrainingEnv() *scriptedEnv {
	return &scriptedEnv{episodes: []scriptedEpisode{{length: 3, reward: 1}, {length: 2, reward: -1}}}
}

func newValidationEnv() *scriptedEnv {
	return &scriptedEnv{episodes: []scriptedEpisode{{length: 1, reward: 1}, {length: 1, reward: -1}, {length: 1, reward: 0}}}
}

func newTestRng() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestTrainerRun(t *testing.T) {
	cfg, hook := newTestConfig(t)
	env := newTrainingEnv()
	valEnv := newValidationEnv()
	est := &fakeEstimator{}
	reporter := &recordingReporter{}

	tr, err := deepq.NewTrainer(env, valEnv, est, cfg, reporter, newTestRng())
	require.NoError(t, err)
	assert.Equal(t, deepq.Warmup, tr.Phase())
	assert.NotEmpty(t, tr.RunID())

	result, err := tr.Run()
	require.NoError(t, err)

	assert.Equal(t, []float32{1, -1}, result.EpisodeRewards)
	assert.Equal(t, 5, result.Steps)
	assert.False(t, result.Stopped)
	assert.Equal(t, deepq.Done, tr.Phase())
	assert.Equal(t, tr.RunID(), result.RunID)

	// プレイヤー5手分と、相手の中間1つ・終局2つ
	assert.Equal(t, 8, tr.BufferLen())
	assert.Equal(t, 3, tr.Opponent().Added())
	assert.False(t, tr.Opponent().Pending())

	// 毎ステップ学習し、最初と2, 4ステップ目にターゲットを同期する
	assert.Len(t, est.updates, 5)
	assert.Equal(t, 3, est.targetSyncs)

	require.Len(t, reporter.progress, 2)
	assert.Equal(t, 1, reporter.progress[0].Episodes)
	assert.Equal(t, float32(1), reporter.progress[0].MeanReward)
	assert.Equal(t, float32(0), reporter.progress[1].MeanReward)
	assert.Equal(t, float32(0.25), reporter.progress[1].Loss)

	require.Len(t, reporter.validations, 1)
	v := reporter.validations[0]
	assert.Equal(t, 4, v.Step)
	assert.Equal(t, 2, v.Episodes)
	assert.Equal(t, 10, v.Result.Episodes())
	assert.Equal(t, deepq.ValidationResult{Wins: 4, Losses: 3, Draws: 3}, v.Result)
	assert.True(t, v.Saved)
	assert.Equal(t, 10, valEnv.swaps)
	assert.Zero(t, env.swaps)

	assert.True(t, result.Restored)
	assert.Equal(t, deepq.BestCheckpoint{Wins: 4, Losses: 3, Step: 4, Saved: true}, result.Best)
	assert.NoFileExists(t, filepath.Join(cfg.CheckpointDir, tr.RunID()+".gob"))
	assert.Equal(t, "training finished", hook.LastEntry().Message)
}

func TestTrainerExploration(t *testing.T) {
	cfg, _ := newTestConfig(t)
	cfg.MaxTimesteps = 4
	cfg.ExplorationFinalEps = 0.1
	cfg.ValFreq = 0
	est := &fakeEstimator{}

	_, err := deepq.Learn(newTrainingEnv(), nil, est, cfg, nil, newTestRng())
	require.NoError(t, err)

	// 各ステップでプレイヤーが1回、続けて相手が0回以上予測する
	require.NotEmpty(t, est.params)
	assert.Equal(t, float32(1), est.params[0].Eps)
	for _, p := range est.params {
		assert.True(t, p.Stochastic)
		assert.False(t, p.ParamNoise)
	}
	last := est.params[len(est.params)-1]
	assert.InDelta(t, 0.1, last.Eps, 1e-6)
}

func TestTrainerParamNoise(t *testing.T) {
	cfg, _ := newTestConfig(t)
	cfg.ParamNoise = true
	cfg.ValFreq = 0
	est := &fakeEstimator{}

	_, err := deepq.Learn(newTrainingEnv(), nil, est, cfg, nil, newTestRng())
	require.NoError(t, err)

	resets := 0
	for _, p := range est.params {
		assert.True(t, p.ParamNoise)
		assert.Greater(t, p.NoiseThreshold, float32(0))
		if p.ResetNoise {
			resets++
		}
	}
	// エピソードの開始毎にノイズを作り直す
	assert.True(t, est.params[0].ResetNoise)
	assert.Equal(t, 2, resets)
}

func TestTrainerPrioritizedReplay(t *testing.T) {
	cfg, _ := newTestConfig(t)
	cfg.PrioritizedReplay = true
	cfg.ValFreq = 0
	est := &fakeEstimator{}

	tr, err := deepq.NewTrainer(newTrainingEnv(), nil, est, cfg, nil, newTestRng())
	require.NoError(t, err)
	_, err = tr.Run()
	require.NoError(t, err)

	assert.Equal(t, 8, tr.BufferLen())
	require.Len(t, est.updates, 5)
	for _, batch := range est.updates {
		require.Len(t, batch.Weights, cfg.BatchSize)
		require.Len(t, batch.Indices, cfg.BatchSize)
		for _, w := range batch.Weights {
			assert.Greater(t, w, float32(0))
			assert.LessOrEqual(t, w, float32(1))
		}
	}
}

func TestTrainerCallback(t *testing.T) {
	cfg, _ := newTestConfig(t)
	cfg.ValFreq = 0
	est := &fakeEstimator{}
	var seen []deepq.Locals
	cfg.Callback = func(l deepq.Locals) bool {
		seen = append(seen, l)
		return l.Step == 3
	}

	result, err := deepq.Learn(newTrainingEnv(), nil, est, cfg, nil, newTestRng())
	require.NoError(t, err)
	assert.True(t, result.Stopped)
	assert.Equal(t, 3, result.Steps)
	assert.Len(t, est.updates, 3)
	require.Len(t, seen, 4)
	assert.Equal(t, 1, seen[3].Episodes)
	assert.Equal(t, []float32{1}, seen[3].EpisodeRewards)
	assert.False(t, result.Restored)
}

func TestTrainerWarmStart(t *testing.T) {
	t.Run("準正常_ファイルなし", func(t *testing.T) {
		cfg, hook := newTestConfig(t)
		cfg.ValFreq = 0
		cfg.StateFile = filepath.Join(t.TempDir(), "missing.gob")
		est := &fakeEstimator{}

		_, err := deepq.Learn(newTrainingEnv(), nil, est, cfg, nil, newTestRng())
		require.NoError(t, err)
		assert.Nil(t, est.restored)
		assert.Equal(t, "no model to load, training starts from scratch", hook.AllEntries()[0].Message)
	})

	t.Run("正常_読み込み", func(t *testing.T) {
		cfg, _ := newTestConfig(t)
		cfg.ValFreq = 0
		cfg.StateFile = filepath.Join(t.TempDir(), "model.gob")
		blob := estimator.Blob{Version: estimator.BlobVersion, Spec: testSpec, Params: []byte{7}}
		require.NoError(t, estimator.SaveFile(blob, cfg.StateFile))
		est := &fakeEstimator{}

		_, err := deepq.Learn(newTrainingEnv(), nil, est, cfg, nil, newTestRng())
		require.NoError(t, err)
		assert.Equal(t, []byte{7}, est.restored)
	})

	t.Run("異常_構成の不一致", func(t *testing.T) {
		cfg, _ := newTestConfig(t)
		cfg.StateFile = filepath.Join(t.TempDir(), "model.gob")
		other := testSpec
		other.NumActions = 3
		blob := estimator.Blob{Version: estimator.BlobVersion, Spec: other, Params: []byte{7}}
		require.NoError(t, estimator.SaveFile(blob, cfg.StateFile))

		_, err := deepq.Learn(newTrainingEnv(), nil, &fakeEstimator{}, cfg, nil, newTestRng())
		assert.ErrorIs(t, err, estimator.ErrSpecMismatch)
	})
}

func TestTrainerErrors(t *testing.T) {
	t.Run("異常_学習の失敗", func(t *testing.T) {
		cfg, _ := newTestConfig(t)
		est := &fakeEstimator{failUpdate: true}
		_, err := deepq.Learn(newTrainingEnv(), nil, est, cfg, nil, newTestRng())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "train at step 0")
	})

	t.Run("準正常_報告の失敗は続行", func(t *testing.T) {
		cfg, hook := newTestConfig(t)
		reporter := &recordingReporter{err: errors.New("disk full")}
		result, err := deepq.Learn(newTrainingEnv(), newValidationEnv(), &fakeEstimator{}, cfg, reporter, newTestRng())
		require.NoError(t, err)
		assert.Equal(t, 5, result.Steps)
		assert.Len(t, reporter.progress, 2)

		warnings := 0
		for _, e := range hook.AllEntries() {
			if e.Level == logrus.WarnLevel {
				warnings++
			}
		}
		assert.Equal(t, 3, warnings)
	})

	t.Run("異常_設定", func(t *testing.T) {
		cfg, _ := newTestConfig(t)
		cfg.BatchSize = 0
		_, err := deepq.NewTrainer(newTrainingEnv(), nil, &fakeEstimator{}, cfg, nil, newTestRng())
		assert.ErrorIs(t, err, deepq.ErrInvalidConfig)

		cfg, _ = newTestConfig(t)
		_, err = deepq.NewTrainer(nil, nil, &fakeEstimator{}, cfg, nil, newTestRng())
		assert.ErrorIs(t, err, deepq.ErrInvalidConfig)
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*deepq.Config)
		ok     bool
	}{
		{name: "正常_既定値", modify: func(*deepq.Config) {}, ok: true},
		{name: "異常_MaxTimesteps", modify: func(c *deepq.Config) { c.MaxTimesteps = 0 }},
		{name: "異常_ExplorationFraction", modify: func(c *deepq.Config) { c.ExplorationFraction = 1.5 }},
		{name: "異常_LearningStarts", modify: func(c *deepq.Config) { c.LearningStarts = -1 }},
		{name: "異常_Beta0", modify: func(c *deepq.Config) { c.PrioritizedReplay = true; c.Beta0 = 2 }},
		{name: "異常_Eps", modify: func(c *deepq.Config) { c.PrioritizedReplay = true; c.Eps = 0 }},
		{name: "正常_優先度なしならEpsは見ない", modify: func(c *deepq.Config) { c.Eps = 0 }, ok: true},
		{name: "正常_MaxPriority上限なし", modify: func(c *deepq.Config) { c.PrioritizedReplay = true; c.MaxPriority = 0 }, ok: true},
		{name: "異常_MaxPriority", modify: func(c *deepq.Config) { c.PrioritizedReplay = true; c.MaxPriority = -1 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := deepq.DefaultConfig()
			tc.modify(&cfg)
			err := cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, deepq.ErrInvalidConfig)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := deepq.DefaultConfig()
	assert.Greater(t, cfg.MaxPriority, 0.0)
	assert.False(t, math.IsInf(cfg.MaxPriority, 0))
	assert.True(t, cfg.OpponentIntermediateTransitions)
}

func TestTargetSyncDue(t *testing.T) {
	s := deepq.TargetSync{Freq: 3}
	var due []int
	for step := 0; step < 10; step++ {
		if s.Due(step, 3) {
			due = append(due, step)
		}
	}
	assert.Equal(t, []int{6, 9}, due)

	est := &fakeEstimator{}
	require.NoError(t, s.Sync(est))
	assert.Equal(t, 1, s.Syncs)
	assert.Equal(t, 1, est.targetSyncs)
}
