// Package tabular は観測テンソルをそのままキーにするQテーブル推定器です。小さな盤面の検証用です。
package tabular

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand/v2"

	tensor3d "github.com/sw965/kaithy/blas32/tensor/3d"
	"github.com/sw965/kaithy/estimator"
	"github.com/sw965/kaithy/mathx/randx"
	"github.com/sw965/kaithy/ql"
	"github.com/sw965/kaithy/replay"
)

const Kind = "tabular"

type Config struct {
	Gamma        float32
	LearningRate float32
	DoubleQ      bool
}

func DefaultConfig() Config {
	return Config{
		Gamma:        1.0,
		LearningRate: 0.1,
		DoubleQ:      true,
	}
}

func (c Config) Validate() error {
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("Gamma must be in [0, 1], got %v", c.Gamma)
	}
	if c.LearningRate <= 0 || c.LearningRate > 1 {
		return fmt.Errorf("LearningRate must be in (0, 1], got %v", c.LearningRate)
	}
	return nil
}

type Estimator struct {
	spec   estimator.Spec
	config Config
	online ql.Table
	target ql.Table
	rng    *rand.Rand
}

func New(channels, rows, cols, numActions int, cfg Config, rng *rand.Rand) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if numActions <= 0 {
		return nil, fmt.Errorf("numActions must be positive, got %d", numActions)
	}
	spec := estimator.Spec{
		Kind:       Kind,
		Channels:   channels,
		Rows:       rows,
		Cols:       cols,
		NumActions: numActions,
		Gamma:      cfg.Gamma,
		DoubleQ:    cfg.DoubleQ,
	}
	online := ql.NewTable(numActions)
	return &Estimator{
		spec:   spec,
		config: cfg,
		online: online,
		target: online.Clone(),
		rng:    rng,
	}, nil
}

// Load は Blob の構築パラメータで推定器を作り、オンラインとターゲットの両方を復元します。
func Load(blob estimator.Blob, cfg Config, rng *rand.Rand) (*Estimator, error) {
	if blob.Spec.Kind != Kind {
		return nil, fmt.Errorf("%w: kind %q", estimator.ErrSpecMismatch, blob.Spec.Kind)
	}
	s := blob.Spec
	cfg.Gamma = s.Gamma
	cfg.DoubleQ = s.DoubleQ
	e, err := New(s.Channels, s.Rows, s.Cols, s.NumActions, cfg, rng)
	if err != nil {
		return nil, err
	}
	if err := e.Restore(blob); err != nil {
		return nil, err
	}
	if err := e.RestoreTarget(blob); err != nil {
		return nil, err
	}
	return e, nil
}

// Key は観測テンソルの値をそのまま連結したバイト列です。
func Key(obs tensor3d.General) string {
	buf := make([]byte, 0, 4*len(obs.Data))
	for _, v := range obs.Data {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return string(buf)
}

func argmax(q []float32) int {
	best := 0
	for i := 1; i < len(q); i++ {
		if q[i] > q[best] {
			best = i
		}
	}
	return best
}

func (e *Estimator) Spec() estimator.Spec {
	return e.spec
}

func (e *Estimator) States() int {
	return e.online.Len()
}

func (e *Estimator) QValues(obs tensor3d.General) []float32 {
	return e.online.Get(Key(obs))
}

// Predict はε-greedyで行動を選びます。パラメータノイズには対応しておらず、その場合は貪欲に選びます。
func (e *Estimator) Predict(obs []tensor3d.General, params estimator.ExploreParams) ([]int, error) {
	actions := make([]int, len(obs))
	for i, o := range obs {
		if err := e.spec.CheckObservation(o); err != nil {
			return nil, err
		}
		action := argmax(e.online.Get(Key(o)))
		if params.Stochastic && !params.ParamNoise && randx.Bernoulli(params.Eps, e.rng) {
			action = e.rng.IntN(e.spec.NumActions)
		}
		actions[i] = action
	}
	return actions, nil
}

func (e *Estimator) Update(batch replay.Batch) (estimator.UpdateResult, error) {
	n := batch.Len()
	if n == 0 {
		return estimator.UpdateResult{}, estimator.ErrEmptyBatch
	}

	tdErrors := make([]float32, n)
	var loss float32
	for i, tr := range batch.Transitions {
		key := Key(tr.Obs)
		q := e.online.Get(key)[tr.Action]

		var nextQ float32
		if !tr.Done {
			nextKey := Key(tr.NextObs)
			targetQ := e.target.Get(nextKey)
			if e.config.DoubleQ {
				nextQ = targetQ[argmax(e.online.Get(nextKey))]
			} else {
				nextQ = targetQ[argmax(targetQ)]
			}
		}

		td := q - (tr.Reward + e.config.Gamma*nextQ)
		tdErrors[i] = td
		w := float32(1.0)
		if len(batch.Weights) == n {
			w = batch.Weights[i]
		}
		loss += w * 0.5 * td * td
		e.online.Set(key, tr.Action, ql.UpdateQ(q, nextQ, tr.Reward, e.config.LearningRate*w, e.config.Gamma))
	}
	return estimator.UpdateResult{TDErrors: tdErrors, Loss: loss / float32(n)}, nil
}

func (e *Estimator) Snapshot() (estimator.Blob, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e.online.Values); err != nil {
		return estimator.Blob{}, err
	}
	return estimator.Blob{Version: estimator.BlobVersion, Spec: e.spec, Params: buf.Bytes()}, nil
}

func (e *Estimator) decode(blob estimator.Blob) (ql.Table, error) {
	if err := blob.Check(e.spec); err != nil {
		return ql.Table{}, err
	}
	table := ql.NewTable(e.spec.NumActions)
	if err := gob.NewDecoder(bytes.NewReader(blob.Params)).Decode(&table.Values); err != nil {
		return ql.Table{}, fmt.Errorf("decode table: %w", err)
	}
	return table, nil
}

func (e *Estimator) Restore(blob estimator.Blob) error {
	table, err := e.decode(blob)
	if err != nil {
		return err
	}
	e.online = table
	return nil
}

func (e *Estimator) RestoreTarget(blob estimator.Blob) error {
	table, err := e.decode(blob)
	if err != nil {
		return err
	}
	e.target = table
	return nil
}
