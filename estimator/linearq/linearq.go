// Package linearq は観測テンソルを平坦化した線形Q関数による推定器です。
package linearq

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math/rand/v2"

	"github.com/chewxy/math32"
	tensor3d "github.com/sw965/kaithy/blas32/tensor/3d"
	"github.com/sw965/kaithy/blas32/vector"
	"github.com/sw965/kaithy/estimator"
	"github.com/sw965/kaithy/mathx/randx"
	"github.com/sw965/kaithy/model/linear"
	"github.com/sw965/kaithy/optimizer"
	"github.com/sw965/kaithy/replay"
	"github.com/sw965/omw/parallel"
)

const Kind = "linear"

// Estimator はオンライン、ターゲット、摂動付きの3つのパラメータを持ちます。
type Estimator struct {
	spec      estimator.Spec
	config    Config
	online    linear.Model
	target    linear.Model
	perturbed linear.Model
	// 摂動済みかどうか
	perturbedReady bool
	noiseScale     float32
	opt            optimizer.Optimizer
	loss           linear.LossLayer
	rng            *rand.Rand
}

func New(channels, rows, cols, numActions int, cfg Config, rng *rand.Rand) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if channels <= 0 || rows <= 0 || cols <= 0 || numActions <= 0 {
		return nil, fmt.Errorf("invalid shape (%d, %d, %d) with %d actions", channels, rows, cols, numActions)
	}
	if (cfg.DeterministicFilter || cfg.RandomFilter) && numActions != rows*cols {
		return nil, fmt.Errorf("filters need one action per cell: %d actions for %dx%d", numActions, rows, cols)
	}
	for _, ch := range cfg.MaskChannels {
		if ch < 0 || ch >= channels {
			return nil, fmt.Errorf("mask channel %d is out of range [0, %d)", ch, channels)
		}
	}

	opt, err := optimizer.New(cfg.Optimizer, cfg.LearningRate)
	if err != nil {
		return nil, err
	}

	spec := cfg.spec(channels, rows, cols, numActions)
	online := linear.NewModel(linear.NewHeParameter(spec.InputDim(), numActions, rng))
	return &Estimator{
		spec:       spec,
		config:     cfg,
		online:     online,
		target:     online.Clone(),
		noiseScale: cfg.InitialNoiseScale,
		opt:        opt,
		loss:       linear.NewHuberLossLayer(cfg.HuberDelta),
		rng:        rng,
	}, nil
}

// Load は Blob の構築パラメータから推定器を作り、オンラインとターゲットの両方を復元します。
func Load(blob estimator.Blob, cfg Config, rng *rand.Rand) (*Estimator, error) {
	if blob.Spec.Kind != Kind {
		return nil, fmt.Errorf("%w: kind %q", estimator.ErrSpecMismatch, blob.Spec.Kind)
	}
	s := blob.Spec
	e, err := New(s.Channels, s.Rows, s.Cols, s.NumActions, cfg.WithSpec(s), rng)
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

func (e *Estimator) Spec() estimator.Spec {
	return e.spec
}

func (e *Estimator) NoiseScale() float32 {
	return e.noiseScale
}

func (e *Estimator) invalidMask(obs tensor3d.General) ([]bool, error) {
	if !e.config.DeterministicFilter && !e.config.RandomFilter {
		return nil, nil
	}
	plane, err := obs.SumChannels(e.config.MaskChannels...)
	if err != nil {
		return nil, err
	}
	mask := make([]bool, len(plane))
	for i, v := range plane {
		mask[i] = v > 0
	}
	return mask, nil
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

// filterQ は無効な行動のQ値を min(q) - 1 に置き換えます。
func filterQ(q []float32, invalid []bool) {
	minQ := q[0]
	for _, v := range q[1:] {
		minQ = math32.Min(minQ, v)
	}
	for i, ng := range invalid {
		if ng {
			q[i] = minQ - 1
		}
	}
}

func (e *Estimator) perturb() linear.Model {
	m := e.online.Clone()
	for _, data := range m.Parameter.Vectors() {
		for i := range data {
			data[i] += randx.Normal32(0, e.noiseScale, e.rng)
		}
	}
	return m
}

func klSoftmax(p, q []float32) float32 {
	sp := vector.Softmax(p)
	sq := vector.Softmax(q)
	var kl float32
	for i := range sp {
		if sp[i] > 0 {
			kl += sp[i] * (math32.Log(sp[i]) - math32.Log(math32.Max(sq[i], 1e-12)))
		}
	}
	return kl
}

// adaptNoiseScale はクリーンなパラメータと新たに摂動したパラメータの方策のKLが閾値を下回れば
// ノイズを大きく、上回れば小さくします。
func (e *Estimator) adaptNoiseScale(obs []tensor3d.General, threshold float32) error {
	adaptive := e.perturb()
	var kl float32
	for _, o := range obs {
		x := o.ToVector().Data
		q, err := e.online.Predict(x)
		if err != nil {
			return err
		}
		aq, err := adaptive.Predict(x)
		if err != nil {
			return err
		}
		kl += klSoftmax(q, aq)
	}
	kl /= float32(len(obs))
	if kl < threshold {
		e.noiseScale *= 1.01
	} else {
		e.noiseScale /= 1.01
	}
	return nil
}

func (e *Estimator) Predict(obs []tensor3d.General, params estimator.ExploreParams) ([]int, error) {
	for _, o := range obs {
		if err := e.spec.CheckObservation(o); err != nil {
			return nil, err
		}
	}

	model := &e.online
	if params.ParamNoise && params.Stochastic {
		if params.ResetNoise || !e.perturbedReady {
			e.perturbed = e.perturb()
			e.perturbedReady = true
		}
		if params.UpdateNoiseScale && len(obs) > 0 {
			if err := e.adaptNoiseScale(obs, params.NoiseThreshold); err != nil {
				return nil, err
			}
		}
		model = &e.perturbed
	}

	actions := make([]int, len(obs))
	for i, o := range obs {
		q, err := model.Predict(o.ToVector().Data)
		if err != nil {
			return nil, err
		}
		invalid, err := e.invalidMask(o)
		if err != nil {
			return nil, err
		}
		if e.config.DeterministicFilter {
			filterQ(q, invalid)
		}
		greedy := argmax(q)
		action := greedy

		if params.Stochastic && !params.ParamNoise && randx.Bernoulli(params.Eps, e.rng) {
			action = e.rng.IntN(e.spec.NumActions)
			if e.config.RandomFilter && invalid[action] {
				action = greedy
			}
		}
		actions[i] = action
	}
	return actions, nil
}

// QValues はオンラインパラメータのQ値です。
func (e *Estimator) QValues(obs tensor3d.General) ([]float32, error) {
	if err := e.spec.CheckObservation(obs); err != nil {
		return nil, err
	}
	return e.online.Predict(obs.ToVector().Data)
}

func (e *Estimator) bootstrap(next tensor3d.General) (float32, error) {
	x := next.ToVector().Data
	targetQ, err := e.target.Predict(x)
	if err != nil {
		return 0.0, err
	}
	if !e.config.DoubleQ {
		return targetQ[argmax(targetQ)], nil
	}
	onlineQ, err := e.online.Predict(x)
	if err != nil {
		return 0.0, err
	}
	return targetQ[argmax(onlineQ)], nil
}

func (e *Estimator) Update(batch replay.Batch) (estimator.UpdateResult, error) {
	n := batch.Len()
	if n == 0 {
		return estimator.UpdateResult{}, estimator.ErrEmptyBatch
	}
	if len(batch.Weights) != n {
		return estimator.UpdateResult{}, fmt.Errorf("%d weights for %d transitions", len(batch.Weights), n)
	}

	p := e.config.Parallel
	grads := make(linear.GradBuffers, p)
	for i := range grads {
		grads[i] = e.online.Parameter.NewGradBufferZerosLike()
	}
	losses := make([]float32, p)
	tdErrors := make([]float32, n)
	scale := 1.0 / float32(n)

	err := parallel.For(n, p, func(workerId, idx int) error {
		tr := batch.Transitions[idx]
		if err := e.spec.CheckObservation(tr.Obs); err != nil {
			return err
		}
		x := tr.Obs.ToVector().Data
		q, err := e.online.Predict(x)
		if err != nil {
			return err
		}

		y := tr.Reward
		if !tr.Done {
			if err := e.spec.CheckObservation(tr.NextObs); err != nil {
				return err
			}
			v, err := e.bootstrap(tr.NextObs)
			if err != nil {
				return err
			}
			y += e.config.Gamma * v
		}

		td := q[tr.Action] - y
		tdErrors[idx] = td
		loss, err := e.online.BackPropagateTD(x, tr.Action, td, batch.Weights[idx]*scale, e.loss, &grads[workerId])
		if err != nil {
			return err
		}
		losses[workerId] += loss
		return nil
	})
	if err != nil {
		return estimator.UpdateResult{}, err
	}

	total := grads.Total()
	total.ClipByNorm(e.config.GradNormClipping)
	if err := e.opt.Step(e.online.Parameter.Vectors(), total.Vectors()); err != nil {
		return estimator.UpdateResult{}, err
	}

	var loss float32
	for _, l := range losses {
		loss += l
	}
	return estimator.UpdateResult{TDErrors: tdErrors, Loss: loss}, nil
}

func encodeParameter(p linear.Parameter) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *Estimator) decodeParameter(blob estimator.Blob) (linear.Parameter, error) {
	if err := blob.Check(e.spec); err != nil {
		return linear.Parameter{}, err
	}
	var p linear.Parameter
	if err := gob.NewDecoder(bytes.NewReader(blob.Params)).Decode(&p); err != nil {
		return linear.Parameter{}, fmt.Errorf("decode parameter: %w", err)
	}
	if !p.SameShape(e.online.Parameter) {
		return linear.Parameter{}, fmt.Errorf("%w: parameter shape", estimator.ErrSpecMismatch)
	}
	return p, nil
}

func (e *Estimator) Snapshot() (estimator.Blob, error) {
	params, err := encodeParameter(e.online.Parameter)
	if err != nil {
		return estimator.Blob{}, err
	}
	return estimator.Blob{Version: estimator.BlobVersion, Spec: e.spec, Params: params}, nil
}

func (e *Estimator) Restore(blob estimator.Blob) error {
	p, err := e.decodeParameter(blob)
	if err != nil {
		return err
	}
	e.online = linear.NewModel(p)
	e.perturbedReady = false
	return nil
}

func (e *Estimator) RestoreTarget(blob estimator.Blob) error {
	p, err := e.decodeParameter(blob)
	if err != nil {
		return err
	}
	e.target = linear.NewModel(p)
	return nil
}
