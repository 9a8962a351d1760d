package deepq_test

import (
	"errors"

	tensor3d "github.com/sw965/kaithy/blas32/tensor/3d"
	"github.com/sw965/kaithy/deepq"
	"github.com/sw965/kaithy/estimator"
	"github.com/sw965/kaithy/replay"
)

var testSpec = estimator.Spec{Kind: "fake", Channels: 3, Rows: 1, Cols: 2, NumActions: 2}

// fakeEstimator は常に行動0を選び、呼び出しを記録します。
type fakeEstimator struct {
	predicts    int
	params      []estimator.ExploreParams
	updates     []replay.Batch
	version     byte
	restored    []byte
	targetSyncs int
	failUpdate  bool
}

func (f *fakeEstimator) Predict(obs []tensor3d.General, params estimator.ExploreParams) ([]int, error) {
	f.predicts++
	f.params = append(f.params, params)
	return make([]int, len(obs)), nil
}

func (f *fakeEstimator) Update(batch replay.Batch) (estimator.UpdateResult, error) {
	if f.failUpdate {
		return estimator.UpdateResult{}, errors.New("update failed")
	}
	f.updates = append(f.updates, batch)
	f.version++
	tds := make([]float32, batch.Len())
	for i := range tds {
		tds[i] = -0.5
	}
	return estimator.UpdateResult{TDErrors: tds, Loss: 0.25}, nil
}

func (f *fakeEstimator) Snapshot() (estimator.Blob, error) {
	return estimator.Blob{Version: estimator.BlobVersion, Spec: testSpec, Params: []byte{f.version}}, nil
}

func (f *fakeEstimator) Restore(blob estimator.Blob) error {
	if err := blob.Check(testSpec); err != nil {
		return err
	}
	f.restored = blob.Params
	return nil
}

func (f *fakeEstimator) RestoreTarget(blob estimator.Blob) error {
	f.targetSyncs++
	return blob.Check(testSpec)
}

func (f *fakeEstimator) Spec() estimator.Spec {
	return testSpec
}

type scriptedEpisode struct {
	// length はプレイヤーの手数です。相手は最後の手以外の後に1手ずつ打ちます。
	length int
	reward float32
}

// scriptedEnv はエピソードを台本通りに進める環境です。台本は繰り返されます。
type scriptedEnv struct {
	episodes []scriptedEpisode
	resets   int
	current  scriptedEpisode
	step     int
	opponent deepq.OpponentPolicy
	swaps    int
}

func (e *scriptedEnv) obs(side float32, step int) tensor3d.General {
	o := tensor3d.NewZeros(3, 1, 2)
	o.FillChannel(0, side)
	o.Data[o.At(1, 0, 0)] = float32(step)
	return o
}

func (e *scriptedEnv) Reset() (tensor3d.General, error) {
	e.current = e.episodes[e.resets%len(e.episodes)]
	e.resets++
	e.step = 0
	return e.obs(0, 0), nil
}

func (e *scriptedEnv) Step(action int) (tensor3d.General, float32, bool, error) {
	e.step++
	if e.step >= e.current.length {
		return e.obs(1, e.step), e.current.reward, true, nil
	}
	if e.opponent == nil {
		return tensor3d.General{}, 0, false, errors.New("no opponent")
	}
	if _, err := e.opponent(e.obs(1, e.step), e.obs(0, e.step-1), action); err != nil {
		return tensor3d.General{}, 0, false, err
	}
	return e.obs(0, e.step), 0, false, nil
}

func (e *scriptedEnv) SwapRole() {
	e.swaps++
}

func (e *scriptedEnv) SetOpponentPolicy(policy deepq.OpponentPolicy) {
	e.opponent = policy
}

func (e *scriptedEnv) NumActions() int {
	return 2
}

type recordingReporter struct {
	progress    []deepq.Progress
	validations []deepq.ValidationReport
	err         error
}

func (r *recordingReporter) Progress(p deepq.Progress) error {
	r.progress = append(r.progress, p)
	return r.err
}

func (r *recordingReporter) Validation(v deepq.ValidationReport) error {
	r.validations = append(r.validations, v)
	return r.err
}

type recordingAdder struct {
	transitions []replay.Transition
}

func (a *recordingAdder) Add(t replay.Transition) {
	a.transitions = append(a.transitions, t)
}
