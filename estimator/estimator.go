// Package estimator は行動価値推定器の契約と、自己記述的なパラメータBlobを定義します。
//
// Package estimator defines the action-value estimator contract consumed by
// the training loop, and the self-describing parameter blob used for target
// network sync, checkpoints and model files.
package estimator

import (
	"errors"
	"fmt"
	"slices"

	tensor3d "github.com/sw965/kaithy/blas32/tensor/3d"
	"github.com/sw965/kaithy/replay"
)

var (
	ErrSpecMismatch       = errors.New("estimator spec mismatch")
	ErrUnsupportedVersion = errors.New("unsupported blob version")
	ErrEmptyBatch         = errors.New("empty batch")
)

// BlobVersion is the layout version written into every Blob.
const BlobVersion = 1

// ExploreParams は1回の行動選択に使う探索パラメータです。
type ExploreParams struct {
	// Eps is the ε-greedy probability. Ignored when Stochastic is false.
	Eps        float32
	Stochastic bool

	// パラメータノイズ用。ParamNoise が true の場合 Eps は使いません。
	ParamNoise       bool
	ResetNoise       bool
	UpdateNoiseScale bool
	NoiseThreshold   float32
}

// Greedy is the exploration setting used for validation and evaluation.
var Greedy = ExploreParams{}

type UpdateResult struct {
	// TDErrors holds one TD error per transition, in batch order.
	TDErrors []float32
	Loss     float32
}

// Spec は推定器の構築パラメータです。Blob に同梱され、外部の設定なしで復元できるようにします。
type Spec struct {
	Kind                string
	Channels            int
	Rows                int
	Cols                int
	NumActions          int
	DeterministicFilter bool
	RandomFilter        bool
	MaskChannels        []int
	Gamma               float32
	DoubleQ             bool
}

func (s Spec) Equal(other Spec) bool {
	return s.Kind == other.Kind &&
		s.Channels == other.Channels &&
		s.Rows == other.Rows &&
		s.Cols == other.Cols &&
		s.NumActions == other.NumActions &&
		s.DeterministicFilter == other.DeterministicFilter &&
		s.RandomFilter == other.RandomFilter &&
		slices.Equal(s.MaskChannels, other.MaskChannels) &&
		s.Gamma == other.Gamma &&
		s.DoubleQ == other.DoubleQ
}

// InputDim is the flattened observation size.
func (s Spec) InputDim() int {
	return s.Channels * s.Rows * s.Cols
}

// CheckObservation reports whether obs has the shape recorded in s.
func (s Spec) CheckObservation(obs tensor3d.General) error {
	if obs.Channels != s.Channels || obs.Rows != s.Rows || obs.Cols != s.Cols {
		return fmt.Errorf("%w: observation shape (%d, %d, %d), want (%d, %d, %d)",
			ErrSpecMismatch, obs.Channels, obs.Rows, obs.Cols, s.Channels, s.Rows, s.Cols)
	}
	return nil
}

type Blob struct {
	Version int
	Spec    Spec
	Params  []byte
}

// Check は Blob がこのバージョンと spec で読めるかを確認します。
func (b Blob) Check(spec Spec) error {
	if b.Version != BlobVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, b.Version)
	}
	if !b.Spec.Equal(spec) {
		return fmt.Errorf("%w: blob %+v, estimator %+v", ErrSpecMismatch, b.Spec, spec)
	}
	return nil
}

type Estimator interface {
	Predict(obs []tensor3d.General, params ExploreParams) ([]int, error)
	Update(batch replay.Batch) (UpdateResult, error)
	Snapshot() (Blob, error)
	Restore(blob Blob) error
	RestoreTarget(blob Blob) error
	Spec() Spec
}
