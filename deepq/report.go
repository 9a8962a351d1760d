package deepq

import "time"

type Progress struct {
	RunID    string
	Elapsed  time.Duration
	Steps    int
	Episodes int
	// MeanReward は直近100エピソードの平均報酬です。
	MeanReward float32
	// Exploring は ε を百分率にしたものです。
	Exploring int
	Loss      float32
}

type ValidationReport struct {
	RunID    string
	Step     int
	Episodes int
	Elapsed  time.Duration
	Result   ValidationResult
	Saved    bool
	Best     BestCheckpoint
}

// Reporter は進捗の出力先です。エラーはログに残すだけで訓練は続けます。
type Reporter interface {
	Progress(Progress) error
	Validation(ValidationReport) error
}

type nopReporter struct{}

func (nopReporter) Progress(Progress) error {
	return nil
}

func (nopReporter) Validation(ValidationReport) error {
	return nil
}
