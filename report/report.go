// Package report は訓練の進捗と検証結果の出力先です。
package report

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sw965/kaithy/deepq"
)

// Multi は全ての Reporter に順に渡します。途中で失敗しても残りには渡します。
type Multi []deepq.Reporter

func (m Multi) Progress(p deepq.Progress) error {
	errs := make([]error, 0, len(m))
	for _, r := range m {
		errs = append(errs, r.Progress(p))
	}
	return errors.Join(errs...)
}

func (m Multi) Validation(v deepq.ValidationReport) error {
	errs := make([]error, 0, len(m))
	for _, r := range m {
		errs = append(errs, r.Validation(v))
	}
	return errors.Join(errs...)
}

type Logrus struct {
	Logger logrus.FieldLogger
}

func NewLogrus(logger logrus.FieldLogger) *Logrus {
	return &Logrus{Logger: logger}
}

func (l *Logrus) Progress(p deepq.Progress) error {
	l.Logger.WithFields(logrus.Fields{
		"run":         p.RunID,
		"steps":       p.Steps,
		"episodes":    p.Episodes,
		"mean_reward": p.MeanReward,
		"exploring":   p.Exploring,
		"loss":        p.Loss,
		"elapsed":     p.Elapsed.Round(time.Millisecond).String(),
	}).Info("progress")
	return nil
}

func (l *Logrus) Validation(v deepq.ValidationReport) error {
	entry := l.Logger.WithFields(logrus.Fields{
		"run":       v.RunID,
		"step":      v.Step,
		"episodes":  v.Episodes,
		"wins":      v.Result.Wins,
		"losses":    v.Result.Losses,
		"draws":     v.Result.Draws,
		"saved":     v.Saved,
		"best_wins": v.Best.Wins,
		"best_step": v.Best.Step,
		"elapsed":   v.Elapsed.Round(time.Millisecond).String(),
	})
	if v.Saved {
		entry.Info("validation improved")
	} else {
		entry.Info("validation")
	}
	return nil
}
