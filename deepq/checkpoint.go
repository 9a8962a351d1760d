package deepq

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/sw965/kaithy/estimator"
)

type BestCheckpoint struct {
	Wins   int
	Losses int
	Step   int
	Saved  bool
}

// CheckpointSelector は検証の勝ち数が最良以上ならパラメータを保存します。
// 同数の場合も保存するので、同じ成績なら新しいパラメータが残ります。
type CheckpointSelector struct {
	Path   string
	Best   BestCheckpoint
	logger logrus.FieldLogger
}

func NewCheckpointSelector(dir, runID string, logger logrus.FieldLogger) *CheckpointSelector {
	return &CheckpointSelector{
		Path:   filepath.Join(dir, runID+".gob"),
		logger: logger,
	}
}

// Consider は保存したかどうかを返します。保存に失敗した場合は最良の記録を更新しません。
func (s *CheckpointSelector) Consider(step int, result ValidationResult, est estimator.Estimator) (bool, error) {
	fields := logrus.Fields{"step": step, "wins": result.Wins, "losses": result.Losses, "best_wins": s.Best.Wins}
	if result.Wins < s.Best.Wins {
		if s.Best.Saved {
			s.logger.WithFields(fields).WithField("best_step", s.Best.Step).Info("validation did not improve, keeping saved checkpoint")
		} else {
			s.logger.WithFields(fields).Info("validation did not improve, nothing saved yet")
		}
		return false, nil
	}

	blob, err := est.Snapshot()
	if err != nil {
		return false, err
	}
	if err := estimator.SaveFile(blob, s.Path); err != nil {
		return false, err
	}
	s.logger.WithFields(fields).WithField("path", s.Path).Info("saving checkpoint, wins increased or tied")
	s.Best = BestCheckpoint{
		Wins:   result.Wins,
		Losses: result.Losses,
		Step:   step,
		Saved:  true,
	}
	return true, nil
}

// RestoreBest は保存済みのチェックポイントがあればオンラインのパラメータに戻し、ファイルを削除します。
func (s *CheckpointSelector) RestoreBest(est estimator.Estimator) (bool, error) {
	if !s.Best.Saved {
		return false, nil
	}
	blob, err := estimator.LoadFile(s.Path)
	if err != nil {
		return false, err
	}
	if err := est.Restore(blob); err != nil {
		return false, err
	}
	if err := os.Remove(s.Path); err != nil {
		return false, err
	}
	s.logger.WithFields(logrus.Fields{
		"step":   s.Best.Step,
		"wins":   s.Best.Wins,
		"losses": s.Best.Losses,
		"path":   s.Path,
	}).Info("restored best checkpoint, file removed")
	return true, nil
}
