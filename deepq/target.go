package deepq

import (
	"github.com/sw965/kaithy/estimator"
)

// TargetSync はオンラインのパラメータをターゲットへ定期的に写します。
type TargetSync struct {
	Freq  int
	Syncs int
}

func (s *TargetSync) Sync(est estimator.Estimator) error {
	blob, err := est.Snapshot()
	if err != nil {
		return err
	}
	if err := est.RestoreTarget(blob); err != nil {
		return err
	}
	s.Syncs++
	return nil
}

// Due は学習開始後、Freq ステップ毎に true です。
func (s *TargetSync) Due(step, learningStarts int) bool {
	return step > learningStarts && step%s.Freq == 0
}
