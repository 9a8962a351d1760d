package deepq

import (
	"fmt"

	tensor3d "github.com/sw965/kaithy/blas32/tensor/3d"
	"github.com/sw965/kaithy/estimator"
	"github.com/sw965/kaithy/replay"
)

type transitionAdder interface {
	Add(replay.Transition)
}

type pendingMove struct {
	obs    tensor3d.General
	action int
}

// Opponent は自己対局の相手として同じ推定器で手を選び、相手側の遷移を組み立てます。
// 相手の遷移はエピソードの報酬が分かるまで保留され、Finish で確定します。
type Opponent struct {
	est                estimator.Estimator
	buffer             transitionAdder
	perspectiveChannel int
	intermediate       bool
	explore            estimator.ExploreParams
	// 手番チャンネルの値(=色)毎の保留中の手
	pending map[float32]pendingMove
	added   int
}

// NewOpponent の intermediate は Config.OpponentIntermediateTransitions です。
func NewOpponent(est estimator.Estimator, buffer transitionAdder, perspectiveChannel int, intermediate bool) *Opponent {
	return &Opponent{
		est:                est,
		buffer:             buffer,
		perspectiveChannel: perspectiveChannel,
		intermediate:       intermediate,
		pending:            map[float32]pendingMove{},
	}
}

// SetExploreParams は相手が次に使う探索パラメータです。ノイズの再生成とスケール更新は行いません。
func (o *Opponent) SetExploreParams(params estimator.ExploreParams) {
	params.ResetNoise = false
	params.UpdateNoiseScale = false
	o.explore = params
}

// Policy は Env.SetOpponentPolicy に渡す方策です。
func (o *Opponent) Policy(curr, prev tensor3d.General, prevAction int) (int, error) {
	side := perspective(curr, o.perspectiveChannel)
	if last, ok := o.pending[side]; ok && o.intermediate {
		o.buffer.Add(replay.Transition{
			Obs:     last.obs,
			Action:  last.action,
			Reward:  0,
			NextObs: curr.Clone(),
			Done:    false,
		})
		o.added++
	}

	actions, err := o.est.Predict([]tensor3d.General{curr}, o.explore)
	if err != nil {
		return 0, fmt.Errorf("opponent predict: %w", err)
	}
	action := actions[0]
	o.pending[side] = pendingMove{obs: curr.Clone(), action: action}
	return action, nil
}

// Finish はエピソード終了時に呼ばれます。終局の観測の手番チャンネルを相手側 opponentSide に書き換え、
// 保留中の手があれば (s, a, -reward, 終局, true) を記録して待機状態に戻ります。記録したかどうかを返します。
func (o *Opponent) Finish(terminal tensor3d.General, opponentSide float32, reward float32) bool {
	defer o.Reset()
	last, ok := o.pending[opponentSide]
	if !ok {
		return false
	}
	o.buffer.Add(replay.Transition{
		Obs:     last.obs,
		Action:  last.action,
		Reward:  -reward,
		NextObs: withPerspective(terminal, o.perspectiveChannel, opponentSide),
		Done:    true,
	})
	o.added++
	return true
}

func (o *Opponent) Reset() {
	clear(o.pending)
}

// Pending は保留中の手があるかどうかです。
func (o *Opponent) Pending() bool {
	return len(o.pending) != 0
}

// Added は記録した遷移の総数です。
func (o *Opponent) Added() int {
	return o.added
}
