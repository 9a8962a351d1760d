package deepq_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tensor3d "github.com/sw965/kaithy/blas32/tensor/3d"
	"github.com/sw965/kaithy/deepq"
	"github.com/sw965/kaithy/estimator"
)

func sideObs(side float32, tag int) tensor3d.General {
	o := tensor3d.NewZeros(3, 1, 2)
	o.FillChannel(0, side)
	o.Data[o.At(2, 0, 1)] = float32(tag)
	return o
}

func TestOpponentTransitionCounts(t *testing.T) {
	tests := []struct {
		name         string
		moves        int
		intermediate bool
		reward       float32
		// 期待する (中間, 終局) の遷移数
		wantIntermediate int
		wantTerminal     int
	}{
		{name: "正常_相手の手なし", moves: 0, intermediate: true, reward: 1, wantIntermediate: 0, wantTerminal: 0},
		{name: "正常_1手", moves: 1, intermediate: true, reward: 1, wantIntermediate: 0, wantTerminal: 1},
		{name: "正常_3手", moves: 3, intermediate: true, reward: -1, wantIntermediate: 2, wantTerminal: 1},
		{name: "正常_中間なし", moves: 3, intermediate: false, reward: 1, wantIntermediate: 0, wantTerminal: 1},
		{name: "正常_中間なしでも終局は負の報酬", moves: 2, intermediate: false, reward: -1, wantIntermediate: 0, wantTerminal: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			adder := &recordingAdder{}
			est := &fakeEstimator{}
			op := deepq.NewOpponent(est, adder, 0, tc.intermediate)

			for i := 0; i < tc.moves; i++ {
				action, err := op.Policy(sideObs(1, i), sideObs(0, i), 0)
				require.NoError(t, err)
				assert.Equal(t, 0, action)
			}
			assert.Equal(t, tc.moves > 0, op.Pending())

			terminal := sideObs(0, 99)
			recorded := op.Finish(terminal, 1, tc.reward)
			assert.Equal(t, tc.wantTerminal == 1, recorded)
			assert.False(t, op.Pending())
			require.Len(t, adder.transitions, tc.wantIntermediate+tc.wantTerminal)
			assert.Equal(t, len(adder.transitions), op.Added())

			for i, tr := range adder.transitions[:tc.wantIntermediate] {
				assert.Equal(t, float32(0), tr.Reward)
				assert.False(t, tr.Done)
				// 中間の遷移は次の相手の局面へ繋がる
				assert.Equal(t, float32(i+1), tr.NextObs.Data[tr.NextObs.At(2, 0, 1)])
			}
			if tc.wantTerminal == 1 {
				last := adder.transitions[len(adder.transitions)-1]
				assert.Equal(t, -tc.reward, last.Reward)
				assert.True(t, last.Done)
				assert.Equal(t, float32(tc.moves-1), last.Obs.Data[last.Obs.At(2, 0, 1)])
				// 終局の観測は相手の視点に書き換えられる
				assert.Equal(t, []float32{1, 1}, last.NextObs.Channel(0))
				assert.Equal(t, float32(99), last.NextObs.Data[last.NextObs.At(2, 0, 1)])
				// 元の観測は書き換えない
				assert.Equal(t, []float32{0, 0}, terminal.Channel(0))
			}
		})
	}
}

func TestOpponentExploreParams(t *testing.T) {
	est := &fakeEstimator{}
	op := deepq.NewOpponent(est, &recordingAdder{}, 0, true)
	op.SetExploreParams(estimator.ExploreParams{Eps: 0.3, Stochastic: true, ResetNoise: true, UpdateNoiseScale: true})

	_, err := op.Policy(sideObs(1, 0), sideObs(0, 0), 0)
	require.NoError(t, err)
	require.Len(t, est.params, 1)
	assert.Equal(t, float32(0.3), est.params[0].Eps)
	assert.True(t, est.params[0].Stochastic)
	assert.False(t, est.params[0].ResetNoise)
	assert.False(t, est.params[0].UpdateNoiseScale)
}
