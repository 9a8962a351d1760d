package gomoku_test

import (
	"errors"
	"math/rand/v2"
	"testing"

	tensor3d "github.com/sw965/kaithy/blas32/tensor/3d"
	"github.com/sw965/kaithy/game/sequential/gomoku"
)

type opponentCall struct {
	curr       tensor3d.General
	prev       tensor3d.General
	prevAction int
}

// scripted は moves を順に打つ相手です。
func scripted(moves []int, calls *[]opponentCall) func(curr, prev tensor3d.General, prevAction int) (int, error) {
	i := 0
	return func(curr, prev tensor3d.General, prevAction int) (int, error) {
		*calls = append(*calls, opponentCall{curr: curr, prev: prev, prevAction: prevAction})
		m := moves[i]
		i++
		return m, nil
	}
}

func TestEnvPlayerWins(t *testing.T) {
	env, err := gomoku.NewEnv(rules5, gomoku.Black)
	if err != nil {
		t.Fatal(err)
	}
	calls := []opponentCall{}
	env.SetOpponentPolicy(scripted([]int{5, 6, 7}, &calls))

	obs, err := env.Reset()
	if err != nil {
		t.Fatal(err)
	}
	if obs.Data[obs.At(gomoku.TurnChannel, 0, 0)] != 0 {
		t.Errorf("black moves first")
	}

	for i, action := range []int{0, 1, 2} {
		_, reward, done, err := env.Step(action)
		if err != nil {
			t.Fatal(err)
		}
		if done || reward != 0 {
			t.Fatalf("step %d: unexpected end (reward %v)", i, reward)
		}
	}
	obs, reward, done, err := env.Step(3)
	if err != nil {
		t.Fatal(err)
	}
	if !done || reward != 1 {
		t.Errorf("want a win, got reward %v done %t", reward, done)
	}
	if obs.Data[obs.At(gomoku.BlackChannel, 0, 3)] != 1 {
		t.Errorf("terminal observation must contain the winning stone")
	}

	if len(calls) != 3 {
		t.Fatalf("want 3 opponent calls, got %d", len(calls))
	}
	first := calls[0]
	if first.prevAction != 0 {
		t.Errorf("prevAction: want 0, got %d", first.prevAction)
	}
	if first.prev.Data[first.prev.At(gomoku.BlackChannel, 0, 0)] != 0 {
		t.Errorf("prev must be the board before the player's move")
	}
	if first.curr.Data[first.curr.At(gomoku.BlackChannel, 0, 0)] != 1 {
		t.Errorf("curr must contain the player's move")
	}
	if first.curr.Data[first.curr.At(gomoku.TurnChannel, 0, 0)] != 1 {
		t.Errorf("curr must be white to move")
	}

	if _, _, _, err := env.Step(4); !errors.Is(err, gomoku.ErrEpisodeDone) {
		t.Errorf("want ErrEpisodeDone, got %v", err)
	}
}

func TestEnvOpponentWins(t *testing.T) {
	env, err := gomoku.NewEnv(rules5, gomoku.Black)
	if err != nil {
		t.Fatal(err)
	}
	calls := []opponentCall{}
	env.SetOpponentPolicy(scripted([]int{5, 6, 7, 8}, &calls))
	if _, err := env.Reset(); err != nil {
		t.Fatal(err)
	}

	var reward float32
	var done bool
	for _, action := range []int{0, 1, 2, 24} {
		_, reward, done, err = env.Step(action)
		if err != nil {
			t.Fatal(err)
		}
	}
	if !done || reward != -1 {
		t.Errorf("want a loss, got reward %v done %t", reward, done)
	}
}

func TestEnvIllegalMoves(t *testing.T) {
	tests := []struct {
		name     string
		opponent []int
		actions  []int
		want     float32
	}{
		{name: "正常_プレイヤーの反則", opponent: []int{5}, actions: []int{0, 5}, want: -1},
		{name: "正常_相手の反則", opponent: []int{0}, actions: []int{0}, want: 1},
		{name: "正常_盤外", opponent: []int{5}, actions: []int{25}, want: -1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env, err := gomoku.NewEnv(rules5, gomoku.Black)
			if err != nil {
				t.Fatal(err)
			}
			calls := []opponentCall{}
			env.SetOpponentPolicy(scripted(tc.opponent, &calls))
			if _, err := env.Reset(); err != nil {
				t.Fatal(err)
			}

			var reward float32
			var done bool
			for _, a := range tc.actions {
				_, reward, done, err = env.Step(a)
				if err != nil {
					t.Fatal(err)
				}
			}
			if !done || reward != tc.want {
				t.Errorf("want reward %v, got %v (done %t)", tc.want, reward, done)
			}
		})
	}
}

func TestEnvWhitePlayerAndSwapRole(t *testing.T) {
	env, err := gomoku.NewEnv(rules5, gomoku.Black)
	if err != nil {
		t.Fatal(err)
	}
	env.SwapRole()
	if env.PlayerColor() != gomoku.White {
		t.Fatalf("SwapRole must switch to white")
	}

	calls := []opponentCall{}
	env.SetOpponentPolicy(scripted([]int{12}, &calls))
	obs, err := env.Reset()
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != 1 || calls[0].prevAction != -1 || !calls[0].prev.IsZero() {
		t.Fatalf("opponent must open with an empty previous state, got %+v", calls)
	}
	if obs.Data[obs.At(gomoku.BlackChannel, 2, 2)] != 1 || obs.Data[obs.At(gomoku.TurnChannel, 0, 0)] != 1 {
		t.Errorf("white must see the black opening and its own turn")
	}
}

func TestEnvNoOpponent(t *testing.T) {
	env, err := gomoku.NewEnv(rules5, gomoku.Black)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Reset(); !errors.Is(err, gomoku.ErrNoOpponentPolicy) {
		t.Errorf("want ErrNoOpponentPolicy, got %v", err)
	}
}

func TestEnvAgainstBeginner(t *testing.T) {
	v, err := gomoku.LookupVariant("Gomoku9x9-v0")
	if err != nil {
		t.Fatal(err)
	}
	env, err := v.NewEnv(rand.New(rand.NewPCG(965, 2024)))
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewPCG(1, 2))

	for episode := 0; episode < 4; episode++ {
		if _, err := env.Reset(); err != nil {
			t.Fatal(err)
		}
		for steps := 0; ; steps++ {
			if steps > env.NumActions() {
				t.Fatalf("episode did not end")
			}
			legal := gomoku.LegalMoves(env.State())
			_, reward, done, err := env.Step(legal[rng.IntN(len(legal))])
			if err != nil {
				t.Fatal(err)
			}
			if done {
				if reward != -1 && reward != 0 && reward != 1 {
					t.Errorf("unexpected reward %v", reward)
				}
				break
			}
		}
		env.SwapRole()
	}
}
