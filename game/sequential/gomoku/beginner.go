package gomoku

import (
	"math/rand/v2"

	tensor3d "github.com/sw965/kaithy/blas32/tensor/3d"
	"github.com/sw965/kaithy/game/sequential"
	"github.com/sw965/omw/mathx/randx"
)

// BeginnerCandidates は初心者の候補手です。
// 一手で勝てる手、相手の一手勝ちを防ぐ手、既存の石の隣の順に探し、盤が空なら中央です。
func BeginnerCandidates(s State) []int {
	legal := LegalMoves(s)
	if len(legal) == 0 {
		return nil
	}

	filter := func(color Color) []int {
		moves := []int{}
		for _, m := range legal {
			if s.MakesLine(m, color) {
				moves = append(moves, m)
			}
		}
		return moves
	}

	if wins := filter(s.Turn); len(wins) != 0 {
		return wins
	}
	if blocks := filter(s.Turn.Opposite()); len(blocks) != 0 {
		return blocks
	}

	size := s.Rules.Size
	near := []int{}
	for _, m := range legal {
		row, col := m/size, m%size
	neighbors:
		for dr := -1; dr <= 1; dr++ {
			for dc := -1; dc <= 1; dc++ {
				r, c := row+dr, col+dc
				if s.Rules.InBounds(r, c) && s.Board[s.Rules.Index(r, c)] != Empty {
					near = append(near, m)
					break neighbors
				}
			}
		}
	}
	if len(near) != 0 {
		return near
	}

	center := s.Rules.Index(size/2, size/2)
	if s.IsLegal(center) {
		return []int{center}
	}
	return legal
}

// NewBeginnerPolicy は Env の相手として使える初心者の方策です。
func NewBeginnerPolicy(rules Rules, rng *rand.Rand) OpponentPolicy {
	return func(curr, prev tensor3d.General, prevAction int) (int, error) {
		s, err := Decode(curr, rules)
		if err != nil {
			return 0, err
		}
		return randx.Choice(BeginnerCandidates(s), rng)
	}
}

func NewBeginnerActor(name string) sequential.Actor[State, int, Color] {
	return sequential.Actor[State, int, Color]{
		Name: name,
		PolicyFunc: func(s State, legalMoves []int) (sequential.Policy[int], error) {
			policy := sequential.Policy[int]{}
			for _, m := range legalMoves {
				policy[m] = 0
			}
			for _, m := range BeginnerCandidates(s) {
				policy[m] = 1
			}
			return policy, nil
		},
		SelectFunc: sequential.MaxSelectFunc[int, Color],
	}
}

// NewPredictActor は観測テンソルから着手を返す関数をアクターにします。
// 非合法手が返された場合は合法手から一様に選びます。
func NewPredictActor(name string, predict func(tensor3d.General) (int, error)) sequential.Actor[State, int, Color] {
	return sequential.Actor[State, int, Color]{
		Name: name,
		PolicyFunc: func(s State, legalMoves []int) (sequential.Policy[int], error) {
			action, err := predict(Encode(s))
			if err != nil {
				return nil, err
			}
			if !s.IsLegal(action) {
				return sequential.UniformPolicyFunc(s, legalMoves)
			}
			policy := sequential.Policy[int]{}
			for _, m := range legalMoves {
				policy[m] = 0
			}
			policy[action] = 1
			return policy, nil
		},
		SelectFunc: sequential.MaxSelectFunc[int, Color],
	}
}
