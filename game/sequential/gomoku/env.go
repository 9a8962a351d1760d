package gomoku

import (
	"fmt"

	tensor3d "github.com/sw965/kaithy/blas32/tensor/3d"
	"github.com/sw965/kaithy/game/sequential"
)

// OpponentPolicy は相手の手番で呼ばれます。curr は相手から見た現局面、prev はプレイヤーが着手する前の局面、
// prevAction はプレイヤーの着手です。相手が初手を打つ場合 prev はゼロ値、prevAction は -1 です。
type OpponentPolicy func(curr, prev tensor3d.General, prevAction int) (int, error)

// Env はプレイヤー1人と、方策関数で動く相手との対局環境です。
// 非合法手を打った側は即座に負けになります。報酬はプレイヤー視点で勝ち+1、負け-1、引き分け0です。
type Env struct {
	engine      sequential.Engine[State, int, Color]
	rules       Rules
	playerColor Color
	opponent    OpponentPolicy
	state       State
	done        bool
}

func NewEnv(rules Rules, playerColor Color) (*Env, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if playerColor != Black && playerColor != White {
		return nil, fmt.Errorf("player color must be black or white, got %v", playerColor)
	}
	return &Env{
		engine:      NewEngine(),
		rules:       rules,
		playerColor: playerColor,
		state:       NewInitState(rules),
		done:        true,
	}, nil
}

func (e *Env) SetOpponentPolicy(policy func(curr, prev tensor3d.General, prevAction int) (int, error)) {
	e.opponent = policy
}

// SwapRole はプレイヤーの色を入れ替えます。次の Reset から有効です。
func (e *Env) SwapRole() {
	e.playerColor = e.playerColor.Opposite()
}

func (e *Env) PlayerColor() Color {
	return e.playerColor
}

func (e *Env) Rules() Rules {
	return e.rules
}

func (e *Env) NumActions() int {
	return e.rules.NumCells()
}

func (e *Env) State() State {
	return e.state.Clone()
}

// reward は終局していればプレイヤー視点の報酬を返します。
func (e *Env) reward() (float32, bool, error) {
	isEnd, err := e.engine.IsEnd(e.state)
	if err != nil || !isEnd {
		return 0, false, err
	}
	scores, err := e.engine.EvaluateResultScoreByAgent(e.state)
	if err != nil {
		return 0, false, err
	}
	return 2*scores[e.playerColor] - 1, true, nil
}

func (e *Env) opponentMove(prev tensor3d.General, prevAction int) (float32, bool, error) {
	if e.opponent == nil {
		return 0, false, ErrNoOpponentPolicy
	}
	action, err := e.opponent(Encode(e.state), prev, prevAction)
	if err != nil {
		return 0, false, err
	}
	if !e.state.IsLegal(action) {
		// 相手の反則負け
		return 1, true, nil
	}
	e.state, err = MoveFunc(e.state, action)
	if err != nil {
		return 0, false, err
	}
	return e.reward()
}

func (e *Env) Reset() (tensor3d.General, error) {
	if e.opponent == nil {
		return tensor3d.General{}, ErrNoOpponentPolicy
	}
	e.state = NewInitState(e.rules)
	e.done = false

	if e.playerColor == White {
		_, done, err := e.opponentMove(tensor3d.General{}, -1)
		if err != nil {
			return tensor3d.General{}, err
		}
		if done {
			return tensor3d.General{}, fmt.Errorf("%w: 相手の初手", ErrIllegalMove)
		}
	}
	return Encode(e.state), nil
}

func (e *Env) Step(action int) (tensor3d.General, float32, bool, error) {
	if e.done {
		return tensor3d.General{}, 0, true, ErrEpisodeDone
	}

	prev := Encode(e.state)
	if !e.state.IsLegal(action) {
		e.done = true
		return prev, -1, true, nil
	}

	var err error
	e.state, err = MoveFunc(e.state, action)
	if err != nil {
		return tensor3d.General{}, 0, false, err
	}
	reward, done, err := e.reward()
	if err != nil {
		return tensor3d.General{}, 0, false, err
	}
	if done {
		e.done = true
		return Encode(e.state), reward, true, nil
	}

	reward, done, err = e.opponentMove(prev, action)
	if err != nil {
		return tensor3d.General{}, 0, false, err
	}
	e.done = done
	return Encode(e.state), reward, done, nil
}
