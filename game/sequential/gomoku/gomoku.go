// Package gomoku は五目並べのルール、観測テンソルへの符号化、自己対局用の環境を提供します。
package gomoku

import (
	"errors"
	"fmt"

	"github.com/sw965/kaithy/game/sequential"
)

var (
	ErrEpisodeDone      = errors.New("エピソードは終了しています: Resetを呼んでください")
	ErrNoOpponentPolicy = errors.New("相手の方策が設定されていません")
	ErrIllegalMove      = errors.New("非合法手です")
	ErrInvalidRules     = errors.New("ルールが不正です")
)

type Color int8

const (
	Empty Color = iota
	Black
	White
)

func (c Color) Opposite() Color {
	switch c {
	case Black:
		return White
	case White:
		return Black
	}
	return c
}

func (c Color) String() string {
	switch c {
	case Black:
		return "black"
	case White:
		return "white"
	}
	return "empty"
}

func ParseColor(s string) (Color, error) {
	switch s {
	case "black":
		return Black, nil
	case "white":
		return White, nil
	}
	return Empty, fmt.Errorf("unknown color %q", s)
}

// Rules は盤の大きさと勝利に必要な連の長さです。連は WinLength 以上で勝ちです。
type Rules struct {
	Size      int
	WinLength int
}

func (r Rules) Validate() error {
	if r.Size <= 0 {
		return fmt.Errorf("%w: Size=%d", ErrInvalidRules, r.Size)
	}
	if r.WinLength <= 0 || r.WinLength > r.Size {
		return fmt.Errorf("%w: WinLength=%d Size=%d", ErrInvalidRules, r.WinLength, r.Size)
	}
	return nil
}

func (r Rules) NumCells() int {
	return r.Size * r.Size
}

func (r Rules) Index(row, col int) int {
	return row*r.Size + col
}

func (r Rules) InBounds(row, col int) bool {
	return row >= 0 && row < r.Size && col >= 0 && col < r.Size
}

// State は盤面と手番です。LastMove は直前の着手で、初期状態では -1 です。
type State struct {
	Rules    Rules
	Board    []Color
	Turn     Color
	LastMove int
}

func NewInitState(rules Rules) State {
	return State{
		Rules:    rules,
		Board:    make([]Color, rules.NumCells()),
		Turn:     Black,
		LastMove: -1,
	}
}

func (s State) Clone() State {
	board := make([]Color, len(s.Board))
	copy(board, s.Board)
	s.Board = board
	return s
}

func (s State) IsLegal(move int) bool {
	return move >= 0 && move < len(s.Board) && s.Board[move] == Empty
}

func (s State) IsFull() bool {
	for _, c := range s.Board {
		if c == Empty {
			return false
		}
	}
	return true
}

func (s State) countDirection(row, col, dr, dc int, target Color) int {
	count := 0
	r, c := row+dr, col+dc
	for s.Rules.InBounds(r, c) && s.Board[s.Rules.Index(r, c)] == target {
		count++
		r += dr
		c += dc
	}
	return count
}

var directions = [4][2]int{{1, 0}, {0, 1}, {1, 1}, {1, -1}}

// MakesLine は move に color の石を置いた場合に WinLength 以上の連ができるかを返します。
func (s State) MakesLine(move int, color Color) bool {
	row, col := move/s.Rules.Size, move%s.Rules.Size
	for _, d := range directions {
		count := 1
		count += s.countDirection(row, col, d[0], d[1], color)
		count += s.countDirection(row, col, -d[0], -d[1], color)
		if count >= s.Rules.WinLength {
			return true
		}
	}
	return false
}

// Winner は直前の着手で連ができていればその色を、そうでなければ Empty を返します。
func (s State) Winner() Color {
	if s.LastMove < 0 {
		return Empty
	}
	color := s.Board[s.LastMove]
	if color != Empty && s.MakesLine(s.LastMove, color) {
		return color
	}
	return Empty
}

func LegalMoves(state State) []int {
	moves := make([]int, 0, len(state.Board))
	for i, c := range state.Board {
		if c == Empty {
			moves = append(moves, i)
		}
	}
	return moves
}

func MoveFunc(state State, move int) (State, error) {
	if state.Turn == Empty {
		return State{}, fmt.Errorf("%w: 手番が空です", ErrIllegalMove)
	}
	if !state.IsLegal(move) {
		return State{}, fmt.Errorf("%w: %d", ErrIllegalMove, move)
	}

	next := state.Clone()
	next.Board[move] = state.Turn
	next.Turn = state.Turn.Opposite()
	next.LastMove = move
	return next, nil
}

func NewLogic() sequential.Logic[State, int, Color] {
	return sequential.Logic[State, int, Color]{
		LegalMovesFunc: LegalMoves,
		MoveFunc:       MoveFunc,
		CurrentAgentFunc: func(s State) Color {
			return s.Turn
		},
	}
}

// RankByAgentFunc は勝者を1位、敗者を2位、盤が埋まれば引き分けとします。対局中は空です。
func RankByAgentFunc(state State) (sequential.RankByAgent[Color], error) {
	if winner := state.Winner(); winner != Empty {
		return sequential.NewRankByAgent([][]Color{{winner}, {winner.Opposite()}})
	}
	if state.IsFull() {
		return sequential.RankByAgent[Color]{Black: 1, White: 1}, nil
	}
	return sequential.RankByAgent[Color]{}, nil
}

func NewEngine() sequential.Engine[State, int, Color] {
	engine := sequential.Engine[State, int, Color]{
		Logic:           NewLogic(),
		RankByAgentFunc: RankByAgentFunc,
		Agents:          []Color{Black, White},
	}
	engine.SetStandardResultScoreByAgentFunc()
	return engine
}
