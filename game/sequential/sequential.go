// Package sequential provides the rules framework for turn-based games and
// parallel playouts between actors.
//
// Package sequential は逐次（ターン制）ゲームのルール定義と、アクター同士の並列プレイアウトを提供します。
package sequential

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrEmptySlice = errors.New("空スライスエラー")

	ErrNilLogicFunc  = errors.New("Logicエラー: フィールドの関数がnilです")
	ErrNilEngineFunc = errors.New("Engineエラー: フィールドの関数がnilです")

	ErrDuplicateAgent = errors.New("エージェント重複エラー")
	ErrAgentNotFound  = errors.New("Agentエラー: Agentsに存在しません")

	ErrInvalidRankValue  = errors.New("順位エラー: 1以上の正の整数である必要があります")
	ErrMinRankNotOne     = errors.New("最小順位エラー: 1から始まる必要があります")
	ErrRankNotContiguous = errors.New("順位不連続エラー: 順位が連続していません")

	ErrEmptyLegalMoves = errors.New("legalMovesエラー: 要素数が0です")

	ErrPolicySizeMismatch     = errors.New("Policyエラー: legalMoves と同じ要素数である必要があります")
	ErrPolicyMissingLegalMove = errors.New("Policyエラー: 全ての合法手を含む必要があります")
	ErrPolicyBadValue         = errors.New("Policyエラー: 値が不正です（負数/NaN/Inf）")
	ErrPolicyZeroSum          = errors.New("Policyエラー: 合計値が0です")

	ErrNilActorFunc = errors.New("Actorエラー: フィールドの関数がnilです")
)

type LegalMovesFunc[S any, M comparable] func(S) []M
type MoveFunc[S any, M comparable] func(S, M) (S, error)
type CurrentAgentFunc[S any, A comparable] func(S) A

type Logic[S any, M, A comparable] struct {
	LegalMovesFunc   LegalMovesFunc[S, M]
	MoveFunc         MoveFunc[S, M]
	CurrentAgentFunc CurrentAgentFunc[S, A]
}

func (l Logic[S, M, A]) Validate() error {
	if l.LegalMovesFunc == nil {
		return fmt.Errorf("%w: LegalMovesFunc", ErrNilLogicFunc)
	}
	if l.MoveFunc == nil {
		return fmt.Errorf("%w: MoveFunc", ErrNilLogicFunc)
	}
	if l.CurrentAgentFunc == nil {
		return fmt.Errorf("%w: CurrentAgentFunc", ErrNilLogicFunc)
	}
	return nil
}

// RankByAgent はエージェント毎の順位です。ゲームが終了していない場合は空あるいはnilです。
type RankByAgent[A comparable] map[A]int

func NewRankByAgent[A comparable](agentsPerRank [][]A) (RankByAgent[A], error) {
	ranks := RankByAgent[A]{}
	rank := 1
	for _, agents := range agentsPerRank {
		if len(agents) == 0 {
			return nil, fmt.Errorf("順位 %d に対応するエージェントが存在しません: %w", rank, ErrEmptySlice)
		}

		for _, agent := range agents {
			if _, ok := ranks[agent]; ok {
				return nil, fmt.Errorf("エージェント %v が複数回出現しています: %w", agent, ErrDuplicateAgent)
			}
			ranks[agent] = rank
		}
		rank += len(agents)
	}
	return ranks, nil
}

func (r RankByAgent[A]) Validate() error {
	if len(r) == 0 {
		return nil
	}

	ranks := make([]int, 0, len(r))
	for _, rank := range r {
		if rank < 1 {
			return ErrInvalidRankValue
		}
		ranks = append(ranks, rank)
	}
	sort.Ints(ranks)

	if ranks[0] != 1 {
		return fmt.Errorf("%w: 入力された最小順位: %d", ErrMinRankNotOne, ranks[0])
	}

	// 同順位が k 人いれば次の順位は k だけ飛ぶ
	for i := 1; i < len(ranks); i++ {
		if ranks[i] != ranks[i-1] && ranks[i] != i+1 {
			return ErrRankNotContiguous
		}
	}
	return nil
}

type RankByAgentFunc[S any, A comparable] func(S) (RankByAgent[A], error)
type ResultScoreByAgent[A comparable] map[A]float32
type ResultScoreByAgentFunc[A comparable] func(RankByAgent[A]) (ResultScoreByAgent[A], error)

type Engine[S any, M, A comparable] struct {
	Logic                  Logic[S, M, A]
	RankByAgentFunc        RankByAgentFunc[S, A]
	ResultScoreByAgentFunc ResultScoreByAgentFunc[A]
	Agents                 []A
}

func (e Engine[S, M, A]) Validate() error {
	if err := e.Logic.Validate(); err != nil {
		return err
	}
	if e.RankByAgentFunc == nil {
		return fmt.Errorf("%w: RankByAgentFunc", ErrNilEngineFunc)
	}
	if e.ResultScoreByAgentFunc == nil {
		return fmt.Errorf("%w: ResultScoreByAgentFunc", ErrNilEngineFunc)
	}
	if len(e.Agents) == 0 {
		return fmt.Errorf("%w: Engine.Agents が空です", ErrEmptySlice)
	}
	return nil
}

func (e Engine[S, M, A]) IsEnd(state S) (bool, error) {
	rankByAgent, err := e.RankByAgentFunc(state)
	return len(rankByAgent) != 0, err
}

// SetStandardResultScoreByAgentFunc は1位を1.0、最下位を0.0とし、同順位は平均を取るスコアを設定します。
func (e *Engine[S, M, A]) SetStandardResultScoreByAgentFunc() {
	e.ResultScoreByAgentFunc = func(ranks RankByAgent[A]) (ResultScoreByAgent[A], error) {
		if err := ranks.Validate(); err != nil {
			return nil, err
		}

		n := len(ranks)
		scores := ResultScoreByAgent[A]{}
		if n == 1 {
			for agent := range ranks {
				scores[agent] = 1.0
			}
			return scores, nil
		}

		counts := map[int]int{}
		for _, rank := range ranks {
			counts[rank]++
		}

		den := float32(n - 1)
		for agent, r := range ranks {
			k := counts[r]
			scores[agent] = 1.0 - float32(2*r+k-3)/(2.0*den)
		}
		return scores, nil
	}
}

func (e Engine[S, M, A]) EvaluateResultScoreByAgent(state S) (ResultScoreByAgent[A], error) {
	rankByAgent, err := e.RankByAgentFunc(state)
	if err != nil {
		return nil, err
	}
	return e.ResultScoreByAgentFunc(rankByAgent)
}
