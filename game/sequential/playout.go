package sequential

import (
	"fmt"
	"math/rand/v2"

	"github.com/sw965/omw/parallel"
)

// Playouts は inits の各状態から終局まで対局します。手番のエージェントに対応する actorByAgent のアクターが手を選びます。
// ワーカー数は len(rngs) です。
func (e Engine[S, M, A]) Playouts(inits []S, actorByAgent map[A]Actor[S, M, A], rngs []*rand.Rand) ([]S, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	for _, agent := range e.Agents {
		actor, ok := actorByAgent[agent]
		if !ok {
			return nil, fmt.Errorf("%w: %v のアクターがありません", ErrAgentNotFound, agent)
		}
		if err := actor.Validate(); err != nil {
			return nil, err
		}
	}

	n := len(inits)
	p := len(rngs)
	finals := make([]S, n)

	err := parallel.For(n, p, func(workerId, idx int) error {
		rng := rngs[workerId]
		state := inits[idx]
		for {
			isEnd, err := e.IsEnd(state)
			if err != nil {
				return err
			}
			if isEnd {
				break
			}

			agent := e.Logic.CurrentAgentFunc(state)
			actor, ok := actorByAgent[agent]
			if !ok {
				return fmt.Errorf("%w: %v", ErrAgentNotFound, agent)
			}

			legalMoves := e.Logic.LegalMovesFunc(state)
			move, err := actor.Move(state, legalMoves, agent, rng)
			if err != nil {
				return err
			}

			state, err = e.Logic.MoveFunc(state, move)
			if err != nil {
				return err
			}
		}
		finals[idx] = state
		return nil
	})
	return finals, err
}

// Tally は終局状態のエージェント毎のスコア合計です。
func (e Engine[S, M, A]) Tally(finals []S) (ResultScoreByAgent[A], error) {
	total := ResultScoreByAgent[A]{}
	for _, final := range finals {
		scores, err := e.EvaluateResultScoreByAgent(final)
		if err != nil {
			return nil, err
		}
		for agent, score := range scores {
			total[agent] += score
		}
	}
	return total, nil
}
