package gomoku

import (
	"fmt"
	"math/rand/v2"
	"slices"
)

const (
	BeginnerOpponent = "beginner"
	// SelfPlayOpponent は相手の方策を外から設定する訓練用の環境です。
	SelfPlayOpponent = "player"
)

type Variant struct {
	ID          string
	Rules       Rules
	PlayerColor Color
	Opponent    string
}

var variants = []Variant{
	{ID: "Gomoku5x5-training-camp-v0", Rules: Rules{Size: 5, WinLength: 4}, PlayerColor: Black, Opponent: SelfPlayOpponent},
	{ID: "Gomoku9x9-v0", Rules: Rules{Size: 9, WinLength: 5}, PlayerColor: Black, Opponent: BeginnerOpponent},
	{ID: "Gomoku9x9-training-camp-v0", Rules: Rules{Size: 9, WinLength: 5}, PlayerColor: Black, Opponent: SelfPlayOpponent},
	{ID: "Gomoku19x19-v0", Rules: Rules{Size: 19, WinLength: 5}, PlayerColor: Black, Opponent: BeginnerOpponent},
}

func VariantIDs() []string {
	ids := make([]string, len(variants))
	for i, v := range variants {
		ids[i] = v.ID
	}
	return ids
}

func LookupVariant(id string) (Variant, error) {
	i := slices.IndexFunc(variants, func(v Variant) bool { return v.ID == id })
	if i < 0 {
		return Variant{}, fmt.Errorf("unknown gomoku variant %q (available: %v)", id, VariantIDs())
	}
	return variants[i], nil
}

// NewEnv は登録された設定で環境を作ります。相手が初心者の場合は rng を使う方策を設定済みです。
func (v Variant) NewEnv(rng *rand.Rand) (*Env, error) {
	env, err := NewEnv(v.Rules, v.PlayerColor)
	if err != nil {
		return nil, err
	}
	if v.Opponent == BeginnerOpponent {
		env.SetOpponentPolicy(NewBeginnerPolicy(v.Rules, rng))
	}
	return env, nil
}

// TrainingCamp は同じ盤で相手の方策を外から設定する版です。
func (v Variant) TrainingCamp() Variant {
	v.Opponent = SelfPlayOpponent
	return v
}

// WithBeginner は同じ盤で初心者と対局する版です。検証用の環境に使います。
func (v Variant) WithBeginner() Variant {
	v.Opponent = BeginnerOpponent
	return v
}
