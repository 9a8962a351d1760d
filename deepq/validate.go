package deepq

import (
	"fmt"

	tensor3d "github.com/sw965/kaithy/blas32/tensor/3d"
	"github.com/sw965/kaithy/estimator"
)

type ValidationResult struct {
	Wins   int
	Losses int
	Draws  int
}

func (r ValidationResult) Episodes() int {
	return r.Wins + r.Losses + r.Draws
}

// Validator は検証用の環境で貪欲方策を Episodes 回対局させます。毎エピソード後に手番を入れ替えます。
type Validator struct {
	Env      Env
	Episodes int
	// MaxSteps は1エピソードの上限です。0 なら上限なしです。
	MaxSteps int
}

func (v *Validator) Validate(est estimator.Estimator) (ValidationResult, error) {
	result := ValidationResult{}
	for i := 0; i < v.Episodes; i++ {
		reward, err := v.playEpisode(est)
		if err != nil {
			return ValidationResult{}, fmt.Errorf("validation episode %d: %w", i, err)
		}
		switch reward {
		case 1:
			result.Wins++
		case -1:
			result.Losses++
		default:
			result.Draws++
		}
		v.Env.SwapRole()
	}
	return result, nil
}

func (v *Validator) playEpisode(est estimator.Estimator) (float32, error) {
	obs, err := v.Env.Reset()
	if err != nil {
		return 0, err
	}
	for step := 0; v.MaxSteps <= 0 || step < v.MaxSteps; step++ {
		actions, err := est.Predict([]tensor3d.General{obs}, estimator.Greedy)
		if err != nil {
			return 0, err
		}
		var reward float32
		var done bool
		obs, reward, done, err = v.Env.Step(actions[0])
		if err != nil {
			return 0, err
		}
		if done {
			return reward, nil
		}
	}
	return 0, nil
}
