package deepq

import (
	tensor3d "github.com/sw965/kaithy/blas32/tensor/3d"
)

// OpponentPolicy は相手の手番で環境から呼ばれます。
// curr は現局面、prev は直前の相手(プレイヤー)が着手する前の局面、prevAction はその着手です。
type OpponentPolicy = func(curr, prev tensor3d.General, prevAction int) (int, error)

// Env は2人零和ゲームの環境です。報酬は操作している側から見て -1, 0, 1 のいずれかです。
type Env interface {
	Reset() (tensor3d.General, error)
	Step(action int) (tensor3d.General, float32, bool, error)
	// SwapRole は次のエピソードから操作する側を入れ替えます。
	SwapRole()
	SetOpponentPolicy(policy OpponentPolicy)
	NumActions() int
}

func perspective(obs tensor3d.General, ch int) float32 {
	return obs.Channel(ch)[0]
}

// withPerspective は手番チャンネルを v で埋めた複製を返します。
func withPerspective(obs tensor3d.General, ch int, v float32) tensor3d.General {
	c := obs.Clone()
	c.FillChannel(ch, v)
	return c
}
