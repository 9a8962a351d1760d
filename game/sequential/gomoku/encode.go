package gomoku

import (
	"fmt"

	tensor3d "github.com/sw965/kaithy/blas32/tensor/3d"
)

// 観測テンソルのチャンネル
const (
	// TurnChannel は手番が黒なら0、白なら1で埋められます。
	TurnChannel = iota
	BlackChannel
	WhiteChannel
	NumChannels
)

// StoneChannels は石が置かれているかどうかを示すチャンネルです。和が正のセルは着手できません。
var StoneChannels = []int{BlackChannel, WhiteChannel}

func turnValue(c Color) float32 {
	if c == White {
		return 1
	}
	return 0
}

func Encode(s State) tensor3d.General {
	size := s.Rules.Size
	obs := tensor3d.NewZeros(NumChannels, size, size)
	obs.FillChannel(TurnChannel, turnValue(s.Turn))
	black := obs.Channel(BlackChannel)
	white := obs.Channel(WhiteChannel)
	for i, c := range s.Board {
		switch c {
		case Black:
			black[i] = 1
		case White:
			white[i] = 1
		}
	}
	return obs
}

// Decode は Encode の逆変換です。LastMove は復元できない為 -1 になります。
func Decode(obs tensor3d.General, rules Rules) (State, error) {
	if obs.Channels != NumChannels || obs.Rows != rules.Size || obs.Cols != rules.Size {
		return State{}, fmt.Errorf("observation shape (%d, %d, %d) does not match a %dx%d board",
			obs.Channels, obs.Rows, obs.Cols, rules.Size, rules.Size)
	}

	s := NewInitState(rules)
	if obs.Data[obs.At(TurnChannel, 0, 0)] > 0.5 {
		s.Turn = White
	}
	black := obs.Channel(BlackChannel)
	white := obs.Channel(WhiteChannel)
	for i := range s.Board {
		switch {
		case black[i] > 0:
			s.Board[i] = Black
		case white[i] > 0:
			s.Board[i] = White
		}
	}
	return s, nil
}
