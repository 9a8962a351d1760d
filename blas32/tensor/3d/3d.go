// Package tensor3d は盤面の観測値などを表す channel-major の3階テンソルを提供します。
package tensor3d

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/blas/blas32"
)

// General は Channels×Rows×Cols の float32 テンソルです。Data[ch*ChannelStride + row*RowStride + col]
type General struct {
	Channels      int
	Rows          int
	Cols          int
	ChannelStride int
	RowStride     int
	Data          []float32
}

func NewZeros(chs, rows, cols int) General {
	rowStride := cols
	chStride := rows * rowStride
	return General{
		Channels:      chs,
		Rows:          rows,
		Cols:          cols,
		ChannelStride: chStride,
		RowStride:     rowStride,
		Data:          make([]float32, chs*chStride),
	}
}

func NewZerosLike(g General) General {
	return NewZeros(g.Channels, g.Rows, g.Cols)
}

func (g General) N() int {
	return g.Channels * g.Rows * g.Cols
}

// IsZero は未初期化(ゼロ値)のテンソルかどうかを返します。
func (g General) IsZero() bool {
	return g.Data == nil
}

func (g General) SameShape(other General) bool {
	return g.Channels == other.Channels && g.Rows == other.Rows && g.Cols == other.Cols
}

func (g General) Clone() General {
	g.Data = slices.Clone(g.Data)
	return g
}

func (g General) At(ch, row, col int) int {
	return ch*g.ChannelStride + row*g.RowStride + col
}

// Channel は ch 番目のチャンネルの Data を共有したスライスを返します。
func (g General) Channel(ch int) []float32 {
	start := ch * g.ChannelStride
	return g.Data[start : start+g.ChannelStride]
}

// FillChannel は ch 番目のチャンネルを v で埋めます。
func (g General) FillChannel(ch int, v float32) {
	c := g.Channel(ch)
	for i := range c {
		c[i] = v
	}
}

// SumChannels は指定したチャンネルをセル毎に足し合わせ、Rows*Cols の平面を返します。
func (g General) SumChannels(chs ...int) ([]float32, error) {
	plane := make([]float32, g.Rows*g.Cols)
	for _, ch := range chs {
		if ch < 0 || ch >= g.Channels {
			return nil, fmt.Errorf("channel %d is out of range [0, %d)", ch, g.Channels)
		}
		for i, v := range g.Channel(ch) {
			plane[i] += v
		}
	}
	return plane, nil
}

// ToVector は Data を共有したまま1次元ベクトルとして見ます。
func (g General) ToVector() blas32.Vector {
	return blas32.Vector{
		N:    g.N(),
		Inc:  1,
		Data: g.Data,
	}
}
