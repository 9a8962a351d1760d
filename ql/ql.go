// Package ql は表形式のQ学習の更新式とQテーブルを提供します。
package ql

import (
	"maps"
	"slices"
)

// UpdateQ は q を学習率 lr で目標 reward + discountRate * nextMaxQ に近づけます。
func UpdateQ(q, nextMaxQ, reward, lr, discountRate float32) float32 {
	qRatio := 1.0 - lr
	newQ := (reward + discountRate*nextMaxQ)
	return (qRatio * q) + (lr * newQ)
}

// Table は状態キーから行動毎のQ値への写像です。未訪問の状態のQ値は全て0です。
type Table struct {
	NumActions int
	Values     map[string][]float32
}

func NewTable(numActions int) Table {
	return Table{
		NumActions: numActions,
		Values:     map[string][]float32{},
	}
}

// Get は key のQ値を返します。返り値を書き換えてもテーブルには反映されません。
func (t Table) Get(key string) []float32 {
	if q, ok := t.Values[key]; ok {
		return slices.Clone(q)
	}
	return make([]float32, t.NumActions)
}

func (t Table) Set(key string, action int, v float32) {
	q, ok := t.Values[key]
	if !ok {
		q = make([]float32, t.NumActions)
		t.Values[key] = q
	}
	q[action] = v
}

func (t Table) Len() int {
	return len(t.Values)
}

func (t Table) Clone() Table {
	values := maps.Clone(t.Values)
	for k, q := range values {
		values[k] = slices.Clone(q)
	}
	return Table{NumActions: t.NumActions, Values: values}
}
