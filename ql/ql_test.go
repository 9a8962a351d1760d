package ql_test

import (
	"testing"

	"github.com/sw965/kaithy/ql"
)

func TestUpdateQ(t *testing.T) {
	tests := []struct {
		name     string
		q        float32
		nextMaxQ float32
		reward   float32
		lr       float32
		gamma    float32
		expected float32
	}{
		{name: "正常_学習率1", q: 0.3, nextMaxQ: 0.5, reward: 1, lr: 1, gamma: 0.5, expected: 1.25},
		{name: "正常_学習率0", q: 0.3, nextMaxQ: 0.5, reward: 1, lr: 0, gamma: 0.5, expected: 0.3},
		{name: "正常_半分", q: 0, nextMaxQ: 0, reward: -1, lr: 0.5, gamma: 1, expected: -0.5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ql.UpdateQ(tc.q, tc.nextMaxQ, tc.reward, tc.lr, tc.gamma)
			if got != tc.expected {
				t.Errorf("want %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestTable(t *testing.T) {
	table := ql.NewTable(3)
	if q := table.Get("a"); len(q) != 3 || q[0] != 0 {
		t.Errorf("unvisited state must be zeros, got %v", q)
	}
	table.Set("a", 1, 0.5)
	q := table.Get("a")
	q[1] = 100
	if table.Get("a")[1] != 0.5 {
		t.Errorf("Get must return a copy")
	}

	clone := table.Clone()
	clone.Set("a", 1, -1)
	if table.Get("a")[1] != 0.5 {
		t.Errorf("Clone must not share values")
	}
	if table.Len() != 1 {
		t.Errorf("want 1 state, got %d", table.Len())
	}
}
