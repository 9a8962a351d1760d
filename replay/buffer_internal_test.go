package replay

import (
	"math/rand/v2"
	"testing"
)

func TestBufferAddReturnsSlot(t *testing.T) {
	buf, err := NewBuffer(3, rand.New(rand.NewPCG(1, 2)))
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []int{0, 1, 2, 0, 1} {
		if got := buf.add(Transition{Action: i}); got != want {
			t.Errorf("add #%d: want slot %d, got %d", i, want, got)
		}
	}
	got, err := buf.At(0)
	if err != nil {
		t.Fatal(err)
	}
	if got.Action != 3 {
		t.Errorf("slot 0 must hold the 4th transition, got action %d", got.Action)
	}
}
