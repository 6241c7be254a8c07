package recent

import (
	"math/rand"
	"slices"
	"testing"
)

func TestPrependMovesRepeatToFront(t *testing.T) {
	var list List
	for _, id := range []int64{1, 2, 1} {
		list = Prepend(list, id, 0)
	}
	if !slices.Equal(list, List{1, 2}) {
		t.Fatalf("list: got %v", list)
	}
}

func TestPrependCapsLength(t *testing.T) {
	list := List{5, 4, 3}
	got := Prepend(list, 6, 3)
	if !slices.Equal(got, List{6, 5, 4}) {
		t.Fatalf("capped list: got %v", got)
	}
	if !slices.Equal(list, List{5, 4, 3}) {
		t.Fatalf("input should be untouched: got %v", list)
	}
}

func TestPrependUnboundedWhenMaxIsZero(t *testing.T) {
	var list List
	for id := int64(1); id <= 50; id++ {
		list = Prepend(list, id, 0)
	}
	if len(list) != 50 || list[0] != 50 || list[49] != 1 {
		t.Fatalf("unbounded list: len=%d head=%d tail=%d", len(list), list[0], list[len(list)-1])
	}
}

func TestPrependNeverDuplicates(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var list List
	for i := 0; i < 500; i++ {
		id := int64(rng.Intn(20))
		list = Prepend(list, id, 0)
		if list[0] != id {
			t.Fatalf("step %d: head %d want %d", i, list[0], id)
		}
		seen := map[int64]bool{}
		for _, got := range list {
			if seen[got] {
				t.Fatalf("step %d: duplicate %d in %v", i, got, list)
			}
			seen[got] = true
		}
	}
}

func TestDedupeKeepsFirstOccurrence(t *testing.T) {
	got := Dedupe(List{3, 1, 3, 2, 1})
	if !slices.Equal(got, List{3, 1, 2}) {
		t.Fatalf("dedupe: got %v", got)
	}
}
