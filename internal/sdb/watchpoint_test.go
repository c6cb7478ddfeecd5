package sdb

import (
	"errors"
	"testing"
)

func TestWatchpointAddDeleteRecycles(t *testing.T) {
	w := NewWatchpoints()
	ids := make([]int, 0, maxWatchpoints)
	for i := 0; i < maxWatchpoints; i++ {
		id, err := w.Add("$a0")
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		ids = append(ids, id)
	}
	if _, err := w.Add("$a0"); err == nil {
		t.Fatalf("Add succeeded past capacity")
	}
	if !w.Delete(ids[0]) {
		t.Fatalf("Delete(%d) failed", ids[0])
	}
	id, err := w.Add("$a1")
	if err != nil {
		t.Fatalf("Add after Delete: %v", err)
	}
	if id == ids[0] {
		t.Fatalf("recycled slot reused id %d", ids[0])
	}
}

func TestWatchpointDeleteUnknownID(t *testing.T) {
	w := NewWatchpoints()
	if w.Delete(999) {
		t.Fatalf("Delete of unknown id reported success")
	}
}

func TestWatchpointCheckFirstCallIsBaseline(t *testing.T) {
	w := NewWatchpoints()
	id, _ := w.Add("$a0")
	_ = id

	val := uint32(1)
	eval := func(string) (uint32, error) { return val, nil }

	hits, err := w.Check(eval)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("first Check reported %d hits, want 0 (baseline)", len(hits))
	}

	val = 2
	hits, err = w.Check(eval)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(hits) != 1 || hits[0].Old != 1 || hits[0].New != 2 {
		t.Fatalf("hits = %+v, want one hit old=1 new=2", hits)
	}
}

func TestWatchpointListOrder(t *testing.T) {
	w := NewWatchpoints()
	id1, _ := w.Add("$a0")
	id2, _ := w.Add("$a1")

	entries := w.List()
	if len(entries) != 2 || entries[0].ID != id1 || entries[1].ID != id2 {
		t.Fatalf("List() = %+v, want [%d, %d]", entries, id1, id2)
	}
}

func TestWatchpointCheckPropagatesEvalError(t *testing.T) {
	w := NewWatchpoints()
	w.Add("$bogus")
	_, err := w.Check(func(string) (uint32, error) {
		return 0, errors.New("unknown register")
	})
	if err == nil {
		t.Fatalf("Check did not propagate evaluator error")
	}
}
