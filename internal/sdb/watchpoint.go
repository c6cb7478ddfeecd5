package sdb

import "fmt"

// maxWatchpoints is the fixed-size pool the monitor draws from. IDs are
// never reused even after a watchpoint is deleted, so a stale ID always
// reports "not found" rather than silently hitting a different slot.
const maxWatchpoints = 32

type watchpoint struct {
	id         int
	expr       string
	last       uint32
	valid      bool // false until the first Check establishes a baseline
	next, prev int  // array-index links; -1 terminates a list
}

// WatchpointEvaluator evaluates an expression against live machine state.
// The monitor passes Monitor.evalExpr, which runs expr.Eval against the
// live machine; tests pass plain closures.
type WatchpointEvaluator func(expression string) (uint32, error)

// Watchpoints is a fixed-capacity pool of watched expressions, tracked
// as two index-linked lists (active, free) over one backing array —
// the arena-of-slots idiom, with array indices standing in for pointers.
type Watchpoints struct {
	pool     [maxWatchpoints]watchpoint
	freeHead int
	activeHead int
	nextID   int
}

// NewWatchpoints returns an empty pool with every slot on the free list.
func NewWatchpoints() *Watchpoints {
	w := &Watchpoints{activeHead: -1, nextID: 1}
	for i := range w.pool {
		w.pool[i].next = i + 1
		w.pool[i].prev = -2 // not on any list yet
	}
	w.pool[maxWatchpoints-1].next = -1
	w.freeHead = 0
	return w
}

// Add allocates a slot for expression and returns its ID, or an error if
// the pool is exhausted.
func (w *Watchpoints) Add(expression string) (int, error) {
	if w.freeHead < 0 {
		return 0, fmt.Errorf("sdb: no free watchpoint slots (max %d)", maxWatchpoints)
	}
	ix := w.freeHead
	w.freeHead = w.pool[ix].next

	id := w.nextID
	w.nextID++

	w.pool[ix] = watchpoint{id: id, expr: expression, next: -1, prev: -1}
	if w.activeHead < 0 {
		w.activeHead = ix
		return id, nil
	}
	tail := w.activeHead
	for w.pool[tail].next >= 0 {
		tail = w.pool[tail].next
	}
	w.pool[tail].next = ix
	w.pool[ix].prev = tail
	return id, nil
}

// Delete removes the watchpoint with the given ID, returning false if no
// such active watchpoint exists.
func (w *Watchpoints) Delete(id int) bool {
	ix, ok := w.find(id)
	if !ok {
		return false
	}
	if w.pool[ix].prev >= 0 {
		w.pool[w.pool[ix].prev].next = w.pool[ix].next
	} else {
		w.activeHead = w.pool[ix].next
	}
	if w.pool[ix].next >= 0 {
		w.pool[w.pool[ix].next].prev = w.pool[ix].prev
	}
	w.pool[ix].next = w.freeHead
	w.pool[ix].prev = -2
	w.freeHead = ix
	return true
}

func (w *Watchpoints) find(id int) (int, bool) {
	for ix := w.activeHead; ix >= 0; ix = w.pool[ix].next {
		if w.pool[ix].id == id {
			return ix, true
		}
	}
	return 0, false
}

// WatchHit names the watchpoint whose value changed since the last Check.
type WatchHit struct {
	ID       int
	Expr     string
	Old, New uint32
}

// Check re-evaluates every active watchpoint and returns the ones whose
// value changed since the previous call. The first evaluation after Add
// only establishes a baseline and never reports a hit.
func (w *Watchpoints) Check(eval WatchpointEvaluator) ([]WatchHit, error) {
	var hits []WatchHit
	for ix := w.activeHead; ix >= 0; ix = w.pool[ix].next {
		wp := &w.pool[ix]
		v, err := eval(wp.expr)
		if err != nil {
			return nil, fmt.Errorf("sdb: watchpoint %d (%s): %w", wp.id, wp.expr, err)
		}
		if !wp.valid {
			wp.valid = true
			wp.last = v
			continue
		}
		if v != wp.last {
			hits = append(hits, WatchHit{ID: wp.id, Expr: wp.expr, Old: wp.last, New: v})
			wp.last = v
		}
	}
	return hits, nil
}

// WatchEntry is one line of "info w" output.
type WatchEntry struct {
	ID   int
	Expr string
}

// List returns every active watchpoint in the order it was added (the
// order the active list is threaded in).
func (w *Watchpoints) List() []WatchEntry {
	var out []WatchEntry
	for ix := w.activeHead; ix >= 0; ix = w.pool[ix].next {
		out = append(out, WatchEntry{w.pool[ix].id, w.pool[ix].expr})
	}
	return out
}
