package abacus

import (
	"time"

	"github.com/nikiz24/abacus/guid"
)

// cellState is the lifecycle of one (task kind, class) cell inside a crumb.
type cellState uint8

const (
	cellIdle cellState = iota
	cellStarted
	cellCompleted
)

func (s cellState) String() string {
	switch s {
	case cellIdle:
		return "idle"
	case cellStarted:
		return "started"
	case cellCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// crumb is the ephemeral timing record of one tracked task. It is owned by
// the crumb table and never handed out.
type crumb struct {
	id    guid.ID
	state []cellState
	start []time.Duration
	stop  []time.Duration
}

func newCrumb(id guid.ID, cells int) *crumb {
	return &crumb{
		id:    id,
		state: make([]cellState, cells),
		start: make([]time.Duration, cells),
		stop:  make([]time.Duration, cells),
	}
}

// completions returns the completion count of cell i: 1 once ended, else 0.
func (c *crumb) completions(i int) uint64 {
	if c.state[i] == cellCompleted {
		return 1
	}
	return 0
}

// fold adds every completed cell of c into the task matrix and returns the
// number of cells folded.
func (c *crumb) fold(tasks *counterMatrix) int {
	folded := 0
	for i := range c.state {
		if c.completions(i) == 1 {
			tasks.accumulate(i, c.stop[i]-c.start[i])
			folded++
		}
	}
	return folded
}

// crumbTable holds one crumb per in-flight task.
type crumbTable struct {
	cells   int
	entries map[guid.ID]*crumb
}

func newCrumbTable(cells, sizeHint int) *crumbTable {
	return &crumbTable{cells: cells, entries: make(map[guid.ID]*crumb, sizeHint)}
}

// insert adds an idle crumb for id. It reports false if id is already present.
func (t *crumbTable) insert(id guid.ID) bool {
	if _, ok := t.entries[id]; ok {
		return false
	}
	t.entries[id] = newCrumb(id, t.cells)
	return true
}

func (t *crumbTable) search(id guid.ID) (*crumb, bool) {
	c, ok := t.entries[id]
	return c, ok
}

func (t *crumbTable) delete(id guid.ID) (*crumb, bool) {
	c, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	return c, ok
}

func (t *crumbTable) len() int { return len(t.entries) }

// clear drops every crumb and returns how many were dropped.
func (t *crumbTable) clear() int {
	n := len(t.entries)
	t.entries = make(map[guid.ID]*crumb)
	return n
}
