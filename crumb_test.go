package abacus

import (
	"testing"
	"time"

	"github.com/nikiz24/abacus/guid"
)

func TestCrumbTable_InsertSearchDelete(t *testing.T) {
	tbl := newCrumbTable(4, 8)
	id := guid.New()

	if !tbl.insert(id) {
		t.Fatalf("first insert rejected")
	}
	if tbl.insert(id) {
		t.Fatalf("duplicate insert accepted")
	}
	c, ok := tbl.search(id)
	if !ok || c.id != id {
		t.Fatalf("search(%s) = %v, %v", id, c, ok)
	}
	if len(c.state) != 4 || len(c.start) != 4 || len(c.stop) != 4 {
		t.Fatalf("crumb not sized to 4 cells")
	}
	for i, st := range c.state {
		if st != cellIdle {
			t.Fatalf("cell %d state = %s; want idle", i, st)
		}
	}

	if _, ok := tbl.delete(id); !ok {
		t.Fatalf("delete of present id failed")
	}
	if _, ok := tbl.delete(id); ok {
		t.Fatalf("second delete succeeded")
	}
	if tbl.len() != 0 {
		t.Fatalf("len = %d; want 0", tbl.len())
	}
}

func TestCrumbTable_Clear(t *testing.T) {
	tbl := newCrumbTable(1, 1)
	for i := 0; i < 5; i++ {
		tbl.insert(guid.New())
	}
	if n := tbl.clear(); n != 5 {
		t.Fatalf("clear() = %d; want 5", n)
	}
	if tbl.len() != 0 {
		t.Fatalf("len after clear = %d", tbl.len())
	}
}

func TestCrumb_FoldOnlyCompletedCells(t *testing.T) {
	m := newCounterMatrix("task", 1, 3, true, 0)
	c := newCrumb(guid.New(), 3)

	c.state[0], c.start[0], c.stop[0] = cellCompleted, time.Second, 3*time.Second
	c.state[1], c.start[1] = cellStarted, time.Second
	// cell 2 stays idle

	if n := c.fold(m); n != 1 {
		t.Fatalf("fold() = %d; want 1", n)
	}
	if m.counts[0] != 1 || m.delays[0] != 2*time.Second {
		t.Fatalf("cell 0 = (%d, %v); want (1, 2s)", m.counts[0], m.delays[0])
	}
	if m.counts[1] != 0 || m.counts[2] != 0 {
		t.Fatalf("unended cells folded: %v", m.counts)
	}
}

func TestCellState_String(t *testing.T) {
	for st, want := range map[cellState]string{
		cellIdle:      "idle",
		cellStarted:   "started",
		cellCompleted: "completed",
		cellState(9):  "unknown",
	} {
		if got := st.String(); got != want {
			t.Fatalf("%d.String() = %q; want %q", st, got, want)
		}
	}
}
