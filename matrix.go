package abacus

import (
	"fmt"
	"time"

	"github.com/ygrebnov/errorc"
)

// counterMatrix is a dense [kind][class] grid stored in one flat buffer.
// delays is nil for the event matrix.
type counterMatrix struct {
	label   string
	kinds   int
	classes int

	counts  []uint64
	delays  []time.Duration
	resetAt []time.Duration

	globalResetAt time.Duration
}

func newCounterMatrix(label string, kinds, classes int, withDelays bool, now time.Duration) *counterMatrix {
	m := &counterMatrix{
		label:   label,
		kinds:   kinds,
		classes: classes,
		counts:  make([]uint64, kinds*classes),
		resetAt: make([]time.Duration, kinds*classes),
	}
	if withDelays {
		m.delays = make([]time.Duration, kinds*classes)
	}
	m.resetAll(now)
	return m
}

// index validates (kind, class) and returns the flat offset.
func (m *counterMatrix) index(kind, class int) (int, error) {
	if kind < 0 || kind >= m.kinds {
		return 0, errorc.With(ErrInvalidArgument, errorc.String("", fmt.Sprintf("%s kind %d out of range [0,%d)", m.label, kind, m.kinds)))
	}
	if class < 0 || class >= m.classes {
		return 0, errorc.With(ErrInvalidArgument, errorc.String("", fmt.Sprintf("class %d out of range [0,%d)", class, m.classes)))
	}
	return kind*m.classes + class, nil
}

func (m *counterMatrix) reset(i int, now time.Duration) {
	m.counts[i] = 0
	if m.delays != nil {
		m.delays[i] = 0
	}
	m.resetAt[i] = now
}

// resetAll stamps every cell and the global timestamp with the same instant.
func (m *counterMatrix) resetAll(now time.Duration) {
	for i := range m.counts {
		m.reset(i, now)
	}
	m.globalResetAt = now
}

func (m *counterMatrix) accumulate(i int, delay time.Duration) {
	if delay < 0 {
		delay = 0
	}
	m.counts[i]++
	m.delays[i] += delay
}

func (m *counterMatrix) period(i int, now time.Duration) time.Duration {
	return now - m.resetAt[i]
}

func (m *counterMatrix) periodAll(now time.Duration) time.Duration {
	return now - m.globalResetAt
}

// snapshot copies the matrix; the result shares no memory with m.
func (m *counterMatrix) snapshot(now time.Duration) MatrixSnapshot {
	s := MatrixSnapshot{
		Kinds:   m.kinds,
		Classes: m.classes,
		Counts:  append([]uint64(nil), m.counts...),
		Periods: make([]time.Duration, len(m.resetAt)),
		Period:  m.periodAll(now),
	}
	for i := range m.resetAt {
		s.Periods[i] = m.period(i, now)
	}
	if m.delays != nil {
		s.Delays = append([]time.Duration(nil), m.delays...)
	}
	return s
}

// MatrixSnapshot is an immutable copy of one counter matrix. Cells are laid
// out flat, row-major by kind: cell (kind, class) is at kind*Classes+class.
type MatrixSnapshot struct {
	Kinds   int
	Classes int
	Counts  []uint64
	// Delays holds cumulative delays; nil for events.
	Delays []time.Duration
	// Periods holds the time elapsed since each cell was last reset.
	Periods []time.Duration
	// Period is the time elapsed since the whole matrix was last reset.
	Period time.Duration
}

// cell returns the flat offset of (kind, class) and false when either is
// outside the snapshot dimensions.
func (s MatrixSnapshot) cell(kind, class int) (int, bool) {
	if kind < 0 || kind >= s.Kinds || class < 0 || class >= s.Classes {
		return 0, false
	}
	return kind*s.Classes + class, true
}

// Count returns the count of cell (kind, class), and false when the cell is
// out of range.
func (s MatrixSnapshot) Count(kind, class int) (uint64, bool) {
	i, ok := s.cell(kind, class)
	if !ok {
		return 0, false
	}
	return s.Counts[i], true
}

// AvgDelay returns the mean delay of cell (kind, class). It reports false
// when the cell is out of range, has no completions, or the snapshot carries
// no delays.
func (s MatrixSnapshot) AvgDelay(kind, class int) (time.Duration, bool) {
	i, ok := s.cell(kind, class)
	if !ok || s.Delays == nil || s.Counts[i] == 0 {
		return 0, false
	}
	return s.Delays[i] / time.Duration(s.Counts[i]), true
}
