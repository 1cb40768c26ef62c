package abacus

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nikiz24/abacus/guid"
)

func TestNew_InvalidDimensions(t *testing.T) {
	tests := []struct {
		name                    string
		tasks, events, classes int
	}{
		{"zero tasks", 0, 1, 1},
		{"zero events", 1, 0, 1},
		{"zero classes", 1, 1, 0},
		{"negative classes", 1, 1, -3},
		{"too many event cells", 1, MaxCells, 2},
		{"too many task cells", MaxCells/2 + 1, 1, 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ab, err := New(tc.tasks, tc.events, tc.classes)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("New(%d,%d,%d) error = %v; want ErrInvalidConfig", tc.tasks, tc.events, tc.classes, err)
			}
			if ab != nil {
				t.Fatalf("expected nil abacus on error")
			}
		})
	}
}

func TestNew_InvalidOptions_ReturnsError(t *testing.T) {
	for name, opt := range map[string]Option{
		"nil clock":       WithClock(nil),
		"zero table size": WithCrumbTableSize(0),
	} {
		t.Run(name, func(t *testing.T) {
			ab, err := New(1, 1, 1, opt)
			require.ErrorIs(t, err, ErrInvalidConfig)
			require.Nil(t, ab)
		})
	}
}

func TestNew_ValidOptions_Succeeds(t *testing.T) {
	ab, err := New(2, 3, 4,
		nil,
		WithName("api"),
		WithLogger(nil),
		WithCrumbTableSize(8),
		WithStrictStart(),
	)
	require.NoError(t, err)
	defer ab.Close()

	tasks, events, classes := ab.Dimensions()
	require.Equal(t, 2, tasks)
	require.Equal(t, 3, events)
	require.Equal(t, 4, classes)
	require.Equal(t, "api", ab.Name())
}

func TestDefaultConfig_Values(t *testing.T) {
	cfg := defaultConfig()
	if cfg.CrumbTableSize != 4096 {
		t.Fatalf("CrumbTableSize default = %d; want 4096", cfg.CrumbTableSize)
	}
	if cfg.StrictStart {
		t.Fatalf("StrictStart default = true; want false")
	}
	if _, ok := cfg.Clock.(SystemClock); !ok {
		t.Fatalf("Clock default = %T; want SystemClock", cfg.Clock)
	}
	if cfg.Logger == nil {
		t.Fatalf("Logger default is nil")
	}
}

func TestNew_LogsInitialization(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ab, err := New(2, 3, 1, WithLogger(zap.New(core)), WithName("svc"))
	require.NoError(t, err)
	defer ab.Close()

	entries := logs.FilterMessage("abacus initialized").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "svc", fields["name"])
	require.EqualValues(t, 2, fields["task_types"])
	require.EqualValues(t, 3, fields["event_types"])
	require.EqualValues(t, 1, fields["class_types"])
}

func TestNow_ElapsedSinceCreation(t *testing.T) {
	ab, clock := newTestAbacus(t, 1, 1, 1)
	require.Equal(t, time.Duration(0), ab.Now())

	clock.Advance(250 * time.Millisecond)
	require.Equal(t, 250*time.Millisecond, ab.Now())
}

func TestNow_SystemClockIsMonotonic(t *testing.T) {
	ab, err := New(1, 1, 1)
	require.NoError(t, err)
	defer ab.Close()

	prev := ab.Now()
	require.GreaterOrEqual(t, prev, time.Duration(0))
	for i := 0; i < 100; i++ {
		now := ab.Now()
		require.GreaterOrEqual(t, now, prev)
		prev = now
	}
}

func TestResetAll_SharesOneInstant(t *testing.T) {
	ab, clock := newTestAbacus(t, 2, 3, 2)

	for e := 0; e < 3; e++ {
		require.NoError(t, ab.EventAdd(e, e%2))
	}
	id := guid.New()
	require.NoError(t, ab.TaskBegin(id))
	require.NoError(t, ab.TaskStart(id, 1, 1))
	clock.Advance(time.Second)
	require.NoError(t, ab.TaskEnd(id, 1, 1))
	require.NoError(t, ab.TaskFinish(id))

	clock.Advance(3 * time.Second)
	require.NoError(t, ab.EventReset(0, 0)) // stamped 4s, ResetAll must overwrite it
	clock.Advance(time.Second)
	require.NoError(t, ab.ResetAll())

	snap, err := ab.Snapshot()
	require.NoError(t, err)
	for _, m := range []MatrixSnapshot{snap.Events, snap.Tasks} {
		require.Equal(t, time.Duration(0), m.Period)
		for i := range m.Counts {
			require.Zero(t, m.Counts[i])
			require.Equal(t, time.Duration(0), m.Periods[i])
		}
	}
	for _, d := range snap.Tasks.Delays {
		require.Zero(t, d)
	}

	clock.Advance(2 * time.Second)
	evAll, err := ab.EventPeriodAll()
	require.NoError(t, err)
	tkAll, err := ab.TaskPeriodAll()
	require.NoError(t, err)
	require.Equal(t, 2*time.Second, evAll)
	require.Equal(t, evAll, tkAll)
}

func TestSnapshot_IsACopy(t *testing.T) {
	ab, _ := newTestAbacus(t, 1, 2, 1)
	require.NoError(t, ab.EventAdd(1, 0))

	snap, err := ab.Snapshot()
	require.NoError(t, err)
	n, ok := snap.Events.Count(1, 0)
	require.True(t, ok)
	require.EqualValues(t, 1, n)
	_, ok = snap.Events.Count(0, 2)
	require.False(t, ok)
	require.Nil(t, snap.Events.Delays)
	require.NotNil(t, snap.Tasks.Delays)

	snap.Events.Counts[1] = 100
	n, err = ab.EventCount(1, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestClose_RejectsFurtherCalls(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ab, err := New(1, 1, 1, WithLogger(zap.New(core)))
	require.NoError(t, err)

	a, b := guid.New(), guid.New()
	require.NoError(t, ab.TaskBegin(a))
	require.NoError(t, ab.TaskBegin(b))
	require.Equal(t, 2, ab.InFlight())

	require.NoError(t, ab.Close())
	require.NoError(t, ab.Close())
	require.Equal(t, 0, ab.InFlight())

	entries := logs.FilterMessage("abacus closed").All()
	require.Len(t, entries, 1)
	require.EqualValues(t, 2, entries[0].ContextMap()["discarded_tasks"])

	calls := map[string]func() error{
		"EventAdd":      func() error { return ab.EventAdd(0, 0) },
		"EventReset":    func() error { return ab.EventReset(0, 0) },
		"EventResetAll": ab.EventResetAll,
		"TaskBegin":     func() error { return ab.TaskBegin(guid.New()) },
		"TaskStart":     func() error { return ab.TaskStart(a, 0, 0) },
		"TaskEnd":       func() error { return ab.TaskEnd(a, 0, 0) },
		"TaskFinish":    func() error { return ab.TaskFinish(a) },
		"TaskReset":     func() error { return ab.TaskReset(0, 0) },
		"TaskResetAll":  ab.TaskResetAll,
		"ResetAll":      ab.ResetAll,
		"EventCount":    func() error { _, err := ab.EventCount(0, 0); return err },
		"EventPeriod":   func() error { _, err := ab.EventPeriod(0, 0); return err },
		"TaskAvgDelay":  func() error { _, err := ab.TaskAvgDelay(0, 0); return err },
		"TaskPeriodAll": func() error { _, err := ab.TaskPeriodAll(); return err },
		"Snapshot":      func() error { _, err := ab.Snapshot(); return err },
	}
	for name, call := range calls {
		if err := call(); !errors.Is(err, ErrClosed) {
			t.Fatalf("%s after Close: error = %v; want ErrClosed", name, err)
		}
	}
}

// Mirrors the documented walkthrough: two task kinds, three event kinds, one class.
func TestCreateRecordReset_Walkthrough(t *testing.T) {
	ab, clock := newTestAbacus(t, 2, 3, 1)

	require.NoError(t, ab.EventAdd(1, 0))
	require.NoError(t, ab.EventAdd(1, 0))
	n, err := ab.EventCount(1, 0)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	clock.Advance(time.Second)
	require.NoError(t, ab.EventReset(1, 0))
	n, err = ab.EventCount(1, 0)
	require.NoError(t, err)
	require.Zero(t, n)

	p, err := ab.EventPeriod(1, 0)
	require.NoError(t, err)
	require.Less(t, p, time.Millisecond)
}
