package abacus

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Abacus counts events and times tasks per (kind, class). It is safe for
// concurrent use; one mutex guards both counter matrices and the crumb table.
type Abacus struct {
	config config

	maxTaskTypes  int
	maxEventTypes int
	maxClassTypes int

	// startTime is captured before anything else; every timestamp is relative to it.
	startTime time.Time

	mu     sync.Mutex
	closed bool
	events *counterMatrix
	tasks  *counterMatrix
	crumbs *crumbTable

	closeOnce sync.Once
}

// New creates an Abacus tracking numTasks task kinds, numEvents event kinds
// and numClasses classes. The dimensions are fixed for its lifetime.
func New(numTasks, numEvents, numClasses int, opts ...Option) (*Abacus, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := validateConfig(&cfg, numTasks, numEvents, numClasses); err != nil {
		return nil, err
	}

	a := &Abacus{
		config:        cfg,
		maxTaskTypes:  numTasks,
		maxEventTypes: numEvents,
		maxClassTypes: numClasses,
		startTime:     cfg.Clock.Now(),
	}

	now := a.elapsed()
	a.events = newCounterMatrix("event", numEvents, numClasses, false, now)
	a.tasks = newCounterMatrix("task", numTasks, numClasses, true, now)
	a.crumbs = newCrumbTable(numTasks*numClasses, cfg.CrumbTableSize)

	cfg.Logger.Info("abacus initialized",
		zap.String("name", cfg.Name),
		zap.Int("task_types", numTasks),
		zap.Int("event_types", numEvents),
		zap.Int("class_types", numClasses))

	return a, nil
}

// elapsed reads the clock relative to the start time.
func (a *Abacus) elapsed() time.Duration {
	return a.config.Clock.Now().Sub(a.startTime)
}

// Now returns the time elapsed since the Abacus was created.
func (a *Abacus) Now() time.Duration { return a.elapsed() }

// Dimensions returns the number of task kinds, event kinds and classes.
func (a *Abacus) Dimensions() (tasks, events, classes int) {
	return a.maxTaskTypes, a.maxEventTypes, a.maxClassTypes
}

// Name implements Collector. It is the configured name, or "abacus" when none
// was set.
func (a *Abacus) Name() string {
	if a.config.Name == "" {
		return Namespace
	}
	return a.config.Name
}

// lock acquires the mutex and fails with ErrClosed after Close. On success
// the caller must unlock.
func (a *Abacus) lock() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	return nil
}

// reject logs rejected caller input and returns err unchanged.
func (a *Abacus) reject(op string, err error) error {
	a.config.Logger.Debug("abacus: rejected call", zap.String("op", op), zap.Error(err))
	return err
}

// ResetAll resets both counter matrices.
func (a *Abacus) ResetAll() error {
	return errors.Join(a.EventResetAll(), a.TaskResetAll())
}

// InFlight returns the number of tasks currently tracked.
func (a *Abacus) InFlight() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.crumbs.len()
}

// Snapshot is a consistent copy of both counter matrices taken at one instant.
type Snapshot struct {
	// At is the elapsed time at which the snapshot was taken.
	At       time.Duration
	Events   MatrixSnapshot
	Tasks    MatrixSnapshot
	InFlight int
}

// Snapshot copies all counters under the lock.
func (a *Abacus) Snapshot() (Snapshot, error) {
	if err := a.lock(); err != nil {
		return Snapshot{}, err
	}
	defer a.mu.Unlock()

	now := a.elapsed()
	return Snapshot{
		At:       now,
		Events:   a.events.snapshot(now),
		Tasks:    a.tasks.snapshot(now),
		InFlight: a.crumbs.len(),
	}, nil
}

// Close shuts the Abacus down. Tasks still in flight are discarded without
// being folded into the counters. Every later call fails with ErrClosed.
// Close is idempotent and safe for concurrent use.
func (a *Abacus) Close() error {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		dropped := a.crumbs.clear()
		a.mu.Unlock()

		a.config.Logger.Info("abacus closed",
			zap.String("name", a.config.Name),
			zap.Int("discarded_tasks", dropped))
	})
	return nil
}
