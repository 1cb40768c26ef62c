package abacus

import (
	"fmt"
	"time"

	"github.com/ygrebnov/errorc"

	"github.com/nikiz24/abacus/guid"
)

// TaskBegin starts tracking the task identified by id. Each id may be tracked
// once at a time; a duplicate fails with ErrAlreadyExists.
func (a *Abacus) TaskBegin(id guid.ID) error {
	if err := a.lock(); err != nil {
		return err
	}
	defer a.mu.Unlock()

	if !a.crumbs.insert(id) {
		return a.reject("TaskBegin", errorc.With(ErrAlreadyExists, errorc.String("", "id "+id.String())))
	}
	return nil
}

// lookup returns the crumb for id and the cell offset for (task, class).
// The caller must hold the lock.
func (a *Abacus) lookup(id guid.ID, task, class int) (*crumb, int, error) {
	i, err := a.tasks.index(task, class)
	if err != nil {
		return nil, 0, err
	}
	c, ok := a.crumbs.search(id)
	if !ok {
		return nil, 0, errorc.With(ErrNotFound, errorc.String("", "id "+id.String()))
	}
	return c, i, nil
}

func transitionError(id guid.ID, task, class int, from cellState, op string) error {
	return errorc.With(ErrInvalidTransition, errorc.String("",
		fmt.Sprintf("%s on %s cell (task %d, class %d) of id %s", op, from, task, class, id)))
}

// TaskStart stamps the start of (task, class) for the tracked task id.
// Starting a cell that is already started overwrites its start time unless
// the Abacus was built WithStrictStart. A completed cell cannot be restarted.
func (a *Abacus) TaskStart(id guid.ID, task, class int) error {
	if err := a.lock(); err != nil {
		return err
	}
	defer a.mu.Unlock()

	c, i, err := a.lookup(id, task, class)
	if err != nil {
		return a.reject("TaskStart", err)
	}
	switch st := c.state[i]; {
	case st == cellCompleted, st == cellStarted && a.config.StrictStart:
		return a.reject("TaskStart", transitionError(id, task, class, st, "start"))
	}
	c.start[i] = a.elapsed()
	c.state[i] = cellStarted
	return nil
}

// TaskEnd stamps the end of (task, class) for the tracked task id. The cell
// must have been started and not yet ended.
func (a *Abacus) TaskEnd(id guid.ID, task, class int) error {
	if err := a.lock(); err != nil {
		return err
	}
	defer a.mu.Unlock()

	c, i, err := a.lookup(id, task, class)
	if err != nil {
		return a.reject("TaskEnd", err)
	}
	if st := c.state[i]; st != cellStarted {
		return a.reject("TaskEnd", transitionError(id, task, class, st, "end"))
	}
	c.stop[i] = a.elapsed()
	c.state[i] = cellCompleted
	return nil
}

// TaskFinish stops tracking id and folds every completed cell into the task
// counters: the count grows by one and the cumulative delay by stop-start.
// Cells that were started but never ended are dropped.
func (a *Abacus) TaskFinish(id guid.ID) error {
	if err := a.lock(); err != nil {
		return err
	}
	defer a.mu.Unlock()

	c, ok := a.crumbs.delete(id)
	if !ok {
		return a.reject("TaskFinish", errorc.With(ErrNotFound, errorc.String("", "id "+id.String())))
	}
	c.fold(a.tasks)
	return nil
}

// TaskCount returns the number of completions folded into (task, class)
// since it was last reset.
func (a *Abacus) TaskCount(task, class int) (uint64, error) {
	if err := a.lock(); err != nil {
		return 0, err
	}
	defer a.mu.Unlock()

	i, err := a.tasks.index(task, class)
	if err != nil {
		return 0, a.reject("TaskCount", err)
	}
	return a.tasks.counts[i], nil
}

// TaskAvgDelay returns the mean start-to-end delay of (task, class). It fails
// with ErrNoData when no completion was recorded since the last reset.
func (a *Abacus) TaskAvgDelay(task, class int) (time.Duration, error) {
	if err := a.lock(); err != nil {
		return 0, err
	}
	defer a.mu.Unlock()

	i, err := a.tasks.index(task, class)
	if err != nil {
		return 0, a.reject("TaskAvgDelay", err)
	}
	n := a.tasks.counts[i]
	if n == 0 {
		return 0, errorc.With(ErrNoData, errorc.String("", fmt.Sprintf("no completions for task %d, class %d", task, class)))
	}
	return a.tasks.delays[i] / time.Duration(n), nil
}

// TaskReset zeroes the count and cumulative delay of (task, class).
func (a *Abacus) TaskReset(task, class int) error {
	if err := a.lock(); err != nil {
		return err
	}
	defer a.mu.Unlock()

	i, err := a.tasks.index(task, class)
	if err != nil {
		return a.reject("TaskReset", err)
	}
	a.tasks.reset(i, a.elapsed())
	return nil
}

// TaskResetAll zeroes every task cell with one shared reset timestamp.
// Tasks in flight are unaffected.
func (a *Abacus) TaskResetAll() error {
	if err := a.lock(); err != nil {
		return err
	}
	defer a.mu.Unlock()

	a.tasks.resetAll(a.elapsed())
	return nil
}

// TaskPeriod returns the time elapsed since (task, class) was last reset.
func (a *Abacus) TaskPeriod(task, class int) (time.Duration, error) {
	if err := a.lock(); err != nil {
		return 0, err
	}
	defer a.mu.Unlock()

	i, err := a.tasks.index(task, class)
	if err != nil {
		return 0, a.reject("TaskPeriod", err)
	}
	return a.tasks.period(i, a.elapsed()), nil
}

// TaskPeriodAll returns the time elapsed since TaskResetAll last ran.
func (a *Abacus) TaskPeriodAll() (time.Duration, error) {
	if err := a.lock(); err != nil {
		return 0, err
	}
	defer a.mu.Unlock()

	return a.tasks.periodAll(a.elapsed()), nil
}
