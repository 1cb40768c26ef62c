package abacus

import (
	"time"

	"github.com/ygrebnov/errorc"
)

// EventAdd records one occurrence of event in class.
func (a *Abacus) EventAdd(event, class int) error {
	if err := a.lock(); err != nil {
		return err
	}
	defer a.mu.Unlock()

	i, err := a.events.index(event, class)
	if err != nil {
		return a.reject("EventAdd", err)
	}
	a.events.counts[i]++
	return nil
}

// EventCount returns the number of occurrences since the cell was last reset.
func (a *Abacus) EventCount(event, class int) (uint64, error) {
	if err := a.lock(); err != nil {
		return 0, err
	}
	defer a.mu.Unlock()

	i, err := a.events.index(event, class)
	if err != nil {
		return 0, a.reject("EventCount", err)
	}
	return a.events.counts[i], nil
}

// EventReset zeroes the cell and restarts its period.
func (a *Abacus) EventReset(event, class int) error {
	if err := a.lock(); err != nil {
		return err
	}
	defer a.mu.Unlock()

	i, err := a.events.index(event, class)
	if err != nil {
		return a.reject("EventReset", err)
	}
	a.events.reset(i, a.elapsed())
	return nil
}

// EventResetAll zeroes every event cell. All cells and the matrix share one
// reset timestamp.
func (a *Abacus) EventResetAll() error {
	if err := a.lock(); err != nil {
		return err
	}
	defer a.mu.Unlock()

	a.events.resetAll(a.elapsed())
	return nil
}

// EventPeriod returns the time elapsed since the cell was last reset, or
// since creation if it never was.
func (a *Abacus) EventPeriod(event, class int) (time.Duration, error) {
	if err := a.lock(); err != nil {
		return 0, err
	}
	defer a.mu.Unlock()

	i, err := a.events.index(event, class)
	if err != nil {
		return 0, a.reject("EventPeriod", err)
	}
	return a.events.period(i, a.elapsed()), nil
}

// EventPeriodAll returns the time elapsed since EventResetAll last ran.
func (a *Abacus) EventPeriodAll() (time.Duration, error) {
	if err := a.lock(); err != nil {
		return 0, err
	}
	defer a.mu.Unlock()

	return a.events.periodAll(a.elapsed()), nil
}

// EventRate returns occurrences per second over the cell's current period.
// It fails with ErrNoData while the period is zero.
func (a *Abacus) EventRate(event, class int) (float64, error) {
	if err := a.lock(); err != nil {
		return 0, err
	}
	defer a.mu.Unlock()

	i, err := a.events.index(event, class)
	if err != nil {
		return 0, a.reject("EventRate", err)
	}
	p := a.events.period(i, a.elapsed())
	if p <= 0 {
		return 0, errorc.With(ErrNoData, errorc.String("", "measurement period is zero"))
	}
	return float64(a.events.counts[i]) / p.Seconds(), nil
}
