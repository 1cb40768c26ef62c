package abacus

import (
	"strconv"
	"time"
)

// Collector provides a set of metrics on demand.
type Collector interface {
	Collect() []Metric
	Name() string
}

// Metric represents a single metric data point
type Metric struct {
	Name       string
	Value      float64
	Labels     map[string]string
	MetricType MetricType
	Timestamp  time.Time
}

// MetricType represents the type of a metric
type MetricType int

const (
	Counter MetricType = iota
	Gauge
)

func (t MetricType) String() string {
	switch t {
	case Counter:
		return "counter"
	case Gauge:
		return "gauge"
	default:
		return "unknown"
	}
}

// Metric names emitted by (*Abacus).Collect.
const (
	MetricEventsTotal    = "events_total"
	MetricEventsPeriod   = "events_period_seconds"
	MetricTasksCompleted = "tasks_completed_total"
	MetricTasksDelayAvg  = "tasks_delay_avg_seconds"
	MetricTasksPeriod    = "tasks_period_seconds"
	MetricCrumbsInFlight = "crumbs_in_flight"
)

const (
	labelKind  = "kind"
	labelClass = "class"
	labelName  = "name"
)

// Collect implements Collector. All values come from a single Snapshot and
// are stamped with the configured clock's time of that snapshot; a closed
// Abacus yields no metrics. Average delays are only reported for
// cells with at least one completion.
func (a *Abacus) Collect() []Metric {
	snap, err := a.Snapshot()
	if err != nil {
		return nil
	}

	now := a.startTime.Add(snap.At)
	ev, tk := snap.Events, snap.Tasks
	metrics := make([]Metric, 0, 2*len(ev.Counts)+3*len(tk.Counts)+1)

	for k := 0; k < ev.Kinds; k++ {
		for c := 0; c < ev.Classes; c++ {
			i := k*ev.Classes + c
			metrics = append(metrics,
				a.cellMetric(MetricEventsTotal, Counter, float64(ev.Counts[i]), k, c, now),
				a.cellMetric(MetricEventsPeriod, Gauge, ev.Periods[i].Seconds(), k, c, now))
		}
	}

	for k := 0; k < tk.Kinds; k++ {
		for c := 0; c < tk.Classes; c++ {
			i := k*tk.Classes + c
			metrics = append(metrics,
				a.cellMetric(MetricTasksCompleted, Counter, float64(tk.Counts[i]), k, c, now),
				a.cellMetric(MetricTasksPeriod, Gauge, tk.Periods[i].Seconds(), k, c, now))
			if avg, ok := tk.AvgDelay(k, c); ok {
				metrics = append(metrics, a.cellMetric(MetricTasksDelayAvg, Gauge, avg.Seconds(), k, c, now))
			}
		}
	}

	metrics = append(metrics, Metric{
		Name:       MetricCrumbsInFlight,
		Value:      float64(snap.InFlight),
		Labels:     a.labels(),
		MetricType: Gauge,
		Timestamp:  now,
	})

	return metrics
}

func (a *Abacus) cellMetric(name string, typ MetricType, v float64, kind, class int, ts time.Time) Metric {
	labels := a.labels()
	labels[labelKind] = strconv.Itoa(kind)
	labels[labelClass] = strconv.Itoa(class)
	return Metric{Name: name, Value: v, Labels: labels, MetricType: typ, Timestamp: ts}
}

func (a *Abacus) labels() map[string]string {
	labels := make(map[string]string, 3)
	if a.config.Name != "" {
		labels[labelName] = a.config.Name
	}
	return labels
}

func cellLabelValues(kind, class int) []string {
	return []string{strconv.Itoa(kind), strconv.Itoa(class)}
}
