package abacus

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OpenTelemetry instrument names registered by RegisterOTel.
const (
	OTelEvents        = "abacus.events"
	OTelEventsPeriod  = "abacus.events.period"
	OTelTasks         = "abacus.tasks.completed"
	OTelTasksDelayAvg = "abacus.tasks.delay.avg"
	OTelTasksPeriod   = "abacus.tasks.period"
	OTelInFlight      = "abacus.crumbs.in_flight"
)

type otelInstruments struct {
	events        metric.Int64ObservableGauge
	eventsPeriod  metric.Float64ObservableGauge
	tasks         metric.Int64ObservableGauge
	tasksDelayAvg metric.Float64ObservableGauge
	tasksPeriod   metric.Float64ObservableGauge
	inFlight      metric.Int64ObservableGauge
}

func createOTelInstruments(m metric.Meter) (otelInstruments, error) {
	var err error
	i := otelInstruments{}

	if i.events, err = m.Int64ObservableGauge(OTelEvents, metric.WithDescription("Events recorded since the cell was last reset."), metric.WithUnit("{event}")); err != nil {
		return i, err
	}
	if i.eventsPeriod, err = m.Float64ObservableGauge(OTelEventsPeriod, metric.WithDescription("Time since the event cell was last reset."), metric.WithUnit("s")); err != nil {
		return i, err
	}
	if i.tasks, err = m.Int64ObservableGauge(OTelTasks, metric.WithDescription("Task completions since the cell was last reset."), metric.WithUnit("{task}")); err != nil {
		return i, err
	}
	if i.tasksDelayAvg, err = m.Float64ObservableGauge(OTelTasksDelayAvg, metric.WithDescription("Mean start-to-end task delay."), metric.WithUnit("s")); err != nil {
		return i, err
	}
	if i.tasksPeriod, err = m.Float64ObservableGauge(OTelTasksPeriod, metric.WithDescription("Time since the task cell was last reset."), metric.WithUnit("s")); err != nil {
		return i, err
	}
	if i.inFlight, err = m.Int64ObservableGauge(OTelInFlight, metric.WithDescription("Tasks currently tracked."), metric.WithUnit("{task}")); err != nil {
		return i, err
	}
	return i, nil
}

// RegisterOTel registers observable instruments on meter that report the
// counters of ab on every collection. Unregister the returned registration
// before discarding ab.
func RegisterOTel(meter metric.Meter, ab *Abacus) (metric.Registration, error) {
	inst, err := createOTelInstruments(meter)
	if err != nil {
		return nil, err
	}

	var base []attribute.KeyValue
	if ab.config.Name != "" {
		base = append(base, attribute.String(labelName, ab.config.Name))
	}
	cellAttrs := func(kind, class int) metric.MeasurementOption {
		attrs := append([]attribute.KeyValue{attribute.Int(labelKind, kind), attribute.Int(labelClass, class)}, base...)
		return metric.WithAttributes(attrs...)
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		snap, err := ab.Snapshot()
		if err != nil {
			// closed: report nothing
			return nil
		}

		ev := snap.Events
		for k := 0; k < ev.Kinds; k++ {
			for c := 0; c < ev.Classes; c++ {
				i := k*ev.Classes + c
				attrs := cellAttrs(k, c)
				o.ObserveInt64(inst.events, int64(ev.Counts[i]), attrs)
				o.ObserveFloat64(inst.eventsPeriod, ev.Periods[i].Seconds(), attrs)
			}
		}

		tk := snap.Tasks
		for k := 0; k < tk.Kinds; k++ {
			for c := 0; c < tk.Classes; c++ {
				i := k*tk.Classes + c
				attrs := cellAttrs(k, c)
				o.ObserveInt64(inst.tasks, int64(tk.Counts[i]), attrs)
				o.ObserveFloat64(inst.tasksPeriod, tk.Periods[i].Seconds(), attrs)
				if avg, ok := tk.AvgDelay(k, c); ok {
					o.ObserveFloat64(inst.tasksDelayAvg, avg.Seconds(), attrs)
				}
			}
		}

		o.ObserveInt64(inst.inFlight, int64(snap.InFlight), metric.WithAttributes(base...))
		return nil
	}, inst.events, inst.eventsPeriod, inst.tasks, inst.tasksDelayAvg, inst.tasksPeriod, inst.inFlight)
}
