package abacus

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector exposes an Abacus as a prometheus.Collector. Every
// scrape reads one Snapshot, so all series of a scrape share one instant.
type PrometheusCollector struct {
	abacus *Abacus

	eventsTotal   *prometheus.Desc
	eventsPeriod  *prometheus.Desc
	tasksTotal    *prometheus.Desc
	tasksDelayAvg *prometheus.Desc
	tasksPeriod   *prometheus.Desc
	inFlight      *prometheus.Desc
}

// NewPrometheusCollector builds a collector for ab. Metric names are
// prefixed with namespace when it is not empty; a configured Abacus name is
// attached as a constant "name" label.
func NewPrometheusCollector(ab *Abacus, namespace string) *PrometheusCollector {
	var constLabels prometheus.Labels
	if ab.config.Name != "" {
		constLabels = prometheus.Labels{labelName: ab.config.Name}
	}
	cell := []string{labelKind, labelClass}
	desc := func(name, help string, variable []string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, variable, constLabels)
	}

	return &PrometheusCollector{
		abacus:        ab,
		eventsTotal:   desc(MetricEventsTotal, "Events recorded since the cell was last reset.", cell),
		eventsPeriod:  desc(MetricEventsPeriod, "Seconds since the event cell was last reset.", cell),
		tasksTotal:    desc(MetricTasksCompleted, "Task completions since the cell was last reset.", cell),
		tasksDelayAvg: desc(MetricTasksDelayAvg, "Mean start-to-end task delay in seconds.", cell),
		tasksPeriod:   desc(MetricTasksPeriod, "Seconds since the task cell was last reset.", cell),
		inFlight:      desc(MetricCrumbsInFlight, "Tasks currently tracked.", nil),
	}
}

// Describe implements prometheus.Collector.
func (p *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.eventsTotal
	ch <- p.eventsPeriod
	ch <- p.tasksTotal
	ch <- p.tasksDelayAvg
	ch <- p.tasksPeriod
	ch <- p.inFlight
}

// Collect implements prometheus.Collector. A closed Abacus yields nothing.
func (p *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	snap, err := p.abacus.Snapshot()
	if err != nil {
		return
	}

	ev := snap.Events
	for k := 0; k < ev.Kinds; k++ {
		for c := 0; c < ev.Classes; c++ {
			i := k*ev.Classes + c
			lv := cellLabelValues(k, c)
			ch <- prometheus.MustNewConstMetric(p.eventsTotal, prometheus.CounterValue, float64(ev.Counts[i]), lv...)
			ch <- prometheus.MustNewConstMetric(p.eventsPeriod, prometheus.GaugeValue, ev.Periods[i].Seconds(), lv...)
		}
	}

	tk := snap.Tasks
	for k := 0; k < tk.Kinds; k++ {
		for c := 0; c < tk.Classes; c++ {
			i := k*tk.Classes + c
			lv := cellLabelValues(k, c)
			ch <- prometheus.MustNewConstMetric(p.tasksTotal, prometheus.CounterValue, float64(tk.Counts[i]), lv...)
			ch <- prometheus.MustNewConstMetric(p.tasksPeriod, prometheus.GaugeValue, tk.Periods[i].Seconds(), lv...)
			if avg, ok := tk.AvgDelay(k, c); ok {
				ch <- prometheus.MustNewConstMetric(p.tasksDelayAvg, prometheus.GaugeValue, avg.Seconds(), lv...)
			}
		}
	}

	ch <- prometheus.MustNewConstMetric(p.inFlight, prometheus.GaugeValue, float64(snap.InFlight))
}
