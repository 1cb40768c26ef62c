// Package abacus counts events and times tasks inside a single process,
// broken down by kind and class.
//
// Design goals:
//   - One explicitly constructed instance per use; no package-level state
//   - A single mutex guards all counters, so every call is atomic
//   - Fixed dimensions: kinds and classes are chosen at construction
//   - Aggregates stay O(1) to query no matter how many tasks were tracked
//
// Events are counted directly. Tasks are tracked through a crumb: an
// ephemeral record keyed by a guid.ID that holds start and stop times per
// (task kind, class). Finishing the task folds every completed cell into the
// task counters and discards the crumb.
//
// Basic usage:
//
//	ab, err := abacus.New(2, 3, 1, abacus.WithLogger(logger))
//	if err != nil {
//	  log.Fatal(err)
//	}
//	defer ab.Close()
//
//	_ = ab.EventAdd(1, 0)
//
//	id := guid.New()
//	_ = ab.TaskBegin(id)
//	_ = ab.TaskStart(id, 0, 0)
//	// ... work ...
//	_ = ab.TaskEnd(id, 0, 0)
//	_ = ab.TaskFinish(id)
//
//	avg, err := ab.TaskAvgDelay(0, 0)
//
// Counters can be exported through a Prometheus remote-write Exporter, a
// prometheus.Collector (NewPrometheusCollector) or OpenTelemetry observable
// instruments (RegisterOTel).
package abacus
