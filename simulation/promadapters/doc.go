// Package promadapters provides a Prometheus implementation of simulation.MetricsCollector.
//
// Instruments are created on first use and registered with the given prometheus.Registerer:
//   - RecordDuration -> HistogramVec, observed in seconds
//   - IncrementCounter -> CounterVec
//   - RecordValue -> GaugeVec
//
// The label names of an instrument are fixed by the first call for that metric name.
// Later calls with a different label set are dropped.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	collector := promadapters.NewMetricsCollector(registry)
//	coordinator, _ := simulation.NewCoordinator(params, catalog, backend, simulation.WithMetrics(collector))
//	http.Handle("/metrics", promadapters.Handler(registry))
package promadapters
