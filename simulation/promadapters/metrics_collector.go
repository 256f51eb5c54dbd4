package promadapters

import (
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AntonStoeckl/alarm-load-simulator/simulation"
)

const helpText = "alarm load simulator metric "

// MetricsCollector implements simulation.MetricsCollector on top of the Prometheus client.
type MetricsCollector struct {
	registerer prometheus.Registerer
	buckets    []float64

	mu         sync.Mutex
	histograms map[string]*prometheus.HistogramVec
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
}

// Option defines a functional option for configuring MetricsCollector.
type Option func(*MetricsCollector)

// WithBuckets overrides the histogram buckets, in seconds. The default is prometheus.DefBuckets.
func WithBuckets(buckets []float64) Option {
	return func(m *MetricsCollector) {
		if len(buckets) > 0 {
			m.buckets = slices.Clone(buckets)
		}
	}
}

// NewMetricsCollector creates a collector that registers its instruments with registerer.
// A nil registerer means prometheus.DefaultRegisterer.
func NewMetricsCollector(registerer prometheus.Registerer, options ...Option) *MetricsCollector {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &MetricsCollector{
		registerer: registerer,
		buckets:    prometheus.DefBuckets,
		histograms: make(map[string]*prometheus.HistogramVec),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}

	for _, option := range options {
		option(m)
	}

	return m
}

// RecordDuration observes duration in seconds on a histogram.
func (m *MetricsCollector) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	histogram := m.getOrCreateHistogram(metric, labelNames(labels))
	if histogram == nil {
		return
	}

	observer, err := histogram.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return
	}

	observer.Observe(duration.Seconds())
}

// IncrementCounter adds one to a counter.
func (m *MetricsCollector) IncrementCounter(metric string, labels map[string]string) {
	counter := m.getOrCreateCounter(metric, labelNames(labels))
	if counter == nil {
		return
	}

	c, err := counter.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return
	}

	c.Inc()
}

// RecordValue sets a gauge.
func (m *MetricsCollector) RecordValue(metric string, value float64, labels map[string]string) {
	gauge := m.getOrCreateGauge(metric, labelNames(labels))
	if gauge == nil {
		return
	}

	g, err := gauge.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return
	}

	g.Set(value)
}

func (m *MetricsCollector) getOrCreateHistogram(metric string, names []string) *prometheus.HistogramVec {
	m.mu.Lock()
	defer m.mu.Unlock()

	if histogram, exists := m.histograms[metric]; exists {
		return histogram
	}

	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: metric, Help: helpText + metric, Buckets: m.buckets},
		names,
	)

	registered := register(m.registerer, histogram)
	if registered == nil {
		return nil
	}

	existing, ok := registered.(*prometheus.HistogramVec)
	if !ok {
		return nil
	}

	m.histograms[metric] = existing

	return existing
}

func (m *MetricsCollector) getOrCreateCounter(metric string, names []string) *prometheus.CounterVec {
	m.mu.Lock()
	defer m.mu.Unlock()

	if counter, exists := m.counters[metric]; exists {
		return counter
	}

	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: metric, Help: helpText + metric},
		names,
	)

	registered := register(m.registerer, counter)
	if registered == nil {
		return nil
	}

	existing, ok := registered.(*prometheus.CounterVec)
	if !ok {
		return nil
	}

	m.counters[metric] = existing

	return existing
}

func (m *MetricsCollector) getOrCreateGauge(metric string, names []string) *prometheus.GaugeVec {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gauge, exists := m.gauges[metric]; exists {
		return gauge
	}

	gauge := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: metric, Help: helpText + metric},
		names,
	)

	registered := register(m.registerer, gauge)
	if registered == nil {
		return nil
	}

	existing, ok := registered.(*prometheus.GaugeVec)
	if !ok {
		return nil
	}

	m.gauges[metric] = existing

	return existing
}

// register returns the collector that ended up registered under the metric's name,
// or nil if registration failed for another reason.
func register(registerer prometheus.Registerer, collector prometheus.Collector) prometheus.Collector {
	err := registerer.Register(collector)
	if err == nil {
		return collector
	}

	var alreadyRegistered prometheus.AlreadyRegisteredError
	if errors.As(err, &alreadyRegistered) {
		return alreadyRegistered.ExistingCollector
	}

	return nil
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	slices.Sort(names)

	return names
}

// Handler returns an HTTP handler that exposes the metrics gathered by gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}

	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var _ simulation.MetricsCollector = (*MetricsCollector)(nil)
