package helper

import (
	"maps"
	"sync"
	"time"

	"github.com/AntonStoeckl/alarm-load-simulator/simulation"
)

// MetricsCollectorSpy is a simulation.MetricsCollector implementation that captures metrics calls for testing.
type MetricsCollectorSpy struct {
	durationRecords []SpyDurationRecord
	counterRecords  []SpyCounterRecord
	valueRecords    []SpyValueRecord
	mu              sync.Mutex
	recordCalls     bool
}

// SpyDurationRecord represents a recorded duration metric call.
type SpyDurationRecord struct {
	Metric   string
	Duration time.Duration
	Labels   map[string]string
}

// SpyCounterRecord represents a recorded counter increment call.
type SpyCounterRecord struct {
	Metric string
	Labels map[string]string
}

// SpyValueRecord represents a recorded value metric call.
type SpyValueRecord struct {
	Metric string
	Value  float64
	Labels map[string]string
}

// NewMetricsCollectorSpy creates a new MetricsCollectorSpy.
// Set recordCalls to true to capture all metrics calls for inspection in tests.
func NewMetricsCollectorSpy(recordCalls bool) *MetricsCollectorSpy {
	return &MetricsCollectorSpy{
		durationRecords: make([]SpyDurationRecord, 0),
		counterRecords:  make([]SpyCounterRecord, 0),
		valueRecords:    make([]SpyValueRecord, 0),
		recordCalls:     recordCalls,
	}
}

// RecordDuration implements simulation.MetricsCollector.
func (s *MetricsCollectorSpy) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	if !s.recordCalls {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.durationRecords = append(s.durationRecords, SpyDurationRecord{
		Metric:   metric,
		Duration: duration,
		Labels:   maps.Clone(labels),
	})
}

// IncrementCounter implements simulation.MetricsCollector.
func (s *MetricsCollectorSpy) IncrementCounter(metric string, labels map[string]string) {
	if !s.recordCalls {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.counterRecords = append(s.counterRecords, SpyCounterRecord{
		Metric: metric,
		Labels: maps.Clone(labels),
	})
}

// RecordValue implements simulation.MetricsCollector.
func (s *MetricsCollectorSpy) RecordValue(metric string, value float64, labels map[string]string) {
	if !s.recordCalls {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.valueRecords = append(s.valueRecords, SpyValueRecord{
		Metric: metric,
		Value:  value,
		Labels: maps.Clone(labels),
	})
}

// GetDurationRecords returns a copy of all captured duration records.
func (s *MetricsCollectorSpy) GetDurationRecords() []SpyDurationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]SpyDurationRecord, len(s.durationRecords))
	copy(records, s.durationRecords)

	return records
}

// GetCounterRecords returns a copy of all captured counter records.
func (s *MetricsCollectorSpy) GetCounterRecords() []SpyCounterRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]SpyCounterRecord, len(s.counterRecords))
	copy(records, s.counterRecords)

	return records
}

// GetValueRecords returns a copy of all captured value records.
func (s *MetricsCollectorSpy) GetValueRecords() []SpyValueRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]SpyValueRecord, len(s.valueRecords))
	copy(records, s.valueRecords)

	return records
}

// Reset clears all captured metric records.
func (s *MetricsCollectorSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.durationRecords = s.durationRecords[:0]
	s.counterRecords = s.counterRecords[:0]
	s.valueRecords = s.valueRecords[:0]
}

// MetricRecordMatcher provides a fluent interface for checking metric records.
type MetricRecordMatcher struct {
	found  bool
	labels map[string]string
}

// HasDurationRecordForMetric starts a fluent chain to check the first duration record of a metric.
func (s *MetricsCollectorSpy) HasDurationRecordForMetric(metric string) *MetricRecordMatcher {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.durationRecords {
		if record.Metric == metric {
			return &MetricRecordMatcher{found: true, labels: record.Labels}
		}
	}

	return &MetricRecordMatcher{found: false}
}

// HasCounterRecordForMetric starts a fluent chain to check the first counter record of a metric.
func (s *MetricsCollectorSpy) HasCounterRecordForMetric(metric string) *MetricRecordMatcher {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.counterRecords {
		if record.Metric == metric {
			return &MetricRecordMatcher{found: true, labels: record.Labels}
		}
	}

	return &MetricRecordMatcher{found: false}
}

// HasValueRecordForMetric starts a fluent chain to check the first value record of a metric.
func (s *MetricsCollectorSpy) HasValueRecordForMetric(metric string) *MetricRecordMatcher {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.valueRecords {
		if record.Metric == metric {
			return &MetricRecordMatcher{found: true, labels: record.Labels}
		}
	}

	return &MetricRecordMatcher{found: false}
}

// WithKind checks if the record has the specified kind label.
func (m *MetricRecordMatcher) WithKind(kind string) *MetricRecordMatcher {
	return m.WithLabel(simulation.LabelKind, kind)
}

// WithStatus checks if the record has the specified status label.
func (m *MetricRecordMatcher) WithStatus(status string) *MetricRecordMatcher {
	return m.WithLabel(simulation.LabelStatus, status)
}

// WithLabel checks if the record has the specified label with the given value.
func (m *MetricRecordMatcher) WithLabel(key, value string) *MetricRecordMatcher {
	if !m.found {
		return m
	}

	if labelValue, exists := m.labels[key]; !exists || labelValue != value {
		m.found = false
	}

	return m
}

// Assert returns true if all conditions in the fluent chain were met.
func (m *MetricRecordMatcher) Assert() bool {
	return m.found
}

// CountDurationRecordsForMetric counts how many duration records exist for a specific metric.
func (s *MetricsCollectorSpy) CountDurationRecordsForMetric(metric string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, record := range s.durationRecords {
		if record.Metric == metric {
			count++
		}
	}

	return count
}

// CountCounterRecordsForMetric counts how many counter records exist for a specific metric.
func (s *MetricsCollectorSpy) CountCounterRecordsForMetric(metric string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, record := range s.counterRecords {
		if record.Metric == metric {
			count++
		}
	}

	return count
}

// LastValueForMetric returns the most recent value recorded for a metric.
func (s *MetricsCollectorSpy) LastValueForMetric(metric string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.valueRecords) - 1; i >= 0; i-- {
		if s.valueRecords[i].Metric == metric {
			return s.valueRecords[i].Value, true
		}
	}

	return 0, false
}

var _ simulation.MetricsCollector = (*MetricsCollectorSpy)(nil)
