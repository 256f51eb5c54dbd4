package simulation

import (
	"time"
)

// Logger interface for operational logging, warnings, and error reporting.
// A *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MetricsCollector interface for collecting simulation performance and operational metrics.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

const (
	MetricActionDuration = "alarmsim_action_duration_seconds"
	MetricActionErrors   = "alarmsim_action_errors_total"
	MetricQueueBacklog   = "alarmsim_queue_backlog"
	MetricOpenEvents     = "alarmsim_open_events"

	LabelKind   = "kind"
	LabelStatus = "status"

	StatusSuccess = "success"
	StatusError   = "error"
)

const (
	logMsgProducerStarted     = "event producer started"
	logMsgProducerStopped     = "event producer stopped"
	logMsgProducerPanicked    = "event producer terminated by panic"
	logMsgProducerFailed      = "event producer terminated by error"
	logMsgIntentQueued        = "intent queued"
	logMsgModeSwitched        = "generator mode switched"
	logMsgCloseSkipped        = "close intent skipped, nothing open"
	logMsgDispatcherStarted   = "batch dispatcher started"
	logMsgDispatcherStopped   = "batch dispatcher stopped"
	logMsgDispatcherPanicked  = "batch dispatcher terminated by panic"
	logMsgBacklog             = "queue backlog after drain"
	logMsgExecutedMilestone   = "actions executed"
	logMsgActionFailed        = "backend call failed"
	logMsgLatencyFlushed      = "latency samples flushed"
	logMsgLatencyFlushFailed  = "failed to flush latency samples"
	logMsgCoordinatorStarting = "coordinator starting"
	logMsgCoordinatorStopped  = "coordinator stopped"
	logMsgErrorSummary        = "simulation summary"
	logAttrError              = "error"
	logAttrRunID              = "run_id"
	logAttrKind               = "kind"
	logAttrKey                = "key"
	logAttrMode               = "mode"
	logAttrOpenCount          = "open_count"
	logAttrBacklog            = "backlog"
	logAttrBatchSize          = "batch_size"
	logAttrExecutedTotal      = "executed_total"
	logAttrErrorTotal         = "error_total"
	logAttrDiscarded          = "discarded"
	logAttrInsertSamples      = "insert_samples"
	logAttrUpdateSamples      = "update_samples"
	logAttrAverageDelayMS     = "average_delay_ms"
	logAttrDispatchPeriodMS   = "dispatch_period_ms"
	logAttrPercentAlarms      = "percent_alarms"
	logAttrCatalogSize        = "catalog_size"
	logAttrPanic              = "panic"
)

// noopLogger swallows everything, so components never have to nil-check their logger.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopMetrics struct{}

func (noopMetrics) RecordDuration(string, time.Duration, map[string]string) {}
func (noopMetrics) IncrementCounter(string, map[string]string)              {}
func (noopMetrics) RecordValue(string, float64, map[string]string)          {}
