package helper

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

// LogHandlerSpy is a slog.Handler implementation that captures log records for testing.
type LogHandlerSpy struct {
	records     []slog.Record
	mu          sync.Mutex
	logToStdout bool
}

// NewLogHandlerSpy creates a new LogHandlerSpy
// Switchable to log to stdout, which can be useful for debugging tests by seeing the actual log output.
func NewLogHandlerSpy(logToStdOut bool) *LogHandlerSpy {
	return &LogHandlerSpy{
		records:     make([]slog.Record, 0),
		logToStdout: logToStdOut,
	}
}

// Handle implements slog.Handler interface.
func (s *LogHandlerSpy) Handle(ctx context.Context, record slog.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record.Clone())

	if s.logToStdout {
		jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
		_ = jsonHandler.Handle(ctx, record)
	}

	return nil
}

// Enabled implements slog.Handler interface.
func (s *LogHandlerSpy) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

// WithAttrs implements slog.Handler interface. Handler-level attrs are not captured.
func (s *LogHandlerSpy) WithAttrs(_ []slog.Attr) slog.Handler {
	return s
}

// WithGroup implements slog.Handler interface.
func (s *LogHandlerSpy) WithGroup(_ string) slog.Handler {
	return s
}

// GetRecordCount returns the number of captured log records.
func (s *LogHandlerSpy) GetRecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records)
}

// GetRecords returns a copy of all captured log records.
func (s *LogHandlerSpy) GetRecords() []slog.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]slog.Record, len(s.records))
	copy(records, s.records)

	return records
}

// Reset clears all captured log records.
func (s *LogHandlerSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = s.records[:0]
}

// HasDebugLog checks if there's a debug-level log record with the specified message.
func (s *LogHandlerSpy) HasDebugLog(message string) bool {
	return s.HasLogWithMessage(slog.LevelDebug, message).Assert()
}

// HasInfoLog checks if there's an info-level log record with the specified message.
func (s *LogHandlerSpy) HasInfoLog(message string) bool {
	return s.HasLogWithMessage(slog.LevelInfo, message).Assert()
}

// HasWarnLog checks if there's a warn-level log record with the specified message.
func (s *LogHandlerSpy) HasWarnLog(message string) bool {
	return s.HasLogWithMessage(slog.LevelWarn, message).Assert()
}

// HasErrorLog checks if there's an error-level log record with the specified message.
func (s *LogHandlerSpy) HasErrorLog(message string) bool {
	return s.HasLogWithMessage(slog.LevelError, message).Assert()
}

// CountLogs counts the log records with the given level and message.
func (s *LogHandlerSpy) CountLogs(level slog.Level, message string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, record := range s.records {
		if record.Level == level && record.Message == message {
			count++
		}
	}

	return count
}

// SpyLogRecordMatcher provides a fluent interface for checking log record attributes.
type SpyLogRecordMatcher struct {
	record *slog.Record
	found  bool
}

// HasLogWithMessage starts a fluent chain to check the first log record with the given level and message.
func (s *LogHandlerSpy) HasLogWithMessage(level slog.Level, message string) *SpyLogRecordMatcher {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.records {
		if record.Level == level && record.Message == message {
			return &SpyLogRecordMatcher{
				record: &record,
				found:  true,
			}
		}
	}

	return &SpyLogRecordMatcher{found: false}
}

// HasDebugLogWithMessage starts a fluent chain to check a debug-level log record.
func (s *LogHandlerSpy) HasDebugLogWithMessage(message string) *SpyLogRecordMatcher {
	return s.HasLogWithMessage(slog.LevelDebug, message)
}

// HasInfoLogWithMessage starts a fluent chain to check an info-level log record.
func (s *LogHandlerSpy) HasInfoLogWithMessage(message string) *SpyLogRecordMatcher {
	return s.HasLogWithMessage(slog.LevelInfo, message)
}

// HasWarnLogWithMessage starts a fluent chain to check a warn-level log record.
func (s *LogHandlerSpy) HasWarnLogWithMessage(message string) *SpyLogRecordMatcher {
	return s.HasLogWithMessage(slog.LevelWarn, message)
}

// HasErrorLogWithMessage starts a fluent chain to check an error-level log record.
func (s *LogHandlerSpy) HasErrorLogWithMessage(message string) *SpyLogRecordMatcher {
	return s.HasLogWithMessage(slog.LevelError, message)
}

// WithDurationMS checks if the log record has a duration_ms attribute with a non-negative value.
func (m *SpyLogRecordMatcher) WithDurationMS() *SpyLogRecordMatcher {
	if !m.found {
		return m
	}

	hasDurationMS := false
	m.record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == "duration_ms" {
			switch attr.Value.Kind() {
			case slog.KindInt64:
				hasDurationMS = attr.Value.Int64() >= 0
			case slog.KindFloat64:
				hasDurationMS = attr.Value.Float64() >= 0
			default:
			}

			return false
		}

		return true
	})

	if !hasDurationMS {
		m.found = false
	}

	return m
}

// WithInt checks if the log record has an integer attribute with the given key and value.
func (m *SpyLogRecordMatcher) WithInt(key string, value int64) *SpyLogRecordMatcher {
	if !m.found {
		return m
	}

	matches := false
	m.record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == key {
			matches = attr.Value.Kind() == slog.KindInt64 && attr.Value.Int64() == value
			return false
		}

		return true
	})

	if !matches {
		m.found = false
	}

	return m
}

// WithString checks if the log record has a string attribute with the given key and value.
func (m *SpyLogRecordMatcher) WithString(key string, value string) *SpyLogRecordMatcher {
	if !m.found {
		return m
	}

	matches := false
	m.record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == key {
			matches = attr.Value.Kind() == slog.KindString && attr.Value.String() == value
			return false
		}

		return true
	})

	if !matches {
		m.found = false
	}

	return m
}

// WithAttr checks if the log record carries an attribute with the given key, whatever its value.
func (m *SpyLogRecordMatcher) WithAttr(key string) *SpyLogRecordMatcher {
	if !m.found {
		return m
	}

	present := false
	m.record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == key {
			present = true
			return false
		}

		return true
	})

	if !present {
		m.found = false
	}

	return m
}

// Assert returns true if all conditions in the fluent chain were met.
func (m *SpyLogRecordMatcher) Assert() bool {
	return m.found
}
