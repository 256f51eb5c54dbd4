package simulation

import (
	"sync"
	"time"
)

// LatencySink persists flushed latency samples.
type LatencySink interface {
	WriteSamples(inserts, updates []time.Duration) error
}

// LatencyRecorder accumulates elapsed times of open (insert) and close (update) calls.
// When either accumulator holds more than threshold samples, both are handed to the sink and reset.
type LatencyRecorder struct {
	mu        sync.Mutex
	inserts   []time.Duration
	updates   []time.Duration
	threshold int
	sink      LatencySink
	logger    Logger
}

// NewLatencyRecorder creates a LatencyRecorder. A nil sink discards flushed samples.
func NewLatencyRecorder(threshold int, sink LatencySink, logger Logger) *LatencyRecorder {
	if logger == nil {
		logger = noopLogger{}
	}

	return &LatencyRecorder{
		threshold: threshold,
		sink:      sink,
		logger:    logger,
	}
}

// Record appends one sample to the accumulator matching kind and flushes if the threshold is exceeded.
func (r *LatencyRecorder) Record(kind ActionKind, elapsed time.Duration) {
	r.mu.Lock()

	if kind == ActionClose {
		r.updates = append(r.updates, elapsed)
	} else {
		r.inserts = append(r.inserts, elapsed)
	}

	if len(r.inserts) <= r.threshold && len(r.updates) <= r.threshold {
		r.mu.Unlock()
		return
	}

	inserts, updates := r.snapshotAndReset()
	r.mu.Unlock()

	_ = r.write(inserts, updates)
}

// Flush hands all accumulated samples to the sink and resets both accumulators.
func (r *LatencyRecorder) Flush() error {
	r.mu.Lock()
	inserts, updates := r.snapshotAndReset()
	r.mu.Unlock()

	if len(inserts) == 0 && len(updates) == 0 {
		return nil
	}

	return r.write(inserts, updates)
}

// Counts returns the number of pending insert and update samples.
func (r *LatencyRecorder) Counts() (inserts int, updates int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.inserts), len(r.updates)
}

// snapshotAndReset must be called with r.mu held.
func (r *LatencyRecorder) snapshotAndReset() ([]time.Duration, []time.Duration) {
	inserts, updates := r.inserts, r.updates
	r.inserts, r.updates = nil, nil

	return inserts, updates
}

func (r *LatencyRecorder) write(inserts, updates []time.Duration) error {
	if r.sink == nil {
		return nil
	}

	if err := r.sink.WriteSamples(inserts, updates); err != nil {
		r.logger.Error(logMsgLatencyFlushFailed, logAttrError, err.Error())
		return err
	}

	r.logger.Info(logMsgLatencyFlushed, logAttrInsertSamples, len(inserts), logAttrUpdateSamples, len(updates))

	return nil
}
