package simulation

import (
	"time"

	"github.com/google/uuid"
)

// Option defines a functional option for configuring a Coordinator.
type Option func(*Coordinator) error

// WithLogger sets the logger shared by all components.
// Info level: start/stop, executed-total milestones, latency flushes, the shutdown summary.
// Warn level: queue backlog after a drain.
// Error level: failed backend calls and terminated loops.
// Debug level: every queued intent and every mode switch.
func WithLogger(logger Logger) Option {
	return func(c *Coordinator) error {
		c.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector the dispatcher reports to.
func WithMetrics(collector MetricsCollector) Option {
	return func(c *Coordinator) error {
		c.metrics = collector
		return nil
	}
}

// WithLatencySink sets where flushed latency samples go. Without it they are discarded.
func WithLatencySink(sink LatencySink) Option {
	return func(c *Coordinator) error {
		c.latencySink = sink
		return nil
	}
}

// WithRandom replaces the uniform source used for timing and entry selection.
func WithRandom(random Random) Option {
	return func(c *Coordinator) error {
		c.random = random
		return nil
	}
}

// WithSleepFunc replaces the wait primitive of the producer loop.
func WithSleepFunc(sleep SleepFunc) Option {
	return func(c *Coordinator) error {
		c.sleep = sleep
		return nil
	}
}

// WithClock replaces the source of event timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) error {
		c.now = now
		return nil
	}
}

// WithHighWaterMark sets the open count above which the producer switches to Closing mode.
func WithHighWaterMark(mark int) Option {
	return func(c *Coordinator) error {
		if mark < 0 {
			return ErrInvalidHighWaterMark
		}

		c.highWaterMark = mark

		return nil
	}
}

// WithMaxTaskCount sets how many actions the dispatcher drains per tick.
func WithMaxTaskCount(count int) Option {
	return func(c *Coordinator) error {
		if count <= 0 {
			return ErrInvalidMaxTaskCount
		}

		c.maxTaskCount = count

		return nil
	}
}

// WithMaxParallel caps how many actions of one batch run at the same time.
func WithMaxParallel(parallel int) Option {
	return func(c *Coordinator) error {
		if parallel <= 0 {
			return ErrInvalidMaxParallel
		}

		c.maxParallel = parallel

		return nil
	}
}

// WithLatencyFlushThreshold sets the sample count above which both accumulators are flushed.
func WithLatencyFlushThreshold(threshold int) Option {
	return func(c *Coordinator) error {
		if threshold <= 0 {
			return ErrInvalidFlushThreshold
		}

		c.flushThreshold = threshold

		return nil
	}
}

// WithRunID sets the id attached to every log line of this run.
func WithRunID(runID uuid.UUID) Option {
	return func(c *Coordinator) error {
		c.runID = runID
		return nil
	}
}
