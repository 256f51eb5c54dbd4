package simulation

import (
	"errors"
	"time"
)

var ErrNilBackend = errors.New("nil backend supplied")
var ErrEmptyCatalog = errors.New("catalog must contain at least one entry")
var ErrInvalidEntryIndex = errors.New("entry index out of catalog range")
var ErrUnknownClassification = errors.New("unknown classification")
var ErrNothingOpen = errors.New("no open event to close")
var ErrInvalidFrequency = errors.New("frequency per day must be positive")
var ErrInvalidPercentAlarms = errors.New("percent alarms must be between 0 and 100")
var ErrInvalidHighWaterMark = errors.New("high-water mark must not be negative")
var ErrInvalidMaxTaskCount = errors.New("max task count must be positive")
var ErrInvalidMaxParallel = errors.New("max parallel must be positive")
var ErrInvalidFlushThreshold = errors.New("latency flush threshold must be positive")
var ErrAlreadyStarted = errors.New("coordinator already started")
var ErrAlreadyStopped = errors.New("coordinator already stopped")

const (
	// DefaultPercentAlarms is the share of opened events that are alarms when nothing else is configured.
	DefaultPercentAlarms = 50

	// DefaultHighWaterMark is the open-event count above which the producer switches to Closing mode.
	DefaultHighWaterMark = 25

	// DefaultMaxTaskCount is the hard cap of actions drained from the queue per dispatcher tick.
	DefaultMaxTaskCount = 50

	// DefaultLatencyFlushThreshold is the sample count above which both latency accumulators get flushed.
	DefaultLatencyFlushThreshold = 1000

	// relativeStdDev is the standard deviation of the inter-event delay relative to its mean.
	relativeStdDev = 0.2

	secondsPerDay = 86400

	// actionsPerEvent accounts for each logical event needing one open and one close action.
	actionsPerEvent = 2

	dispatchPeriodFactor = 4
	minDispatchPeriod    = 500 * time.Millisecond
	maxDispatchPeriod    = 5000 * time.Millisecond
)

var ErrProducerPanicked = errors.New("event producer panicked")
var ErrDispatcherPanicked = errors.New("batch dispatcher panicked")
var ErrActionPanicked = errors.New("queued action panicked")
