package simulation

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

const executedLogInterval = 100

// DispatcherConfig wires a Dispatcher. Metrics, Logger and OpenCount are optional;
// MaxParallel defaults to MaxTaskCount.
type DispatcherConfig struct {
	Queue        *Queue
	Latency      *LatencyRecorder
	Period       time.Duration
	MaxTaskCount int
	MaxParallel  int
	Metrics      MetricsCollector
	Logger       Logger
	OpenCount    func() int
}

// Dispatcher drains the queue on a fixed period and runs each drained batch in parallel,
// waiting for the whole batch before the next tick.
type Dispatcher struct {
	queue        *Queue
	latency      *LatencyRecorder
	period       time.Duration
	maxTaskCount int
	maxParallel  int
	metrics      MetricsCollector
	logger       Logger
	openCount    func() int

	executed atomic.Int64
	failed   atomic.Int64
}

// DispatchPeriod derives the tick period from the average inter-action delay:
// four expected gaps, but at least 500ms and at most 5s.
func DispatchPeriod(averageDelayMS float64) time.Duration {
	period := time.Duration(dispatchPeriodFactor * averageDelayMS * float64(time.Millisecond))

	switch {
	case period < minDispatchPeriod:
		return minDispatchPeriod
	case period > maxDispatchPeriod:
		return maxDispatchPeriod
	default:
		return period
	}
}

// NewDispatcher creates a Dispatcher from cfg.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		queue:        cfg.Queue,
		latency:      cfg.Latency,
		period:       cfg.Period,
		maxTaskCount: cfg.MaxTaskCount,
		maxParallel:  cfg.MaxParallel,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		openCount:    cfg.OpenCount,
	}

	if d.maxTaskCount <= 0 {
		d.maxTaskCount = DefaultMaxTaskCount
	}
	if d.maxParallel <= 0 {
		d.maxParallel = d.maxTaskCount
	}
	if d.period <= 0 {
		d.period = minDispatchPeriod
	}
	if d.latency == nil {
		d.latency = NewLatencyRecorder(DefaultLatencyFlushThreshold, nil, cfg.Logger)
	}
	if d.metrics == nil {
		d.metrics = noopMetrics{}
	}
	if d.logger == nil {
		d.logger = noopLogger{}
	}

	return d
}

// Period returns the tick period.
func (d *Dispatcher) Period() time.Duration {
	return d.period
}

// Executed returns the running total of executed actions.
func (d *Dispatcher) Executed() int64 {
	return d.executed.Load()
}

// Errors returns the number of failed backend calls. It is never reset.
func (d *Dispatcher) Errors() int64 {
	return d.failed.Load()
}

// Run ticks until ctx is done. A batch in flight when ctx ends is finished first.
func (d *Dispatcher) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error(logMsgDispatcherPanicked, logAttrPanic, fmt.Sprint(r))
			err = fmt.Errorf("%w: %v", ErrDispatcherPanicked, r)
		}
	}()

	d.logger.Info(logMsgDispatcherStarted, logAttrDispatchPeriodMS, d.period.Milliseconds())

	ticker := time.NewTicker(d.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info(logMsgDispatcherStopped, logAttrExecutedTotal, d.Executed())
			return nil
		case <-ticker.C:
			// both channels may be ready at once
			if ctx.Err() != nil {
				d.logger.Info(logMsgDispatcherStopped, logAttrExecutedTotal, d.Executed())
				return nil
			}

			d.Tick(ctx)
		}
	}
}

// Tick drains up to MaxTaskCount actions and runs them with at most MaxParallel in flight,
// returning once all of them finished. It returns the number of executed actions.
func (d *Dispatcher) Tick(ctx context.Context) int {
	batch, remaining := d.queue.DequeueUpTo(d.maxTaskCount)
	if len(batch) == 0 {
		return 0
	}

	if remaining > 0 {
		d.logger.Warn(logMsgBacklog, logAttrBatchSize, len(batch), logAttrBacklog, remaining)
	}
	d.metrics.RecordValue(MetricQueueBacklog, float64(remaining), nil)

	// Backend calls are not cut short by a stop request.
	actionCtx := context.WithoutCancel(ctx)

	var group errgroup.Group
	group.SetLimit(d.maxParallel)

	for _, action := range batch {
		group.Go(func() error {
			d.execute(actionCtx, action)
			return nil
		})
	}
	_ = group.Wait()

	total := d.executed.Add(int64(len(batch)))
	if total%executedLogInterval == 0 {
		d.logger.Info(logMsgExecutedMilestone, logAttrExecutedTotal, total, logAttrErrorTotal, d.Errors())
	}

	if d.openCount != nil {
		d.metrics.RecordValue(MetricOpenEvents, float64(d.openCount()), nil)
	}

	return len(batch)
}

func (d *Dispatcher) execute(ctx context.Context, action Action) {
	start := time.Now()
	err := runAction(ctx, action)
	elapsed := time.Since(start)

	d.latency.Record(action.Kind, elapsed)

	status := StatusSuccess
	if err != nil {
		status = StatusError
		d.failed.Add(1)
		d.logger.Error(logMsgActionFailed,
			logAttrKind, action.Kind.String(),
			logAttrKey, action.Key,
			logAttrError, err.Error())
		d.metrics.IncrementCounter(MetricActionErrors, map[string]string{LabelKind: action.Kind.String()})
	}

	d.metrics.RecordDuration(MetricActionDuration, elapsed, map[string]string{
		LabelKind:   action.Kind.String(),
		LabelStatus: status,
	})
}

// runAction keeps a panicking action from taking down its siblings.
func runAction(ctx context.Context, action Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrActionPanicked, r)
		}
	}()

	return action.Run(ctx)
}
