package simulation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Params are the startup parameters of a simulation run.
type Params struct {
	FrequencyPerDay int
	PercentAlarms   int
}

// Validate checks the parameter ranges.
func (p Params) Validate() error {
	if p.FrequencyPerDay <= 0 {
		return ErrInvalidFrequency
	}

	if p.PercentAlarms < 0 || p.PercentAlarms > 100 {
		return ErrInvalidPercentAlarms
	}

	return nil
}

// AverageDelayMS converts an events-per-day frequency into the mean delay between two actions.
// Each event needs an open and a close action, so actions run at twice the event rate.
func AverageDelayMS(frequencyPerDay int) float64 {
	actionsPerSecond := float64(frequencyPerDay) / secondsPerDay * actionsPerEvent

	return 1000 / actionsPerSecond
}

// Summary reports the totals of a run.
type Summary struct {
	Executed  int64
	Errors    int64
	Discarded int
}

// Coordinator wires producer, queue and dispatcher and owns their lifecycle.
type Coordinator struct {
	params  Params
	catalog Catalog
	backend Backend

	logger         Logger
	metrics        MetricsCollector
	latencySink    LatencySink
	random         Random
	sleep          SleepFunc
	now            func() time.Time
	highWaterMark  int
	maxTaskCount   int
	maxParallel    int
	flushThreshold int
	runID          uuid.UUID

	tracker    *Tracker
	queue      *Queue
	latency    *LatencyRecorder
	producer   *Producer
	dispatcher *Dispatcher

	lifecycleMu sync.Mutex
	started     bool
	stopped     bool
	stopOnce    sync.Once
	failOnce sync.Once
	failed   chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	done     chan struct{}
	summary  Summary

	errMu         sync.Mutex
	producerErr   error
	dispatcherErr error
}

// NewCoordinator validates params, applies options and builds all components.
func NewCoordinator(params Params, catalog Catalog, backend Backend, options ...Option) (*Coordinator, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	if catalog.Len() == 0 {
		return nil, ErrEmptyCatalog
	}

	if backend == nil {
		return nil, ErrNilBackend
	}

	c := &Coordinator{
		params:         params,
		catalog:        catalog,
		backend:        backend,
		highWaterMark:  DefaultHighWaterMark,
		maxTaskCount:   DefaultMaxTaskCount,
		flushThreshold: DefaultLatencyFlushThreshold,
		done:           make(chan struct{}),
		failed:         make(chan struct{}),
	}

	for _, option := range options {
		if err := option(c); err != nil {
			return nil, err
		}
	}

	if c.runID == uuid.Nil {
		c.runID = uuid.New()
	}

	if c.logger == nil {
		c.logger = noopLogger{}
	} else {
		c.logger = runLogger{logger: c.logger, runID: c.runID.String()}
	}

	averageDelayMS := AverageDelayMS(params.FrequencyPerDay)

	c.tracker = NewTracker(c.highWaterMark, c.logger)
	c.queue = NewQueue()
	c.latency = NewLatencyRecorder(c.flushThreshold, c.latencySink, c.logger)

	c.producer = NewProducer(ProducerConfig{
		Catalog:        catalog,
		Tracker:        c.tracker,
		Queue:          c.queue,
		Backend:        backend,
		AverageDelayMS: averageDelayMS,
		PercentAlarms:  params.PercentAlarms,
		Random:         c.random,
		Sleep:          c.sleep,
		Now:            c.now,
		Logger:         c.logger,
	})

	c.dispatcher = NewDispatcher(DispatcherConfig{
		Queue:        c.queue,
		Latency:      c.latency,
		Period:       DispatchPeriod(averageDelayMS),
		MaxTaskCount: c.maxTaskCount,
		MaxParallel:  c.maxParallel,
		Metrics:      c.metrics,
		Logger:       c.logger,
		OpenCount:    c.tracker.Count,
	})

	return c, nil
}

// Start launches the producer and dispatcher loops as independent goroutines.
// The loops stop when ctx is done or Stop is called.
// Starting a stopped Coordinator fails with ErrAlreadyStopped.
func (c *Coordinator) Start(ctx context.Context) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if c.started {
		return ErrAlreadyStarted
	}

	if c.stopped {
		return ErrAlreadyStopped
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.started = true

	c.logger.Info(logMsgCoordinatorStarting,
		logAttrAverageDelayMS, AverageDelayMS(c.params.FrequencyPerDay),
		logAttrDispatchPeriodMS, c.dispatcher.Period().Milliseconds(),
		logAttrPercentAlarms, c.params.PercentAlarms,
		logAttrCatalogSize, c.catalog.Len())

	c.wg.Add(2)

	// A failed loop does not stop the other one; Failed lets the caller decide.
	go func() {
		defer c.wg.Done()
		c.loopFinished(&c.producerErr, c.producer.Run(runCtx))
	}()

	go func() {
		defer c.wg.Done()
		c.loopFinished(&c.dispatcherErr, c.dispatcher.Run(runCtx))
	}()

	go func() {
		c.wg.Wait()
		close(c.done)
	}()

	return nil
}

// Done is closed once both loops have exited.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Failed is closed as soon as one loop terminated by a panic or an unexpected error.
// The other loop keeps running until Stop.
func (c *Coordinator) Failed() <-chan struct{} {
	return c.failed
}

func (c *Coordinator) loopFinished(slot *error, err error) {
	if err == nil {
		return
	}

	c.errMu.Lock()
	*slot = err
	c.errMu.Unlock()

	c.failOnce.Do(func() { close(c.failed) })
}

// Wait blocks until both loops have exited.
func (c *Coordinator) Wait() {
	<-c.done
}

// Stop halts both loops, waits for them to exit, flushes the latency accumulators and logs a
// summary. Only the first call has an effect; later calls return the same summary.
func (c *Coordinator) Stop() Summary {
	c.stopOnce.Do(func() {
		c.lifecycleMu.Lock()
		c.stopped = true
		started, cancel := c.started, c.cancel
		c.lifecycleMu.Unlock()

		if started {
			cancel()
			c.Wait()
		}

		_ = c.latency.Flush()

		c.summary = Summary{
			Executed:  c.dispatcher.Executed(),
			Errors:    c.dispatcher.Errors(),
			Discarded: c.queue.Clear(),
		}

		c.logger.Info(logMsgErrorSummary,
			logAttrExecutedTotal, c.summary.Executed,
			logAttrErrorTotal, c.summary.Errors,
			logAttrDiscarded, c.summary.Discarded,
			logAttrOpenCount, c.tracker.Count())
		c.logger.Info(logMsgCoordinatorStopped)
	})

	return c.summary
}

// Err returns the failure that terminated a loop, the producer's first, or nil.
// Valid after Failed or Done is closed.
func (c *Coordinator) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()

	if c.producerErr != nil {
		return c.producerErr
	}

	return c.dispatcherErr
}

// RunID returns the id of this run.
func (c *Coordinator) RunID() uuid.UUID {
	return c.runID
}

// Tracker exposes the open-event state.
func (c *Coordinator) Tracker() *Tracker {
	return c.tracker
}

// Queue exposes the action queue.
func (c *Coordinator) Queue() *Queue {
	return c.queue
}

// Producer exposes the event producer.
func (c *Coordinator) Producer() *Producer {
	return c.producer
}

// Dispatcher exposes the batch dispatcher.
func (c *Coordinator) Dispatcher() *Dispatcher {
	return c.dispatcher
}

// Latency exposes the latency accumulators.
func (c *Coordinator) Latency() *LatencyRecorder {
	return c.latency
}

// runLogger attaches the run id to every record.
type runLogger struct {
	logger Logger
	runID  string
}

func (l runLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, append(args, logAttrRunID, l.runID)...)
}

func (l runLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, append(args, logAttrRunID, l.runID)...)
}

func (l runLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, append(args, logAttrRunID, l.runID)...)
}

func (l runLogger) Error(msg string, args ...any) {
	l.logger.Error(msg, append(args, logAttrRunID, l.runID)...)
}
