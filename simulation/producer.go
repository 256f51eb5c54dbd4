package simulation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ProducerConfig wires a Producer. Random, Sleep, Now and Logger are optional.
type ProducerConfig struct {
	Catalog        Catalog
	Tracker        *Tracker
	Queue          *Queue
	Backend        Backend
	AverageDelayMS float64
	PercentAlarms  int
	Random         Random
	Sleep          SleepFunc
	Now            func() time.Time
	Logger         Logger
}

// Producer decides when the next event fires and what it is, and enqueues the matching Action.
// Firings are strictly sequential: the next delay is drawn only after the previous firing finished.
type Producer struct {
	catalog        Catalog
	tracker        *Tracker
	queue          *Queue
	backend        Backend
	averageDelayMS float64
	alarmRatio     float64
	random         Random
	sleep          SleepFunc
	now            func() time.Time
	logger         Logger
}

// NewProducer creates a Producer from cfg, filling in defaults for the optional parts.
func NewProducer(cfg ProducerConfig) *Producer {
	p := &Producer{
		catalog:        cfg.Catalog,
		tracker:        cfg.Tracker,
		queue:          cfg.Queue,
		backend:        cfg.Backend,
		averageDelayMS: cfg.AverageDelayMS,
		alarmRatio:     float64(cfg.PercentAlarms) / 100,
		random:         cfg.Random,
		sleep:          cfg.Sleep,
		now:            cfg.Now,
		logger:         cfg.Logger,
	}

	if p.random == nil {
		p.random = globalRandom{}
	}
	if p.sleep == nil {
		p.sleep = sleepContext
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.logger == nil {
		p.logger = noopLogger{}
	}

	return p
}

// NextDelayMS draws a normally distributed delay in milliseconds with mean AverageDelayMS and a
// standard deviation of 20% of the mean (Box-Muller). The result may be zero or negative.
func (p *Producer) NextDelayMS() float64 {
	u1 := 1 - p.random.Float64() // (0, 1], keeps the logarithm finite
	u2 := p.random.Float64()

	z := math.Sqrt(-2*math.Log(u1)) * math.Sin(2*math.Pi*u2)

	return p.averageDelayMS + relativeStdDev*p.averageDelayMS*z
}

// NextEventType returns Alarm with probability PercentAlarms/100, Warning otherwise.
func (p *Producer) NextEventType() Classification {
	if p.random.Float64() <= p.alarmRatio {
		return Alarm
	}

	return Warning
}

// Run fires events until ctx is done. A panic or an unexpected error ends the loop and is
// returned; the loop is not restarted.
func (p *Producer) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error(logMsgProducerPanicked, logAttrPanic, fmt.Sprint(r))
			err = fmt.Errorf("%w: %v", ErrProducerPanicked, r)
		}
	}()

	p.logger.Info(logMsgProducerStarted,
		logAttrAverageDelayMS, p.averageDelayMS,
		logAttrPercentAlarms, p.alarmRatio*100,
		logAttrCatalogSize, p.catalog.Len())

	for {
		if ctx.Err() != nil {
			break
		}

		if sleepErr := p.sleep(ctx, delayFromMS(p.NextDelayMS())); sleepErr != nil {
			break
		}

		if fireErr := p.Fire(ctx); fireErr != nil {
			if ctx.Err() != nil {
				break
			}

			p.logger.Error(logMsgProducerFailed, logAttrError, fireErr.Error())

			return fireErr
		}
	}

	p.logger.Info(logMsgProducerStopped)

	return nil
}

// Fire performs one firing: an open intent in Opening mode, a close intent in Closing mode.
func (p *Producer) Fire(ctx context.Context) error {
	if p.tracker.Mode() == Closing {
		return p.fireClose(ctx)
	}

	return p.fireOpen(ctx, p.NextEventType())
}

func (p *Producer) fireOpen(ctx context.Context, classification Classification) error {
	entryID, err := p.selectOpenTarget(ctx, classification)
	if err != nil {
		return err
	}

	entry, err := p.catalog.Entry(entryID)
	if err != nil {
		p.tracker.Release(entryID)
		return err
	}

	startedAt := p.now()
	key := fmt.Sprintf("open/%s/entry=%d/threshold=%d", classification, entryID, entry.ThresholdID)

	p.queue.Push(Action{
		Kind: ActionOpen,
		Key:  key,
		Run: func(ctx context.Context) error {
			recordID, openErr := p.backend.OpenRecord(ctx, entry, startedAt)
			if openErr != nil {
				p.tracker.Release(entryID)
				return openErr
			}

			if !p.tracker.TryOpen(entryID, recordID) {
				p.tracker.Release(entryID)
			}

			return nil
		},
	})

	p.logger.Debug(logMsgIntentQueued, logAttrKind, ActionOpen.String(), logAttrKey, key)

	return nil
}

// selectOpenTarget samples catalog indexes uniformly until it finds one that is neither open nor
// reserved and has the requested classification, then reserves it. There is no iteration cap;
// a catalog with no free entry of that classification keeps it searching until ctx is done.
func (p *Producer) selectOpenTarget(ctx context.Context, classification Classification) (int, error) {
	size := p.catalog.Len()

	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		candidate := p.random.IntN(size)

		if p.catalog.Classification(candidate) != classification {
			continue
		}

		if p.tracker.Reserve(candidate) {
			return candidate, nil
		}
	}
}

func (p *Producer) fireClose(ctx context.Context) error {
	entryID, recordID, err := p.tracker.SelectForClose(ctx, p.random)
	if errors.Is(err, ErrNothingOpen) {
		p.logger.Debug(logMsgCloseSkipped)
		return nil
	}
	if err != nil {
		return err
	}

	endedAt := p.now()
	key := fmt.Sprintf("close/entry=%d/record=%d", entryID, recordID)

	p.queue.Push(Action{
		Kind: ActionClose,
		Key:  key,
		Run: func(ctx context.Context) error {
			defer p.tracker.Release(entryID)

			return p.backend.CloseRecord(ctx, recordID, endedAt)
		},
	})

	p.logger.Debug(logMsgIntentQueued, logAttrKind, ActionClose.String(), logAttrKey, key)

	return nil
}

// delayFromMS truncates the millisecond value toward zero and clamps it at zero.
func delayFromMS(ms float64) time.Duration {
	if ms <= 0 || math.IsNaN(ms) {
		return 0
	}

	return time.Duration(int64(ms)) * time.Millisecond
}
