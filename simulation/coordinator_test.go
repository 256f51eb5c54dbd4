package simulation_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/alarm-load-simulator/simulation"
	"github.com/AntonStoeckl/alarm-load-simulator/testutil/helper"
)

func shortSleep(ctx context.Context, _ time.Duration) error {
	timer := time.NewTimer(time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func Test_AverageDelayMS_ShouldAccountForOpenAndCloseAction(t *testing.T) {
	assert.Equal(t, 500.0, simulation.AverageDelayMS(86400))
	assert.Equal(t, 1000.0, simulation.AverageDelayMS(43200))
	assert.InDelta(t, 43200.0, simulation.AverageDelayMS(1), 1e-9)
}

func Test_NewCoordinator_ShouldFail_WithInvalidInput(t *testing.T) {
	catalog := catalogOf(t, 1, 1)
	backend := helper.NewFakeBackend()
	valid := simulation.Params{FrequencyPerDay: 1000, PercentAlarms: 50}

	testCases := []struct {
		name        string
		create      func() (*simulation.Coordinator, error)
		expectedErr error
	}{
		{
			name: "zero frequency",
			create: func() (*simulation.Coordinator, error) {
				return simulation.NewCoordinator(simulation.Params{FrequencyPerDay: 0, PercentAlarms: 50}, catalog, backend)
			},
			expectedErr: simulation.ErrInvalidFrequency,
		},
		{
			name: "percent above 100",
			create: func() (*simulation.Coordinator, error) {
				return simulation.NewCoordinator(simulation.Params{FrequencyPerDay: 1, PercentAlarms: 101}, catalog, backend)
			},
			expectedErr: simulation.ErrInvalidPercentAlarms,
		},
		{
			name: "empty catalog",
			create: func() (*simulation.Coordinator, error) {
				return simulation.NewCoordinator(valid, simulation.Catalog{}, backend)
			},
			expectedErr: simulation.ErrEmptyCatalog,
		},
		{
			name: "nil backend",
			create: func() (*simulation.Coordinator, error) {
				return simulation.NewCoordinator(valid, catalog, nil)
			},
			expectedErr: simulation.ErrNilBackend,
		},
		{
			name: "negative high-water mark",
			create: func() (*simulation.Coordinator, error) {
				return simulation.NewCoordinator(valid, catalog, backend, simulation.WithHighWaterMark(-1))
			},
			expectedErr: simulation.ErrInvalidHighWaterMark,
		},
		{
			name: "zero max task count",
			create: func() (*simulation.Coordinator, error) {
				return simulation.NewCoordinator(valid, catalog, backend, simulation.WithMaxTaskCount(0))
			},
			expectedErr: simulation.ErrInvalidMaxTaskCount,
		},
		{
			name: "zero max parallel",
			create: func() (*simulation.Coordinator, error) {
				return simulation.NewCoordinator(valid, catalog, backend, simulation.WithMaxParallel(0))
			},
			expectedErr: simulation.ErrInvalidMaxParallel,
		},
		{
			name: "zero flush threshold",
			create: func() (*simulation.Coordinator, error) {
				return simulation.NewCoordinator(valid, catalog, backend, simulation.WithLatencyFlushThreshold(0))
			},
			expectedErr: simulation.ErrInvalidFlushThreshold,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			coordinator, err := tc.create()
			assert.Nil(t, coordinator)
			assert.ErrorIs(t, err, tc.expectedErr)
		})
	}
}

func Test_Coordinator_ShouldDeriveDelayAndPeriod_FromFrequency(t *testing.T) {
	coordinator, err := simulation.NewCoordinator(
		simulation.Params{FrequencyPerDay: 86400, PercentAlarms: 100},
		catalogOf(t, 3, 0),
		helper.NewFakeBackend(),
	)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, coordinator.Dispatcher().Period())
	assert.NotEqual(t, uuid.Nil, coordinator.RunID())
}

func Test_Coordinator_Start_ShouldFail_WhenAlreadyStarted(t *testing.T) {
	coordinator, err := simulation.NewCoordinator(
		simulation.Params{FrequencyPerDay: 86400, PercentAlarms: 50},
		catalogOf(t, 5, 5),
		helper.NewFakeBackend(),
		simulation.WithSleepFunc(shortSleep),
	)
	require.NoError(t, err)

	require.NoError(t, coordinator.Start(context.Background()))
	defer coordinator.Stop()

	assert.ErrorIs(t, coordinator.Start(context.Background()), simulation.ErrAlreadyStarted)
}

func Test_Coordinator_Stop_ShouldHaltLoops_DiscardQueue_AndFlushLatency(t *testing.T) {
	logHandler := helper.NewLogHandlerSpy(false)
	sink := &latencySinkSpy{}
	runID := uuid.New()

	coordinator, err := simulation.NewCoordinator(
		simulation.Params{FrequencyPerDay: 86400, PercentAlarms: 50},
		catalogOf(t, 20, 20),
		helper.NewFakeBackend(),
		simulation.WithSleepFunc(shortSleep),
		simulation.WithLogger(slog.New(logHandler)),
		simulation.WithLatencySink(sink),
		simulation.WithRunID(runID),
	)
	require.NoError(t, err)

	require.NoError(t, coordinator.Start(context.Background()))
	assert.Eventually(t, func() bool { return coordinator.Queue().Len() >= 3 }, 2*time.Second, time.Millisecond)

	coordinator.Latency().Record(simulation.ActionOpen, 4*time.Millisecond)
	summary := coordinator.Stop()

	select {
	case <-coordinator.Done():
	default:
		t.Fatal("loops must have exited when Stop returns")
	}

	assert.GreaterOrEqual(t, summary.Discarded, 3)
	assert.Equal(t, 0, coordinator.Queue().Len())
	assert.Equal(t, 1, sink.Calls(), "stop forces a final flush")
	assert.NoError(t, coordinator.Err())

	assert.True(t,
		logHandler.HasInfoLogWithMessage("simulation summary").
			WithInt("discarded", int64(summary.Discarded)).
			WithString("run_id", runID.String()).
			Assert())
	assert.True(t, logHandler.HasInfoLog("event producer stopped"))
	assert.True(t, logHandler.HasInfoLog("batch dispatcher stopped"))

	queuedAfterStop := coordinator.Queue().Len()
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, queuedAfterStop, coordinator.Queue().Len(), "no firing after stop")

	assert.Equal(t, summary, coordinator.Stop(), "later calls return the same summary")
}

func Test_Coordinator_Stop_ShouldWork_WithoutStart(t *testing.T) {
	coordinator, err := simulation.NewCoordinator(
		simulation.Params{FrequencyPerDay: 10, PercentAlarms: 50},
		catalogOf(t, 1, 1),
		helper.NewFakeBackend(),
	)
	require.NoError(t, err)

	assert.Equal(t, simulation.Summary{}, coordinator.Stop())
}

func Test_Coordinator_ShouldSignalFailure_WhenProducerPanics(t *testing.T) {
	coordinator, err := simulation.NewCoordinator(
		simulation.Params{FrequencyPerDay: 86400, PercentAlarms: 50},
		catalogOf(t, 1, 1),
		helper.NewFakeBackend(),
		simulation.WithRandom(panickingRandom{}),
		simulation.WithSleepFunc(noSleep),
	)
	require.NoError(t, err)
	require.NoError(t, coordinator.Start(context.Background()))

	select {
	case <-coordinator.Failed():
	case <-time.After(2 * time.Second):
		t.Fatal("producer failure was not signaled")
	}

	assert.ErrorIs(t, coordinator.Err(), simulation.ErrProducerPanicked)

	select {
	case <-coordinator.Done():
		t.Fatal("dispatcher must keep running after the producer failed")
	default:
	}

	coordinator.Stop()
	<-coordinator.Done()
}

// Drives producer and dispatcher step by step: one firing, then one tick.
func Test_Coordinator_ShouldOnlyOpenAlarms_AndToggleAboveHighWaterMark_WhenAllAlarms(t *testing.T) {
	backend := helper.NewFakeBackend()
	coordinator, err := simulation.NewCoordinator(
		simulation.Params{FrequencyPerDay: 86400, PercentAlarms: 100},
		catalogOf(t, 40, 20),
		backend,
		simulation.WithRandom(simulation.NewSeededRandom(2024)),
	)
	require.NoError(t, err)

	assert.Equal(t, 500.0, simulation.AverageDelayMS(86400))

	ctx := context.Background()
	producer := coordinator.Producer()
	dispatcher := coordinator.Dispatcher()
	tracker := coordinator.Tracker()
	queue := coordinator.Queue()

	toggled := false
	maxOpenBeforeToggle := 0
	openIntents := 0

	for step := 0; step < 400; step++ {
		require.NoError(t, producer.Fire(ctx))

		pending, _ := queue.DequeueUpTo(queue.Len())
		openIntents += keysWithPrefix(pending, "open/alarm/")
		assert.Zero(t, keysWithPrefix(pending, "open/warning/"))
		for _, action := range pending {
			queue.Push(action)
		}

		dispatcher.Tick(ctx)

		if tracker.Mode() == simulation.Closing {
			toggled = true
		}
		if !toggled && tracker.Count() > maxOpenBeforeToggle {
			maxOpenBeforeToggle = tracker.Count()
		}
		assert.LessOrEqual(t, tracker.Count(), 26)
	}

	assert.True(t, toggled, "closing mode must be reached")
	assert.LessOrEqual(t, maxOpenBeforeToggle, 26)
	assert.Positive(t, openIntents)
	assert.Positive(t, backend.CloseCalls())

	for _, entry := range backend.Opened() {
		assert.Equal(t, simulation.Alarm, entry.Classification)
	}

	assert.Equal(t, tracker.Count(), backend.OpenRecordCount())
	assert.Equal(t, int64(0), dispatcher.Errors())
}

func Test_Coordinator_ShouldLeaveTrackerUntouched_WhenBackendAlwaysFails(t *testing.T) {
	backend := helper.NewFakeBackend().FailOpen(true).FailClose(true)
	metrics := helper.NewMetricsCollectorSpy(true)
	coordinator, err := simulation.NewCoordinator(
		simulation.Params{FrequencyPerDay: 86400, PercentAlarms: 50},
		catalogOf(t, 10, 10),
		backend,
		simulation.WithRandom(simulation.NewSeededRandom(9)),
		simulation.WithMetrics(metrics),
	)
	require.NoError(t, err)

	ctx := context.Background()
	for step := 0; step < 60; step++ {
		require.NoError(t, coordinator.Producer().Fire(ctx))
		coordinator.Dispatcher().Tick(ctx)
	}

	assert.Equal(t, 0, coordinator.Tracker().Count())
	assert.Equal(t, simulation.Opening, coordinator.Tracker().Mode())
	assert.Equal(t, int64(60), coordinator.Dispatcher().Errors())
	assert.Equal(t, 60, backend.OpenCalls())
	assert.Equal(t, 0, backend.CloseCalls())
	assert.Equal(t, 60, metrics.CountCounterRecordsForMetric(simulation.MetricActionErrors))
}

func Test_Coordinator_ShouldNotPanic_WhenStartAndStopRace(t *testing.T) {
	for round := 0; round < 50; round++ {
		coordinator, err := simulation.NewCoordinator(
			simulation.Params{FrequencyPerDay: 86400, PercentAlarms: 50},
			catalogOf(t, 5, 5),
			helper.NewFakeBackend(),
			simulation.WithSleepFunc(shortSleep),
		)
		require.NoError(t, err)

		startErr := make(chan error, 1)
		assert.NotPanics(t, func() {
			go func() { startErr <- coordinator.Start(context.Background()) }()
			coordinator.Stop()
		})

		if err := <-startErr; err != nil {
			assert.ErrorIs(t, err, simulation.ErrAlreadyStopped)
			continue
		}

		select {
		case <-coordinator.Done():
		default:
			t.Fatalf("round %d: coordinator still running after Stop", round)
		}
	}
}

func Test_Coordinator_Start_ShouldFail_AfterStop(t *testing.T) {
	coordinator, err := simulation.NewCoordinator(
		simulation.Params{FrequencyPerDay: 86400, PercentAlarms: 50},
		catalogOf(t, 5, 5),
		helper.NewFakeBackend(),
	)
	require.NoError(t, err)

	coordinator.Stop()

	assert.ErrorIs(t, coordinator.Start(context.Background()), simulation.ErrAlreadyStopped)
}

func Test_Coordinator_Stop_ShouldLetInFlightActionsFinish_WhenBackendIsSlow(t *testing.T) {
	backend := helper.NewFakeBackend().WithLatency(200 * time.Millisecond)

	coordinator, err := simulation.NewCoordinator(
		simulation.Params{FrequencyPerDay: 864000, PercentAlarms: 50},
		catalogOf(t, 20, 20),
		backend,
		simulation.WithSleepFunc(shortSleep),
	)
	require.NoError(t, err)
	require.Equal(t, 500*time.Millisecond, coordinator.Dispatcher().Period())

	require.NoError(t, coordinator.Start(context.Background()))
	require.Eventually(t, func() bool { return backend.Pending() > 0 }, 3*time.Second, time.Millisecond)

	summary := coordinator.Stop()

	assert.Positive(t, summary.Executed)
	assert.Zero(t, summary.Errors, "stop must not cancel calls already running")
	assert.Equal(t, int(summary.Executed), backend.OpenRecordCount())
	assert.Equal(t, 0, backend.Pending())
}
