package simulation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/alarm-load-simulator/simulation"
)

// catalogOf builds a catalog with the alarm entries first, then the warning entries.
// Threshold ids start at 100.
func catalogOf(t *testing.T, alarms, warnings int) simulation.Catalog {
	t.Helper()

	entries := make([]simulation.CatalogEntry, 0, alarms+warnings)
	for i := 0; i < alarms+warnings; i++ {
		classification := simulation.Alarm
		if i >= alarms {
			classification = simulation.Warning
		}

		entries = append(entries, simulation.CatalogEntry{
			ThresholdID:    int64(100 + i),
			Classification: classification,
			Fields:         map[string]any{"sensor": i},
		})
	}

	catalog, err := simulation.NewCatalog(entries)
	require.NoError(t, err)

	return catalog
}

type panickingRandom struct{}

func (panickingRandom) Float64() float64 { panic("random source exhausted") }
func (panickingRandom) IntN(int) int     { panic("random source exhausted") }

var errSinkUnavailable = errors.New("sink unavailable")

type latencySinkSpy struct {
	mu      sync.Mutex
	calls   int
	inserts []time.Duration
	updates []time.Duration
	fail    bool
}

func (s *latencySinkSpy) WriteSamples(inserts, updates []time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.fail {
		return errSinkUnavailable
	}

	s.inserts = append(s.inserts, inserts...)
	s.updates = append(s.updates, updates...)

	return nil
}

func (s *latencySinkSpy) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

func (s *latencySinkSpy) Samples() (inserts, updates int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.inserts), len(s.updates)
}

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
