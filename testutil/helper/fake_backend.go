package helper

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/AntonStoeckl/alarm-load-simulator/simulation"
)

// ErrFakeBackendFailure is returned by a FakeBackend configured to fail.
var ErrFakeBackendFailure = errors.New("fake backend failure")

// FakeBackend is an in-memory simulation.Backend. Record ids are handed out sequentially from 1.
// Failures and latency can be configured per operation.
type FakeBackend struct {
	mu           sync.Mutex
	nextRecordID int64
	openRecords  map[int64]simulation.CatalogEntry
	openCalls    int
	closeCalls   int
	failOpen     bool
	failClose    bool
	latency      time.Duration
	pending      int
	opened       []simulation.CatalogEntry
	closed       []int64
}

// NewFakeBackend creates a FakeBackend that succeeds on every call.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		openRecords: make(map[int64]simulation.CatalogEntry),
	}
}

// FailOpen makes every subsequent OpenRecord call fail (or succeed again with false).
func (b *FakeBackend) FailOpen(fail bool) *FakeBackend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failOpen = fail

	return b
}

// FailClose makes every subsequent CloseRecord call fail (or succeed again with false).
func (b *FakeBackend) FailClose(fail bool) *FakeBackend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failClose = fail

	return b
}

// WithLatency makes every call block for d, or until ctx is done.
func (b *FakeBackend) WithLatency(d time.Duration) *FakeBackend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latency = d

	return b
}

// OpenRecord implements simulation.Backend.
func (b *FakeBackend) OpenRecord(ctx context.Context, entry simulation.CatalogEntry, _ time.Time) (int64, error) {
	if err := b.wait(ctx); err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.openCalls++
	if b.failOpen {
		return 0, ErrFakeBackendFailure
	}

	b.nextRecordID++
	b.openRecords[b.nextRecordID] = entry
	b.opened = append(b.opened, entry)

	return b.nextRecordID, nil
}

// CloseRecord implements simulation.Backend.
func (b *FakeBackend) CloseRecord(ctx context.Context, recordID int64, _ time.Time) error {
	if err := b.wait(ctx); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.closeCalls++
	if b.failClose {
		return ErrFakeBackendFailure
	}

	delete(b.openRecords, recordID)
	b.closed = append(b.closed, recordID)

	return nil
}

// Pending returns how many calls are currently blocked in their configured latency.
func (b *FakeBackend) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.pending
}

// OpenCalls returns how often OpenRecord was called, failed calls included.
func (b *FakeBackend) OpenCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.openCalls
}

// CloseCalls returns how often CloseRecord was called, failed calls included.
func (b *FakeBackend) CloseCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.closeCalls
}

// OpenRecordCount returns the number of records opened and not closed yet.
func (b *FakeBackend) OpenRecordCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.openRecords)
}

// Opened returns a copy of the entries of all successful OpenRecord calls, in call order.
func (b *FakeBackend) Opened() []simulation.CatalogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]simulation.CatalogEntry(nil), b.opened...)
}

// Closed returns a copy of the record ids of all successful CloseRecord calls, in call order.
func (b *FakeBackend) Closed() []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]int64(nil), b.closed...)
}

func (b *FakeBackend) wait(ctx context.Context) error {
	b.mu.Lock()
	latency := b.latency
	b.mu.Unlock()

	if latency <= 0 {
		return nil
	}

	b.mu.Lock()
	b.pending++
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.pending--
		b.mu.Unlock()
	}()

	timer := time.NewTimer(latency)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ simulation.Backend = (*FakeBackend)(nil)
