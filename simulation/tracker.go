package simulation

import (
	"context"
	"sync"
	"sync/atomic"
)

// Tracker holds which catalog entries currently have an open event, mapped to the record id
// the backend assigned on open, together with the global Opening/Closing Mode.
//
// An entry is open only after its open call succeeded. While an open call is in flight the
// entry is reserved, so it can neither be picked for another open nor for a close.
// Closing removes an entry from the open set at selection time, before the close call runs; a
// failed close therefore still leaves the entry treated as closed. The entry stays reserved
// until the close call returns, so no open for it is queued meanwhile.
//
// Mode changes are decided under the same lock as the open set they depend on.
type Tracker struct {
	mu            sync.Mutex
	open          map[int]int64
	reserved      map[int]struct{}
	maxEntryID    int
	highWaterMark int
	mode          atomic.Int32
	logger        Logger
}

// NewTracker creates an empty Tracker in Opening mode.
// Once more than highWaterMark entries are open the mode switches to Closing.
func NewTracker(highWaterMark int, logger Logger) *Tracker {
	if logger == nil {
		logger = noopLogger{}
	}

	return &Tracker{
		open:          make(map[int]int64),
		reserved:      make(map[int]struct{}),
		maxEntryID:    -1,
		highWaterMark: highWaterMark,
		logger:        logger,
	}
}

// Mode returns the current generator mode.
func (t *Tracker) Mode() Mode {
	return Mode(t.mode.Load())
}

func (t *Tracker) switchMode(to Mode, openCount int) {
	if Mode(t.mode.Swap(int32(to))) != to {
		t.logger.Debug(logMsgModeSwitched, logAttrMode, to.String(), logAttrOpenCount, openCount)
	}
}

// IsOpen reports whether entryID currently has an open event.
func (t *Tracker) IsOpen(entryID int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.open[entryID]

	return ok
}

// Reserve marks entryID as having an open call in flight.
// It returns false without mutating anything if the entry is open or already reserved.
func (t *Tracker) Reserve(entryID int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.busy(entryID) {
		return false
	}

	t.reserved[entryID] = struct{}{}

	return true
}

// Release drops the reservation of entryID, after a failed open call or a finished close call.
func (t *Tracker) Release(entryID int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.reserved, entryID)
}

func (t *Tracker) busy(entryID int) bool {
	if _, ok := t.open[entryID]; ok {
		return true
	}

	_, ok := t.reserved[entryID]

	return ok
}

// TryOpen records entryID as open with the given backend record id.
// It returns false if the entry is already open, leaving the state untouched.
// A successful open drops the entry's reservation, raises the max entry id, and switches
// the mode to Closing once the open count exceeds the high-water mark.
func (t *Tracker) TryOpen(entryID int, recordID int64) bool {
	t.mu.Lock()

	if _, ok := t.open[entryID]; ok {
		t.mu.Unlock()
		return false
	}

	t.open[entryID] = recordID
	delete(t.reserved, entryID)
	t.updateMaxID(entryID)

	if count := len(t.open); count > t.highWaterMark {
		t.switchMode(Closing, count)
	}

	t.mu.Unlock()

	return true
}

// SelectForClose removes a random open entry and returns it with its backend record id.
// Candidates are sampled uniformly from [0, maxEntryID] until one hits an open entry; there is
// no iteration cap, only ctx ends the search early. It returns ErrNothingOpen if nothing is open.
// The selected entry is reserved until the caller releases it once the close call returned.
// Every successful selection switches the mode back to Opening, and so does finding nothing open.
func (t *Tracker) SelectForClose(ctx context.Context, random Random) (int, int64, error) {
	t.mu.Lock()
	if len(t.open) == 0 {
		t.switchMode(Opening, 0)
		t.mu.Unlock()
		return 0, 0, ErrNothingOpen
	}
	upper := t.maxEntryID + 1
	t.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}

		candidate := random.IntN(upper)

		t.mu.Lock()
		recordID, ok := t.open[candidate]
		if ok {
			delete(t.open, candidate)
			t.reserved[candidate] = struct{}{}
			t.switchMode(Opening, len(t.open))
			t.mu.Unlock()

			return candidate, recordID, nil
		}
		if len(t.open) == 0 {
			t.switchMode(Opening, 0)
			t.mu.Unlock()
			return 0, 0, ErrNothingOpen
		}
		t.mu.Unlock()
	}
}

// Count returns the number of open entries.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.open)
}

// UpdateMaxID raises the max entry id to entryID if it is larger. It never decreases.
func (t *Tracker) UpdateMaxID(entryID int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.updateMaxID(entryID)
}

func (t *Tracker) updateMaxID(entryID int) {
	if entryID > t.maxEntryID {
		t.maxEntryID = entryID
	}
}

// MaxEntryID returns the largest entry id ever opened, or -1 if none was.
func (t *Tracker) MaxEntryID() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.maxEntryID
}
