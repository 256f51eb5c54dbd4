package simulation

import (
	"context"
	"time"
)

// Backend is the record-keeping system the simulation exercises.
// Both calls may be slow and may fail; the simulation never retries them.
type Backend interface {
	// OpenRecord creates an event record for the entry and returns the id the backend assigned.
	OpenRecord(ctx context.Context, entry CatalogEntry, startedAt time.Time) (int64, error)

	// CloseRecord sets the end time of a previously opened record.
	CloseRecord(ctx context.Context, recordID int64, endedAt time.Time) error
}
