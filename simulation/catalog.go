package simulation

import (
	"errors"
	"fmt"
	"io"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// Classification tells whether a catalog entry produces alarm or warning events.
type Classification int

const (
	Alarm Classification = iota
	Warning
)

func (c Classification) String() string {
	switch c {
	case Alarm:
		return "alarm"
	case Warning:
		return "warning"
	default:
		return fmt.Sprintf("classification(%d)", int(c))
	}
}

// ParseClassification maps "alarm" or "warning" (case-insensitive) to a Classification.
func ParseClassification(s string) (Classification, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "alarm":
		return Alarm, nil
	case "warning":
		return Warning, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownClassification, s)
	}
}

// CatalogEntry is one threshold row an event can be opened against.
// Fields is passed through to the backend untouched.
type CatalogEntry struct {
	ThresholdID    int64
	Classification Classification
	Fields         map[string]any
}

// Catalog is an immutable, index-addressable list of entries.
// Entry indexes run from 0 to Len()-1 and are the keys the Tracker works with.
type Catalog struct {
	entries []CatalogEntry
}

// NewCatalog copies the given entries into a new Catalog.
func NewCatalog(entries []CatalogEntry) (Catalog, error) {
	if len(entries) == 0 {
		return Catalog{}, ErrEmptyCatalog
	}

	copied := make([]CatalogEntry, len(entries))
	copy(copied, entries)

	return Catalog{entries: copied}, nil
}

// Len returns the number of entries.
func (c Catalog) Len() int {
	return len(c.entries)
}

// Entry returns the entry at index.
func (c Catalog) Entry(index int) (CatalogEntry, error) {
	if index < 0 || index >= len(c.entries) {
		return CatalogEntry{}, ErrInvalidEntryIndex
	}

	return c.entries[index], nil
}

// Classification returns the classification of the entry at index without copying the entry.
func (c Catalog) Classification(index int) Classification {
	return c.entries[index].Classification
}

// CountByClassification returns how many entries carry the given classification.
func (c Catalog) CountByClassification(classification Classification) int {
	count := 0
	for _, entry := range c.entries {
		if entry.Classification == classification {
			count++
		}
	}

	return count
}

type catalogFileRow struct {
	ID             int64          `json:"id"`
	Classification string         `json:"classification"`
	Fields         map[string]any `json:"fields"`
}

// DecodeCatalog reads a JSON array of {"id", "classification", "fields"} objects.
func DecodeCatalog(r io.Reader) (Catalog, error) {
	var rows []catalogFileRow
	if err := jsoniter.ConfigFastest.NewDecoder(r).Decode(&rows); err != nil {
		return Catalog{}, fmt.Errorf("decoding catalog: %w", err)
	}

	entries := make([]CatalogEntry, 0, len(rows))
	for i, row := range rows {
		classification, err := ParseClassification(row.Classification)
		if err != nil {
			return Catalog{}, errors.Join(fmt.Errorf("catalog row %d", i), err)
		}

		entries = append(entries, CatalogEntry{
			ThresholdID:    row.ID,
			Classification: classification,
			Fields:         row.Fields,
		})
	}

	return NewCatalog(entries)
}
