package simulation_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/alarm-load-simulator/simulation"
)

func Test_ParseClassification_ShouldIgnoreCaseAndSpace(t *testing.T) {
	alarm, err := simulation.ParseClassification(" Alarm ")
	assert.NoError(t, err)
	assert.Equal(t, simulation.Alarm, alarm)

	warning, err := simulation.ParseClassification("WARNING")
	assert.NoError(t, err)
	assert.Equal(t, simulation.Warning, warning)

	_, err = simulation.ParseClassification("notice")
	assert.ErrorIs(t, err, simulation.ErrUnknownClassification)
}

func Test_NewCatalog_ShouldFail_WhenEmpty(t *testing.T) {
	_, err := simulation.NewCatalog(nil)

	assert.ErrorIs(t, err, simulation.ErrEmptyCatalog)
}

func Test_NewCatalog_ShouldCopyEntries(t *testing.T) {
	entries := []simulation.CatalogEntry{{ThresholdID: 1, Classification: simulation.Alarm}}
	catalog, err := simulation.NewCatalog(entries)
	require.NoError(t, err)

	entries[0].ThresholdID = 99

	entry, err := catalog.Entry(0)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), entry.ThresholdID)
}

func Test_Catalog_Entry_ShouldFail_WhenIndexIsOutOfRange(t *testing.T) {
	catalog := catalogOf(t, 2, 1)

	_, err := catalog.Entry(3)
	assert.ErrorIs(t, err, simulation.ErrInvalidEntryIndex)

	_, err = catalog.Entry(-1)
	assert.ErrorIs(t, err, simulation.ErrInvalidEntryIndex)
}

func Test_Catalog_CountByClassification(t *testing.T) {
	catalog := catalogOf(t, 4, 3)

	assert.Equal(t, 7, catalog.Len())
	assert.Equal(t, 4, catalog.CountByClassification(simulation.Alarm))
	assert.Equal(t, 3, catalog.CountByClassification(simulation.Warning))
	assert.Equal(t, simulation.Warning, catalog.Classification(6))
}

func Test_DecodeCatalog_ShouldKeepFileOrder(t *testing.T) {
	input := `[
		{"id": 10, "classification": "warning", "fields": {"zone": "east"}},
		{"id": 3, "classification": "alarm"}
	]`

	catalog, err := simulation.DecodeCatalog(strings.NewReader(input))
	require.NoError(t, err)

	first, err := catalog.Entry(0)
	assert.NoError(t, err)
	assert.Equal(t, int64(10), first.ThresholdID)
	assert.Equal(t, simulation.Warning, first.Classification)
	assert.Equal(t, "east", first.Fields["zone"])

	second, err := catalog.Entry(1)
	assert.NoError(t, err)
	assert.Equal(t, simulation.Alarm, second.Classification)
	assert.Nil(t, second.Fields)
}

func Test_DecodeCatalog_ShouldFail_WithUnknownClassification(t *testing.T) {
	_, err := simulation.DecodeCatalog(strings.NewReader(`[{"id": 1, "classification": "info"}]`))

	assert.ErrorIs(t, err, simulation.ErrUnknownClassification)
}

func Test_DecodeCatalog_ShouldFail_WithMalformedJSON(t *testing.T) {
	_, err := simulation.DecodeCatalog(strings.NewReader(`[{"id": 1,`))

	assert.Error(t, err)
}

func Test_DecodeCatalog_ShouldFail_WithEmptyArray(t *testing.T) {
	_, err := simulation.DecodeCatalog(strings.NewReader(`[]`))

	assert.ErrorIs(t, err, simulation.ErrEmptyCatalog)
}
