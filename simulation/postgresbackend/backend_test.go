package postgresbackend_test

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/alarm-load-simulator/simulation"
	"github.com/AntonStoeckl/alarm-load-simulator/simulation/postgresbackend"
	"github.com/AntonStoeckl/alarm-load-simulator/testutil/helper"
)

var startedAt = time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

func newMockedDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db, mock
}

func alarmEntry() simulation.CatalogEntry {
	return simulation.CatalogEntry{
		ThresholdID:    42,
		Classification: simulation.Alarm,
		Fields:         map[string]any{"zone": "north"},
	}
}

func Test_FactoryFunctions_ShouldFail_WithNilDatabaseConnection(t *testing.T) {
	testCases := []struct {
		name        string
		factoryFunc func() (*postgresbackend.Backend, error)
	}{
		{
			name: "NewBackendFromPGXPool with nil",
			factoryFunc: func() (*postgresbackend.Backend, error) {
				return postgresbackend.NewBackendFromPGXPool(nil)
			},
		},
		{
			name: "NewBackendFromPGXPoolAndReplica with nil",
			factoryFunc: func() (*postgresbackend.Backend, error) {
				return postgresbackend.NewBackendFromPGXPoolAndReplica(nil, nil)
			},
		},
		{
			name: "NewBackendFromSQLDB with nil",
			factoryFunc: func() (*postgresbackend.Backend, error) {
				return postgresbackend.NewBackendFromSQLDB(nil)
			},
		},
		{
			name: "NewBackendFromSQLX with nil",
			factoryFunc: func() (*postgresbackend.Backend, error) {
				return postgresbackend.NewBackendFromSQLX(nil)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			backend, err := tc.factoryFunc()
			assert.Nil(t, backend)
			assert.ErrorIs(t, err, postgresbackend.ErrNilDatabaseConnection)
		})
	}
}

func Test_Options_ShouldFail_WithInvalidNames(t *testing.T) {
	db, _ := newMockedDB(t)

	testCases := []struct {
		name        string
		option      postgresbackend.Option
		expectedErr error
	}{
		{"empty open procedure", postgresbackend.WithOpenProcedure(""), postgresbackend.ErrEmptyProcedureName},
		{"empty close procedure", postgresbackend.WithCloseProcedure(""), postgresbackend.ErrEmptyProcedureName},
		{"open procedure with sql", postgresbackend.WithOpenProcedure("x(); DROP TABLE y"), postgresbackend.ErrInvalidProcedureName},
		{"empty catalog table", postgresbackend.WithCatalogTable(""), postgresbackend.ErrEmptyCatalogTableName},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			backend, err := postgresbackend.NewBackendFromSQLDB(db, tc.option)
			assert.Nil(t, backend)
			assert.ErrorIs(t, err, tc.expectedErr)
		})
	}
}

func Test_OpenRecord_ShouldReturnRecordID_FromOpenProcedure(t *testing.T) {
	db, mock := newMockedDB(t)
	backend, err := postgresbackend.NewBackendFromSQLDB(db)
	assert.NoError(t, err)

	mock.ExpectQuery(`SELECT open_threshold_event\(42::bigint, 'alarm'::text, '\{"zone":"north"\}'::jsonb, '2024-03-01T12:30:00Z'::timestamp with time zone\) AS "record_id"`).
		WillReturnRows(sqlmock.NewRows([]string{"record_id"}).AddRow(int64(1001)))

	recordID, err := backend.OpenRecord(context.Background(), alarmEntry(), startedAt)

	assert.NoError(t, err)
	assert.Equal(t, int64(1001), recordID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_OpenRecord_ShouldSendEmptyObject_WhenEntryHasNoFields(t *testing.T) {
	db, mock := newMockedDB(t)
	backend, err := postgresbackend.NewBackendFromSQLDB(db)
	assert.NoError(t, err)

	mock.ExpectQuery(`open_threshold_event\(7::bigint, 'warning'::text, '\{\}'::jsonb`).
		WillReturnRows(sqlmock.NewRows([]string{"record_id"}).AddRow(int64(5)))

	entry := simulation.CatalogEntry{ThresholdID: 7, Classification: simulation.Warning}
	_, err = backend.OpenRecord(context.Background(), entry, startedAt)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_OpenRecord_ShouldUseConfiguredProcedure(t *testing.T) {
	db, mock := newMockedDB(t)
	backend, err := postgresbackend.NewBackendFromSQLX(
		sqlx.NewDb(db, "sqlmock"),
		postgresbackend.WithOpenProcedure("alarms.open_event"),
	)
	assert.NoError(t, err)

	mock.ExpectQuery(`SELECT alarms\.open_event\(`).
		WillReturnRows(sqlmock.NewRows([]string{"record_id"}).AddRow(int64(9)))

	recordID, err := backend.OpenRecord(context.Background(), alarmEntry(), startedAt)

	assert.NoError(t, err)
	assert.Equal(t, int64(9), recordID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_OpenRecord_ShouldFail_WhenQueryFails(t *testing.T) {
	db, mock := newMockedDB(t)
	logHandler := helper.NewLogHandlerSpy(false)
	backend, err := postgresbackend.NewBackendFromSQLDB(db, postgresbackend.WithLogger(slog.New(logHandler)))
	assert.NoError(t, err)

	dbErr := errors.New("connection reset")
	mock.ExpectQuery(`open_threshold_event\(`).WillReturnError(dbErr)

	_, err = backend.OpenRecord(context.Background(), alarmEntry(), startedAt)

	assert.ErrorIs(t, err, postgresbackend.ErrOpenRecordFailed)
	assert.ErrorIs(t, err, dbErr)
	assert.True(t, logHandler.HasErrorLog("database query execution failed"))
	assert.True(t, logHandler.HasDebugLogWithMessage("executed sql for: open").WithDurationMS().Assert())
}

func Test_OpenRecord_ShouldFail_WhenProcedureReturnsNoRow(t *testing.T) {
	db, mock := newMockedDB(t)
	backend, err := postgresbackend.NewBackendFromSQLDB(db)
	assert.NoError(t, err)

	mock.ExpectQuery(`open_threshold_event\(`).WillReturnRows(sqlmock.NewRows([]string{"record_id"}))

	_, err = backend.OpenRecord(context.Background(), alarmEntry(), startedAt)

	assert.ErrorIs(t, err, postgresbackend.ErrOpenRecordFailed)
	assert.ErrorIs(t, err, postgresbackend.ErrNoRowReturned)
}

func Test_CloseRecord_ShouldSucceed_WhenProcedureReturnsTrue(t *testing.T) {
	db, mock := newMockedDB(t)
	backend, err := postgresbackend.NewBackendFromSQLDB(db)
	assert.NoError(t, err)

	mock.ExpectQuery(`SELECT close_threshold_event\(1001::bigint, '2024-03-01T12:30:00Z'::timestamp with time zone\) AS "closed"`).
		WillReturnRows(sqlmock.NewRows([]string{"closed"}).AddRow(true))

	err = backend.CloseRecord(context.Background(), 1001, startedAt)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_CloseRecord_ShouldFailWithRejected_WhenProcedureReturnsFalse(t *testing.T) {
	db, mock := newMockedDB(t)
	backend, err := postgresbackend.NewBackendFromSQLDB(db)
	assert.NoError(t, err)

	mock.ExpectQuery(`close_threshold_event\(`).
		WillReturnRows(sqlmock.NewRows([]string{"closed"}).AddRow(false))

	err = backend.CloseRecord(context.Background(), 1001, startedAt)

	assert.ErrorIs(t, err, postgresbackend.ErrCloseRecordFailed)
	assert.ErrorIs(t, err, postgresbackend.ErrCloseRejected)
}

func Test_CloseRecord_ShouldFail_WhenQueryFails(t *testing.T) {
	db, mock := newMockedDB(t)
	backend, err := postgresbackend.NewBackendFromSQLDB(db)
	assert.NoError(t, err)

	mock.ExpectQuery(`close_threshold_event\(`).WillReturnError(sql.ErrConnDone)

	err = backend.CloseRecord(context.Background(), 3, startedAt)

	assert.ErrorIs(t, err, postgresbackend.ErrCloseRecordFailed)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func Test_LoadCatalog_ShouldReturnEntriesInIDOrder(t *testing.T) {
	db, mock := newMockedDB(t)
	logHandler := helper.NewLogHandlerSpy(false)
	backend, err := postgresbackend.NewBackendFromSQLX(
		sqlx.NewDb(db, "sqlmock"),
		postgresbackend.WithCatalogTable("alarm_thresholds"),
		postgresbackend.WithLogger(slog.New(logHandler)),
	)
	assert.NoError(t, err)

	rows := sqlmock.NewRows([]string{"id", "classification", "fields"}).
		AddRow(int64(1), "alarm", []byte(`{"zone":"north","limit":80}`)).
		AddRow(int64(2), "WARNING", []byte(`{}`)).
		AddRow(int64(3), "warning", nil)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id", "classification", "fields" FROM "alarm_thresholds" ORDER BY "id" ASC`)).
		WillReturnRows(rows)

	catalog, err := backend.LoadCatalog(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 3, catalog.Len())
	assert.Equal(t, 1, catalog.CountByClassification(simulation.Alarm))
	assert.Equal(t, 2, catalog.CountByClassification(simulation.Warning))

	first, err := catalog.Entry(0)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), first.ThresholdID)
	assert.Equal(t, "north", first.Fields["zone"])

	third, err := catalog.Entry(2)
	assert.NoError(t, err)
	assert.Nil(t, third.Fields)

	assert.True(t, logHandler.HasInfoLogWithMessage("threshold catalog loaded").WithInt("entry_count", 3).Assert())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_LoadCatalog_ShouldFail_WhenTableIsEmpty(t *testing.T) {
	db, mock := newMockedDB(t)
	backend, err := postgresbackend.NewBackendFromSQLDB(db)
	assert.NoError(t, err)

	mock.ExpectQuery(`FROM "thresholds"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "classification", "fields"}))

	_, err = backend.LoadCatalog(context.Background())

	assert.ErrorIs(t, err, postgresbackend.ErrLoadingCatalogFailed)
	assert.ErrorIs(t, err, simulation.ErrEmptyCatalog)
}

func Test_LoadCatalog_ShouldFail_WithUnknownClassification(t *testing.T) {
	db, mock := newMockedDB(t)
	backend, err := postgresbackend.NewBackendFromSQLDB(db)
	assert.NoError(t, err)

	mock.ExpectQuery(`FROM "thresholds"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "classification", "fields"}).AddRow(int64(1), "notice", []byte(`{}`)))

	_, err = backend.LoadCatalog(context.Background())

	assert.ErrorIs(t, err, postgresbackend.ErrLoadingCatalogFailed)
	assert.ErrorIs(t, err, simulation.ErrUnknownClassification)
}

func Test_LoadCatalog_ShouldFail_WithMalformedFields(t *testing.T) {
	db, mock := newMockedDB(t)
	backend, err := postgresbackend.NewBackendFromSQLDB(db)
	assert.NoError(t, err)

	mock.ExpectQuery(`FROM "thresholds"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "classification", "fields"}).AddRow(int64(1), "alarm", []byte(`{not json`)))

	_, err = backend.LoadCatalog(context.Background())

	assert.ErrorIs(t, err, postgresbackend.ErrLoadingCatalogFailed)
}

func Test_Backend_ShouldSatisfySimulationBackend(t *testing.T) {
	db, _ := newMockedDB(t)
	backend, err := postgresbackend.NewBackendFromSQLDB(db)
	assert.NoError(t, err)

	var _ simulation.Backend = backend
}
