package postgresbackend

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // driver import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/alarm-load-simulator/simulation"
	"github.com/AntonStoeckl/alarm-load-simulator/simulation/postgresbackend/internal/adapters"
)

var ErrNilDatabaseConnection = errors.New("database connection must not be nil")
var ErrEmptyProcedureName = errors.New("empty procedure name supplied")
var ErrInvalidProcedureName = errors.New("procedure name must be a plain or schema-qualified identifier")
var ErrEmptyCatalogTableName = errors.New("empty catalog table name supplied")
var ErrBuildingQueryFailed = errors.New("building query failed")
var ErrEncodingFieldsFailed = errors.New("encoding catalog fields failed")
var ErrOpenRecordFailed = errors.New("opening event record failed")
var ErrCloseRecordFailed = errors.New("closing event record failed")
var ErrCloseRejected = errors.New("close procedure did not update any record")
var ErrNoRowReturned = errors.New("procedure returned no row")
var ErrLoadingCatalogFailed = errors.New("loading threshold catalog failed")

const (
	DefaultOpenProcedure  = "open_threshold_event"
	DefaultCloseProcedure = "close_threshold_event"
	DefaultCatalogTable   = "thresholds"

	logMsgBuildQueryFailed  = "failed to build query"
	logMsgDBQueryFailed     = "database query execution failed"
	logMsgCloseRowsFailed   = "failed to close database rows"
	logMsgScanRowFailed     = "failed to scan database row"
	logMsgCatalogLoaded     = "threshold catalog loaded"
	logMsgSQLExecuted       = "executed sql for: "
	logAttrError            = "error"
	logAttrQuery            = "query"
	logAttrDurationMS       = "duration_ms"
	logAttrEntryCount       = "entry_count"
	logAttrRecordID         = "record_id"
	logActionOpen           = "open"
	logActionClose          = "close"
	logActionCatalog        = "catalog"
	colID                   = "id"
	colClassification       = "classification"
	colFields               = "fields"
	aliasRecordID           = "record_id"
	aliasClosed             = "closed"
	dialectPostgres         = "postgres"
	castBigint              = "?::bigint"
	castText                = "?::text"
	castTimestamp           = "?::timestamp with time zone"
	castJsonb               = "?::jsonb"
	emptyJSONObject         = "{}"
)

// Backend implements simulation.Backend on PostgreSQL stored functions.
type Backend struct {
	db             adapters.DBAdapter
	openProcedure  string
	closeProcedure string
	catalogTable   string
	logger         Logger
}

// NewBackendFromPGXPool creates a new Backend using a pgx Pool with optional configuration.
func NewBackendFromPGXPool(db *pgxpool.Pool, options ...Option) (*Backend, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newBackend(adapters.NewPGXAdapter(db), options...)
}

// NewBackendFromPGXPoolAndReplica creates a new Backend that reads the catalog from the replica pool
// and sends every event write to the primary pool.
func NewBackendFromPGXPoolAndReplica(primary *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (*Backend, error) {
	if primary == nil || replica == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newBackend(adapters.NewPGXAdapterWithReplica(primary, replica), options...)
}

// NewBackendFromSQLDB creates a new Backend using a sql.DB with optional configuration.
func NewBackendFromSQLDB(db *sql.DB, options ...Option) (*Backend, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newBackend(adapters.NewSQLAdapter(db), options...)
}

// NewBackendFromSQLX creates a new Backend using a sqlx.DB with optional configuration.
func NewBackendFromSQLX(db *sqlx.DB, options ...Option) (*Backend, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newBackend(adapters.NewSQLXAdapter(db), options...)
}

func newBackend(db adapters.DBAdapter, options ...Option) (*Backend, error) {
	b := &Backend{
		db:             db,
		openProcedure:  DefaultOpenProcedure,
		closeProcedure: DefaultCloseProcedure,
		catalogTable:   DefaultCatalogTable,
	}

	for _, option := range options {
		if err := option(b); err != nil {
			return nil, err
		}
	}

	return b, nil
}

// OpenRecord calls the open procedure for the entry and returns the record id it produced.
func (b *Backend) OpenRecord(ctx context.Context, entry simulation.CatalogEntry, startedAt time.Time) (int64, error) {
	sqlQuery, buildErr := b.buildOpenQuery(entry, startedAt)
	if buildErr != nil {
		return 0, errors.Join(ErrOpenRecordFailed, buildErr)
	}

	var recordID int64
	if err := b.queryScalar(ctx, sqlQuery, logActionOpen, &recordID); err != nil {
		return 0, errors.Join(ErrOpenRecordFailed, err)
	}

	return recordID, nil
}

// CloseRecord calls the close procedure for the record. A false result yields ErrCloseRejected.
func (b *Backend) CloseRecord(ctx context.Context, recordID int64, endedAt time.Time) error {
	sqlQuery, buildErr := b.buildCloseQuery(recordID, endedAt)
	if buildErr != nil {
		return errors.Join(ErrCloseRecordFailed, buildErr)
	}

	var closed bool
	if err := b.queryScalar(ctx, sqlQuery, logActionClose, &closed); err != nil {
		return errors.Join(ErrCloseRecordFailed, err)
	}

	if !closed {
		return errors.Join(ErrCloseRecordFailed, ErrCloseRejected)
	}

	return nil
}

// LoadCatalog reads all threshold rows ordered by id. The row order defines the entry indexes.
func (b *Backend) LoadCatalog(ctx context.Context) (simulation.Catalog, error) {
	sqlQuery, _, toSQLErr := goqu.Dialect(dialectPostgres).
		From(b.catalogTable).
		Select(colID, colClassification, colFields).
		Order(goqu.I(colID).Asc()).
		ToSQL()
	if toSQLErr != nil {
		b.logError(logMsgBuildQueryFailed, logAttrError, toSQLErr.Error())
		return simulation.Catalog{}, errors.Join(ErrLoadingCatalogFailed, ErrBuildingQueryFailed, toSQLErr)
	}

	start := time.Now()
	rows, queryErr := b.db.Query(ctx, sqlQuery)
	b.logQueryWithDuration(sqlQuery, logActionCatalog, time.Since(start))
	if queryErr != nil {
		b.logError(logMsgDBQueryFailed, logAttrError, queryErr.Error(), logAttrQuery, sqlQuery)
		return simulation.Catalog{}, errors.Join(ErrLoadingCatalogFailed, queryErr)
	}
	defer b.closeRows(rows)

	entries := make([]simulation.CatalogEntry, 0)
	for rows.Next() {
		var (
			id             int64
			classification string
			fieldsJSON     []byte
		)

		if scanErr := rows.Scan(&id, &classification, &fieldsJSON); scanErr != nil {
			b.logError(logMsgScanRowFailed, logAttrError, scanErr.Error())
			return simulation.Catalog{}, errors.Join(ErrLoadingCatalogFailed, scanErr)
		}

		entry, buildErr := buildCatalogEntry(id, classification, fieldsJSON)
		if buildErr != nil {
			return simulation.Catalog{}, errors.Join(ErrLoadingCatalogFailed, buildErr)
		}

		entries = append(entries, entry)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return simulation.Catalog{}, errors.Join(ErrLoadingCatalogFailed, rowsErr)
	}

	catalog, err := simulation.NewCatalog(entries)
	if err != nil {
		return simulation.Catalog{}, errors.Join(ErrLoadingCatalogFailed, err)
	}

	if b.logger != nil {
		b.logger.Info(logMsgCatalogLoaded, logAttrEntryCount, catalog.Len())
	}

	return catalog, nil
}

func buildCatalogEntry(id int64, classification string, fieldsJSON []byte) (simulation.CatalogEntry, error) {
	parsed, err := simulation.ParseClassification(classification)
	if err != nil {
		return simulation.CatalogEntry{}, err
	}

	var fields map[string]any
	if len(fieldsJSON) > 0 {
		if unmarshalErr := jsoniter.ConfigFastest.Unmarshal(fieldsJSON, &fields); unmarshalErr != nil {
			return simulation.CatalogEntry{}, unmarshalErr
		}
	}

	return simulation.CatalogEntry{
		ThresholdID:    id,
		Classification: parsed,
		Fields:         fields,
	}, nil
}

func (b *Backend) buildOpenQuery(entry simulation.CatalogEntry, startedAt time.Time) (string, error) {
	payload := emptyJSONObject
	if entry.Fields != nil {
		encoded, marshalErr := jsoniter.ConfigFastest.Marshal(entry.Fields)
		if marshalErr != nil {
			return "", errors.Join(ErrEncodingFieldsFailed, marshalErr)
		}
		payload = string(encoded)
	}

	sqlQuery, _, toSQLErr := goqu.Dialect(dialectPostgres).
		Select(
			goqu.Func(
				b.openProcedure,
				goqu.L(castBigint, entry.ThresholdID),
				goqu.L(castText, entry.Classification.String()),
				goqu.L(castJsonb, payload),
				goqu.L(castTimestamp, startedAt.UTC()),
			).As(aliasRecordID),
		).
		ToSQL()
	if toSQLErr != nil {
		b.logError(logMsgBuildQueryFailed, logAttrError, toSQLErr.Error())
		return "", errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (b *Backend) buildCloseQuery(recordID int64, endedAt time.Time) (string, error) {
	sqlQuery, _, toSQLErr := goqu.Dialect(dialectPostgres).
		Select(
			goqu.Func(
				b.closeProcedure,
				goqu.L(castBigint, recordID),
				goqu.L(castTimestamp, endedAt.UTC()),
			).As(aliasClosed),
		).
		ToSQL()
	if toSQLErr != nil {
		b.logError(logMsgBuildQueryFailed, logAttrError, toSQLErr.Error(), logAttrRecordID, recordID)
		return "", errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// queryScalar runs a single-row, single-column statement on the primary and scans the value into dest.
func (b *Backend) queryScalar(ctx context.Context, sqlQuery string, action string, dest any) error {
	start := time.Now()
	rows, queryErr := b.db.QueryPrimary(ctx, sqlQuery)
	duration := time.Since(start)
	b.logQueryWithDuration(sqlQuery, action, duration)

	if queryErr != nil {
		b.logError(logMsgDBQueryFailed, logAttrError, queryErr.Error(), logAttrQuery, sqlQuery)
		return queryErr
	}
	defer b.closeRows(rows)

	if !rows.Next() {
		if rowsErr := rows.Err(); rowsErr != nil {
			b.logError(logMsgDBQueryFailed, logAttrError, rowsErr.Error(), logAttrQuery, sqlQuery)
			return rowsErr
		}

		return ErrNoRowReturned
	}

	if scanErr := rows.Scan(dest); scanErr != nil {
		b.logError(logMsgScanRowFailed, logAttrError, scanErr.Error())
		return scanErr
	}

	return nil
}

// closeRows safely closes database rows and logs any errors.
func (b *Backend) closeRows(rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		if b.logger != nil {
			b.logger.Warn(logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		}
	}
}

func (b *Backend) logError(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Error(msg, args...)
	}
}

// logQueryWithDuration logs SQL statements with execution time at debug level if the logger is configured.
func (b *Backend) logQueryWithDuration(sqlQuery string, action string, duration time.Duration) {
	if b.logger != nil {
		b.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, durationToMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// durationToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func durationToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
