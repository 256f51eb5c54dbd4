// Package postgresbackend provides a PostgreSQL implementation of simulation.Backend.
//
// Opening an event calls a stored function that inserts the event record and returns its id;
// closing calls a second stored function that sets the end time and reports whether a record
// was updated. The threshold catalog is read from a table with id, classification and fields.
//
// Multiple database adapters are supported (pgx, sql.DB, sqlx). With a pgx replica pool the
// catalog is read from the replica while all event writes go to the primary.
//
// Usage examples:
//
//	pool, _ := pgxpool.New(context.Background(), dsn)
//	backend, _ := postgresbackend.NewBackendFromPGXPool(pool)
//
//	// Custom function and table names, with logging
//	backend, _ := postgresbackend.NewBackendFromSQLDB(
//		db,
//		postgresbackend.WithOpenProcedure("open_alarm"),
//		postgresbackend.WithCloseProcedure("close_alarm"),
//		postgresbackend.WithCatalogTable("alarm_thresholds"),
//		postgresbackend.WithLogger(logger),
//	)
//
//	catalog, _ := backend.LoadCatalog(ctx)
package postgresbackend
