// Package sql implements dialect.Driver on top of database/sql.
//
// Statements are written with "?" bind parameters; Conn rebinds them for the
// dialect of the connection before they reach the database:
//
//	drv, err := sql.Open(dialect.Postgres, dsn)
//	if err != nil {
//	    return err
//	}
//	var rows sql.Rows
//	err = drv.Query(ctx, "SELECT id FROM principals WHERE issuer = ? AND subject = ?", []any{iss, sub}, &rows)
//
// StatsDriver wraps any dialect.Driver with statement counters, exported as
// prometheus metrics, and slow query logging.
package sql
