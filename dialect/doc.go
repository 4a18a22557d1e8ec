// Package dialect defines the database abstraction used by the SQL stores
// of stackgen, and the dialects they support.
//
// # Supported Dialects
//
//   - Postgres: PostgreSQL, through github.com/lib/pq
//   - MySQL: MySQL and MariaDB, through github.com/go-sql-driver/mysql
//   - SQLite: SQLite, through modernc.org/sqlite
//
// Queries are written with "?" bind parameters and rewritten for the
// target dialect by Rebind:
//
//	dialect.Rebind(dialect.Postgres, "SELECT id FROM t WHERE a = ? AND b = ?")
//	// SELECT id FROM t WHERE a = $1 AND b = $2
//
// # Driver Interface
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// The dialect/sql package implements Driver on top of database/sql.
package dialect
