package dialect

import (
	"context"
	"strconv"
	"strings"
)

// Dialect names. They match the database option values of the builtin
// option schema and the database/sql driver names registered by
// modernc.org/sqlite, github.com/lib/pq and github.com/go-sql-driver/mysql.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// ExecQuerier wraps the database operations with untyped arguments.
type ExecQuerier interface {
	// Exec executes a statement. v may be nil or a *sql.Result.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a query and scans the result into v.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface that wraps all necessary operations for the
// stores built on top of a database.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	Tx(ctx context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps the Exec and Query operations in a transaction.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}

// Valid reports whether name is a supported dialect.
func Valid(name string) bool {
	switch name {
	case MySQL, SQLite, Postgres:
		return true
	}
	return false
}

// Rebind rewrites the "?" bind parameters of query into the placeholder
// style of the dialect. Question marks inside quoted strings and
// identifiers are left alone.
func Rebind(dialect, query string) string {
	if dialect != Postgres || !strings.Contains(query, "?") {
		return query
	}
	var (
		b     strings.Builder
		n     int
		quote rune
	)
	b.Grow(len(query) + 8)
	for _, r := range query {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == '?':
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
