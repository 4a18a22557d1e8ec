package dialect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/stackgen/dialect"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		name    string
		dialect string
		in      string
		want    string
	}{
		{name: "postgres", dialect: dialect.Postgres, in: "SELECT a FROM t WHERE b = ? AND c = ?", want: "SELECT a FROM t WHERE b = $1 AND c = $2"},
		{name: "postgres_no_params", dialect: dialect.Postgres, in: "SELECT 1", want: "SELECT 1"},
		{name: "postgres_quoted", dialect: dialect.Postgres, in: "SELECT '?' FROM \"t?\" WHERE b = ?", want: "SELECT '?' FROM \"t?\" WHERE b = $1"},
		{name: "mysql", dialect: dialect.MySQL, in: "SELECT a FROM t WHERE b = ?", want: "SELECT a FROM t WHERE b = ?"},
		{name: "sqlite", dialect: dialect.SQLite, in: "SELECT a FROM t WHERE b = ?", want: "SELECT a FROM t WHERE b = ?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dialect.Rebind(tt.dialect, tt.in))
		})
	}
}

func TestValid(t *testing.T) {
	for _, name := range []string{dialect.MySQL, dialect.SQLite, dialect.Postgres} {
		assert.True(t, dialect.Valid(name), name)
	}
	assert.False(t, dialect.Valid("sqlite3"))
	assert.False(t, dialect.Valid(""))
}
