// Package sqlstore provides an identity.Store persisting principals in a
// SQL database through dialect/sql.
//
//	drv, err := sql.Open(dialect.SQLite, "file:app.db")
//	if err != nil {
//		return err
//	}
//	store := sqlstore.New(drv)
//	if err := store.Migrate(ctx); err != nil {
//		return err
//	}
//
// Principals live in a single "principals" table keyed by a unique
// (issuer, subject) index; instants are stored as Unix nanoseconds.
package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/stackgen/dialect"
	"github.com/syssam/stackgen/dialect/sql"
	"github.com/syssam/stackgen/identity"
)

var schema = map[string]string{
	dialect.SQLite: `CREATE TABLE IF NOT EXISTS principals (
	id TEXT NOT NULL PRIMARY KEY,
	issuer TEXT NOT NULL,
	subject TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	revoked_at INTEGER,
	UNIQUE (issuer, subject)
)`,
	dialect.Postgres: `CREATE TABLE IF NOT EXISTS principals (
	id CHAR(36) NOT NULL PRIMARY KEY,
	issuer VARCHAR(255) NOT NULL,
	subject VARCHAR(255) NOT NULL,
	email VARCHAR(320) NOT NULL DEFAULT '',
	created_at BIGINT NOT NULL,
	revoked_at BIGINT NULL,
	UNIQUE (issuer, subject)
)`,
	dialect.MySQL: `CREATE TABLE IF NOT EXISTS principals (
	id CHAR(36) NOT NULL PRIMARY KEY,
	issuer VARCHAR(255) NOT NULL,
	subject VARCHAR(255) NOT NULL,
	email VARCHAR(320) NOT NULL DEFAULT '',
	created_at BIGINT NOT NULL,
	revoked_at BIGINT NULL,
	UNIQUE KEY principals_identity (issuer, subject)
)`,
}

const (
	selectIdentity = "SELECT id, email, created_at FROM principals WHERE issuer = ? AND subject = ?"
	insertColumns  = "principals (id, issuer, subject, email, created_at) VALUES (?, ?, ?, ?, ?)"
	updateRevoked  = "UPDATE principals SET revoked_at = ? WHERE id = ? AND (revoked_at IS NULL OR revoked_at < ?)"
	selectRevoked  = "SELECT revoked_at FROM principals WHERE id = ?"
)

// Store is a SQL identity.Store.
type Store struct {
	drv dialect.Driver
	now func() time.Time
}

// New returns a store over drv.
func New(drv dialect.Driver) *Store {
	return &Store{drv: drv, now: time.Now}
}

// Open opens a database with one of the drivers registered by this package
// and returns a store over it.
func Open(dialectName, dsn string) (*Store, error) {
	drv, err := sql.Open(dialectName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: %w", err)
	}
	return New(drv), nil
}

// Close closes the underlying driver.
func (s *Store) Close() error { return s.drv.Close() }

// Migrate creates the principals table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	ddl, ok := schema[s.drv.Dialect()]
	if !ok {
		return fmt.Errorf("sqlstore: unsupported dialect %q", s.drv.Dialect())
	}
	if err := s.drv.Exec(ctx, ddl, []any{}, nil); err != nil {
		return fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return nil
}

// GetOrCreate implements identity.Store. Creation relies on the unique
// (issuer, subject) index: a losing concurrent insert reads the winner.
func (s *Store) GetOrCreate(ctx context.Context, issuer, subject string, claims *identity.Claims) (*identity.Principal, bool, error) {
	p, err := s.lookup(ctx, issuer, subject)
	if err != nil || p != nil {
		return p, false, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, false, fmt.Errorf("sqlstore: new principal id: %w", err)
	}
	created := s.now()
	var email string
	if claims != nil {
		email = claims.Email
	}
	var res sql.Result
	args := []any{id.String(), issuer, subject, email, created.UnixNano()}
	if err := s.drv.Exec(ctx, s.insert(), args, &res); err != nil {
		return nil, false, fmt.Errorf("sqlstore: insert principal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("sqlstore: insert principal: %w", err)
	}
	if n == 0 {
		p, err := s.lookup(ctx, issuer, subject)
		if err == nil && p == nil {
			err = fmt.Errorf("sqlstore: principal %s/%s vanished after insert conflict", issuer, subject)
		}
		return p, false, err
	}
	return &identity.Principal{
		ID:        id,
		Issuer:    issuer,
		Subject:   subject,
		Email:     email,
		CreatedAt: time.Unix(0, created.UnixNano()).UTC(),
	}, true, nil
}

func (s *Store) insert() string {
	if s.drv.Dialect() == dialect.MySQL {
		return "INSERT IGNORE INTO " + insertColumns
	}
	return "INSERT INTO " + insertColumns + " ON CONFLICT (issuer, subject) DO NOTHING"
}

func (s *Store) lookup(ctx context.Context, issuer, subject string) (*identity.Principal, error) {
	var rows sql.Rows
	if err := s.drv.Query(ctx, selectIdentity, []any{issuer, subject}, &rows); err != nil {
		return nil, fmt.Errorf("sqlstore: lookup principal: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("sqlstore: lookup principal: %w", err)
		}
		return nil, nil
	}
	var (
		id      string
		email   string
		created int64
	)
	if err := rows.Scan(&id, &email, &created); err != nil {
		return nil, fmt.Errorf("sqlstore: scan principal: %w", err)
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: principal id %q: %w", id, err)
	}
	return &identity.Principal{
		ID:        uid,
		Issuer:    issuer,
		Subject:   subject,
		Email:     email,
		CreatedAt: time.Unix(0, created).UTC(),
	}, nil
}

// Revoke implements identity.Store.
func (s *Store) Revoke(ctx context.Context, id uuid.UUID, at time.Time) error {
	var res sql.Result
	ns := at.UnixNano()
	if err := s.drv.Exec(ctx, updateRevoked, []any{ns, id.String(), ns}, &res); err != nil {
		return fmt.Errorf("sqlstore: revoke: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: revoke: %w", err)
	}
	if n > 0 {
		return nil
	}
	// Either unknown, or already revoked at a later instant.
	_, exists, err := s.revokedAt(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("sqlstore: unknown principal %s", id)
	}
	return nil
}

// RevokedAt implements identity.Store.
func (s *Store) RevokedAt(ctx context.Context, id uuid.UUID) (time.Time, bool, error) {
	at, _, err := s.revokedAt(ctx, id)
	if err != nil || !at.Valid {
		return time.Time{}, false, err
	}
	return time.Unix(0, at.Int64).UTC(), true, nil
}

func (s *Store) revokedAt(ctx context.Context, id uuid.UUID) (sql.NullInt64, bool, error) {
	var (
		rows sql.Rows
		at   sql.NullInt64
	)
	if err := s.drv.Query(ctx, selectRevoked, []any{id.String()}, &rows); err != nil {
		return at, false, fmt.Errorf("sqlstore: revoked at: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return at, false, rows.Err()
	}
	if err := rows.Scan(&at); err != nil {
		return at, false, fmt.Errorf("sqlstore: scan revoked at: %w", err)
	}
	return at, true, rows.Err()
}

var _ identity.Store = (*Store)(nil)
