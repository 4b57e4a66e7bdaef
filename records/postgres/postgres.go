// Package postgres implements the records.Store contract on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/graphgate/graphgate/records"
)

// schemaDDL creates the tables the store needs. Statements are idempotent
// so EnsureSchema can run on every startup.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS callers (
	id         TEXT PRIMARY KEY,
	email      TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS connections (
	id           TEXT PRIMARY KEY,
	caller_id    TEXT NOT NULL REFERENCES callers(id) ON DELETE CASCADE,
	name         TEXT NOT NULL,
	uri_enc      TEXT NOT NULL,
	username_enc TEXT NOT NULL,
	password_enc TEXT NOT NULL,
	database_enc TEXT NOT NULL DEFAULT '',
	read_only    BOOLEAN NOT NULL DEFAULT false,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS connections_caller_id_idx ON connections (caller_id);
`

// Store implements records.Store on a PostgreSQL database.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL with the given connection string and verifies
// the connection.
func Open(ctx context.Context, connStr string) (*Store, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Store{db: db}, nil
}

// EnsureSchema creates the store's tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}

// GetCaller looks up a caller by id.
func (s *Store) GetCaller(ctx context.Context, id string) (*records.Caller, error) {
	var caller records.Caller
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, created_at FROM callers WHERE id = $1`, id,
	).Scan(&caller.ID, &caller.Email, &caller.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, records.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get caller: %w", err)
	}
	return &caller, nil
}

// GetConnection looks up a connection record by id.
func (s *Store) GetConnection(ctx context.Context, id string) (*records.Connection, error) {
	conn, err := scanConnection(s.db.QueryRowContext(ctx, `
		SELECT id, caller_id, name, uri_enc, username_enc, password_enc,
		       database_enc, read_only, created_at, updated_at
		FROM connections WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, records.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get connection: %w", err)
	}
	return conn, nil
}

// ListConnections returns all connection records owned by a caller.
func (s *Store) ListConnections(ctx context.Context, callerID string) ([]*records.Connection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, caller_id, name, uri_enc, username_enc, password_enc,
		       database_enc, read_only, created_at, updated_at
		FROM connections WHERE caller_id = $1 ORDER BY created_at`, callerID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list connections: %w", err)
	}
	defer rows.Close()

	var out []*records.Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan connection: %w", err)
		}
		out = append(out, conn)
	}
	return out, rows.Err()
}

// CreateConnection inserts a new connection record, minting an id when the
// caller did not supply one.
func (s *Store) CreateConnection(ctx context.Context, conn *records.Connection) error {
	if conn.ID == "" {
		conn.ID = records.NewID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO connections
			(id, caller_id, name, uri_enc, username_enc, password_enc, database_enc, read_only)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		conn.ID, conn.CallerID, conn.Name, conn.URIEnc, conn.UsernameEnc,
		conn.PasswordEnc, conn.DatabaseEnc, conn.ReadOnly)
	if err != nil {
		return fmt.Errorf("postgres: create connection: %w", err)
	}
	return nil
}

// UpdateConnection rewrites a connection record's mutable fields.
func (s *Store) UpdateConnection(ctx context.Context, conn *records.Connection) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE connections
		SET name = $2, uri_enc = $3, username_enc = $4, password_enc = $5,
		    database_enc = $6, read_only = $7, updated_at = now()
		WHERE id = $1`,
		conn.ID, conn.Name, conn.URIEnc, conn.UsernameEnc, conn.PasswordEnc,
		conn.DatabaseEnc, conn.ReadOnly)
	if err != nil {
		return fmt.Errorf("postgres: update connection: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return records.ErrNotFound
	}
	return nil
}

// DeleteConnection removes a connection record.
func (s *Store) DeleteConnection(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM connections WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres: delete connection: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnection(row rowScanner) (*records.Connection, error) {
	var conn records.Connection
	err := row.Scan(&conn.ID, &conn.CallerID, &conn.Name, &conn.URIEnc,
		&conn.UsernameEnc, &conn.PasswordEnc, &conn.DatabaseEnc,
		&conn.ReadOnly, &conn.CreatedAt, &conn.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// Compile-time interface check
var _ records.Store = (*Store)(nil)
