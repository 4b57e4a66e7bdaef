// Package records defines the relational-store collaborator contract for
// caller and connection records. Connection credentials are stored with each
// sensitive field independently encrypted; the decrypted view lives for one
// request and is never persisted.
package records

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/graphgate/graphgate/graph"
	"github.com/graphgate/graphgate/internal/fault"
	"github.com/graphgate/graphgate/secret"
)

// ErrNotFound is returned when a caller or connection record does not
// exist.
var ErrNotFound = errors.New("records: not found")

// NewID mints an identifier for a new caller or connection record.
func NewID() string {
	return uuid.NewString()
}

// Caller is a registered user of the gateway.
type Caller struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// Connection is one stored graph database connection. The URI, username,
// password, and database fields hold the iv:ciphertext encoding produced by
// the secret package.
type Connection struct {
	ID          string
	CallerID    string
	Name        string
	URIEnc      string
	UsernameEnc string
	PasswordEnc string
	DatabaseEnc string
	ReadOnly    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Store is the relational collaborator contract the pipeline consumes.
type Store interface {
	GetCaller(ctx context.Context, id string) (*Caller, error)
	GetConnection(ctx context.Context, id string) (*Connection, error)
	ListConnections(ctx context.Context, callerID string) ([]*Connection, error)
	CreateConnection(ctx context.Context, conn *Connection) error
	UpdateConnection(ctx context.Context, conn *Connection) error
	DeleteConnection(ctx context.Context, id string) error
	Close() error
}

// Decrypt materializes the per-request plaintext view of a connection.
// Any field failing authentication surfaces as a connection fault, never a
// silent default: a tampered or wrongly-keyed record must not produce a
// half-usable connection.
func (c *Connection) Decrypt(key []byte) (*graph.Connection, error) {
	uri, err := secret.DecryptString(c.URIEnc, key)
	if err != nil {
		return nil, fault.Wrap(fault.KindConnection, "stored connection could not be decrypted", err)
	}
	username, err := secret.DecryptString(c.UsernameEnc, key)
	if err != nil {
		return nil, fault.Wrap(fault.KindConnection, "stored connection could not be decrypted", err)
	}
	password, err := secret.DecryptString(c.PasswordEnc, key)
	if err != nil {
		return nil, fault.Wrap(fault.KindConnection, "stored connection could not be decrypted", err)
	}
	database := ""
	if c.DatabaseEnc != "" {
		database, err = secret.DecryptString(c.DatabaseEnc, key)
		if err != nil {
			return nil, fault.Wrap(fault.KindConnection, "stored connection could not be decrypted", err)
		}
	}
	return &graph.Connection{
		URI:      uri,
		Username: username,
		Password: password,
		Database: database,
		ReadOnly: c.ReadOnly,
	}, nil
}

// EncryptInto fills the record's encrypted fields from a plaintext view.
func (c *Connection) EncryptInto(plain *graph.Connection, key []byte) error {
	var err error
	if c.URIEnc, err = secret.EncryptString(plain.URI, key); err != nil {
		return err
	}
	if c.UsernameEnc, err = secret.EncryptString(plain.Username, key); err != nil {
		return err
	}
	if c.PasswordEnc, err = secret.EncryptString(plain.Password, key); err != nil {
		return err
	}
	if plain.Database != "" {
		if c.DatabaseEnc, err = secret.EncryptString(plain.Database, key); err != nil {
			return err
		}
	}
	c.ReadOnly = plain.ReadOnly
	return nil
}

// CacheKey derives the KV key under which this connection's extracted
// schema is cached.
func (c *Connection) CacheKey() string {
	return "schema:" + secret.HashID(c.ID)
}
