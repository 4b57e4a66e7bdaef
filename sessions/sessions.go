// Package sessions persists token-keyed session records in the key-value
// store. Sessions are owned exclusively by the store: there is no in-process
// cache across requests, and expired records are cleaned up lazily on the
// read path.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/graphgate/graphgate/secret"
	"github.com/graphgate/graphgate/storage"
)

const keyPrefix = "session:"

// DefaultTTL is the session lifetime applied when none is configured.
const DefaultTTL = 24 * time.Hour

// ErrNotFound is returned for unknown, expired, or revoked tokens. Callers
// cannot distinguish the three; an invalid session is an invalid session.
var ErrNotFound = errors.New("sessions: session not found")

// Session is one authenticated caller's binding to a connection record.
type Session struct {
	Token        string    `json:"token"`
	CallerID     string    `json:"caller_id"`
	ConnectionID string    `json:"connection_id"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Store reads and writes sessions in the KV store.
type Store struct {
	kv  storage.KV
	ttl time.Duration
	log *slog.Logger
}

// NewStore creates a session store. A zero ttl selects DefaultTTL.
func NewStore(kv storage.KV, ttl time.Duration, log *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{kv: kv, ttl: ttl, log: log}
}

// Create mints an unguessable token and persists a new session bound to the
// caller and connection.
func (s *Store) Create(ctx context.Context, callerID, connectionID string) (*Session, error) {
	token, err := secret.NewToken()
	if err != nil {
		return nil, fmt.Errorf("sessions: mint token: %w", err)
	}

	now := time.Now()
	sess := &Session{
		Token:        token,
		CallerID:     callerID,
		ConnectionID: connectionID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.ttl),
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("sessions: marshal session: %w", err)
	}
	if err := s.kv.Put(ctx, keyPrefix+token, data, s.ttl); err != nil {
		return nil, fmt.Errorf("sessions: persist session: %w", err)
	}
	return sess, nil
}

// Get looks up a session by token. Validity requires both the store's own
// expiry and the record's explicit ExpiresAt timestamp to pass; on either
// failure the record is deleted and ErrNotFound returned.
func (s *Store) Get(ctx context.Context, token string) (*Session, error) {
	item, err := s.kv.Get(ctx, keyPrefix+token)
	if err != nil {
		return nil, fmt.Errorf("sessions: lookup: %w", err)
	}
	if item == nil {
		return nil, ErrNotFound
	}

	var sess Session
	if err := json.Unmarshal(item.Data, &sess); err != nil {
		// An unreadable record is as good as no record; drop it.
		s.log.WarnContext(ctx, "dropping undecodable session record", slog.Any("error", err))
		_ = s.kv.Delete(ctx, keyPrefix+token)
		return nil, ErrNotFound
	}

	if time.Now().After(sess.ExpiresAt) {
		_ = s.kv.Delete(ctx, keyPrefix+token)
		return nil, ErrNotFound
	}
	return &sess, nil
}

// Revoke deletes a session immediately. Revoking an unknown token is a
// no-op.
func (s *Store) Revoke(ctx context.Context, token string) error {
	if err := s.kv.Delete(ctx, keyPrefix+token); err != nil {
		return fmt.Errorf("sessions: revoke: %w", err)
	}
	return nil
}

// RevokeAllForCaller walks every stored session and deletes those belonging
// to callerID. Used when a caller's connection record is deleted or its
// credentials rotate.
func (s *Store) RevokeAllForCaller(ctx context.Context, callerID string) (int, error) {
	revoked := 0
	cursor := ""
	for {
		page, err := s.kv.List(ctx, keyPrefix, cursor)
		if err != nil {
			return revoked, fmt.Errorf("sessions: list: %w", err)
		}
		for _, key := range page.Keys {
			item, err := s.kv.Get(ctx, key)
			if err != nil || item == nil {
				continue
			}
			var sess Session
			if err := json.Unmarshal(item.Data, &sess); err != nil {
				continue
			}
			if sess.CallerID == callerID {
				if err := s.kv.Delete(ctx, key); err == nil {
					revoked++
				}
			}
		}
		if page.Cursor == "" {
			return revoked, nil
		}
		cursor = page.Cursor
	}
}
