package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/graphgate/graphgate/graph"
	"github.com/graphgate/graphgate/records"
	"github.com/graphgate/graphgate/sessions"
)

// sessionTokenHeader is the secondary token carrier, after Authorization.
const sessionTokenHeader = "X-Session-Token"

// authState is the resolved caller identity for one request. A nil
// authState means the request is unauthenticated; per-method policy decides
// whether that matters.
type authState struct {
	session *sessions.Session
	record  *records.Connection
	conn    *graph.Connection
}

// extractToken pulls the session token from the request, in priority order:
// Authorization bearer header, the session header, then a query parameter.
func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if h := r.Header.Get(sessionTokenHeader); h != "" {
		return strings.TrimSpace(h)
	}
	return r.URL.Query().Get("token")
}

// resolveAuth looks up the session for a token and materializes the
// decrypted connection view. An absent or invalid token yields (nil, nil):
// authentication is optional at this layer, and handlers that need it
// report "not connected" themselves. Credential decryption failure is a
// real error: a tampered or wrongly-keyed record must surface, not degrade
// to anonymous.
func (s *Server) resolveAuth(ctx context.Context, token string) (*authState, error) {
	if token == "" {
		return nil, nil
	}

	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			return nil, nil
		}
		s.log.ErrorContext(ctx, "session lookup failed", slog.Any("error", err))
		return nil, nil
	}

	record, err := s.records.GetConnection(ctx, sess.ConnectionID)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			// The connection this session was bound to is gone;
			// the session is dead weight.
			_ = s.sessions.Revoke(ctx, token)
			return nil, nil
		}
		return nil, err
	}

	conn, err := record.Decrypt(s.encKey)
	if err != nil {
		return nil, err
	}

	return &authState{session: sess, record: record, conn: conn}, nil
}
