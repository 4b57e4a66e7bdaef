package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/graphgate/graphgate/internal/fault"
)

// DefaultTimeout bounds one remote query execution.
const DefaultTimeout = 30 * time.Second

// defaultDatabase is used when a connection does not name one.
const defaultDatabase = "neo4j"

// Client executes queries against the remote graph database's HTTP query
// interface. It holds no per-connection state; the connection travels with
// each call.
type Client struct {
	http    *http.Client
	timeout time.Duration
	log     *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithTimeout overrides the per-query timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient substitutes the underlying HTTP client, mainly for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the client's logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient creates a graph query client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{},
		timeout: DefaultTimeout,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query runs one statement over the connection's query endpoint with basic
// authentication. The call is bounded by the client timeout via context
// cancellation; on timeout the remote database may or may not have applied
// an in-flight write, and that ambiguity is surfaced as a query fault, never
// retried.
func (c *Client) Query(ctx context.Context, conn *Connection, statement string, params map[string]any, includeCounters bool) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(queryRequest{
		Statement:       statement,
		Parameters:      params,
		IncludeCounters: includeCounters,
	})
	if err != nil {
		return nil, fault.Wrap(fault.KindInternal, "internal error", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(conn), bytes.NewReader(body))
	if err != nil {
		return nil, fault.Wrap(fault.KindConnection, "invalid connection URI", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(conn.Username, conn.Password)

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || (ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)) {
			return nil, fault.Wrap(fault.KindQuery, "query execution failed: timed out", err)
		}
		return nil, fault.Wrap(fault.KindConnection, "could not reach graph database", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fault.Wrap(fault.KindConnection, "could not read graph database response", err)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fault.New(fault.KindConnection, "graph database authentication failed")
	}

	var decoded queryResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fault.Wrap(fault.KindConnection, "unexpected graph database response", err)
	}

	if len(decoded.Errors) > 0 {
		// The vendor code is preserved as structured data for
		// diagnostics; the verbatim message could leak internal
		// topology and is logged, not returned.
		first := decoded.Errors[0]
		c.log.WarnContext(ctx, "graph database reported query error",
			slog.String("code", first.Code), slog.String("message", first.Message))
		return nil, fault.New(fault.KindQuery, "query execution failed").
			WithData(map[string]any{"code": first.Code})
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fault.Newf(fault.KindConnection, "graph database returned status %d", resp.StatusCode)
	}

	return &Result{
		Fields:   decoded.Data.Fields,
		Rows:     decoded.rows(),
		Counters: decoded.Counters,
	}, nil
}

// endpoint builds the query URL for the connection's database.
func (c *Client) endpoint(conn *Connection) string {
	db := conn.Database
	if db == "" {
		db = defaultDatabase
	}
	return fmt.Sprintf("%s/db/%s/query/v2", strings.TrimSuffix(conn.URI, "/"), db)
}
