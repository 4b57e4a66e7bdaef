// Package ratelimit implements fixed-window request counting keyed by
// caller identity, with the window records held in the key-value store.
//
// Counting is read-then-write, not compare-and-swap: concurrent requests
// from one identity within the same instant can overcount by a small,
// bounded amount. That race is accepted in exchange for not needing
// distributed locking.
package ratelimit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/graphgate/graphgate/storage"
)

const keyPrefix = "ratelimit:"

// Result reports one admission decision.
type Result struct {
	Allowed   bool
	Current   int
	Remaining int
	ResetIn   time.Duration
}

// window is the persisted per-identity counter record.
type window struct {
	WindowStart int64 `json:"window_start"` // unix seconds, floor(now/W)*W
	Count       int   `json:"count"`
}

// Limiter admits or rejects requests against a fixed-window quota.
type Limiter struct {
	kv  storage.KV
	log *slog.Logger
	now func() time.Time
}

// New creates a limiter over the given store.
func New(kv storage.KV, log *slog.Logger) *Limiter {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Limiter{kv: kv, log: log, now: time.Now}
}

// CheckAndIncrement counts one request for identity against a quota of
// maxRequests per windowSeconds. The counter resets to 1 whenever the
// current window differs from the stored one. When the request is allowed
// the record is persisted with a TTL of twice the window (tolerating clock
// skew at boundaries); when rejected the record is left untouched so a
// hammering caller cannot grow the counter without bound.
//
// Storage failures fail open: the request is admitted and the fault logged,
// since blocking legitimate traffic on a store hiccup is the worse outcome.
func (l *Limiter) CheckAndIncrement(ctx context.Context, identity string, maxRequests int, windowSeconds int) *Result {
	// A non-positive window would divide by zero below; clamp to one second.
	if windowSeconds <= 0 {
		windowSeconds = 1
	}
	now := l.now().Unix()
	windowLen := int64(windowSeconds)
	windowStart := (now / windowLen) * windowLen
	resetIn := time.Duration(windowStart+windowLen-now) * time.Second
	key := keyPrefix + identity

	current := 1
	item, err := l.kv.Get(ctx, key)
	if err != nil {
		l.log.ErrorContext(ctx, "rate limiter storage read failed; failing open",
			slog.String("identity", identity), slog.Any("error", err))
		return &Result{Allowed: true, Current: 1, Remaining: maxRequests - 1, ResetIn: resetIn}
	}
	if item != nil {
		var rec window
		if err := json.Unmarshal(item.Data, &rec); err == nil && rec.WindowStart == windowStart {
			current = rec.Count + 1
		}
	}

	res := &Result{
		Allowed: current <= maxRequests,
		Current: current,
		ResetIn: resetIn,
	}
	if remaining := maxRequests - current; remaining > 0 {
		res.Remaining = remaining
	}

	if !res.Allowed {
		return res
	}

	data, err := json.Marshal(window{WindowStart: windowStart, Count: current})
	if err != nil {
		// Can't happen for this struct; fail open all the same.
		l.log.ErrorContext(ctx, "rate limiter record marshal failed", slog.Any("error", err))
		return res
	}
	ttl := 2 * time.Duration(windowSeconds) * time.Second
	if err := l.kv.Put(ctx, key, data, ttl); err != nil {
		l.log.ErrorContext(ctx, "rate limiter storage write failed; failing open",
			slog.String("identity", identity), slog.Any("error", err))
	}
	return res
}

// RetryAfterSeconds renders ResetIn as the integral seconds value carried in
// rate-limit fault data and the Retry-After header.
func (r *Result) RetryAfterSeconds() int {
	secs := int(r.ResetIn / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
