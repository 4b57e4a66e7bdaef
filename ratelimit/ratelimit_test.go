package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphgate/graphgate/storage"
	"github.com/graphgate/graphgate/storage/memory"
)

func newTestLimiter(t *testing.T, at time.Time) (*Limiter, *time.Time) {
	t.Helper()
	kv, err := memory.New(1024)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	clock := at
	l := New(kv, nil)
	l.now = func() time.Time { return clock }
	return l, &clock
}

func TestCheckAndIncrementEnforcesQuota(t *testing.T) {
	l, _ := newTestLimiter(t, time.Unix(1_000_000, 0))
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res := l.CheckAndIncrement(ctx, "caller-1", 3, 60)
		assert.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, i, res.Current)
		assert.Equal(t, 3-i, res.Remaining)
	}

	res := l.CheckAndIncrement(ctx, "caller-1", 3, 60)
	assert.False(t, res.Allowed)
	assert.Equal(t, 4, res.Current)
	assert.Equal(t, 0, res.Remaining)
}

func TestRejectionDoesNotGrowCounter(t *testing.T) {
	l, _ := newTestLimiter(t, time.Unix(1_000_000, 0))
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		l.CheckAndIncrement(ctx, "caller-1", 2, 60)
	}
	// The stored count stayed at the quota; every rejection recomputes
	// quota+1 rather than stacking further.
	res := l.CheckAndIncrement(ctx, "caller-1", 2, 60)
	assert.False(t, res.Allowed)
	assert.Equal(t, 3, res.Current)
}

func TestWindowReset(t *testing.T) {
	start := time.Unix(1_000_020, 0) // 20s into a 60s window
	l, clock := newTestLimiter(t, start)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		l.CheckAndIncrement(ctx, "caller-1", 3, 60)
	}
	assert.False(t, l.CheckAndIncrement(ctx, "caller-1", 3, 60).Allowed)

	// Cross into the next window; the counter starts over.
	*clock = start.Add(41 * time.Second)
	res := l.CheckAndIncrement(ctx, "caller-1", 3, 60)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Current)
}

func TestNonPositiveWindowIsClamped(t *testing.T) {
	start := time.Unix(1_000_000, 0)
	l, clock := newTestLimiter(t, start)
	ctx := context.Background()

	res := l.CheckAndIncrement(ctx, "caller-1", 1, 0)
	assert.True(t, res.Allowed)
	assert.False(t, l.CheckAndIncrement(ctx, "caller-1", 1, 0).Allowed)

	// The clamped window is one second long.
	*clock = start.Add(time.Second)
	assert.True(t, l.CheckAndIncrement(ctx, "caller-1", 1, -5).Allowed)
}

func TestIdentitiesAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t, time.Unix(1_000_000, 0))
	ctx := context.Background()

	assert.False(t, func() bool {
		for i := 0; i < 3; i++ {
			l.CheckAndIncrement(ctx, "caller-1", 2, 60)
		}
		return l.CheckAndIncrement(ctx, "caller-1", 2, 60).Allowed
	}())
	assert.True(t, l.CheckAndIncrement(ctx, "caller-2", 2, 60).Allowed)
}

func TestResetInAndRetryAfter(t *testing.T) {
	l, _ := newTestLimiter(t, time.Unix(1_000_020, 0))
	res := l.CheckAndIncrement(context.Background(), "caller-1", 3, 60)
	assert.Equal(t, 40*time.Second, res.ResetIn)
	assert.Equal(t, 40, res.RetryAfterSeconds())

	zero := &Result{ResetIn: 0}
	assert.Equal(t, 1, zero.RetryAfterSeconds(), "Retry-After is never below one second")
}

type failingKV struct{}

func (failingKV) Get(context.Context, string) (*storage.Item, error) {
	return nil, errors.New("store down")
}
func (failingKV) Put(context.Context, string, []byte, time.Duration) error {
	return errors.New("store down")
}
func (failingKV) Delete(context.Context, string) error { return errors.New("store down") }
func (failingKV) List(context.Context, string, string) (*storage.Page, error) {
	return nil, errors.New("store down")
}
func (failingKV) Close() error { return nil }

func TestStorageFailureFailsOpen(t *testing.T) {
	l := New(failingKV{}, nil)
	res := l.CheckAndIncrement(context.Background(), "caller-1", 1, 60)
	assert.True(t, res.Allowed)
}

func TestResolveIdentity(t *testing.T) {
	assert.Equal(t, "caller-1", ResolveIdentity("caller-1", "10.0.0.1, 10.0.0.2"))
	assert.Equal(t, "10.0.0.1", ResolveIdentity("", " 10.0.0.1 , 10.0.0.2"))
	assert.Equal(t, "anonymous", ResolveIdentity("", ""))
	assert.Equal(t, "anonymous", ResolveIdentity("", " , "))
}
