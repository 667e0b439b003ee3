package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockRedisLedgerClient struct {
	lastSetKey string
	lastSetTTL time.Duration
	lastExists []string

	setErr    error
	existsErr error
	existsN   int64
}

func (m *mockRedisLedgerClient) Set(ctx context.Context, key string, _ interface{}, expiration time.Duration) *redis.StatusCmd {
	m.lastSetKey = key
	m.lastSetTTL = expiration
	cmd := redis.NewStatusCmd(ctx)
	if m.setErr != nil {
		cmd.SetErr(m.setErr)
		return cmd
	}
	cmd.SetVal("OK")
	return cmd
}

func (m *mockRedisLedgerClient) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	m.lastExists = keys
	cmd := redis.NewIntCmd(ctx)
	if m.existsErr != nil {
		cmd.SetErr(m.existsErr)
		return cmd
	}
	cmd.SetVal(m.existsN)
	return cmd
}

type failingLedger struct {
	err error
}

func (f failingLedger) Revoke(context.Context, string, string, time.Time) error { return f.err }
func (f failingLedger) IsRevoked(context.Context, string, string) (bool, error) {
	return false, f.err
}
func (f failingLedger) Prune(context.Context, time.Time) (int64, error) { return 0, f.err }

func TestMemoryRevocationLedger(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryRevocationLedger()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	revoked, err := ledger.IsRevoked(ctx, "u1", "tok-a")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, ledger.Revoke(ctx, "u1", "tok-a", now.Add(time.Hour)))
	require.NoError(t, ledger.Revoke(ctx, "u1", "tok-a", now.Add(time.Hour)))
	require.NoError(t, ledger.Revoke(ctx, "u1", "tok-b", now.Add(-time.Minute)))

	revoked, err = ledger.IsRevoked(ctx, "u1", "tok-a")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = ledger.IsRevoked(ctx, "u2", "tok-a")
	require.NoError(t, err)
	assert.False(t, revoked, "entries are scoped to their owner")

	assert.Len(t, ledger.Entries("u1"), 2)

	removed, err := ledger.Prune(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	entries := ledger.Entries("u1")
	require.Len(t, entries, 1)
	assert.Equal(t, "tok-a", entries[0].Token)
}

func TestCachedRevocationLedger(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	newLedger := func(client *mockRedisLedgerClient, primary RevocationLedger) *cachedRevocationLedger {
		return &cachedRevocationLedger{
			primary: primary,
			client:  client,
			logger:  zap.NewNop(),
			prefix:  "auth:revoked:",
			now:     func() time.Time { return now },
		}
	}

	t.Run("nil client returns primary", func(t *testing.T) {
		primary := NewMemoryRevocationLedger()
		assert.Same(t, primary, NewRedisCachedRevocationLedger(nil, primary, nil))
	})

	t.Run("revoke writes through with remaining ttl", func(t *testing.T) {
		client := &mockRedisLedgerClient{}
		primary := NewMemoryRevocationLedger()
		l := newLedger(client, primary)

		require.NoError(t, l.Revoke(ctx, "u1", "tok", now.Add(45*time.Minute)))
		assert.Equal(t, 45*time.Minute, client.lastSetTTL)
		assert.Equal(t, l.key("u1", "tok"), client.lastSetKey)
		assert.NotContains(t, client.lastSetKey, "tok:", "raw token must not appear in the key")

		revoked, err := primary.IsRevoked(ctx, "u1", "tok")
		require.NoError(t, err)
		assert.True(t, revoked)
	})

	t.Run("expired token skips cache", func(t *testing.T) {
		client := &mockRedisLedgerClient{}
		l := newLedger(client, NewMemoryRevocationLedger())
		require.NoError(t, l.Revoke(ctx, "u1", "tok", now.Add(-time.Second)))
		assert.Empty(t, client.lastSetKey)
	})

	t.Run("cache write failure is not fatal", func(t *testing.T) {
		client := &mockRedisLedgerClient{setErr: errors.New("redis down")}
		l := newLedger(client, NewMemoryRevocationLedger())
		assert.NoError(t, l.Revoke(ctx, "u1", "tok", now.Add(time.Hour)))
	})

	t.Run("primary failure surfaces", func(t *testing.T) {
		l := newLedger(&mockRedisLedgerClient{}, failingLedger{err: errors.New("db down")})
		assert.Error(t, l.Revoke(ctx, "u1", "tok", now.Add(time.Hour)))
	})

	t.Run("cache hit answers without primary", func(t *testing.T) {
		client := &mockRedisLedgerClient{existsN: 1}
		l := newLedger(client, failingLedger{err: errors.New("should not be called")})
		revoked, err := l.IsRevoked(ctx, "u1", "tok")
		require.NoError(t, err)
		assert.True(t, revoked)
		assert.Equal(t, []string{l.key("u1", "tok")}, client.lastExists)
	})

	t.Run("cache miss falls through", func(t *testing.T) {
		primary := NewMemoryRevocationLedger()
		require.NoError(t, primary.Revoke(ctx, "u1", "tok", now.Add(time.Hour)))
		l := newLedger(&mockRedisLedgerClient{}, primary)
		revoked, err := l.IsRevoked(ctx, "u1", "tok")
		require.NoError(t, err)
		assert.True(t, revoked)
	})

	t.Run("cache error falls through", func(t *testing.T) {
		l := newLedger(&mockRedisLedgerClient{existsErr: errors.New("timeout")}, NewMemoryRevocationLedger())
		revoked, err := l.IsRevoked(ctx, "u1", "tok")
		require.NoError(t, err)
		assert.False(t, revoked)
	})
}

func TestLedgerJanitor(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger := NewMemoryRevocationLedger()
	require.NoError(t, ledger.Revoke(ctx, "u1", "old", now.Add(-time.Hour)))
	require.NoError(t, ledger.Revoke(ctx, "u1", "live", now.Add(time.Hour)))

	janitor := NewLedgerJanitor(nil, ledger, 0)
	assert.Equal(t, time.Hour, janitor.interval)
	janitor.now = func() time.Time { return now }
	var observed int64
	janitor.OnPrune(func(n int64) { observed += n })

	removed, err := janitor.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Len(t, ledger.Entries("u1"), 1)
	assert.Equal(t, int64(1), observed)

	failing := NewLedgerJanitor(zap.NewNop(), failingLedger{err: errors.New("db down")}, time.Minute)
	_, err = failing.RunOnce(ctx)
	assert.Error(t, err)
}

func TestLedgerJanitorRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	janitor := NewLedgerJanitor(zap.NewNop(), NewMemoryRevocationLedger(), time.Millisecond)

	done := make(chan struct{})
	go func() {
		janitor.Run(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("janitor did not stop after cancel")
	}
}
