package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"blogspot-api/internal/domain"
)

// RevocationLedger guarda por usuario las credenciales invalidadas antes de expirar.
type RevocationLedger interface {
	Revoke(ctx context.Context, userID, token string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, userID, token string) (bool, error)
	Prune(ctx context.Context, now time.Time) (int64, error)
}

// MemoryRevocationLedger mantiene el ledger en memoria.
type MemoryRevocationLedger struct {
	mu      sync.Mutex
	entries map[string][]domain.RevokedSession
	now     func() time.Time
}

func NewMemoryRevocationLedger() *MemoryRevocationLedger {
	return &MemoryRevocationLedger{
		entries: make(map[string][]domain.RevokedSession),
		now:     time.Now,
	}
}

func (l *MemoryRevocationLedger) Revoke(_ context.Context, userID, token string, expiresAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entry := range l.entries[userID] {
		if entry.Token == token {
			return nil
		}
	}
	l.entries[userID] = append(l.entries[userID], domain.RevokedSession{
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt.UTC(),
		RevokedAt: l.now().UTC(),
	})
	return nil
}

func (l *MemoryRevocationLedger) IsRevoked(_ context.Context, userID, token string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entry := range l.entries[userID] {
		if entry.Token == token {
			return true, nil
		}
	}
	return false, nil
}

func (l *MemoryRevocationLedger) Prune(_ context.Context, now time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var removed int64
	for userID, entries := range l.entries {
		kept := entries[:0]
		for _, entry := range entries {
			if entry.ExpiresAt.After(now) {
				kept = append(kept, entry)
				continue
			}
			removed++
		}
		if len(kept) == 0 {
			delete(l.entries, userID)
			continue
		}
		l.entries[userID] = kept
	}
	return removed, nil
}

// Entries devuelve una copia del ledger de un usuario.
func (l *MemoryRevocationLedger) Entries(userID string) []domain.RevokedSession {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.RevokedSession, len(l.entries[userID]))
	copy(out, l.entries[userID])
	return out
}

type redisLedgerClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// cachedRevocationLedger antepone redis al ledger primario; las claves viven lo que le queda al token.
type cachedRevocationLedger struct {
	primary RevocationLedger
	client  redisLedgerClient
	logger  *zap.Logger
	prefix  string
	now     func() time.Time
}

// NewRedisCachedRevocationLedger devuelve primary tal cual si no hay cliente redis.
func NewRedisCachedRevocationLedger(client *redis.Client, primary RevocationLedger, logger *zap.Logger) RevocationLedger {
	if client == nil {
		return primary
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cachedRevocationLedger{
		primary: primary,
		client:  client,
		logger:  logger,
		prefix:  "auth:revoked:",
		now:     time.Now,
	}
}

func (l *cachedRevocationLedger) key(userID, token string) string {
	sum := sha256.Sum256([]byte(token))
	return l.prefix + userID + ":" + hex.EncodeToString(sum[:])
}

func (l *cachedRevocationLedger) Revoke(ctx context.Context, userID, token string, expiresAt time.Time) error {
	if err := l.primary.Revoke(ctx, userID, token, expiresAt); err != nil {
		return err
	}
	ttl := expiresAt.Sub(l.now())
	if ttl <= 0 {
		return nil
	}
	cctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if err := l.client.Set(cctx, l.key(userID, token), "1", ttl).Err(); err != nil {
		l.logger.Warn("revocation cache write failed", zap.Error(err), zap.String("user_id", userID))
	}
	return nil
}

func (l *cachedRevocationLedger) IsRevoked(ctx context.Context, userID, token string) (bool, error) {
	cctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	n, err := l.client.Exists(cctx, l.key(userID, token)).Result()
	cancel()
	if err == nil && n > 0 {
		return true, nil
	}
	if err != nil {
		l.logger.Warn("revocation cache read failed", zap.Error(err))
	}
	return l.primary.IsRevoked(ctx, userID, token)
}

// Prune solo toca el primario; redis expira sus claves por TTL.
func (l *cachedRevocationLedger) Prune(ctx context.Context, now time.Time) (int64, error) {
	return l.primary.Prune(ctx, now)
}

// LedgerJanitor purga periódicamente las entradas expiradas del ledger.
type LedgerJanitor struct {
	logger   *zap.Logger
	ledger   RevocationLedger
	interval time.Duration
	now      func() time.Time
	observe  func(removed int64)
}

func NewLedgerJanitor(logger *zap.Logger, ledger RevocationLedger, interval time.Duration) *LedgerJanitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &LedgerJanitor{
		logger:   logger,
		ledger:   ledger,
		interval: interval,
		now:      time.Now,
	}
}

// OnPrune registra un callback con la cantidad purgada en cada pasada.
func (j *LedgerJanitor) OnPrune(fn func(removed int64)) *LedgerJanitor {
	j.observe = fn
	return j
}

func (j *LedgerJanitor) RunOnce(ctx context.Context) (int64, error) {
	removed, err := j.ledger.Prune(ctx, j.now().UTC())
	if err != nil {
		j.logger.Warn("revocation prune failed", zap.Error(err))
		return 0, err
	}
	if j.observe != nil {
		j.observe(removed)
	}
	if removed > 0 {
		j.logger.Info("revocation ledger pruned", zap.Int64("removed", removed))
	}
	return removed, nil
}

// Run bloquea hasta que ctx se cancela.
func (j *LedgerJanitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = j.RunOnce(ctx)
		}
	}
}
