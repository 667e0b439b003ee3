package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRevokedSessionRepository guarda el ledger de revocación en revoked_sessions.
type PgRevokedSessionRepository struct {
	pool *pgxpool.Pool
}

func NewPgRevokedSessionRepository(pool *pgxpool.Pool) *PgRevokedSessionRepository {
	return &PgRevokedSessionRepository{pool: pool}
}

func (r *PgRevokedSessionRepository) Revoke(ctx context.Context, userID, token string, expiresAt time.Time) error {
	const query = `
		INSERT INTO revoked_sessions (user_id, token, expires_at, revoked_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, token) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query, userID, token, expiresAt)
	return err
}

func (r *PgRevokedSessionRepository) IsRevoked(ctx context.Context, userID, token string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM revoked_sessions WHERE user_id = $1 AND token = $2
		)
	`
	var revoked bool
	if err := r.pool.QueryRow(ctx, query, userID, token).Scan(&revoked); err != nil {
		return false, err
	}
	return revoked, nil
}

// Prune borra las entradas cuyo token ya habría expirado.
func (r *PgRevokedSessionRepository) Prune(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM revoked_sessions WHERE expires_at <= $1`
	tag, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
