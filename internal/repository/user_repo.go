package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"blogspot-api/internal/domain"
)

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	UpdateSignup(ctx context.Context, user domain.User) error
	VerifyEmail(ctx context.Context, id string, verifiedAt time.Time) error
	SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (domain.User, error)
	CompleteReset(ctx context.Context, id, tokenHash, passwordHash string, now time.Time) (bool, error)
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `
	id, email, display_name, password_hash, email_verified_at,
	otp_code_hash, otp_expires_at, reset_token_hash, reset_expires_at,
	reset_consumed, signup_ip, created_at, updated_at
`

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (id, email, display_name, password_hash, otp_code_hash, otp_expires_at, signup_ip, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.DisplayName,
		user.PasswordHash,
		user.OtpCodeHash,
		user.OtpExpiresAt,
		user.SignupIP,
		user.CreatedAt,
	)
	return err
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

// UpdateSignup sobrescribe los datos de un registro aún no verificado.
func (r *PgUserRepository) UpdateSignup(ctx context.Context, user domain.User) error {
	const query = `
		UPDATE users
		SET display_name = $2, password_hash = $3, otp_code_hash = $4, otp_expires_at = $5,
		    signup_ip = $6, updated_at = now()
		WHERE id = $1 AND email_verified_at IS NULL
	`
	tag, err := r.pool.Exec(ctx, query,
		user.ID,
		user.DisplayName,
		user.PasswordHash,
		user.OtpCodeHash,
		user.OtpExpiresAt,
		user.SignupIP,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgUserRepository) VerifyEmail(ctx context.Context, id string, verifiedAt time.Time) error {
	const query = `
		UPDATE users
		SET email_verified_at = $2, otp_code_hash = '', otp_expires_at = NULL, updated_at = now()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, verifiedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgUserRepository) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	const query = `
		UPDATE users
		SET reset_token_hash = $2, reset_expires_at = $3, reset_consumed = false, updated_at = now()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, tokenHash, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// GetByResetToken devuelve el usuario con un token de reseteo vigente y sin usar.
func (r *PgUserRepository) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (domain.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE reset_token_hash = $1 AND reset_token_hash <> ''
		  AND reset_expires_at > $2 AND NOT reset_consumed`
	return scanUser(r.pool.QueryRow(ctx, query, tokenHash, now))
}

// CompleteReset cambia el password y consume el token en una sola sentencia.
func (r *PgUserRepository) CompleteReset(ctx context.Context, id, tokenHash, passwordHash string, now time.Time) (bool, error) {
	const query = `
		UPDATE users
		SET password_hash = $3, reset_consumed = true, updated_at = now()
		WHERE id = $1 AND reset_token_hash = $2 AND reset_token_hash <> ''
		  AND reset_expires_at > $4 AND NOT reset_consumed
	`
	tag, err := r.pool.Exec(ctx, query, id, tokenHash, passwordHash, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.DisplayName,
		&u.PasswordHash,
		&u.EmailVerifiedAt,
		&u.OtpCodeHash,
		&u.OtpExpiresAt,
		&u.ResetTokenHash,
		&u.ResetExpiresAt,
		&u.ResetConsumed,
		&u.SignupIP,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}
	return u, err
}
