package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"blogspot-api/internal/domain"
)

// DefaultRefreshWindow es el intervalo previo a la expiración en el que se reemite.
const DefaultRefreshWindow = time.Hour

var (
	// ErrAuthenticationRequired agrupa todos los rechazos que terminan en 401.
	ErrAuthenticationRequired = errors.New("authentication required")

	ErrSessionMissing      = fmt.Errorf("%w: no session credential", ErrAuthenticationRequired)
	ErrSessionMalformed    = fmt.Errorf("%w: malformed session credential", ErrAuthenticationRequired)
	ErrSessionExpired      = fmt.Errorf("%w: session expired", ErrAuthenticationRequired)
	ErrSessionRevoked      = fmt.Errorf("%w: session revoked", ErrAuthenticationRequired)
	ErrSessionIdentityGone = fmt.Errorf("%w: session identity not found", ErrAuthenticationRequired)

	// ErrSessionStore indica que el almacenamiento no respondió durante la verificación.
	ErrSessionStore = errors.New("session store unavailable")
)

// SessionOutcome es el estado terminal exitoso de una verificación.
type SessionOutcome string

const (
	SessionValid    SessionOutcome = "valid"
	SessionReissued SessionOutcome = "reissued"
)

// SessionUserLookup resuelve la identidad de una credencial.
type SessionUserLookup interface {
	GetByID(ctx context.Context, id string) (domain.User, error)
}

// SessionVerification es el resultado de una verificación aceptada.
type SessionVerification struct {
	User     domain.User
	Claims   SessionClaims
	Outcome  SessionOutcome
	Reissued *IssuedSession
}

// SessionVerifierOptions ajusta el comportamiento del verificador.
type SessionVerifierOptions struct {
	RefreshWindow time.Duration
	BindUserAgent bool
	Now           func() time.Time
}

// SessionVerifier valida credenciales y las reemite cerca de su expiración.
type SessionVerifier struct {
	logger        *zap.Logger
	issuer        *SessionIssuer
	users         SessionUserLookup
	ledger        RevocationLedger
	refreshWindow time.Duration
	bindUserAgent bool
	now           func() time.Time
}

func NewSessionVerifier(logger *zap.Logger, issuer *SessionIssuer, users SessionUserLookup, ledger RevocationLedger, opts SessionVerifierOptions) *SessionVerifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RefreshWindow <= 0 {
		opts.RefreshWindow = DefaultRefreshWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SessionVerifier{
		logger:        logger,
		issuer:        issuer,
		users:         users,
		ledger:        ledger,
		refreshWindow: opts.RefreshWindow,
		bindUserAgent: opts.BindUserAgent,
		now:           opts.Now,
	}
}

// ShouldRefresh reporta si now ya entró en la ventana de refresco de expiry.
// Verify no siempre le pasa la hora fija: si la ventana cubre toda la vida del token usa la mitad de esa vida.
func ShouldRefresh(now, expiry time.Time, window time.Duration) bool {
	return !now.Before(expiry.Add(-window))
}

// windowFor acota la ventana a la mitad de la vida del token cuando la ventana la cubre entera.
func (v *SessionVerifier) windowFor(claims SessionClaims) time.Duration {
	lifetime := claims.Lifetime()
	if lifetime > 0 && v.refreshWindow >= lifetime {
		return lifetime / 2
	}
	return v.refreshWindow
}

// Verify recorre firma, identidad, revocación y ventana de refresco.
func (v *SessionVerifier) Verify(ctx context.Context, token string, presented domain.Fingerprint) (SessionVerification, error) {
	if v == nil || v.issuer == nil || v.users == nil || v.ledger == nil {
		return SessionVerification{}, ErrSessionSecretMissing
	}
	if token == "" {
		return SessionVerification{}, ErrSessionMissing
	}

	claims, err := v.issuer.Parse(token)
	if err != nil {
		return SessionVerification{}, err
	}
	if v.bindUserAgent && claims.UserAgent != presented.UserAgent {
		return SessionVerification{}, ErrSessionMalformed
	}

	user, err := v.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, ErrUserNotFound) {
			return SessionVerification{}, ErrSessionIdentityGone
		}
		return SessionVerification{}, fmt.Errorf("%w: load user: %w", ErrSessionStore, err)
	}

	revoked, err := v.ledger.IsRevoked(ctx, user.ID, token)
	if err != nil {
		return SessionVerification{}, fmt.Errorf("%w: revocation lookup: %w", ErrSessionStore, err)
	}
	if revoked {
		return SessionVerification{}, ErrSessionRevoked
	}

	result := SessionVerification{User: user, Claims: claims, Outcome: SessionValid}
	if !ShouldRefresh(v.now(), claims.Expiry(), v.windowFor(claims)) {
		return result, nil
	}

	issued, err := v.issuer.Issue(claims.Identity(), claims.Fingerprint(), 0)
	if err != nil {
		v.logger.Warn("session reissue failed", zap.Error(err), zap.String("user_id", user.ID))
		return result, nil
	}
	result.Outcome = SessionReissued
	result.Reissued = &issued
	return result, nil
}
