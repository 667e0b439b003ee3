package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"blogspot-api/internal/domain"
)

const sessionIssuerName = "blogspot-api"

// ErrSessionSecretMissing indica un error de configuración: no hay secreto de firma.
var ErrSessionSecretMissing = errors.New("session secret not configured")

// SessionIdentity es la identidad embebida en una credencial de sesión.
type SessionIdentity struct {
	UserID string
	Email  string
}

// SessionClaims es el payload firmado de la credencial de sesión.
type SessionClaims struct {
	UserID    string `json:"uid"`
	Email     string `json:"email"`
	ClientIP  string `json:"ip"`
	UserAgent string `json:"ua"`
	jwt.RegisteredClaims
}

// Identity devuelve la identidad contenida en los claims.
func (c SessionClaims) Identity() SessionIdentity {
	return SessionIdentity{UserID: c.UserID, Email: c.Email}
}

// Fingerprint devuelve el cliente para el que se emitió la credencial.
func (c SessionClaims) Fingerprint() domain.Fingerprint {
	return domain.Fingerprint{ClientIP: c.ClientIP, UserAgent: c.UserAgent}
}

// Expiry devuelve el instante absoluto de expiración.
func (c SessionClaims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Lifetime devuelve exp - iat; cero si falta alguno.
func (c SessionClaims) Lifetime() time.Duration {
	if c.ExpiresAt == nil || c.IssuedAt == nil {
		return 0
	}
	return c.ExpiresAt.Sub(c.IssuedAt.Time)
}

// IssuedSession es una credencial recién firmada.
type IssuedSession struct {
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionIssuer firma y decodifica credenciales de sesión HS256.
type SessionIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewSessionIssuer falla con ErrSessionSecretMissing si el secreto está vacío.
func NewSessionIssuer(secret string, ttl time.Duration) (*SessionIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrSessionSecretMissing
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SessionIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: sessionIssuerName,
		now:    time.Now,
	}, nil
}

// WithClock reemplaza el reloj; pensado para tests.
func (s *SessionIssuer) WithClock(now func() time.Time) *SessionIssuer {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *SessionIssuer) TTL() time.Duration {
	return s.ttl
}

// Issue firma una credencial con expiración now+ttl; ttl <= 0 usa el TTL por defecto.
func (s *SessionIssuer) Issue(identity SessionIdentity, fp domain.Fingerprint, ttl time.Duration) (IssuedSession, error) {
	if s == nil || len(s.secret) == 0 {
		return IssuedSession{}, ErrSessionSecretMissing
	}
	if strings.TrimSpace(identity.UserID) == "" {
		return IssuedSession{}, ErrSessionMalformed
	}
	if ttl <= 0 {
		ttl = s.ttl
	}

	now := s.now().UTC()
	claims := SessionClaims{
		UserID:    identity.UserID,
		Email:     identity.Email,
		ClientIP:  fp.ClientIP,
		UserAgent: fp.UserAgent,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return IssuedSession{}, err
	}
	return IssuedSession{Token: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Parse verifica firma, emisor y expiración.
func (s *SessionIssuer) Parse(token string) (SessionClaims, error) {
	if s == nil || len(s.secret) == 0 {
		return SessionClaims{}, ErrSessionSecretMissing
	}
	if strings.TrimSpace(token) == "" {
		return SessionClaims{}, ErrSessionMissing
	}

	var claims SessionClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(token, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return SessionClaims{}, ErrSessionExpired
		}
		return SessionClaims{}, ErrSessionMalformed
	}
	if strings.TrimSpace(claims.UserID) == "" || claims.Subject != claims.UserID {
		return SessionClaims{}, ErrSessionMalformed
	}
	return claims, nil
}
