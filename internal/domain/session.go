package domain

import "time"

// Fingerprint identifica al cliente que recibió una credencial de sesión.
type Fingerprint struct {
	ClientIP  string `json:"ip"`
	UserAgent string `json:"user_agent"`
}

// RevokedSession es una entrada del ledger de revocación de un usuario.
type RevokedSession struct {
	UserID    string    `json:"user_id"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	RevokedAt time.Time `json:"revoked_at"`
}
