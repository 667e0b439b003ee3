package domain

import "time"

type User struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	DisplayName     string     `json:"name"`
	PasswordHash    string     `json:"-"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	OtpCodeHash     string     `json:"-"`
	OtpExpiresAt    *time.Time `json:"-"`
	ResetTokenHash  string     `json:"-"`
	ResetExpiresAt  *time.Time `json:"-"`
	ResetConsumed   bool       `json:"-"`
	SignupIP        string     `json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Verified indica si el email del usuario fue confirmado con OTP.
func (u User) Verified() bool {
	return u.EmailVerifiedAt != nil
}
