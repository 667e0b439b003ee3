package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"blogspot-api/internal/config"
	"blogspot-api/internal/service"
)

const (
	cookieSessionToken = "user_token"
	cookieLoginFlag    = "isLogin"
	loginFlagValue     = "yes"
)

// SessionCookies escribe y borra el par de cookies de sesión según la política del modo.
type SessionCookies struct {
	policy config.CookiePolicy
	ttl    time.Duration
}

func NewSessionCookies(policy config.CookiePolicy, ttl time.Duration) SessionCookies {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return SessionCookies{policy: policy, ttl: ttl}
}

func (s SessionCookies) Set(c *gin.Context, issued service.IssuedSession) {
	maxAge := int(s.ttl.Seconds())
	c.SetSameSite(s.policy.SameSite)
	c.SetCookie(cookieSessionToken, issued.Token, maxAge, "/", s.policy.Domain, s.policy.Secure, true)
	c.SetSameSite(s.policy.SameSite)
	c.SetCookie(cookieLoginFlag, loginFlagValue, maxAge, "/", s.policy.Domain, s.policy.Secure, true)
}

func (s SessionCookies) Clear(c *gin.Context) {
	c.SetSameSite(s.policy.SameSite)
	c.SetCookie(cookieSessionToken, "", -1, "/", s.policy.Domain, s.policy.Secure, true)
	c.SetSameSite(s.policy.SameSite)
	c.SetCookie(cookieLoginFlag, "", -1, "/", s.policy.Domain, s.policy.Secure, true)
}

// readSessionCookie devuelve el token solo si ambas cookies están presentes.
func readSessionCookie(c *gin.Context) string {
	flag, err := c.Cookie(cookieLoginFlag)
	if err != nil || flag != loginFlagValue {
		return ""
	}
	return readTokenCookie(c)
}

// readTokenCookie lee user_token sin mirar el flag; logout revoca lo que llegue.
func readTokenCookie(c *gin.Context) string {
	token, err := c.Cookie(cookieSessionToken)
	if err != nil {
		return ""
	}
	return token
}
