package http

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"blogspot-api/internal/domain"
	"blogspot-api/internal/metrics"
	"blogspot-api/internal/service"
)

const (
	sessionUserKey   = "session_user"
	sessionClaimsKey = "session_claims"
)

// SessionMiddleware valida la sesión por cookie antes de cualquier handler protegido.
func SessionMiddleware(logger *zap.Logger, verifier *service.SessionVerifier, cookies SessionCookies, m *metrics.Metrics) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if verifier == nil {
			logger.Error("session verifier not configured")
			m.ObserveSession("error")
			respondInternal(c)
			return
		}

		fp := domain.Fingerprint{
			ClientIP:  c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}
		result, err := verifier.Verify(c.Request.Context(), readSessionCookie(c), fp)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrAuthenticationRequired):
				logger.Debug("session rejected", zap.Error(err), zap.String("path", c.Request.URL.Path))
				m.ObserveSession("rejected")
				respondUnauthorized(c)
			default:
				logger.Error("session verification failed", zap.Error(err))
				m.ObserveSession("error")
				respondInternal(c)
			}
			return
		}

		if result.Reissued != nil {
			cookies.Set(c, *result.Reissued)
		}
		m.ObserveSession(string(result.Outcome))

		c.Set(sessionUserKey, result.User)
		c.Set(sessionClaimsKey, result.Claims)
		c.Next()
	}
}

// CurrentUser obtiene el usuario autenticado desde el contexto.
func CurrentUser(c *gin.Context) (domain.User, bool) {
	val, ok := c.Get(sessionUserKey)
	if !ok {
		return domain.User{}, false
	}
	user, ok := val.(domain.User)
	return user, ok
}

// SessionClaims obtiene los claims de la credencial verificada.
func SessionClaims(c *gin.Context) (service.SessionClaims, bool) {
	val, ok := c.Get(sessionClaimsKey)
	if !ok {
		return service.SessionClaims{}, false
	}
	claims, ok := val.(service.SessionClaims)
	return claims, ok
}
