package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"blogspot-api/internal/metrics"
)

// HealthCheck reporta si las dependencias del servicio responden.
type HealthCheck func(ctx context.Context) error

// RouterDeps reúne lo que necesita NewRouter.
type RouterDeps struct {
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
	AllowOrigins []string
	Session      gin.HandlerFunc
	Health       HealthCheck
	Auth         *AuthHandler
	Public       *PublicHandler
	Profile      *ProfileHandler
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(deps RouterDeps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	RegisterValidators()

	r := gin.New()
	r.Use(
		requestIDMiddleware(),
		zapLoggerMiddleware(logger),
		recoveryMiddleware(logger),
		corsMiddleware(deps.AllowOrigins),
		metricsMiddleware(deps.Metrics),
	)

	r.GET("/healthz", healthHandler(deps.Health, logger))
	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	public := r.Group("/public")
	public.GET("/", deps.Public.Home)
	public.GET("/getcategory", deps.Public.GetCategories)

	auth := r.Group("/auth")
	auth.POST("/signup", deps.Auth.Signup)
	auth.POST("/verifyotp", deps.Auth.VerifyOTP)
	auth.POST("/login", deps.Auth.Login)
	auth.GET("/tokenverify", deps.Session, deps.Auth.TokenVerify)
	auth.POST("/resetlink", deps.Auth.ResetLink)
	auth.GET("/newresettoken", deps.Auth.NewResetToken)
	auth.POST("/newpassword", deps.Auth.NewPassword)
	auth.GET("/logout", deps.Auth.Logout)

	profile := r.Group("/profile", deps.Session)
	profile.GET("/me", deps.Profile.Me)

	r.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "Route not found", nil)
	})

	return r
}

func healthHandler(check HealthCheck, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			if err := check(c.Request.Context()); err != nil {
				logger.Warn("health check failed", zap.Error(err))
				respondError(c, http.StatusServiceUnavailable, "Service unavailable", nil)
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
