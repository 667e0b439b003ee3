package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"blogspot-api/internal/domain"
	"blogspot-api/internal/service"
)

// SessionRevoker es la parte del ledger que usa logout.
type SessionRevoker interface {
	Revoke(ctx context.Context, userID, token string, expiresAt time.Time) error
}

// AuthHandler mantiene dependencias para los endpoints de cuenta y sesión.
type AuthHandler struct {
	logger  *zap.Logger
	users   *service.UserService
	issuer  *service.SessionIssuer
	ledger  SessionRevoker
	cookies SessionCookies
}

func NewAuthHandler(logger *zap.Logger, users *service.UserService, issuer *service.SessionIssuer, ledger SessionRevoker, cookies SessionCookies) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		logger:  logger,
		users:   users,
		issuer:  issuer,
		ledger:  ledger,
		cookies: cookies,
	}
}

// Signup maneja POST /auth/signup.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid signup request", zap.Error(err))
		respondValidation(c, err)
		return
	}

	user, err := h.users.Signup(c.Request.Context(), service.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		ClientIP: c.ClientIP(),
	})
	if err != nil {
		h.accountError(c, "signup failed", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "otp send successfully", "userId": user.ID})
}

// VerifyOTP maneja POST /auth/verifyotp.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req struct {
		UserID string `json:"userId" binding:"required"`
		OTP    string `json:"otp" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid otp verify request", zap.Error(err))
		respondValidation(c, err)
		return
	}

	if _, err := h.users.VerifyOTP(c.Request.Context(), req.UserID, req.OTP); err != nil {
		if errors.Is(err, service.ErrOTPInvalid) {
			c.JSON(http.StatusForbidden, gin.H{"message": "notverified"})
			return
		}
		h.accountError(c, "verify otp failed", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "verified"})
}

// Login maneja POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		respondValidation(c, err)
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.accountError(c, "login failed", err)
		return
	}

	issued, err := h.issuer.Issue(
		service.SessionIdentity{UserID: user.ID, Email: user.Email},
		domain.Fingerprint{ClientIP: c.ClientIP(), UserAgent: c.Request.UserAgent()},
		0,
	)
	if err != nil {
		h.logger.Error("session issue failed", zap.Error(err), zap.String("user_id", user.ID))
		respondInternal(c)
		return
	}
	h.cookies.Set(c, issued)

	c.JSON(http.StatusOK, gin.H{
		"message": "login done",
		"user":    gin.H{"email": user.Email, "name": user.DisplayName},
	})
}

// TokenVerify maneja GET /auth/tokenverify; solo se alcanza detrás del gate.
func (h *AuthHandler) TokenVerify(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "valid auth"})
}

// ResetLink maneja POST /auth/resetlink.
func (h *AuthHandler) ResetLink(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid reset link request", zap.Error(err))
		respondValidation(c, err)
		return
	}

	if err := h.users.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			respondError(c, http.StatusForbidden, "No account with this email", nil)
			return
		}
		h.accountError(c, "reset link failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "reset link send"})
}

// NewResetToken maneja GET /auth/newresettoken?token=.
func (h *AuthHandler) NewResetToken(c *gin.Context) {
	token := c.Query("token")
	user, err := h.users.CheckResetToken(c.Request.Context(), token)
	if err != nil {
		h.accountError(c, "reset token check failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "token verified", "userId": user.ID, "token": token})
}

// NewPassword maneja POST /auth/newpassword.
func (h *AuthHandler) NewPassword(c *gin.Context) {
	var req struct {
		UserID   string `json:"userId" binding:"required"`
		Token    string `json:"token" binding:"required"`
		Password string `json:"password" binding:"required,password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid new password request", zap.Error(err))
		respondValidation(c, err)
		return
	}

	if err := h.users.ResetPassword(c.Request.Context(), req.UserID, req.Token, req.Password); err != nil {
		h.accountError(c, "password reset failed", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "password reset done"})
}

// Logout maneja GET /auth/logout: borra cookies, responde y después revoca.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := readTokenCookie(c)
	h.cookies.Clear(c)
	c.JSON(http.StatusOK, gin.H{"message": "logout done"})

	if token == "" || h.issuer == nil || h.ledger == nil {
		return
	}
	claims, err := h.issuer.Parse(token)
	if err != nil {
		h.logger.Debug("logout with unusable session", zap.Error(err))
		return
	}
	if err := h.ledger.Revoke(c.Request.Context(), claims.UserID, token, claims.Expiry()); err != nil {
		h.logger.Warn("session revoke failed", zap.Error(err), zap.String("user_id", claims.UserID))
	}
}

// accountError traduce los errores del servicio de cuentas a respuestas.
func (h *AuthHandler) accountError(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrEmailNotVerified):
		respondError(c, http.StatusUnauthorized, "Invalid email or password", nil)
	case errors.Is(err, service.ErrEmailTaken):
		respondError(c, http.StatusConflict, "Email already registered", nil)
	case errors.Is(err, service.ErrInvalidEmail):
		respondError(c, http.StatusForbidden, "Validation Error", "please enter a valid email")
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrOTPNotRequested),
		errors.Is(err, service.ErrOTPExpired):
		respondError(c, http.StatusNotFound, "User not found or code expired", nil)
	case errors.Is(err, service.ErrResetTokenInvalid):
		respondError(c, http.StatusNotFound, "Reset link is invalid or expired", nil)
	case errors.Is(err, service.ErrRateLimited):
		respondError(c, http.StatusTooManyRequests, "Too many requests", nil)
	case errors.Is(err, service.ErrEmailSendFailure):
		respondError(c, http.StatusServiceUnavailable, "Email delivery unavailable", nil)
	default:
		h.logger.Error(msg, zap.Error(err))
		respondInternal(c)
	}
}
