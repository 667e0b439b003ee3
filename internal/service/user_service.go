package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"blogspot-api/internal/domain"
	"blogspot-api/internal/email"
	"blogspot-api/internal/repository"
)

// UserService coordina reglas de negocio para cuentas.
type UserService struct {
	logger      *zap.Logger
	users       repository.UserRepository
	emailSender email.Sender
	otpLimiter  OTPRateLimiter
	resetURL    string
	now         func() time.Time
}

func NewUserService(logger *zap.Logger, users repository.UserRepository, emailSender email.Sender, otpLimiter OTPRateLimiter, resetURL string) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if otpLimiter == nil {
		otpLimiter = NewOTPRateLimiter(rateLimitWindow, rateLimitMax)
	}
	return &UserService{
		logger:      logger,
		users:       users,
		emailSender: emailSender,
		otpLimiter:  otpLimiter,
		resetURL:    strings.TrimRight(strings.TrimSpace(resetURL), "/"),
		now:         time.Now,
	}
}

// SignupInput son los datos de registro.
type SignupInput struct {
	Name     string
	Email    string
	Password string
	ClientIP string
}

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrOTPNotRequested    = errors.New("otp not requested")
	ErrOTPExpired         = errors.New("otp expired")
	ErrOTPInvalid         = errors.New("otp invalid")
	ErrResetTokenInvalid  = errors.New("reset token invalid")
	ErrEmailSendFailure   = errors.New("email send failed")
	ErrRateLimited        = errors.New("rate limited")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email")
	errServiceUnavailable = errors.New("user service not configured")
)

const (
	otpTTL          = 15 * time.Minute
	resetTTL        = 15 * time.Minute
	rateLimitWindow = 10 * time.Minute
	rateLimitMax    = 3
	bcryptCost      = 12
)

// Signup crea la cuenta o, si existe sin verificar, la sobrescribe y envía un OTP nuevo.
func (s *UserService) Signup(ctx context.Context, input SignupInput) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errServiceUnavailable
	}

	emailAddr := normalizeEmail(input.Email)
	if emailAddr == "" {
		return domain.User{}, ErrInvalidEmail
	}
	if !s.otpLimiter.Allow(emailAddr) {
		return domain.User{}, ErrRateLimited
	}

	existing, err := s.users.GetByEmail(ctx, emailAddr)
	found := err == nil
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if found && existing.Verified() {
		return domain.User{}, ErrEmailTaken
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	code, otpHash, expiresAt, err := generateOTP(s.now())
	if err != nil {
		return domain.User{}, fmt.Errorf("generate otp: %w", err)
	}

	now := s.now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        emailAddr,
		DisplayName:  strings.TrimSpace(input.Name),
		PasswordHash: string(passwordHash),
		OtpCodeHash:  otpHash,
		OtpExpiresAt: &expiresAt,
		SignupIP:     strings.TrimSpace(input.ClientIP),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if found {
		user.ID = existing.ID
		user.CreatedAt = existing.CreatedAt
		if err := s.users.UpdateSignup(ctx, user); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// se verificó entre la lectura y la escritura
				return domain.User{}, ErrEmailTaken
			}
			return domain.User{}, fmt.Errorf("update signup: %w", err)
		}
	} else if err := s.users.Create(ctx, user); err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	if s.emailSender == nil {
		return domain.User{}, ErrEmailSendFailure
	}
	if err := s.emailSender.SendVerificationOTP(ctx, emailAddr, user.DisplayName, code, expiresAt); err != nil {
		s.logger.Warn("send verification otp failed", zap.Error(err), zap.String("email", emailAddr))
		return domain.User{}, ErrEmailSendFailure
	}
	return user, nil
}

// VerifyOTP marca el email como verificado si el código coincide y sigue vigente.
func (s *UserService) VerifyOTP(ctx context.Context, userID, code string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errServiceUnavailable
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	if user.OtpCodeHash == "" || user.OtpExpiresAt == nil {
		return domain.User{}, ErrOTPNotRequested
	}
	if s.now().UTC().After(*user.OtpExpiresAt) {
		return domain.User{}, ErrOTPExpired
	}
	if !s.otpLimiter.Allow("verify:" + user.ID) {
		return domain.User{}, ErrRateLimited
	}
	code = strings.TrimSpace(code)
	if !isValidOTPCode(code) || !verifyOTP(code, user.OtpCodeHash) {
		return domain.User{}, ErrOTPInvalid
	}

	verifiedAt := s.now().UTC()
	if err := s.users.VerifyEmail(ctx, user.ID, verifiedAt); err != nil {
		return domain.User{}, fmt.Errorf("verify email: %w", err)
	}

	user.EmailVerifiedAt = &verifiedAt
	user.OtpCodeHash = ""
	user.OtpExpiresAt = nil
	return user, nil
}

func (s *UserService) Authenticate(ctx context.Context, emailAddr, password string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errServiceUnavailable
	}

	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if user.PasswordHash == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	if !user.Verified() {
		return domain.User{}, ErrEmailNotVerified
	}
	return user, nil
}

// RequestPasswordReset envía un link de un solo uso al email de la cuenta.
func (s *UserService) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	if s.users == nil {
		return errServiceUnavailable
	}

	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return ErrInvalidEmail
	}
	if !s.otpLimiter.Allow("reset:" + emailAddr) {
		return ErrRateLimited
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	token, tokenHash, err := generateResetToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	expiresAt := s.now().UTC().Add(resetTTL)
	if err := s.users.SetResetToken(ctx, user.ID, tokenHash, expiresAt); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	if s.emailSender == nil {
		return ErrEmailSendFailure
	}
	if err := s.emailSender.SendPasswordReset(ctx, emailAddr, user.DisplayName, s.resetLink(token), expiresAt); err != nil {
		s.logger.Warn("send password reset failed", zap.Error(err), zap.String("email", emailAddr))
		return ErrEmailSendFailure
	}
	return nil
}

// CheckResetToken devuelve el dueño de un token de reseteo vigente.
func (s *UserService) CheckResetToken(ctx context.Context, token string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errServiceUnavailable
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.User{}, ErrResetTokenInvalid
	}
	user, err := s.users.GetByResetToken(ctx, hashResetToken(token), s.now().UTC())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrResetTokenInvalid
		}
		return domain.User{}, fmt.Errorf("lookup reset token: %w", err)
	}
	return user, nil
}

// ResetPassword consume el token y guarda el nuevo password.
func (s *UserService) ResetPassword(ctx context.Context, userID, token, password string) error {
	if s.users == nil {
		return errServiceUnavailable
	}
	token = strings.TrimSpace(token)
	if _, err := uuid.Parse(strings.TrimSpace(userID)); err != nil || token == "" {
		return ErrResetTokenInvalid
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	ok, err := s.users.CompleteReset(ctx, strings.TrimSpace(userID), hashResetToken(token), string(passwordHash), s.now().UTC())
	if err != nil {
		return fmt.Errorf("complete reset: %w", err)
	}
	if !ok {
		return ErrResetTokenInvalid
	}
	return nil
}

func (s *UserService) getUser(ctx context.Context, userID string) (domain.User, error) {
	userID = strings.TrimSpace(userID)
	if _, err := uuid.Parse(userID); err != nil {
		return domain.User{}, ErrUserNotFound
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

func (s *UserService) resetLink(token string) string {
	return s.resetURL + "/resetpassword?token=" + url.QueryEscape(token)
}

func generateOTP(now time.Time) (string, string, time.Time, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", "", time.Time{}, err
	}
	code := fmt.Sprintf("%06d", n.Int64())

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", "", time.Time{}, err
	}
	saltStr := base64.StdEncoding.EncodeToString(salt)
	hashBytes := sha256.Sum256([]byte(saltStr + ":" + code))
	hash := base64.StdEncoding.EncodeToString(hashBytes[:])

	expiresAt := now.UTC().Add(otpTTL)
	return code, saltStr + ":" + hash, expiresAt, nil
}

func verifyOTP(code, stored string) bool {
	parts := strings.Split(stored, ":")
	if len(parts) != 2 {
		return false
	}
	saltStr := parts[0]
	expectedHash := parts[1]
	hashBytes := sha256.Sum256([]byte(saltStr + ":" + code))
	hash := base64.StdEncoding.EncodeToString(hashBytes[:])
	return subtle.ConstantTimeCompare([]byte(hash), []byte(expectedHash)) == 1
}

// generateResetToken devuelve el token que viaja por email y el hash que se persiste.
func generateResetToken() (string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	token := hex.EncodeToString(raw)
	return token, hashResetToken(token), nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidOTPCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// OTPRateLimiter limita la frecuencia de solicitudes de correo por clave.
type OTPRateLimiter interface {
	Allow(key string) bool
}

type otpRateLimiter struct {
	mu     sync.Mutex
	window    time.Duration
	max       int
	hits      map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewOTPRateLimiter crea un rate limiter en memoria.
func NewOTPRateLimiter(window time.Duration, max int) OTPRateLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &otpRateLimiter{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

func (l *otpRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now().UTC()
	cutoff := now.Add(-l.window)
	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(cutoff)
		l.lastSweep = now
	}
	entries := l.hits[key]
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.hits[key] = kept
		return false
	}
	kept = append(kept, now)
	l.hits[key] = kept
	return true
}

// sweep borra las claves cuyos hits ya salieron todos de la ventana.
func (l *otpRateLimiter) sweep(cutoff time.Time) {
	for key, entries := range l.hits {
		if len(entries) == 0 || !entries[len(entries)-1].After(cutoff) {
			delete(l.hits, key)
		}
	}
}
