package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"blogspot-api/internal/config"
	"blogspot-api/internal/db"
	"blogspot-api/internal/email"
	apihttp "blogspot-api/internal/http"
	"blogspot-api/internal/logger"
	"blogspot-api/internal/metrics"
	"blogspot-api/internal/repository"
	"blogspot-api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zl, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zl.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	issuer, err := service.NewSessionIssuer(cfg.SessionSecret, cfg.SessionTTL())
	if err != nil {
		zl.Fatal("session issuer", zap.Error(err))
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		zl.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		zl.Fatal("db migrate", zap.Error(err))
	}

	userRepo := repository.NewPgUserRepository(pool)
	categoryRepo := repository.NewPgCategoryRepository(pool)
	revokedRepo := repository.NewPgRevokedSessionRepository(pool)

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			zl.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	var (
		otpLimiter  service.OTPRateLimiter
		redisClient *redis.Client
	)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := client.Ping(ctxPing).Err(); err != nil {
			zl.Warn("redis ping failed", zap.Error(err))
			_ = client.Close()
		} else {
			redisClient = client
			defer redisClient.Close()
			otpLimiter = service.NewRedisOTPRateLimiter(redisClient, 10*time.Minute, 3)
		}
		cancel()
	}
	ledger := service.NewRedisCachedRevocationLedger(redisClient, revokedRepo, zl)

	m := metrics.New()
	verifier := service.NewSessionVerifier(zl, issuer, userRepo, ledger, service.SessionVerifierOptions{
		RefreshWindow: service.DefaultRefreshWindow,
		BindUserAgent: cfg.SessionBindUserAgent,
	})
	janitor := service.NewLedgerJanitor(zl, ledger, cfg.RevocationPruneInterval).OnPrune(m.AddPruned)
	go janitor.Run(ctx)

	userSvc := service.NewUserService(zl, userRepo, emailSender, otpLimiter, cfg.ResetURL)
	cookies := apihttp.NewSessionCookies(cfg.CookiePolicy(), issuer.TTL())

	router := apihttp.NewRouter(apihttp.RouterDeps{
		Logger:       zl,
		Metrics:      m,
		AllowOrigins: cfg.AllowOrigins,
		Session:      apihttp.SessionMiddleware(zl, verifier, cookies, m),
		Health: func(ctx context.Context) error {
			return db.Ping(ctx, pool)
		},
		Auth:    apihttp.NewAuthHandler(zl, userSvc, issuer, ledger, cookies),
		Public:  apihttp.NewPublicHandler(zl, categoryRepo),
		Profile: apihttp.NewProfileHandler(),
	})
	if err := router.SetTrustedProxies(cfg.TrustedProxy); err != nil {
		zl.Fatal("trusted proxies", zap.Error(err))
	}

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		zl.Info("starting server", zap.String("port", cfg.HTTPPort), zap.String("mode", cfg.Mode))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zl.Error("server shutdown", zap.Error(err))
	}
}
