package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"social-api/internal/config"
	"social-api/internal/db"
	"social-api/internal/email"
	apihttp "social-api/internal/http"
	"social-api/internal/repository"
	"social-api/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	if err := db.Ping(pingCtx, pool); err != nil {
		logger.Fatal("db ping", zap.Error(err))
	}
	cancelPing()

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
		logger.Info("migrations applied")
	}

	userRepo := repository.NewPgUserRepository(pool)
	postRepo := repository.NewPgPostRepository(pool)

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.Mail.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.Mail)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	resetLimiter, loginLimiter := newLimiters(ctx, cfg, logger)

	jwtSvc := service.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiresIn)
	authSvc := service.NewAuthService(logger, userRepo, service.NewBcryptHasher(cfg.Auth.BcryptCost), jwtSvc, emailSender, service.AuthOptions{
		ResetTTL:     cfg.Auth.PasswordResetTTL,
		ResetURLBase: cfg.AppBaseURL,
		ResetLimiter: resetLimiter,
		LoginLimiter: loginLimiter,
	})
	userSvc := service.NewUserService(logger, userRepo, postRepo)
	postSvc := service.NewPostService(logger, postRepo)

	metrics := apihttp.NewMetrics()
	router := apihttp.NewRouter(
		logger,
		apihttp.RouterOptions{RateLimitRPS: cfg.RateLimitRPS, RateLimitBurst: cfg.RateLimitBurst},
		metrics,
		apihttp.NewAuthMiddleware(logger, service.NewAuthGate(logger, userRepo, jwtSvc), metrics),
		apihttp.NewAuthHandler(logger, authSvc, apihttp.CookieConfig{TTL: cfg.Auth.CookieExpiresIn, Secure: cfg.Auth.CookieSecure}),
		apihttp.NewUserHandler(logger, userSvc),
		apihttp.NewPostHandler(logger, postSvc),
		pool,
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

// newLimiters usa Redis cuando responde; si no, contadores en memoria por
// proceso.
func newLimiters(ctx context.Context, cfg *config.Config, logger *zap.Logger) (service.RateLimiter, service.RateLimiter) {
	memoryReset := service.NewMemoryRateLimiter(cfg.ResetRequestWindow, cfg.ResetRequestLimit)
	memoryLogin := service.NewMemoryRateLimiter(cfg.LoginAttemptWindow, cfg.LoginAttemptLimit)
	if cfg.RedisAddr == "" {
		return memoryReset, memoryLogin
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctxPing).Err(); err != nil {
		logger.Warn("redis ping failed, using in-memory limiters", zap.Error(err))
		_ = client.Close()
		return memoryReset, memoryLogin
	}
	return service.NewRedisRateLimiter(client, "social:reset:", cfg.ResetRequestWindow, cfg.ResetRequestLimit),
		service.NewRedisRateLimiter(client, "social:login:", cfg.LoginAttemptWindow, cfg.LoginAttemptLimit)
}
