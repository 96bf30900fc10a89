package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hireready/backend/internal/admin"
	"github.com/hireready/backend/internal/api"
	"github.com/hireready/backend/internal/auth"
	"github.com/hireready/backend/internal/cache"
	"github.com/hireready/backend/internal/config"
	"github.com/hireready/backend/internal/db"
	"github.com/hireready/backend/internal/health"
	"github.com/hireready/backend/internal/logger"
	"github.com/hireready/backend/internal/middleware"
	"github.com/hireready/backend/internal/notify"
	"github.com/hireready/backend/internal/quota"
	"github.com/hireready/backend/internal/verification"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := newLogger(cfg)
	logger.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		return err
	}

	var (
		statsCache admin.StatsCache
		limiter    middleware.Limiter
		redisPing  health.Pinger
	)
	if cfg.RedisAddr != "" {
		c, err := cache.New(ctx, cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, log)
		if err != nil {
			log.Warn(ctx, "redis unavailable, continuing without cache and rate limits", map[string]interface{}{
				"addr":  cfg.RedisAddr,
				"error": err.Error(),
			})
		} else {
			defer c.Close()
			statsCache, limiter, redisPing = c, c, c
		}
	}

	var notifier notify.Notifier = notify.NewLogNotifier(log)
	if cfg.AMQPURL != "" {
		n, err := notify.NewAMQPNotifier(cfg.AMQPURL, cfg.EmailExchange)
		if err != nil {
			return fmt.Errorf("connect email broker: %w", err)
		}
		defer n.Close()
		notifier = n
	}

	hasher, err := auth.NewHasher(&auth.HasherConfig{Workers: cfg.HashWorkers, Cost: cfg.BcryptCost}, log)
	if err != nil {
		return err
	}
	hasher.Start()

	issuer, err := auth.NewIssuer(auth.IssuerConfig{
		Secret:     cfg.JWTSecret,
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		return err
	}

	authService := auth.NewService(database, hasher, issuer,
		verification.NewManager(database.Tokens()),
		notifier,
		auth.ServiceConfig{
			RefreshRotation:      cfg.RefreshRotation,
			VerificationTokenTTL: cfg.VerificationTokenTTL,
			ResetTokenTTL:        cfg.ResetTokenTTL,
			AdminEmailDomain:     cfg.AdminEmailDomain,
		}, log)

	router := api.NewRouter(api.Config{
		Auth:               authService,
		Quota:              quota.NewTracker(database),
		Admin:              admin.NewService(database, statsCache, cfg.AdminEmailDomain, log),
		Health:             health.NewChecker(&health.CheckerConfig{Database: database, Redis: redisPing, Version: version}),
		Limiter:            limiter,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		CORSOrigins:        cfg.CORSOrigins,
		Log:                log,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "server starting", map[string]interface{}{"addr": cfg.ServerAddr, "version": version})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "http shutdown", err)
	}
	if err := hasher.Stop(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "hasher shutdown", err)
	}
	return nil
}

func newLogger(cfg *config.Config) *logger.Logger {
	level := logger.ParseLevel(cfg.LogLevel)
	if cfg.LogFormat == "console" {
		return logger.NewConsole(os.Stdout, level, "server")
	}
	return logger.New(os.Stdout, level, "server")
}
