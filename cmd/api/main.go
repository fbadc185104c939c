// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the rewards HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Run database migrations (idempotent).
//  4. Connect to PostgreSQL (pgxpool).
//  5. Open the encryption cipher and the signing secret manager, then
//     watch the secret table for rotations made by other replicas.
//  6. Select the revocation list (Redis when configured, memory otherwise).
//  7. Start the audit pipeline and the authorization engine.
//  8. Wire the session service and HTTP handlers.
//  9. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/taibuivan/rewards/internal/api"
	"github.com/taibuivan/rewards/internal/auth/audit"
	"github.com/taibuivan/rewards/internal/auth/authz"
	"github.com/taibuivan/rewards/internal/auth/revocation"
	"github.com/taibuivan/rewards/internal/auth/secret"
	"github.com/taibuivan/rewards/internal/auth/session"
	"github.com/taibuivan/rewards/internal/auth/token"
	"github.com/taibuivan/rewards/internal/auth/tokencrypt"
	"github.com/taibuivan/rewards/internal/loyalty"
	"github.com/taibuivan/rewards/internal/platform/config"
	"github.com/taibuivan/rewards/internal/platform/constants"
	"github.com/taibuivan/rewards/internal/platform/metrics"
	"github.com/taibuivan/rewards/internal/platform/middleware"
	"github.com/taibuivan/rewards/internal/platform/migration"
	pgstore "github.com/taibuivan/rewards/internal/platform/postgres"
	redisstore "github.com/taibuivan/rewards/internal/platform/redis"
	"github.com/taibuivan/rewards/internal/users/account"
	"github.com/taibuivan/rewards/internal/users/auth"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("service_initializing", slog.String("version", constants.AppVersion))

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// Background workers stop when the process begins shutting down.
	runCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	// ── 3. Migrations ─────────────────────────────────────────────────────
	migrated, err := migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, cfg.Debug, log)
	must(log, err, "run migrations")
	log.Info("schema_ready",
		slog.Uint64("version", uint64(migrated.ToVersion)),
		slog.Bool("applied", migrated.Applied),
	)

	// ── 4. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	sqlDB := pgstore.OpenDB(pool)
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Error("sql handle close error", slog.Any("error", cerr))
		}
	}()

	// ── 5. Encryption & Signing Secrets ───────────────────────────────────
	cipher, ephemeralKey, err := newCipher(cfg, log)
	must(log, err, "initialize token encryption")

	secretOptions := []secret.Option{
		secret.WithStrict(cfg.IsProduction()),
		secret.WithMinLength(cfg.Auth.MinSecretLength),
		secret.WithGraceWindow(cfg.Auth.SecretGraceWindow),
		secret.WithLogger(log),
	}
	if ephemeralKey {
		// Rows sealed under a per-process key are unreadable after a restart.
		log.Warn("signing_secret_persistence_disabled")
	} else {
		secretRepository, err := secret.NewPostgresRepository(sqlDB, cipher)
		must(log, err, "initialize secret repository")
		secretOptions = append(secretOptions, secret.WithRepository(secretRepository))
	}

	secrets, err := secret.New(startupCtx, []byte(cfg.Auth.SigningSecret), secretOptions...)
	must(log, err, "initialize signing secret")
	go secrets.Watch(runCtx, cfg.Auth.SecretReloadInterval)

	// ── 6. Revocation List ────────────────────────────────────────────────
	meter := metrics.New(nil)

	revoked, rdb, err := newRevocationStore(startupCtx, cfg, log)
	must(log, err, "initialize revocation list")
	if rdb != nil {
		defer func() {
			log.Info("closing redis client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis close error", slog.Any("error", cerr))
			}
		}()
	}

	sweeper := revocation.NewSweeper(revoked, cfg.Auth.RevocationSweepInterval, log)
	sweeper.OnSweep = func(stats revocation.Stats) {
		meter.SetRevocationEntries(stats.TotalActive)
	}
	go sweeper.Run(runCtx)

	// ── 7. Audit & Authorization ──────────────────────────────────────────
	auditSink := audit.NewAsyncSink(audit.MultiSink{
		audit.NewLogSink(log),
		audit.NewPostgresSink(pool),
	}, cfg.Authz.AuditQueue, log)
	auditSink.OnDrop = func(audit.Record) { meter.IncAuditDropped() }

	loyaltyRepository := loyalty.NewPostgresRepository(pool)
	engine := authz.NewEngine(loyaltyRepository, auditSink,
		authz.WithLookupTimeout(cfg.Authz.LookupTimeout),
		authz.WithLogger(log),
		authz.WithObserver(func(action string, outcome authz.Outcome) {
			meter.ObserveDecision(action, outcome.String())
		}),
	)

	// ── 8. Domain Wiring ──────────────────────────────────────────────────
	accountRepository := account.NewPostgresRepository(pool)
	codec := token.NewCodec(cfg.Auth.Issuer, cfg.Auth.Audience)

	sessions := session.NewService(secrets, codec, revoked, account.NewDirectory(accountRepository),
		session.WithAccessTTL(cfg.Auth.AccessTokenTTL),
		session.WithRefreshTTL(cfg.Auth.RefreshTokenTTL),
		session.WithLogger(log),
		session.WithObserver(meter),
	)

	loginLimiter := middleware.NewRateLimiter(constants.LoginRateLimitRPS, constants.LoginRateLimitBurst)
	go loginLimiter.Run(runCtx)

	globalLimiter := middleware.NewRateLimiter(constants.DefaultRateLimitRPS, constants.DefaultRateLimitBurst)
	go globalLimiter.Run(runCtx)

	authService := auth.NewService(accountRepository, sessions, log)
	authHandler := auth.NewHandler(authService, auth.NewCookieJar(cipher, !cfg.IsDevelopment()), loginLimiter.Middleware)
	adminHandler := auth.NewAdminHandler(sessions, meter)
	accountHandler := account.NewHandler(account.NewService(accountRepository, log), engine)
	loyaltyHandler := loyalty.NewHandler(loyalty.NewService(loyaltyRepository, log), engine)

	// ── 9. Health handlers (wired with real dependency checkers) ──────────
	health := api.HealthDependencies{
		CheckDatabase: func(ctx context.Context) error {
			return pgstore.Ping(ctx, pool)
		},
		CheckSecret: func(context.Context) error {
			if status := secrets.Status(); !status.IsValid {
				return fmt.Errorf("signing secret failed validation: %v", status.Errors)
			}
			return nil
		},
	}
	if rdb != nil {
		health.CheckCache = func(ctx context.Context) error {
			return redisstore.Ping(ctx, rdb)
		}
	}
	liveness, readiness := api.NewHealthHandlers(health, log)

	// ── 10. HTTP Server ───────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      authHandler,
		Admin:     adminHandler,
		Account:   accountHandler,
		Loyalty:   loyaltyHandler,
	}

	server := api.NewServer(cfg, log, api.Dependencies{
		Verifier:    sessions,
		RateLimiter: globalLimiter,
		Metrics:     meter,
	}, handlers)

	// ── 11. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	shutdownErr := server.Shutdown(shutdownTimeout)
	stopWorkers()

	// Drain queued audit records before the pool closes.
	drainCtx, drainCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer drainCancel()
	if err := auditSink.Close(drainCtx); err != nil {
		log.Warn("audit drain incomplete",
			slog.Any("error", err),
			slog.Int64("dropped", auditSink.Dropped()),
		)
	}

	if shutdownErr != nil {
		log.Error("shutdown error", slog.Any("error", shutdownErr))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// newCipher opens the envelope cipher. Outside production a missing key is
// replaced by a per-process one, reported through ephemeral; refresh cookies
// sealed under it do not survive a restart.
func newCipher(cfg *config.Config, log *slog.Logger) (cipher *tokencrypt.Cipher, ephemeral bool, err error) {
	key := []byte(cfg.Auth.TokenEncryptionKey)
	if len(key) == 0 {
		generated, err := secret.GenerateMaterial()
		if err != nil {
			return nil, false, err
		}
		key = generated
		ephemeral = true
		log.Warn("token_encryption_key_generated",
			slog.String("hint", "set AUTH_TOKEN_ENCRYPTION_KEY to keep sessions and signing secrets across restarts"),
		)
	}

	cipher, err = tokencrypt.NewCipher(key)
	return cipher, ephemeral, err
}

// newRevocationStore returns the Redis-backed list when REDIS_URL is set so
// every replica sees the same revocations. The client is nil otherwise.
func newRevocationStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (revocation.Store, *goredis.Client, error) {
	if cfg.RedisURL == "" {
		if cfg.IsProduction() {
			log.Warn("revocation_list_in_memory",
				slog.String("hint", "revocations are not shared across replicas without REDIS_URL"),
			)
		}
		return revocation.NewMemoryStore(), nil, nil
	}

	rdb, err := redisstore.NewClient(ctx, cfg.RedisURL, log)
	if err != nil {
		return nil, nil, err
	}
	return revocation.NewRedisStore(rdb), rdb, nil
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is limited to startup wiring. After startup, all errors are returned
// and handled explicitly.
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
