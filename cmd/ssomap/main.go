package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/platinummonkey/ssomap/pkg/async"
	"github.com/platinummonkey/ssomap/pkg/config"
	"github.com/platinummonkey/ssomap/pkg/enrollment"
	"github.com/platinummonkey/ssomap/pkg/httputil"
	"github.com/platinummonkey/ssomap/pkg/middleware"
	"github.com/platinummonkey/ssomap/pkg/notify"
	"github.com/platinummonkey/ssomap/pkg/observability"
	"github.com/platinummonkey/ssomap/pkg/orgs"
	"github.com/platinummonkey/ssomap/pkg/policy"
	"github.com/platinummonkey/ssomap/pkg/roles"
	"github.com/platinummonkey/ssomap/pkg/sso"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

const dbStatsInterval = 15 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := setupLogger(cfg.Observability.LogLevel)
	log.WithFields(logrus.Fields{
		"addr":      cfg.Server.Addr(),
		"db_driver": cfg.Database.Driver,
		"redis":     cfg.Redis.Enabled(),
		"roles":     cfg.SSO.RolesEnabled,
		"invites":   cfg.SSO.OrganizationsInvite,
	}).Info("Starting ssomap")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatalf("ssomap stopped: %v", err)
	}
	log.Info("ssomap stopped")
}

func setupLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	return logger
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	appLogger := observability.NewLogger(cfg.LogLevel(), os.Stdout)

	// Telemetry
	providers, err := observability.InitOTel(ctx, cfg.OTelConfig(), appLogger)
	if err != nil {
		return fmt.Errorf("init opentelemetry: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	if providers != nil {
		otelMetrics, err := observability.NewOTelMetrics()
		if err != nil {
			return fmt.Errorf("init otel metrics: %w", err)
		}
		metrics.WithOTel(otelMetrics)
	}

	// Storage
	db, err := connectDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if err := orgs.Migrate(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("migrate organization schema: %w", err)
	}
	log.Info("Organization schema is up to date")

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = connectRedis(ctx, cfg.Redis)
		if err != nil {
			db.Close()
			return err
		}
		log.Info("Connected to Redis")
	}

	store := orgs.NewSQLStore(db)
	directory := orgs.NewCachedDirectory(store, cfg.SSO.OrgCacheTTL).OnLookup(func(hit bool) {
		metrics.RecordCacheLookup("organizations", hit)
	})

	// Enrollment
	runner := async.NewRunner(
		async.WithTimeout(cfg.Invite.TaskTimeout),
		async.WithLogger(appLogger),
	)
	enrollOpts := []enrollment.Option{
		enrollment.WithRunner(runner),
		enrollment.WithLogger(appLogger),
		enrollment.WithMetrics(metrics),
	}
	if smtpCfg := cfg.NotifySMTPConfig(); smtpCfg.Enabled() {
		enrollOpts = append(enrollOpts, enrollment.WithSender(notify.NewSMTPSender(smtpCfg)))
		log.WithField("smtp_host", smtpCfg.Host).Info("Invitation mail enabled")
	}
	var inviteTokens *enrollment.InviteTokens
	if cfg.Invite.Secret != "" {
		inviteTokens, err = enrollment.NewInviteTokens([]byte(cfg.Invite.Secret), "ssomap", cfg.Invite.TTL)
		if err != nil {
			return fmt.Errorf("invite tokens: %w", err)
		}
		enrollOpts = append(enrollOpts, enrollment.WithInvites(inviteTokens, cfg.Invite.BaseURL))
	}
	orchestrator := enrollment.NewOrchestrator(store, enrollOpts...)

	// Login pipeline
	settings := cfg.SSOSettings()
	verifier, err := sso.NewOIDCVerifier(ctx, settings)
	if err != nil {
		return err
	}

	deps := sso.ServiceDeps{
		Verifier:    verifier,
		Directory:   directory,
		Memberships: store,
		Enroller:    orchestrator,
		Metrics:     metrics,
		Logger:      appLogger,
	}
	if redisClient != nil {
		deps.Cache = sso.NewRedisLoginCache(redisClient, settings.LoginCacheTTL)
	}
	service := sso.NewService(settings, deps)

	// Membership confirmation requires a provider token that maps to admin
	auth := middleware.NewAuthMiddleware(verifier, roles.NewResolver(settings.Roles), settings.Attributes.UserID, appLogger)
	handlers := sso.NewHandlers(service, store, policy.NewSelector(store, directory)).
		WithAdminMiddleware(auth.Admin()...)
	if inviteTokens != nil {
		handlers.WithInvites(inviteTokens)
	}
	if rl := cfg.LoginRateLimit(); rl != nil {
		var limiter middleware.Limiter
		if redisClient != nil {
			limiter = middleware.NewDistributedRateLimiter(redisClient, rl, "")
		} else {
			local := middleware.NewRateLimiter(rl)
			local.StartCleanup(ctx)
			limiter = local
		}
		rateLimit := middleware.NewRateLimitMiddleware(limiter, rl, appLogger)
		if err := rateLimit.SetTrustedProxies(cfg.RateLimit.TrustedProxies); err != nil {
			return err
		}
		handlers.WithLoginMiddleware(rateLimit.Handler)
	}

	// HTTP
	router := mux.NewRouter()
	router.Use(observability.HTTPMetricsMiddleware(metrics))
	handlers.RegisterRoutes(router)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(router, registry)
	}
	observability.RegisterHealthRoutes(router,
		observability.NewHealthChecker(db, redisClient).WithVersion(cfg.Observability.OTelServiceVersion))

	handler := httputil.Chain(
		httputil.RequestIDMiddleware(appLogger),
		httputil.LoggingMiddleware(appLogger),
		httputil.RecoveryMiddleware(appLogger),
		httputil.MaxBytesMiddleware(cfg.Server.MaxBodyBytes),
	)(router)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      otelhttp.NewHandler(handler, "ssomap"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Shutdown order: stop accepting requests, drain mail, flush telemetry,
	// then close connections
	shutdown := observability.NewShutdownManager(appLogger, server, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc("background tasks", runner.Close)
	shutdown.RegisterShutdownFunc("opentelemetry", providers.Shutdown)
	if redisClient != nil {
		shutdown.RegisterShutdownFunc("redis", func(context.Context) error {
			return redisClient.Close()
		})
	}
	shutdown.RegisterShutdownFunc("database", func(context.Context) error {
		return db.Close()
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithField("addr", server.Addr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return shutdown.WaitForShutdown(gctx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(dbStatsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.UpdateDBStats(db.Stats())
			case <-gctx.Done():
				return nil
			}
		}
	})

	return g.Wait()
}

func connectDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLife)
	if cfg.Driver == "sqlite3" {
		// SQLite serializes writers; one connection avoids "database is locked"
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func connectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB > 0 {
		opts.DB = cfg.DB
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}
