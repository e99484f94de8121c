package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/campusgate/campusgate/pkg/accounts"
	"github.com/campusgate/campusgate/pkg/api"
	"github.com/campusgate/campusgate/pkg/audit"
	"github.com/campusgate/campusgate/pkg/auth"
	"github.com/campusgate/campusgate/pkg/config"
	"github.com/campusgate/campusgate/pkg/middleware"
	"github.com/campusgate/campusgate/pkg/observability"
	"github.com/campusgate/campusgate/pkg/sso"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		os.Stderr.WriteString("configuration error: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	// OpenTelemetry
	var otelProviders *observability.OTelProviders
	if cfg.Observability.OTelEnabled {
		providers, err := observability.InitOTel(ctx, observability.OTelConfig{
			Enabled:        true,
			Endpoint:       cfg.Observability.OTelEndpoint,
			ServiceName:    cfg.Observability.OTelServiceName,
			ServiceVersion: cfg.Observability.OTelServiceVersion,
			Insecure:       cfg.Observability.OTelInsecure,
		}, logger)
		if err != nil {
			return err
		}
		otelProviders = providers
		defer observability.ShutdownOTel(context.Background(), otelProviders, logger)
		logger.Info("OpenTelemetry initialized")
	}

	// Database
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnLifetime)

	if err := db.PingContext(ctx); err != nil {
		return err
	}
	if err := accounts.RunMigrations(ctx, db); err != nil {
		return err
	}
	logger.Info("database ready")

	// Redis is optional; without it rate limiting is per instance
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return err
		}
		if cfg.Redis.Password != "" {
			opts.Password = cfg.Redis.Password
		}
		opts.DB = cfg.Redis.DB
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis unreachable at startup, continuing")
		}
		defer redisClient.Close()
	}

	// Metrics
	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
		go metrics.CollectDBStats(ctx, db, 15*time.Second)
	}

	// Token codec and account store
	codec, err := auth.NewCodec(cfg.Auth.SigningKey, cfg.Auth.Issuer)
	if err != nil {
		return err
	}
	store := accounts.NewPostgresStore(db)

	// Google sign-in
	var verifier auth.IdentityVerifier
	var provider *sso.GoogleProvider
	if cfg.Google.Enabled {
		googleVerifier, err := sso.NewGoogleVerifier(ctx, cfg.Google.IssuerURL, cfg.Google.ClientIDs)
		if err != nil {
			return err
		}
		verifier = googleVerifier

		if cfg.Google.ClientSecret != "" && cfg.Google.RedirectURL != "" {
			provider, err = sso.NewGoogleProvider(ctx, sso.ProviderConfig{
				ClientID:     cfg.Google.ClientIDs[0],
				ClientSecret: cfg.Google.ClientSecret,
				RedirectURL:  cfg.Google.RedirectURL,
			}, googleVerifier)
			if err != nil {
				return err
			}
		}
		logger.WithField("audiences", len(cfg.Google.ClientIDs)).Info("google sign-in enabled")
	}

	service := auth.NewService(store, codec, verifier, cfg.Auth.TokenTTL, logger)

	// Audit trail
	var auditLogger audit.Logger = audit.NopLogger{}
	if cfg.Audit.Enabled {
		dbAudit, err := audit.NewDBLogger(db)
		if err != nil {
			return err
		}
		auditLogger = dbAudit
	}

	// Access policy
	rules := middleware.DefaultRules()
	if cfg.Auth.PolicyFile != "" {
		rules, err = middleware.LoadRulesFile(cfg.Auth.PolicyFile)
		if err != nil {
			return err
		}
		logger.WithField("file", cfg.Auth.PolicyFile).Info("loaded access policy from file")
	}
	policy, err := middleware.NewAccessPolicy(rules, metrics, auditLogger, logger)
	if err != nil {
		return err
	}

	// Rate limiting: distributed when Redis is configured
	var rateLimit func(http.Handler) http.Handler
	if redisClient != nil {
		rateLimit = middleware.NewDistributedRateLimitMiddleware(redisClient, metrics, logger).Handler
	} else {
		rl := middleware.NewRateLimitMiddleware(metrics)
		rateLimit = rl.Handler
	}

	server := api.NewServer(api.ServerOptions{
		Store:     store,
		Service:   service,
		Codec:     codec,
		Provider:  provider,
		Audit:     auditLogger,
		Policy:    policy,
		RateLimit: rateLimit,
		Metrics:   metrics,
		Logger:    logger,
		TraceHTTP: cfg.Observability.OTelEnabled,
	})

	// Health and metrics on a separate port for probes
	health := observability.NewHealthChecker(db, redisClient)
	healthRouter := mux.NewRouter()
	healthRouter.HandleFunc("/healthz", health.Liveness).Methods("GET")
	healthRouter.HandleFunc("/readyz", health.Readiness).Methods("GET")
	healthRouter.Handle("/metrics", observability.Handler(registry)).Methods("GET")

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthRouter,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("starting API server")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("starting health server")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("API server shutdown failed")
		}
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("health server shutdown failed")
		}
		return nil
	})

	return group.Wait()
}
