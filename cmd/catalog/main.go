package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/catalogforge/catalog/pkg/api"
	"github.com/catalogforge/catalog/pkg/audit"
	"github.com/catalogforge/catalog/pkg/auth"
	"github.com/catalogforge/catalog/pkg/catalog"
	"github.com/catalogforge/catalog/pkg/config"
	"github.com/catalogforge/catalog/pkg/fulfillment"
	"github.com/catalogforge/catalog/pkg/middleware"
	"github.com/catalogforge/catalog/pkg/notifications"
	"github.com/catalogforge/catalog/pkg/observability"
	"github.com/catalogforge/catalog/pkg/provision"
	"github.com/catalogforge/catalog/pkg/rbac"
	"github.com/catalogforge/catalog/pkg/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "catalog: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Log.Level, os.Stdout)
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnLifetime)

	if err := catalog.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("Database migrations applied")

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		defer redisClient.Close()
	}

	store := catalog.NewStore(db)
	entStore := rbac.NewStore(db)

	var entitlements rbac.EntitlementSource = entStore
	var cache api.EntitlementCache
	if cfg.Cache.Enabled {
		cached, err := rbac.NewCachedEntitlements(entStore, redisClient, cfg.Cache.L1Size, cfg.Cache.TTL, metrics)
		if err != nil {
			return fmt.Errorf("failed to build entitlement cache: %w", err)
		}
		entitlements = cached
		cache = cached
	}

	resolver := rbac.NewScopeResolver(entitlements, logger)
	approval := provision.NewApprovalClient(cfg.Approval.URL, cfg.Approval.Timeout, logger)
	gate := rbac.NewGate(resolver, entitlements, store, approval, logger)

	var provisioner catalog.Provisioner
	if cfg.Provisioner.TokenURL != "" {
		provisioner = provision.NewOAuthClient(ctx, cfg.Provisioner.URL, cfg.Provisioner.Timeout, provision.OAuthConfig{
			TokenURL:     cfg.Provisioner.TokenURL,
			ClientID:     cfg.Provisioner.ClientID,
			ClientSecret: cfg.Provisioner.ClientSecret,
		}, logger)
	} else {
		provisioner = provision.NewClient(cfg.Provisioner.URL, cfg.Provisioner.Timeout, logger)
	}
	service := catalog.NewService(store, provisioner, logger, metrics)

	icons, err := buildIconStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build icon store: %w", err)
	}

	notifier := notifications.NewNotifier(ctx, notifications.NewRetryPolicy(notifications.DefaultRetryConfig()), logger)
	processor := fulfillment.NewProcessor(store, notifier, logger, metrics)
	consumer := fulfillment.NewConsumer(ctx, processor, 4, 30*time.Second, logger)

	auditLog := audit.NewDBLogger(db, logger)

	var oidcAuth *auth.OIDCAuthenticator
	if cfg.Identity.OIDCIssuer != "" {
		oidcAuth, err = auth.NewOIDCAuthenticator(ctx, cfg.Identity.OIDCIssuer, cfg.Identity.OIDCClientID)
		if err != nil {
			return fmt.Errorf("failed to configure OIDC: %w", err)
		}
	}
	identity := middleware.NewIdentity(oidcAuth, logger)

	deps := api.Deps{
		Store:        store,
		Service:      service,
		Gate:         gate,
		Resolver:     resolver,
		Entitlements: entStore,
		Cache:        cache,
		Audit:        auditLog,
		AuditReader:  auditLog,
		Icons:        icons,
		Consumer:     consumer,
		Notifier:     notifier,
		AdminRole:    cfg.Identity.AdminRole,
		Identity:     identity.Handler,
		Logger:       logger,
	}
	if redisClient != nil {
		limiter := middleware.NewRateLimiter(redisClient, middleware.DefaultRateLimitConfig(), "catalog", logger)
		deps.RateLimit = limiter.Handler
	}
	apiServer := api.NewServer(deps)

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      apiServer,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	health := observability.NewHealthChecker(db, redisClient)
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/health/live", health.Liveness)
	healthMux.HandleFunc("/health/ready", health.Readiness)
	healthMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	scheduler := cron.New()
	if cfg.Sweeper.Enabled {
		sweeper := catalog.NewSweeper(store, cfg.Sweeper.MaxAge, logger)
		_, err := scheduler.AddFunc(cfg.Sweeper.Schedule, func() {
			if flagged, err := sweeper.Run(ctx); err != nil {
				logger.WithError(err).Error("Stuck order item sweep failed")
			} else if flagged > 0 {
				logger.WithField("flagged", flagged).Info("Flagged stuck order items")
			}
		})
		if err != nil {
			return fmt.Errorf("invalid sweeper schedule %q: %w", cfg.Sweeper.Schedule, err)
		}
		scheduler.Start()
	}

	sm := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	sm.RegisterShutdownFunc(func(shutdownCtx context.Context) error {
		return healthServer.Shutdown(shutdownCtx)
	})
	sm.RegisterShutdownFunc(func(context.Context) error {
		scheduler.Stop()
		return nil
	})
	sm.RegisterShutdownFunc(func(shutdownCtx context.Context) error {
		deadline := cfg.Server.ShutdownTimeout
		if d, ok := shutdownCtx.Deadline(); ok {
			deadline = time.Until(d)
		}
		return consumer.Shutdown(deadline)
	})

	group, _ := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.WithField("addr", httpServer.Addr).Info("Catalog API listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("Health endpoint listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(sm.WaitForShutdown)

	return group.Wait()
}

func buildIconStore(ctx context.Context, cfg *config.Config) (storage.IconStore, error) {
	switch cfg.Icons.Type {
	case "s3":
		return storage.NewS3Store(ctx, storage.S3Config{
			Endpoint:     cfg.Icons.S3Endpoint,
			Region:       cfg.Icons.S3Region,
			Bucket:       cfg.Icons.S3Bucket,
			AccessKey:    cfg.Icons.S3AccessKey,
			SecretKey:    cfg.Icons.S3SecretKey,
			UsePathStyle: cfg.Icons.S3UsePathStyle,
		})
	default:
		return storage.NewFilesystemStore(cfg.Icons.FilesystemRoot)
	}
}
