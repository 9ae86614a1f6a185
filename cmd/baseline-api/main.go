package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/baselinehq/baseline/internal/api"
	"github.com/baselinehq/baseline/internal/auth"
	"github.com/baselinehq/baseline/internal/cache"
	"github.com/baselinehq/baseline/internal/config"
	"github.com/baselinehq/baseline/internal/dataset"
	"github.com/baselinehq/baseline/internal/engine"
	"github.com/baselinehq/baseline/internal/guard"
	"github.com/baselinehq/baseline/internal/nl2sql"
	"github.com/baselinehq/baseline/internal/observability"
	"github.com/baselinehq/baseline/internal/resolve"
	"github.com/baselinehq/baseline/internal/router"
	"github.com/baselinehq/baseline/internal/schema"
	"github.com/baselinehq/baseline/internal/session"
	"github.com/baselinehq/baseline/internal/storage"
	localstore "github.com/baselinehq/baseline/internal/storage/local"
	s3store "github.com/baselinehq/baseline/internal/storage/s3"
	"github.com/baselinehq/baseline/internal/transform"
)

func main() {
	cfg, err := config.LoadFromEnv("baseline-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	registry := schema.Default()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Dataset.SyncFromObjectStore {
		store, err := openObjectStore(ctx, cfg)
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		if err := dataset.Sync(ctx, store, cfg.Dataset.DataDir, registry.Tables()); err != nil {
			logger.Error("failed to sync dataset", slog.Any("error", err))
			os.Exit(1)
		}
	}

	db, err := dataset.Open(ctx, cfg.Dataset.DuckDBPath, cfg.Dataset.DataDir, registry)
	if err != nil {
		logger.Error("failed to open dataset", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	var generator nl2sql.Generator
	if cfg.AI.Enabled {
		generator, err = nl2sql.NewOpenAIGenerator(nl2sql.OpenAIConfig{
			BaseURL: cfg.AI.BaseURL,
			APIKey:  cfg.AI.APIKey,
			Model:   cfg.AI.Model,
			Timeout: cfg.AI.Timeout,
		})
		if err != nil {
			logger.Error("failed to initialize sql generator", slog.Any("error", err))
			os.Exit(1)
		}
	}

	var turnCache cache.Cache
	if cfg.Pipeline.CacheEnabled {
		turnCache = cache.NewMemory()
	}

	var sink engine.Sink
	if cfg.Pipeline.AuditLog != "" {
		auditFile, err := os.OpenFile(cfg.Pipeline.AuditLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logger.Error("failed to open audit log", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = auditFile.Close() }()
		sink = engine.NewJSONLSink(auditFile)
	}

	eng, err := engine.New(engine.Dependencies{
		Logger:       logger,
		Registry:     registry,
		Sessions:     session.NewStore(),
		Resolver:     resolve.NewResolver(db.SQL()),
		Router:       router.New(registry),
		Transformer:  transform.New(registry),
		Guard:        guard.New(registry, guard.Config{MaxJoins: cfg.Pipeline.MaxJoins}),
		Generator:    generator,
		Executor:     db,
		Cache:        turnCache,
		Sink:         sink,
		RowLimit:     cfg.Dataset.RowLimit,
		QueryTimeout: cfg.Dataset.QueryTimeout,
	})
	if err != nil {
		logger.Error("failed to build pipeline engine", slog.Any("error", err))
		os.Exit(1)
	}

	readiness := []api.ReadinessCheck{api.CheckDatasetConfig(cfg)}
	if cfg.Dataset.SyncFromObjectStore && !isLocalEndpoint(cfg.ObjectStore.Endpoint) {
		readiness = append(readiness, api.CheckObjectStoreConfig(cfg))
	}
	deps := api.Dependencies{
		Logger:            logger,
		Engine:            eng,
		Registry:          registry,
		Readiness:         api.CombineReadinessChecks(readiness...),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

func openObjectStore(ctx context.Context, cfg config.Config) (storage.ObjectStore, error) {
	if isLocalEndpoint(cfg.ObjectStore.Endpoint) {
		return localstore.New(strings.TrimPrefix(cfg.ObjectStore.Endpoint, "file://"))
	}
	return s3store.New(ctx, s3store.Config{
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           cfg.ObjectStore.Region,
		Bucket:           cfg.ObjectStore.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
	})
}

func isLocalEndpoint(endpoint string) bool {
	return strings.HasPrefix(endpoint, "file://")
}
