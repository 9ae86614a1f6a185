package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/baselinehq/baseline/internal/bench"
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
	"github.com/baselinehq/baseline/internal/transform"
)

func main() {
	suitePath := flag.String("suite", "", "path to the JSON question suite")
	recordPath := flag.String("records", "", "optional JSON-lines file receiving one record per turn")
	flag.Parse()

	if *suitePath == "" {
		fmt.Fprintln(os.Stderr, "-suite is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadFromEnv("baseline-bench")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stderr)

	suite, err := bench.LoadSuite(*suitePath)
	if err != nil {
		logger.Error("failed to load suite", slog.Any("error", err))
		os.Exit(1)
	}

	registry := schema.Default()
	ctx := context.Background()
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

	var sink engine.Sink
	if *recordPath != "" {
		recordFile, err := os.Create(*recordPath)
		if err != nil {
			logger.Error("failed to create records file", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = recordFile.Close() }()
		sink = engine.NewJSONLSink(recordFile)
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
		Cache:        cache.NewMemory(),
		Sink:         sink,
		RowLimit:     cfg.Dataset.RowLimit,
		QueryTimeout: cfg.Dataset.QueryTimeout,
	})
	if err != nil {
		logger.Error("failed to build pipeline engine", slog.Any("error", err))
		os.Exit(1)
	}

	report, err := bench.NewRunner(eng).Run(ctx, suite)
	if err != nil {
		logger.Error("bench run failed", slog.Any("error", err))
		os.Exit(1)
	}
	bench.WriteSummary(os.Stdout, report)
}
