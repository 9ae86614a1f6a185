package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/baselinehq/baseline/internal/config"
	"github.com/baselinehq/baseline/internal/ingest"
	"github.com/baselinehq/baseline/internal/observability"
	"github.com/baselinehq/baseline/internal/storage"
	localstore "github.com/baselinehq/baseline/internal/storage/local"
	s3store "github.com/baselinehq/baseline/internal/storage/s3"
)

func main() {
	atpPlayers := flag.String("atp-players", "", "comma-separated ATP players CSV paths")
	wtaPlayers := flag.String("wta-players", "", "comma-separated WTA players CSV paths")
	atpRankings := flag.String("atp-rankings", "", "comma-separated ATP rankings CSV paths")
	wtaRankings := flag.String("wta-rankings", "", "comma-separated WTA rankings CSV paths")
	atpMatches := flag.String("atp-matches", "", "comma-separated ATP matches CSV paths")
	wtaMatches := flag.String("wta-matches", "", "comma-separated WTA matches CSV paths")
	upload := flag.Bool("upload", false, "publish the parquet files to the configured object store")
	flag.Parse()

	cfg, err := config.LoadFromEnv("baseline-ingest")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	sources := ingest.Sources{
		Players:  append(splitSources(*atpPlayers, "ATP"), splitSources(*wtaPlayers, "WTA")...),
		Rankings: append(splitSources(*atpRankings, "ATP"), splitSources(*wtaRankings, "WTA")...),
		Matches:  append(splitSources(*atpMatches, "ATP"), splitSources(*wtaMatches, "WTA")...),
	}
	if len(sources.Players) == 0 && len(sources.Rankings) == 0 && len(sources.Matches) == 0 {
		fmt.Fprintln(os.Stderr, "at least one CSV source flag is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()
	var store storage.ObjectStore
	if *upload {
		store, err = openObjectStore(ctx, cfg)
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
	}

	runner := ingest.NewRunner(logger, store)
	summary, err := runner.Run(ctx, sources, cfg.Dataset.DataDir)
	if err != nil {
		logger.Error("ingest failed", slog.Any("error", err))
		os.Exit(1)
	}
	fmt.Printf("ingested %d players, %d rankings, %d matches into %s\n",
		summary.Players, summary.Rankings, summary.Matches, cfg.Dataset.DataDir)
}

func splitSources(raw, tour string) []ingest.Source {
	var sources []ingest.Source
	for _, path := range strings.Split(raw, ",") {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		sources = append(sources, ingest.Source{Path: path, Tour: tour})
	}
	return sources
}

func openObjectStore(ctx context.Context, cfg config.Config) (storage.ObjectStore, error) {
	if strings.HasPrefix(cfg.ObjectStore.Endpoint, "file://") {
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
