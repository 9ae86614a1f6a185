// Package ingest builds the parquet dataset from the historical CSV exports
// and publishes it locally and, optionally, to the object store.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/baselinehq/baseline/internal/schema"
	"github.com/baselinehq/baseline/internal/storage"
)

// Source is one CSV input and the tour its rows belong to.
type Source struct {
	Path string
	Tour string
}

// Sources lists the CSV inputs per table. Multiple sources per table merge
// into one parquet file, which is how ATP and WTA exports combine.
type Sources struct {
	Players  []Source
	Rankings []Source
	Matches  []Source
}

type Summary struct {
	Players  int64
	Rankings int64
	Matches  int64
}

type Runner struct {
	logger *slog.Logger
	store  storage.ObjectStore
}

// NewRunner builds an ingest runner. store may be nil for local-only runs.
func NewRunner(logger *slog.Logger, store storage.ObjectStore) *Runner {
	return &Runner{logger: logger, store: store}
}

// Run converts every source to parquet under dataDir. Rows are sorted on
// their primary key so repeated runs over the same inputs are byte-stable.
func (r *Runner) Run(ctx context.Context, sources Sources, dataDir string) (Summary, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("create dataset dir: %w", err)
	}

	players, err := collect(sources.Players, ReadPlayers)
	if err != nil {
		return Summary{}, err
	}
	sort.Slice(players, func(i, j int) bool { return players[i].PlayerID < players[j].PlayerID })

	rankings, err := collect(sources.Rankings, ReadRankings)
	if err != nil {
		return Summary{}, err
	}
	sort.Slice(rankings, func(i, j int) bool {
		if rankings[i].RankingDate != rankings[j].RankingDate {
			return rankings[i].RankingDate < rankings[j].RankingDate
		}
		return rankings[i].PlayerID < rankings[j].PlayerID
	})

	matches, err := collect(sources.Matches, ReadMatches)
	if err != nil {
		return Summary{}, err
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].MatchID < matches[j].MatchID })

	version := time.Now().UTC().Format("2006-01-02")
	if err := r.publish(ctx, dataDir, schema.TablePlayers, version, players); err != nil {
		return Summary{}, err
	}
	if err := r.publish(ctx, dataDir, schema.TableRankings, version, rankings); err != nil {
		return Summary{}, err
	}
	if err := r.publish(ctx, dataDir, schema.TableMatches, version, matches); err != nil {
		return Summary{}, err
	}

	summary := Summary{
		Players:  int64(len(players)),
		Rankings: int64(len(rankings)),
		Matches:  int64(len(matches)),
	}
	r.logger.Info("ingest_complete",
		slog.Int64("players", summary.Players),
		slog.Int64("rankings", summary.Rankings),
		slog.Int64("matches", summary.Matches),
	)
	return summary, nil
}

func collect[T any](sources []Source, read func(r io.Reader, tour string) ([]T, error)) ([]T, error) {
	var rows []T
	for _, source := range sources {
		file, err := os.Open(source.Path)
		if err != nil {
			return nil, fmt.Errorf("open csv %q: %w", source.Path, err)
		}
		parsed, err := read(file, source.Tour)
		if cerr := file.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv %q: %w", source.Path, err)
		}
		rows = append(rows, parsed...)
	}
	return rows, nil
}

func (r *Runner) publish(ctx context.Context, dataDir, table, version string, rows any) error {
	var data []byte
	var err error
	switch typed := rows.(type) {
	case []PlayerRow:
		data, err = encodeParquet(typed)
	case []RankingRow:
		data, err = encodeParquet(typed)
	case []MatchRow:
		data, err = encodeParquet(typed)
	default:
		return fmt.Errorf("unsupported row type for table %q", table)
	}
	if err != nil {
		return fmt.Errorf("encode %s parquet: %w", table, err)
	}

	localPath := filepath.Join(dataDir, table+".parquet")
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s parquet: %w", table, err)
	}

	if r.store != nil {
		key, err := storage.BuildDatasetFilePath(table)
		if err != nil {
			return err
		}
		_, err = r.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{
			ContentType: "application/octet-stream",
		})
		if err != nil {
			return fmt.Errorf("upload %s parquet: %w", table, err)
		}

		// Immutable dated copy so a bad run can be rolled back.
		versionKey, err := storage.BuildDatasetVersionPath(table, version)
		if err != nil {
			return err
		}
		_, err = r.store.Put(ctx, versionKey, bytes.NewReader(data), int64(len(data)), storage.PutOptions{
			ContentType: "application/octet-stream",
		})
		if err != nil {
			return fmt.Errorf("upload %s versioned parquet: %w", table, err)
		}
	}
	return nil
}

func encodeParquet[T any](rows []T) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[T](buf)
	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			return nil, fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}
