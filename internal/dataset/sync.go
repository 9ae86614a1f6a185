package dataset

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/baselinehq/baseline/internal/storage"
)

// Sync downloads any table file missing from dataDir from the object store.
// Files already present locally are left alone. The store listing is taken
// first so a dataset that was never published fails with one clear error
// instead of a per-file miss.
func Sync(ctx context.Context, store storage.ObjectStore, dataDir string, tables []string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create dataset dir: %w", err)
	}
	infos, err := store.List(ctx, "")
	if err != nil {
		return fmt.Errorf("list dataset objects: %w", err)
	}
	remote := make(map[string]bool, len(infos))
	for _, info := range infos {
		remote[info.Key] = true
	}
	for _, table := range tables {
		localPath := filepath.Join(dataDir, table+".parquet")
		if _, err := os.Stat(localPath); err == nil {
			continue
		}
		key, err := storage.BuildDatasetFilePath(table)
		if err != nil {
			return err
		}
		if !remote[key] {
			return fmt.Errorf("dataset object %q is not published in the object store", key)
		}
		reader, err := store.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("get dataset object %q: %w", key, err)
		}
		if err := writeFile(localPath, reader); err != nil {
			_ = reader.Close()
			return fmt.Errorf("write dataset file %q: %w", localPath, err)
		}
		if err := reader.Close(); err != nil {
			return fmt.Errorf("close dataset object %q: %w", key, err)
		}
	}
	return nil
}

func writeFile(path string, reader io.Reader) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	if _, err := io.Copy(file, reader); err != nil {
		return err
	}
	return nil
}
