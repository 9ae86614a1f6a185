// Package dataset opens the tennis parquet files through DuckDB views and
// executes guard-approved SELECT statements against them.
package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/baselinehq/baseline/internal/engine"
	"github.com/baselinehq/baseline/internal/schema"
)

type DB struct {
	db *sql.DB
}

// Open connects DuckDB and maps every registry table to a view over its
// parquet file under dataDir. An empty duckdbPath runs in-memory.
func Open(ctx context.Context, duckdbPath, dataDir string, registry *schema.Registry) (*DB, error) {
	db, err := sql.Open("duckdb", duckdbPath)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	for _, table := range registry.Tables() {
		localPath := filepath.Join(dataDir, table+".parquet")
		if _, err := os.Stat(localPath); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("dataset file for table %q: %w", table, err)
		}
		viewSQL := fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet(%s)`, quoteIdent(table), quoteString(localPath))
		if _, err := db.ExecContext(ctx, viewSQL); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create view for table %q: %w", table, err)
		}
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// SQL exposes the handle for read-only lookups such as entity resolution.
func (d *DB) SQL() *sql.DB {
	return d.db
}

// Query runs one SELECT under a hard row limit and timeout.
func (d *DB) Query(ctx context.Context, sqlText string, rowLimit int, timeout time.Duration) (engine.Result, error) {
	sqlText = stripTrailingSemicolons(sqlText)
	if sqlText == "" {
		return engine.Result{}, fmt.Errorf("sql is required")
	}
	if rowLimit > 0 {
		sqlText = fmt.Sprintf("SELECT * FROM (%s) AS q LIMIT %d", sqlText, rowLimit)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	rows, err := d.db.QueryContext(ctx, sqlText)
	if err != nil {
		return engine.Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return engine.Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return engine.Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return engine.Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	return engine.Result{Columns: columns, Rows: resultRows}, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
