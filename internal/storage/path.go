package storage

import (
	"fmt"
	"path"
	"regexp"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildDatasetFilePath returns the object key for one dataset table's
// parquet file. Keys are flat; the store prefix carries the environment.
func BuildDatasetFilePath(tableName string) (string, error) {
	if err := validatePathComponent(tableName, "table name"); err != nil {
		return "", err
	}
	return tableName + ".parquet", nil
}

// BuildDatasetVersionPath returns the key for an immutable, versioned copy of
// a table file, kept so an ingest run can be rolled back.
func BuildDatasetVersionPath(tableName, version string) (string, error) {
	if err := validatePathComponent(tableName, "table name"); err != nil {
		return "", err
	}
	if err := validatePathComponent(version, "version"); err != nil {
		return "", err
	}
	return path.Join("versions", version, tableName+".parquet"), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
