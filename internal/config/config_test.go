package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	lookup := mapLookup(map[string]string{})
	cfg, err := Load("baseline-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
	if cfg.ObjectStore.Endpoint != "localhost:9000" {
		t.Fatalf("ObjectStore.Endpoint = %q", cfg.ObjectStore.Endpoint)
	}
	if cfg.Dataset.RowLimit != 200 {
		t.Fatalf("Dataset.RowLimit = %d", cfg.Dataset.RowLimit)
	}
	if cfg.Dataset.QueryTimeout != 10*time.Second {
		t.Fatalf("Dataset.QueryTimeout = %s", cfg.Dataset.QueryTimeout)
	}
	if cfg.Dataset.SyncFromObjectStore {
		t.Fatal("Dataset.SyncFromObjectStore should default to false in dev")
	}
	if cfg.Pipeline.MaxJoins != 4 {
		t.Fatalf("Pipeline.MaxJoins = %d", cfg.Pipeline.MaxJoins)
	}
	if !cfg.Pipeline.CacheEnabled {
		t.Fatal("Pipeline.CacheEnabled should default to true in dev")
	}
	if cfg.AI.Enabled {
		t.Fatal("AI.Enabled should default to false")
	}
	if cfg.AI.Model != "gpt-5" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	lookup := mapLookup(map[string]string{"BASELINE_PROFILE": "prod"})
	cfg, err := Load("baseline-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileProd {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileProd)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL should default to true in prod")
	}
	if !cfg.Dataset.SyncFromObjectStore {
		t.Fatal("Dataset.SyncFromObjectStore should default to true in prod")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	values := map[string]string{
		"BASELINE_PROFILE":                          "test",
		"BASELINE_HTTP_ADDR":                        ":9999",
		"BASELINE_HTTP_READ_TIMEOUT":                "2s",
		"BASELINE_HTTP_WRITE_TIMEOUT":               "3s",
		"BASELINE_LOG_LEVEL":                        "error",
		"BASELINE_AUTH_REQUIRED":                    "true",
		"BASELINE_AUTH_STATIC_KEYS":                 "k1:t1:asker",
		"BASELINE_SERVICE_NAME":                     "baseline-custom",
		"BASELINE_DATASET_DIR":                      "/srv/tennis",
		"BASELINE_DATASET_DUCKDB_PATH":              "/srv/tennis/baseline.duckdb",
		"BASELINE_DATASET_SYNC":                     "true",
		"BASELINE_DATASET_ROW_LIMIT":                "77",
		"BASELINE_DATASET_QUERY_TIMEOUT":            "4s",
		"BASELINE_OBJECTSTORE_ENDPOINT":             "s3.example.com",
		"BASELINE_OBJECTSTORE_BUCKET":               "baseline-prod",
		"BASELINE_OBJECTSTORE_REGION":               "us-west-2",
		"BASELINE_OBJECTSTORE_ACCESS_KEY":           "abc",
		"BASELINE_OBJECTSTORE_SECRET_KEY":           "def",
		"BASELINE_OBJECTSTORE_USE_SSL":              "true",
		"BASELINE_OBJECTSTORE_PREFIX":               "datasets/prod",
		"BASELINE_OBJECTSTORE_AUTO_CREATE_BUCKET":   "false",
		"BASELINE_PIPELINE_MAX_JOINS":               "6",
		"BASELINE_PIPELINE_AUDIT_LOG":               "/var/log/baseline/turns.jsonl",
		"BASELINE_PIPELINE_CACHE_ENABLED":           "false",
		"BASELINE_AI_ENABLED":                       "true",
		"BASELINE_AI_BASE_URL":                      "https://api.example.com",
		"BASELINE_AI_API_KEY":                       "secret-key",
		"BASELINE_AI_MODEL":                         "gpt-5.2",
		"BASELINE_AI_TIMEOUT":                       "21s",
	}
	cfg, err := Load("baseline-api", mapLookup(values))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "baseline-custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.HTTP.ReadTimeout != 2*time.Second {
		t.Fatalf("HTTP.ReadTimeout = %s", cfg.HTTP.ReadTimeout)
	}
	if cfg.HTTP.WriteTimeout != 3*time.Second {
		t.Fatalf("HTTP.WriteTimeout = %s", cfg.HTTP.WriteTimeout)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required = false, want true")
	}
	if cfg.Auth.StaticKeys != "k1:t1:asker" {
		t.Fatalf("StaticKeys = %q", cfg.Auth.StaticKeys)
	}
	if cfg.Dataset.DataDir != "/srv/tennis" {
		t.Fatalf("Dataset.DataDir = %q", cfg.Dataset.DataDir)
	}
	if cfg.Dataset.DuckDBPath != "/srv/tennis/baseline.duckdb" {
		t.Fatalf("Dataset.DuckDBPath = %q", cfg.Dataset.DuckDBPath)
	}
	if !cfg.Dataset.SyncFromObjectStore {
		t.Fatal("Dataset.SyncFromObjectStore = false, want true")
	}
	if cfg.Dataset.RowLimit != 77 {
		t.Fatalf("Dataset.RowLimit = %d", cfg.Dataset.RowLimit)
	}
	if cfg.Dataset.QueryTimeout != 4*time.Second {
		t.Fatalf("Dataset.QueryTimeout = %s", cfg.Dataset.QueryTimeout)
	}
	if cfg.ObjectStore.Endpoint != "s3.example.com" {
		t.Fatalf("ObjectStore.Endpoint = %q", cfg.ObjectStore.Endpoint)
	}
	if cfg.ObjectStore.Bucket != "baseline-prod" {
		t.Fatalf("ObjectStore.Bucket = %q", cfg.ObjectStore.Bucket)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL = false, want true")
	}
	if cfg.ObjectStore.AutoCreateBucket {
		t.Fatal("ObjectStore.AutoCreateBucket = true, want false")
	}
	if cfg.Pipeline.MaxJoins != 6 {
		t.Fatalf("Pipeline.MaxJoins = %d", cfg.Pipeline.MaxJoins)
	}
	if cfg.Pipeline.AuditLog != "/var/log/baseline/turns.jsonl" {
		t.Fatalf("Pipeline.AuditLog = %q", cfg.Pipeline.AuditLog)
	}
	if cfg.Pipeline.CacheEnabled {
		t.Fatal("Pipeline.CacheEnabled = true, want false")
	}
	if !cfg.AI.Enabled {
		t.Fatal("AI.Enabled = false, want true")
	}
	if cfg.AI.BaseURL != "https://api.example.com" {
		t.Fatalf("AI.BaseURL = %q", cfg.AI.BaseURL)
	}
	if cfg.AI.APIKey != "secret-key" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}
	if cfg.AI.Model != "gpt-5.2" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
	if cfg.AI.Timeout != 21*time.Second {
		t.Fatalf("AI.Timeout = %s", cfg.AI.Timeout)
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"BASELINE_PROFILE": "oops"},
		{"BASELINE_HTTP_READ_TIMEOUT": "NaN"},
		{"BASELINE_DATASET_ROW_LIMIT": "oops"},
		{"BASELINE_DATASET_ROW_LIMIT": "0"},
		{"BASELINE_PIPELINE_MAX_JOINS": "oops"},
		{"BASELINE_AI_TIMEOUT": "bad"},
		{"BASELINE_AUTH_REQUIRED": "not-bool"},
		{"BASELINE_LOG_LEVEL": "verbose"},
	}
	for _, env := range tests {
		_, err := Load("baseline-api", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
