package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/baselinehq/baseline/internal/cli/baselinectl"
)

func main() {
	timeout := parseDurationWithDefault(strings.TrimSpace(os.Getenv("BASELINE_CLI_TIMEOUT")), 30*time.Second)
	options := baselinectl.Options{
		BaseURL: envOr("BASELINE_API_URL", "http://localhost:8080"),
		APIKey:  strings.TrimSpace(os.Getenv("BASELINE_API_KEY")),
		Session: strings.TrimSpace(os.Getenv("BASELINE_SESSION")),
		Timeout: timeout,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}

	code := baselinectl.Run(context.Background(), os.Args[1:], options)
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDurationWithDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid BASELINE_CLI_TIMEOUT %q; using %s\n", raw, fallback)
		return fallback
	}
	return parsed
}
