package nl2sql

import (
	"context"
	"errors"
)

// ErrUnavailable marks upstream transport failures, timeouts and rate
// limits. The pipeline maps it to a typed error so the caller can apply its
// own retry policy; it is never a silent empty result.
var ErrUnavailable = errors.New("generator unavailable")

type Request struct {
	Question string `json:"question"`
	// Schema is the table/column allowlist rendered for the prompt.
	Schema string `json:"schema"`
}

// Result carries either candidate SQL or a clarification the model asked
// for, never both.
type Result struct {
	SQL           string `json:"sql"`
	Clarification string `json:"clarification,omitempty"`
	Provider      string `json:"provider"`
	Model         string `json:"model"`
}

// Generator produces candidate SQL for questions no template covers. The
// output is untrusted and always passes through normalization and the guard.
type Generator interface {
	Generate(ctx context.Context, req Request) (Result, error)
}
