package engine

import (
	"errors"
	"fmt"

	"github.com/baselinehq/baseline/internal/resolve"
)

// ErrorKind classifies pipeline failures. Every errored turn leaves the
// session context unchanged.
type ErrorKind string

const (
	ErrAmbiguousEntity       ErrorKind = "ambiguous_entity"
	ErrEntityNotFound        ErrorKind = "entity_not_found"
	ErrAmbiguousIntent       ErrorKind = "ambiguous_intent"
	ErrUnsupportedConstruct  ErrorKind = "unsupported_construct"
	ErrCostLimitExceeded     ErrorKind = "cost_limit_exceeded"
	ErrGeneratorUnavailable  ErrorKind = "generator_unavailable"
	ErrMalformedCandidateSQL ErrorKind = "malformed_candidate_sql"
)

// PipelineError is a typed, user-presentable pipeline failure. Candidates is
// populated for ambiguous entities so the caller can ask the user to pick.
type PipelineError struct {
	Kind       ErrorKind
	Detail     string
	Candidates []resolve.Candidate
}

func (e *PipelineError) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// KindOf extracts the pipeline error kind, or "" for untyped errors such as
// executor failures.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
