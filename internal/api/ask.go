package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/baselinehq/baseline/internal/auth"
	"github.com/baselinehq/baseline/internal/engine"
)

type askRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

type askResponse struct {
	SessionID string              `json:"session_id"`
	Intent    string              `json:"intent"`
	Verdict   string              `json:"verdict"`
	SQL       string              `json:"sql"`
	Labels    map[string]string   `json:"labels,omitempty"`
	Columns   []string            `json:"columns"`
	Rows      [][]any             `json:"rows"`
	Fixes     []map[string]string `json:"fixes,omitempty"`
	Cached    bool                `json:"cached"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if err := requireRole(r, auth.RoleAsker); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	if deps.Engine == nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "ENGINE_UNAVAILABLE", "ask engine is not configured", true, nil)
		return
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	var req askRequest
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "request body is not valid JSON: "+err.Error(), false, nil)
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.Question = strings.TrimSpace(req.Question)
	if req.SessionID == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "MISSING_SESSION_ID", "session_id is required", false, nil)
		return
	}
	if req.Question == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "MISSING_QUESTION", "question is required", false, nil)
		return
	}

	outcome, err := deps.Engine.Process(r.Context(), req.SessionID, req.Question)
	if err != nil {
		writePipelineError(w, r, err)
		return
	}

	fixes := make([]map[string]string, 0, len(outcome.Fixes))
	for _, fix := range outcome.Fixes {
		fixes = append(fixes, map[string]string{
			"check":  string(fix.Check),
			"detail": fix.Detail,
		})
	}
	writeJSON(w, http.StatusOK, askResponse{
		SessionID: req.SessionID,
		Intent:    outcome.Intent,
		Verdict:   outcome.Verdict,
		SQL:       outcome.SQL,
		Labels:    outcome.Labels,
		Columns:   outcome.Columns,
		Rows:      outcome.Rows,
		Fixes:     fixes,
		Cached:    outcome.Cached,
	})
}

func handleSessionReset(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if err := requireRole(r, auth.RoleAsker); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	if deps.Engine == nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "ENGINE_UNAVAILABLE", "ask engine is not configured", true, nil)
		return
	}
	sessionID := strings.TrimSpace(r.PathValue("session"))
	if sessionID == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "MISSING_SESSION_ID", "session path segment is required", false, nil)
		return
	}
	deps.Engine.Reset(sessionID)
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "status": "reset"})
}

func requireRole(r *http.Request, role string) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil
	}
	if identity.HasRole(role) {
		return nil
	}
	return fmt.Errorf("missing required role %q", role)
}

func writePipelineError(w http.ResponseWriter, r *http.Request, err error) {
	var perr *engine.PipelineError
	if !errors.As(err, &perr) {
		writeError(r.Context(), w, http.StatusInternalServerError, "ASK_FAILED", err.Error(), false, nil)
		return
	}

	extra := map[string]any{}
	if len(perr.Candidates) > 0 {
		candidates := make([]map[string]any, 0, len(perr.Candidates))
		for _, c := range perr.Candidates {
			candidates = append(candidates, map[string]any{
				"id":         c.ID,
				"name":       c.Name,
				"birth_year": c.BirthYear,
				"tour":       c.Tour,
			})
		}
		extra["candidates"] = candidates
	}
	if len(extra) == 0 {
		extra = nil
	}

	status, code, retryable := statusForKind(perr.Kind)
	writeError(r.Context(), w, status, code, perr.Detail, retryable, extra)
}

func statusForKind(kind engine.ErrorKind) (int, string, bool) {
	switch kind {
	case engine.ErrAmbiguousEntity:
		return http.StatusUnprocessableEntity, "AMBIGUOUS_ENTITY", false
	case engine.ErrEntityNotFound:
		return http.StatusNotFound, "ENTITY_NOT_FOUND", false
	case engine.ErrAmbiguousIntent:
		return http.StatusUnprocessableEntity, "AMBIGUOUS_INTENT", false
	case engine.ErrUnsupportedConstruct:
		return http.StatusUnprocessableEntity, "UNSUPPORTED_CONSTRUCT", false
	case engine.ErrCostLimitExceeded:
		return http.StatusUnprocessableEntity, "COST_LIMIT_EXCEEDED", false
	case engine.ErrGeneratorUnavailable:
		return http.StatusServiceUnavailable, "GENERATOR_UNAVAILABLE", true
	case engine.ErrMalformedCandidateSQL:
		return http.StatusBadGateway, "MALFORMED_CANDIDATE_SQL", true
	default:
		return http.StatusInternalServerError, "ASK_FAILED", false
	}
}
