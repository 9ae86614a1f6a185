// Package engine runs the governance pipeline for one ask turn: entity
// resolution, intent routing, candidate SQL, normalization, the guard
// checklist, execution, and finally the session commit. A turn that fails at
// any stage never commits, so the conversation context only ever reflects
// successful turns.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/baselinehq/baseline/internal/cache"
	"github.com/baselinehq/baseline/internal/guard"
	"github.com/baselinehq/baseline/internal/nl2sql"
	"github.com/baselinehq/baseline/internal/observability"
	"github.com/baselinehq/baseline/internal/resolve"
	"github.com/baselinehq/baseline/internal/router"
	"github.com/baselinehq/baseline/internal/schema"
	"github.com/baselinehq/baseline/internal/session"
	"github.com/baselinehq/baseline/internal/transform"
)

// EntityResolver looks up name fragments in the entity store.
type EntityResolver interface {
	Player(ctx context.Context, fragment string) (resolve.Outcome, error)
	Tournament(ctx context.Context, fragment string) (resolve.Outcome, error)
}

// Result is the tabular output of an executed statement.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Executor runs guard-approved SQL against the dataset.
type Executor interface {
	Query(ctx context.Context, sql string, rowLimit int, timeout time.Duration) (Result, error)
}

// Outcome is a successful turn's response.
type Outcome struct {
	Intent  string
	Verdict string
	SQL     string
	Labels  map[string]string
	Columns []string
	Rows    [][]any
	Fixes   []guard.Fix
	Cached  bool
}

// Dependencies wires the pipeline stages together. Generator, Cache and Sink
// are optional.
type Dependencies struct {
	Logger       *slog.Logger
	Registry     *schema.Registry
	Sessions     *session.Store
	Resolver     EntityResolver
	Router       *router.Router
	Transformer  *transform.Transformer
	Guard        *guard.Guard
	Generator    nl2sql.Generator
	Executor     Executor
	Cache        cache.Cache
	Sink         Sink
	RowLimit     int
	QueryTimeout time.Duration
}

type Engine struct {
	logger       *slog.Logger
	registry     *schema.Registry
	sessions     *session.Store
	resolver     EntityResolver
	router       *router.Router
	transformer  *transform.Transformer
	guard        *guard.Guard
	generator    nl2sql.Generator
	executor     Executor
	cache        cache.Cache
	sink         Sink
	rowLimit     int
	queryTimeout time.Duration
}

func New(deps Dependencies) (*Engine, error) {
	if deps.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if deps.Resolver == nil {
		return nil, fmt.Errorf("entity resolver is required")
	}
	if deps.Router == nil {
		return nil, fmt.Errorf("router is required")
	}
	if deps.Transformer == nil {
		return nil, fmt.Errorf("transformer is required")
	}
	if deps.Guard == nil {
		return nil, fmt.Errorf("guard is required")
	}
	if deps.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	rowLimit := deps.RowLimit
	if rowLimit <= 0 {
		rowLimit = 200
	}
	queryTimeout := deps.QueryTimeout
	if queryTimeout <= 0 {
		queryTimeout = 10 * time.Second
	}
	return &Engine{
		logger:       logger,
		registry:     deps.Registry,
		sessions:     deps.Sessions,
		resolver:     deps.Resolver,
		router:       deps.Router,
		transformer:  deps.Transformer,
		guard:        deps.Guard,
		generator:    deps.Generator,
		executor:     deps.Executor,
		cache:        deps.Cache,
		sink:         deps.Sink,
		rowLimit:     rowLimit,
		queryTimeout: queryTimeout,
	}, nil
}

// Process runs one ask turn. Turns within the same session are serialized;
// any returned error leaves the session context exactly as it was.
func (e *Engine) Process(ctx context.Context, sessionID, question string) (Outcome, error) {
	start := time.Now()
	handle := e.sessions.Lock(sessionID)
	defer handle.Unlock()
	state := handle.State()

	entities, err := e.resolveEntities(ctx, question)
	if err != nil {
		return Outcome{}, e.fail(sessionID, question, "", start, err)
	}

	intent := e.router.Classify(question, state, entities)
	if intent.Degraded {
		observability.ObserveFollowUpDegradation()
	}
	if intent.Tag == router.IntentAmbiguous {
		err := &PipelineError{Kind: ErrAmbiguousIntent, Detail: "the question needs a measurable criterion; " + intent.Basis}
		return Outcome{}, e.fail(sessionID, question, string(intent.Tag), start, err)
	}

	key := cache.Key(question, fingerprint(state))
	if e.cache != nil {
		if entry, ok := e.cache.Get(key); ok {
			return e.replay(ctx, sessionID, question, key, entry, handle, start)
		}
	}

	candidate, err := e.candidateFor(ctx, intent, question)
	if err != nil {
		return Outcome{}, e.fail(sessionID, question, string(intent.Tag), start, err)
	}

	normalized, err := e.transformer.Normalize(question, candidate)
	if err != nil {
		perr := &PipelineError{Kind: ErrMalformedCandidateSQL, Detail: err.Error()}
		return Outcome{}, e.fail(sessionID, question, string(intent.Tag), start, perr)
	}

	verdict := e.guard.Validate(question, normalized)
	for _, violation := range verdict.Violations {
		observability.ObserveGuardViolation(string(violation.Check))
	}
	for _, fix := range verdict.Fixes {
		observability.ObserveGuardFix(string(fix.Check))
	}
	if verdict.Kind == guard.VerdictRejected {
		return Outcome{}, e.fail(sessionID, question, string(intent.Tag), start, rejectionError(verdict))
	}

	result, err := e.executor.Query(ctx, verdict.SQL, e.rowLimit, e.queryTimeout)
	if err != nil {
		return Outcome{}, e.fail(sessionID, question, string(intent.Tag), start, fmt.Errorf("execute query: %w", err))
	}

	newState := session.State{
		LastIntent: committedIntent(intent),
		Entities:   intent.Entities,
		Filters:    intent.Filters,
	}
	handle.Commit(newState)

	if e.cache != nil {
		e.cache.Put(key, cache.Entry{
			SQL:     verdict.SQL,
			Labels:  normalized.Labels,
			Verdict: string(verdict.Kind),
			Intent:  string(intent.Tag),
			State:   newState,
		})
	}

	outcome := Outcome{
		Intent:  string(intent.Tag),
		Verdict: string(verdict.Kind),
		SQL:     verdict.SQL,
		Labels:  normalized.Labels,
		Columns: result.Columns,
		Rows:    result.Rows,
		Fixes:   verdict.Fixes,
	}
	e.finish(sessionID, question, outcome, start)
	return outcome, nil
}

// Reset discards the session's conversation context.
func (e *Engine) Reset(sessionID string) {
	e.sessions.Reset(sessionID)
	e.logger.Info("session_reset", slog.String("session_id", sessionID))
}

// replay serves a cached verdict. The SQL is re-executed so rows reflect the
// current dataset, and the stored state is committed so follow-ups behave as
// they would have on the original turn.
func (e *Engine) replay(ctx context.Context, sessionID, question, key string, entry cache.Entry, handle *session.Handle, start time.Time) (Outcome, error) {
	result, err := e.executor.Query(ctx, entry.SQL, e.rowLimit, e.queryTimeout)
	if err != nil {
		return Outcome{}, e.fail(sessionID, question, entry.Intent, start, fmt.Errorf("execute cached query: %w", err))
	}
	handle.Commit(entry.State)
	outcome := Outcome{
		Intent:  entry.Intent,
		Verdict: entry.Verdict,
		SQL:     entry.SQL,
		Labels:  entry.Labels,
		Columns: result.Columns,
		Rows:    result.Rows,
		Cached:  true,
	}
	e.finish(sessionID, question, outcome, start)
	return outcome, nil
}

// candidateFor produces the unvalidated SQL, preferring the intent's bound
// template over the generative fallback.
func (e *Engine) candidateFor(ctx context.Context, intent router.Intent, question string) (transform.Candidate, error) {
	sqlText, ok, err := router.BuildSQL(intent)
	if err != nil {
		return transform.Candidate{}, &PipelineError{Kind: ErrMalformedCandidateSQL, Detail: err.Error()}
	}
	if ok {
		return transform.Candidate{SQL: sqlText, Provenance: transform.ProvenanceTemplate}, nil
	}

	if e.generator == nil {
		return transform.Candidate{}, &PipelineError{Kind: ErrGeneratorUnavailable, Detail: "no SQL generator configured"}
	}
	callStart := time.Now()
	result, err := e.generator.Generate(ctx, nl2sql.Request{Question: question, Schema: e.registry.PromptSchema()})
	if err != nil {
		observability.ObserveGeneratorCall("error", time.Since(callStart))
		if errors.Is(err, nl2sql.ErrUnavailable) {
			return transform.Candidate{}, &PipelineError{Kind: ErrGeneratorUnavailable, Detail: err.Error()}
		}
		return transform.Candidate{}, &PipelineError{Kind: ErrMalformedCandidateSQL, Detail: err.Error()}
	}
	if result.Clarification != "" {
		observability.ObserveGeneratorCall("clarification", time.Since(callStart))
		return transform.Candidate{}, &PipelineError{Kind: ErrAmbiguousIntent, Detail: result.Clarification}
	}
	observability.ObserveGeneratorCall("ok", time.Since(callStart))
	return transform.Candidate{SQL: result.SQL, Provenance: transform.ProvenanceGenerated}, nil
}

// resolveEntities maps the question's name fragments to entity identifiers.
// Fragment pairs resolve before the single tokens they contain, so "Roger
// Federer" binds once rather than twice.
func (e *Engine) resolveEntities(ctx context.Context, question string) (map[session.EntityKind]string, error) {
	fragments := resolve.NameFragments(question)
	entities := map[session.EntityKind]string{}
	resolvedWords := map[string]bool{}
	seenIDs := map[string]bool{}
	var unresolved []string

	for _, fragment := range fragments {
		if coveredBy(resolvedWords, fragment) {
			continue
		}
		outcome, err := e.resolver.Player(ctx, fragment)
		if err != nil {
			return nil, fmt.Errorf("resolve player: %w", err)
		}
		switch outcome.Status {
		case resolve.StatusAmbiguous:
			return nil, &PipelineError{
				Kind:       ErrAmbiguousEntity,
				Detail:     fmt.Sprintf("%q matches more than one player", fragment),
				Candidates: outcome.Candidates,
			}
		case resolve.StatusResolved:
			markWords(resolvedWords, fragment)
			if seenIDs[outcome.ID] {
				continue
			}
			seenIDs[outcome.ID] = true
			if entities[session.EntityPlayer] == "" {
				entities[session.EntityPlayer] = outcome.ID
			} else if entities[session.EntityOpponent] == "" {
				entities[session.EntityOpponent] = outcome.ID
			}
			continue
		}

		tournament, err := e.resolver.Tournament(ctx, fragment)
		if err != nil {
			return nil, fmt.Errorf("resolve tournament: %w", err)
		}
		switch tournament.Status {
		case resolve.StatusAmbiguous:
			return nil, &PipelineError{
				Kind:       ErrAmbiguousEntity,
				Detail:     fmt.Sprintf("%q matches more than one tournament", fragment),
				Candidates: tournament.Candidates,
			}
		case resolve.StatusResolved:
			markWords(resolvedWords, fragment)
			if entities[session.EntityTournament] == "" {
				entities[session.EntityTournament] = tournament.ID
			}
		default:
			unresolved = append(unresolved, fragment)
		}
	}

	if len(entities) == 0 {
		for _, fragment := range unresolved {
			if nameLike(question, fragment) {
				return nil, &PipelineError{
					Kind:   ErrEntityNotFound,
					Detail: fmt.Sprintf("no player or tournament matches %q", fragment),
				}
			}
		}
	}
	return entities, nil
}

func (e *Engine) finish(sessionID, question string, outcome Outcome, start time.Time) {
	elapsed := time.Since(start)
	observability.ObserveAskTurn(outcome.Intent, outcome.Verdict, outcome.Cached, elapsed)
	observability.ObserveQueryRows(len(outcome.Rows))
	if e.sink != nil {
		e.sink.Record(TurnRecord{
			Time:      start,
			SessionID: sessionID,
			Question:  question,
			Intent:    outcome.Intent,
			Verdict:   outcome.Verdict,
			SQL:       outcome.SQL,
			Fixes:     fixNames(outcome.Fixes),
			Cached:    outcome.Cached,
			RowCount:  len(outcome.Rows),
		})
	}
	e.logger.Info("ask_turn",
		slog.String("session_id", sessionID),
		slog.String("intent", outcome.Intent),
		slog.String("verdict", outcome.Verdict),
		slog.Bool("cached", outcome.Cached),
		slog.Int("rows", len(outcome.Rows)),
		slog.String("duration", elapsed.String()),
	)
}

func (e *Engine) fail(sessionID, question, intentTag string, start time.Time, err error) error {
	observability.ObserveAskTurn(intentTag, "error", false, time.Since(start))
	if e.sink != nil {
		e.sink.Record(TurnRecord{
			Time:      start,
			SessionID: sessionID,
			Question:  question,
			Intent:    intentTag,
			Verdict:   "error",
			Err:       err.Error(),
		})
	}
	e.logger.Warn("ask_turn_failed",
		slog.String("session_id", sessionID),
		slog.String("intent", intentTag),
		slog.String("kind", string(KindOf(err))),
		slog.String("error", err.Error()),
	)
	return err
}

func rejectionError(verdict guard.Verdict) error {
	kind := ErrUnsupportedConstruct
	details := make([]string, 0, len(verdict.Violations))
	for _, violation := range verdict.Violations {
		if violation.Check == guard.CheckCostLimit {
			kind = ErrCostLimitExceeded
		}
		details = append(details, fmt.Sprintf("%s: %s", violation.Check, violation.Detail))
	}
	return &PipelineError{Kind: kind, Detail: strings.Join(details, "; ")}
}

// committedIntent is what the session remembers as LastIntent. Follow-ups
// keep the underlying template so further deltas stay anchored.
func committedIntent(intent router.Intent) string {
	if intent.Template != "" {
		return string(intent.Template)
	}
	return string(intent.Tag)
}

// fingerprint summarizes the session context for cache keying. Identical
// contexts always fingerprint identically.
func fingerprint(state session.State) string {
	parts := []string{state.LastIntent}
	entityKeys := make([]string, 0, len(state.Entities))
	for k := range state.Entities {
		entityKeys = append(entityKeys, string(k))
	}
	sort.Strings(entityKeys)
	for _, k := range entityKeys {
		parts = append(parts, k+"="+state.Entities[session.EntityKind(k)])
	}
	filterKeys := make([]string, 0, len(state.Filters))
	for k := range state.Filters {
		filterKeys = append(filterKeys, k)
	}
	sort.Strings(filterKeys)
	for _, k := range filterKeys {
		parts = append(parts, k+"="+state.Filters[k])
	}
	return strings.Join(parts, ";")
}

func fixNames(fixes []guard.Fix) []string {
	if len(fixes) == 0 {
		return nil
	}
	names := make([]string, 0, len(fixes))
	for _, fix := range fixes {
		names = append(names, string(fix.Check))
	}
	return names
}

func coveredBy(resolvedWords map[string]bool, fragment string) bool {
	words := strings.Fields(strings.ToLower(fragment))
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		if !resolvedWords[w] {
			return false
		}
	}
	return true
}

func markWords(resolvedWords map[string]bool, fragment string) {
	for _, w := range strings.Fields(strings.ToLower(fragment)) {
		resolvedWords[w] = true
	}
}

// nameLike reports whether an unresolved fragment still looks like a proper
// name. A capitalized word that merely opens the question does not count.
func nameLike(question, fragment string) bool {
	first := []rune(fragment)
	if len(first) == 0 || !unicode.IsUpper(first[0]) {
		return false
	}
	trimmed := strings.TrimSpace(question)
	firstWord := strings.Fields(fragment)[0]
	return !strings.HasPrefix(trimmed, firstWord)
}
