package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/baselinehq/baseline/internal/cache"
	"github.com/baselinehq/baseline/internal/guard"
	"github.com/baselinehq/baseline/internal/nl2sql"
	"github.com/baselinehq/baseline/internal/resolve"
	"github.com/baselinehq/baseline/internal/router"
	"github.com/baselinehq/baseline/internal/schema"
	"github.com/baselinehq/baseline/internal/session"
	"github.com/baselinehq/baseline/internal/transform"
)

type fakeResolver struct {
	players     map[string]resolve.Outcome
	tournaments map[string]resolve.Outcome
}

func (f *fakeResolver) Player(_ context.Context, fragment string) (resolve.Outcome, error) {
	if out, ok := f.players[strings.ToLower(fragment)]; ok {
		return out, nil
	}
	return resolve.Outcome{Status: resolve.StatusNotFound}, nil
}

func (f *fakeResolver) Tournament(_ context.Context, fragment string) (resolve.Outcome, error) {
	if out, ok := f.tournaments[strings.ToLower(fragment)]; ok {
		return out, nil
	}
	return resolve.Outcome{Status: resolve.StatusNotFound}, nil
}

type fakeExecutor struct {
	result  Result
	err     error
	lastSQL string
	calls   int
}

func (f *fakeExecutor) Query(_ context.Context, sql string, _ int, _ time.Duration) (Result, error) {
	f.calls++
	f.lastSQL = sql
	if f.err != nil {
		return Result{}, f.err
	}
	return f.result, nil
}

type fakeGenerator struct {
	result nl2sql.Result
	err    error
}

func (f *fakeGenerator) Generate(context.Context, nl2sql.Request) (nl2sql.Result, error) {
	if f.err != nil {
		return nl2sql.Result{}, f.err
	}
	return f.result, nil
}

type recordSink struct {
	records []TurnRecord
}

func (s *recordSink) Record(record TurnRecord) {
	s.records = append(s.records, record)
}

type testKit struct {
	engine *Engine
	store  *session.Store
	exec   *fakeExecutor
	sink   *recordSink
}

func newKit(t *testing.T, resolver EntityResolver, generator nl2sql.Generator) *testKit {
	t.Helper()
	registry := schema.Default()
	store := session.NewStore()
	exec := &fakeExecutor{result: Result{Columns: []string{"wins"}, Rows: [][]any{{int64(434)}}}}
	sink := &recordSink{}
	eng, err := New(Dependencies{
		Registry:    registry,
		Sessions:    store,
		Resolver:    resolver,
		Router:      router.New(registry),
		Transformer: transform.New(registry),
		Guard:       guard.New(registry, guard.DefaultConfig()),
		Generator:   generator,
		Executor:    exec,
		Cache:       cache.NewMemory(),
		Sink:        sink,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &testKit{engine: eng, store: store, exec: exec, sink: sink}
}

func (k *testKit) state(id string) session.State {
	handle := k.store.Lock(id)
	defer handle.Unlock()
	return handle.State()
}

func federerResolver() *fakeResolver {
	return &fakeResolver{
		players: map[string]resolve.Outcome{
			"federer": {Status: resolve.StatusResolved, ID: "103819", Name: "Roger Federer"},
		},
	}
}

func TestTemporalRankTurnPassesAndCommits(t *testing.T) {
	kit := newKit(t, federerResolver(), nil)

	outcome, err := kit.engine.Process(context.Background(), "s1", "How many matches did Federer win while ranked number 1?")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if outcome.Intent != string(router.IntentTemporalRank) {
		t.Fatalf("Intent = %q", outcome.Intent)
	}
	if outcome.Verdict != string(guard.VerdictPass) {
		t.Fatalf("Verdict = %q, fixes = %v", outcome.Verdict, outcome.Fixes)
	}
	if !strings.Contains(outcome.SQL, "MAX(r2.ranking_date)") || !strings.Contains(outcome.SQL, "r2.ranking_date <= m.match_date") {
		t.Fatalf("SQL missing latest-snapshot correlation: %s", outcome.SQL)
	}
	if len(outcome.Rows) != 1 || outcome.Rows[0][0] != int64(434) {
		t.Fatalf("Rows = %v", outcome.Rows)
	}

	state := kit.state("s1")
	if state.TurnCount != 1 || state.LastIntent != string(router.IntentTemporalRank) {
		t.Fatalf("state = %+v", state)
	}
	if state.Entities[session.EntityPlayer] != "103819" {
		t.Fatalf("Entities = %v", state.Entities)
	}
}

func TestFollowUpNarrowsPriorQuestion(t *testing.T) {
	kit := newKit(t, federerResolver(), nil)

	if _, err := kit.engine.Process(context.Background(), "s1", "How many matches did Federer win while ranked number 1?"); err != nil {
		t.Fatalf("first turn error = %v", err)
	}
	outcome, err := kit.engine.Process(context.Background(), "s1", "And on clay?")
	if err != nil {
		t.Fatalf("follow-up error = %v", err)
	}
	if outcome.Intent != string(router.IntentFollowUp) {
		t.Fatalf("Intent = %q", outcome.Intent)
	}
	if !strings.Contains(kit.exec.lastSQL, "m.surface = 'Clay'") {
		t.Fatalf("executed SQL lost the surface delta: %s", kit.exec.lastSQL)
	}
	if !strings.Contains(kit.exec.lastSQL, "r.rank = 1") {
		t.Fatalf("executed SQL lost the inherited rank filter: %s", kit.exec.lastSQL)
	}

	state := kit.state("s1")
	if state.TurnCount != 2 || state.LastIntent != string(router.IntentTemporalRank) {
		t.Fatalf("state = %+v", state)
	}
	if state.Filters["surface"] != "Clay" {
		t.Fatalf("Filters = %v", state.Filters)
	}
}

func TestAmbiguousSurnameReturnsCandidatesWithoutCommit(t *testing.T) {
	resolver := &fakeResolver{
		players: map[string]resolve.Outcome{
			"williams": {Status: resolve.StatusAmbiguous, Candidates: []resolve.Candidate{
				{ID: "200001", Name: "Serena Williams", BirthYear: 1981, Tour: "WTA"},
				{ID: "200002", Name: "Venus Williams", BirthYear: 1980, Tour: "WTA"},
			}},
		},
	}
	kit := newKit(t, resolver, nil)

	_, err := kit.engine.Process(context.Background(), "s1", "How many matches did Williams win?")
	if KindOf(err) != ErrAmbiguousEntity {
		t.Fatalf("error = %v, want ambiguous_entity", err)
	}
	var pe *PipelineError
	if !errors.As(err, &pe) || len(pe.Candidates) != 2 {
		t.Fatalf("candidates = %+v", pe)
	}
	if state := kit.state("s1"); state.TurnCount != 0 || !state.Empty() {
		t.Fatalf("errored turn committed state: %+v", state)
	}
}

func TestSubjectiveQuestionIsAmbiguousIntent(t *testing.T) {
	kit := newKit(t, &fakeResolver{}, nil)

	_, err := kit.engine.Process(context.Background(), "s1", "Who is the best player of all time?")
	if KindOf(err) != ErrAmbiguousIntent {
		t.Fatalf("error = %v, want ambiguous_intent", err)
	}
	if kit.exec.calls != 0 {
		t.Fatal("ambiguous question must never reach the executor")
	}
}

func TestGeneratedCandidateGetsGenderFilterInjected(t *testing.T) {
	generator := &fakeGenerator{result: nl2sql.Result{
		SQL: "SELECT p.first_name FROM players p WHERE STRFTIME('%Y', p.dob) = '1985'",
	}}
	kit := newKit(t, &fakeResolver{}, generator)

	outcome, err := kit.engine.Process(context.Background(), "s1", "list the first names of anyone born in 1985")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if outcome.Verdict != string(guard.VerdictAutoCorrected) {
		t.Fatalf("Verdict = %q", outcome.Verdict)
	}
	if len(outcome.Fixes) != 1 || outcome.Fixes[0].Check != guard.CheckGenderFilter {
		t.Fatalf("Fixes = %v, want exactly the gender filter", outcome.Fixes)
	}
	if !strings.Contains(outcome.SQL, "p.gender = 'ATP'") {
		t.Fatalf("SQL = %s", outcome.SQL)
	}
}

func TestUnlinkedCommaJoinIsRejected(t *testing.T) {
	generator := &fakeGenerator{result: nl2sql.Result{
		SQL: "SELECT m.tourney_name FROM matches m, players p WHERE m.surface = 'Clay'",
	}}
	kit := newKit(t, &fakeResolver{}, generator)

	_, err := kit.engine.Process(context.Background(), "s1", "show some tournaments on clay courts")
	if KindOf(err) != ErrUnsupportedConstruct {
		t.Fatalf("error = %v, want unsupported_construct", err)
	}
	if kit.exec.calls != 0 {
		t.Fatal("rejected statement must never execute")
	}
	if state := kit.state("s1"); !state.Empty() {
		t.Fatalf("rejected turn committed state: %+v", state)
	}
}

func TestUnboundedScanIsCostLimited(t *testing.T) {
	generator := &fakeGenerator{result: nl2sql.Result{
		SQL: "SELECT m.tourney_name FROM matches m",
	}}
	kit := newKit(t, &fakeResolver{}, generator)

	_, err := kit.engine.Process(context.Background(), "s1", "show me everything you know")
	if KindOf(err) != ErrCostLimitExceeded {
		t.Fatalf("error = %v, want cost_limit_exceeded", err)
	}
}

func TestGeneratorMissingIsTypedUnavailable(t *testing.T) {
	kit := newKit(t, &fakeResolver{}, nil)

	_, err := kit.engine.Process(context.Background(), "s1", "list the first names of anyone born in 1985")
	if KindOf(err) != ErrGeneratorUnavailable {
		t.Fatalf("error = %v, want generator_unavailable", err)
	}
}

func TestGeneratorOutageIsTypedUnavailable(t *testing.T) {
	generator := &fakeGenerator{err: nl2sql.ErrUnavailable}
	kit := newKit(t, &fakeResolver{}, generator)

	_, err := kit.engine.Process(context.Background(), "s1", "list the first names of anyone born in 1985")
	if KindOf(err) != ErrGeneratorUnavailable {
		t.Fatalf("error = %v, want generator_unavailable", err)
	}
}

func TestGeneratorClarificationIsAmbiguousIntent(t *testing.T) {
	generator := &fakeGenerator{result: nl2sql.Result{Clarification: "which season do you mean?"}}
	kit := newKit(t, &fakeResolver{}, generator)

	_, err := kit.engine.Process(context.Background(), "s1", "list the first names of anyone born in 1985")
	if KindOf(err) != ErrAmbiguousIntent {
		t.Fatalf("error = %v, want ambiguous_intent", err)
	}
	if !strings.Contains(err.Error(), "which season") {
		t.Fatalf("clarification lost: %v", err)
	}
}

func TestMalformedGeneratedSQLIsTyped(t *testing.T) {
	generator := &fakeGenerator{result: nl2sql.Result{SQL: "DELETE FROM matches"}}
	kit := newKit(t, &fakeResolver{}, generator)

	_, err := kit.engine.Process(context.Background(), "s1", "list the first names of anyone born in 1985")
	if KindOf(err) != ErrMalformedCandidateSQL {
		t.Fatalf("error = %v, want malformed_candidate_sql", err)
	}
}

func TestUnknownNameIsEntityNotFound(t *testing.T) {
	kit := newKit(t, &fakeResolver{}, nil)

	_, err := kit.engine.Process(context.Background(), "s1", "How many matches did Quixote win?")
	if KindOf(err) != ErrEntityNotFound {
		t.Fatalf("error = %v, want entity_not_found", err)
	}
}

func TestIdenticalQuestionInFreshSessionHitsCache(t *testing.T) {
	kit := newKit(t, federerResolver(), nil)
	question := "How many matches did Federer win while ranked number 1?"

	first, err := kit.engine.Process(context.Background(), "a", question)
	if err != nil {
		t.Fatalf("first turn error = %v", err)
	}
	second, err := kit.engine.Process(context.Background(), "b", question)
	if err != nil {
		t.Fatalf("second turn error = %v", err)
	}
	if first.Cached || !second.Cached {
		t.Fatalf("cached flags = %v, %v", first.Cached, second.Cached)
	}
	if second.SQL != first.SQL {
		t.Fatalf("cached SQL differs:\n%s\n%s", first.SQL, second.SQL)
	}
	if state := kit.state("b"); state.LastIntent != string(router.IntentTemporalRank) {
		t.Fatalf("cache hit must still commit context: %+v", state)
	}
}

func TestSinkSeesEveryTurn(t *testing.T) {
	kit := newKit(t, federerResolver(), nil)

	_, _ = kit.engine.Process(context.Background(), "s1", "How many matches did Federer win while ranked number 1?")
	_, _ = kit.engine.Process(context.Background(), "s1", "Who is the best player of all time?")
	if len(kit.sink.records) != 2 {
		t.Fatalf("records = %d, want 2", len(kit.sink.records))
	}
	if kit.sink.records[0].Verdict != string(guard.VerdictPass) || kit.sink.records[1].Verdict != "error" {
		t.Fatalf("records = %+v", kit.sink.records)
	}
}

func TestResetClearsSession(t *testing.T) {
	kit := newKit(t, federerResolver(), nil)

	if _, err := kit.engine.Process(context.Background(), "s1", "How many matches did Federer win while ranked number 1?"); err != nil {
		t.Fatalf("turn error = %v", err)
	}
	kit.engine.Reset("s1")
	if state := kit.state("s1"); !state.Empty() || state.TurnCount != 0 {
		t.Fatalf("state after reset = %+v", state)
	}
}
