package bench

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/baselinehq/baseline/internal/engine"
)

type scriptedEngine struct {
	sessions []string
}

func (s *scriptedEngine) Process(_ context.Context, sessionID, question string) (engine.Outcome, error) {
	s.sessions = append(s.sessions, sessionID)
	switch {
	case strings.Contains(question, "best"):
		return engine.Outcome{}, &engine.PipelineError{Kind: engine.ErrAmbiguousIntent, Detail: "needs a criterion"}
	case strings.Contains(question, "clay"):
		return engine.Outcome{Intent: "follow_up_filter_change", Verdict: "pass"}, nil
	default:
		return engine.Outcome{Intent: "aggregation_temporal_rank", Verdict: "auto_corrected"}, nil
	}
}

func writeSuite(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "suite.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write suite: %v", err)
	}
	return path
}

func TestLoadSuiteRejectsEmptyQuestions(t *testing.T) {
	path := writeSuite(t, `{"name":"bad","questions":[{"question":"  "}]}`)
	if _, err := LoadSuite(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestRunTalliesOutcomesAndErrors(t *testing.T) {
	path := writeSuite(t, `{
		"name": "smoke",
		"questions": [
			{"session": "s1", "question": "How many matches did Federer win while ranked 1?"},
			{"session": "s1", "question": "And on clay?"},
			{"question": "Who is the best player?"}
		]
	}`)
	suite, err := LoadSuite(path)
	if err != nil {
		t.Fatalf("LoadSuite() error = %v", err)
	}

	eng := &scriptedEngine{}
	report, err := NewRunner(eng).Run(context.Background(), suite)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.Total != 3 || report.Succeeded != 2 {
		t.Fatalf("report = %+v", report)
	}
	if report.ByVerdict["pass"] != 1 || report.ByVerdict["auto_corrected"] != 1 {
		t.Fatalf("ByVerdict = %v", report.ByVerdict)
	}
	if report.ByError["ambiguous_intent"] != 1 {
		t.Fatalf("ByError = %v", report.ByError)
	}
	if eng.sessions[0] != "s1" || eng.sessions[2] != "bench" {
		t.Fatalf("sessions = %v", eng.sessions)
	}

	var buf bytes.Buffer
	WriteSummary(&buf, report)
	out := buf.String()
	if !strings.Contains(out, "smoke: 3 questions, 2 succeeded") {
		t.Fatalf("summary = %q", out)
	}
	if !strings.Contains(out, "ambiguous_intent") {
		t.Fatalf("summary = %q", out)
	}
}
