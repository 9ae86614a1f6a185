// Package bench replays a JSON question suite through the pipeline engine
// and tallies the outcomes, so the template library and guard checklist can
// be graded against a fixed corpus.
package bench

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/baselinehq/baseline/internal/engine"
)

// Question is one suite entry. Questions sharing a Session value run as one
// conversation, in file order.
type Question struct {
	Session  string `json:"session,omitempty"`
	Question string `json:"question"`
}

type Suite struct {
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

func LoadSuite(path string) (Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Suite{}, fmt.Errorf("read suite %q: %w", path, err)
	}
	var suite Suite
	if err := json.Unmarshal(data, &suite); err != nil {
		return Suite{}, fmt.Errorf("parse suite %q: %w", path, err)
	}
	if len(suite.Questions) == 0 {
		return Suite{}, fmt.Errorf("suite %q has no questions", path)
	}
	for i, q := range suite.Questions {
		if strings.TrimSpace(q.Question) == "" {
			return Suite{}, fmt.Errorf("suite %q: question %d is empty", path, i+1)
		}
	}
	return Suite{Name: suite.Name, Questions: suite.Questions}, nil
}

// Engine is the pipeline surface the bench drives.
type Engine interface {
	Process(ctx context.Context, sessionID, question string) (engine.Outcome, error)
}

type Report struct {
	Suite     string
	Total     int
	Succeeded int
	ByIntent  map[string]int
	ByVerdict map[string]int
	ByError   map[string]int
	Elapsed   time.Duration
}

type Runner struct {
	engine Engine
}

func NewRunner(eng Engine) *Runner {
	return &Runner{engine: eng}
}

// Run replays the suite. Individual turn failures are tallied, not fatal;
// only a nil engine or cancelled context stops the run.
func (r *Runner) Run(ctx context.Context, suite Suite) (Report, error) {
	if r.engine == nil {
		return Report{}, fmt.Errorf("engine is required")
	}
	report := Report{
		Suite:     suite.Name,
		ByIntent:  map[string]int{},
		ByVerdict: map[string]int{},
		ByError:   map[string]int{},
	}
	start := time.Now()
	for _, q := range suite.Questions {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		session := q.Session
		if session == "" {
			session = "bench"
		}
		report.Total++
		outcome, err := r.engine.Process(ctx, session, q.Question)
		if err != nil {
			kind := string(engine.KindOf(err))
			if kind == "" {
				kind = "execution_error"
			}
			report.ByError[kind]++
			continue
		}
		report.Succeeded++
		report.ByIntent[outcome.Intent]++
		report.ByVerdict[outcome.Verdict]++
	}
	report.Elapsed = time.Since(start)
	return report, nil
}

// WriteSummary prints the report in a stable order.
func WriteSummary(w io.Writer, report Report) {
	name := report.Suite
	if name == "" {
		name = "suite"
	}
	fmt.Fprintf(w, "%s: %d questions, %d succeeded, %s\n", name, report.Total, report.Succeeded, report.Elapsed.Round(time.Millisecond))
	writeCounts(w, "verdicts", report.ByVerdict)
	writeCounts(w, "intents", report.ByIntent)
	writeCounts(w, "errors", report.ByError)
}

func writeCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	fmt.Fprintf(w, "%s:\n", title)
	for _, key := range keys {
		fmt.Fprintf(w, "  %-32s %d\n", key, counts[key])
	}
}
