// Package router classifies a question, plus the session context, into an
// intent. Matching order is fixed: ambiguity, follow-up delta, the template
// library, then the generative fallback. The router never produces or
// executes SQL itself; templates are bound here and built in templates.go.
package router

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/baselinehq/baseline/internal/schema"
	"github.com/baselinehq/baseline/internal/session"
)

type IntentTag string

const (
	IntentAmbiguous    IntentTag = "ambiguous"
	IntentFollowUp     IntentTag = "follow_up_filter_change"
	IntentHeadToHead   IntentTag = "head_to_head"
	IntentRepeatDefeat IntentTag = "same_tournament_repeat_defeat"
	IntentRankAtFinal  IntentTag = "ranking_at_final"
	IntentTemporalRank IntentTag = "aggregation_temporal_rank"
	IntentMultiMetric  IntentTag = "multi_metric_aggregation"
	IntentGenerative   IntentTag = "generative"
)

// Intent is the routing decision. Template names the bound template (the
// prior turn's template for follow-ups); Entities and Filters are the merged
// inputs template building works from. Degraded marks a question that looked
// like a follow-up but fell back to fresh classification because the prior
// context could not carry it.
type Intent struct {
	Tag      IntentTag
	Basis    string
	Template IntentTag
	Entities map[session.EntityKind]string
	Filters  map[string]string
	Degraded bool
}

type Router struct {
	registry *schema.Registry
}

func New(registry *schema.Registry) *Router {
	return &Router{registry: registry}
}

// Filter keys shared with the session context.
const (
	FilterTour    = "tour"
	FilterSurface = "surface"
	FilterYear    = "year"
	FilterRank    = "rank"
	FilterTimes   = "times"
)

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// Classify routes the question. newEntities holds what the resolver found in
// this question; an empty map on a non-empty context is what makes a
// filter-only follow-up possible.
func (r *Router) Classify(question string, ctx session.State, newEntities map[session.EntityKind]string) Intent {
	q := strings.ToLower(question)

	if r.registry.IsAmbiguous(question) {
		return Intent{Tag: IntentAmbiguous, Basis: "subjective or unscoped vocabulary"}
	}

	intent, ok, degraded := r.followUp(question, q, ctx, newEntities)
	if ok {
		return intent
	}

	filters := r.freshFilters(question, q)
	mc := matchContext{question: q, entities: newEntities, registry: r.registry}
	for _, tmpl := range templates {
		if tmpl.match(mc) {
			return Intent{
				Tag:      tmpl.tag,
				Basis:    "template match",
				Template: tmpl.tag,
				Entities: newEntities,
				Filters:  filters,
				Degraded: degraded,
			}
		}
	}

	return Intent{Tag: IntentGenerative, Basis: "no structural match", Entities: newEntities, Filters: filters, Degraded: degraded}
}

// followUp recognizes a filter-only delta against a non-empty context. A
// stale or incompatible prior context degrades to fresh classification,
// which the third return reports.
func (r *Router) followUp(question, q string, ctx session.State, newEntities map[session.EntityKind]string) (Intent, bool, bool) {
	if ctx.Empty() || len(newEntities) > 0 {
		return Intent{}, false, false
	}
	delta := r.filterDelta(question, q)
	if len(delta) == 0 {
		return Intent{}, false, false
	}
	prior := IntentTag(ctx.LastIntent)
	if _, ok := templateFor(prior); !ok {
		return Intent{}, false, true
	}

	merged := ctx.Clone()
	if merged.Filters == nil {
		merged.Filters = map[string]string{}
	}
	for k, v := range delta {
		merged.Filters[k] = v
	}
	return Intent{
		Tag:      IntentFollowUp,
		Basis:    "filter delta on prior intent",
		Template: prior,
		Entities: merged.Entities,
		Filters:  merged.Filters,
	}, true, false
}

// filterDelta extracts the filter terms a follow-up can change.
func (r *Router) filterDelta(question, q string) map[string]string {
	delta := map[string]string{}
	if surface, ok := r.registry.CanonicalSurface(question); ok {
		delta[FilterSurface] = surface
	}
	if year := yearPattern.FindString(q); year != "" {
		delta[FilterYear] = year
	}
	return delta
}

func (r *Router) freshFilters(question, q string) map[string]string {
	filters := r.filterDelta(question, q)
	filters[FilterTour] = "ATP"
	if r.registry.MentionsWTA(question) {
		filters[FilterTour] = "WTA"
	}
	if rank, ok := parseRank(q); ok {
		filters[FilterRank] = strconv.Itoa(rank)
	}
	if times, ok := parseTimes(q); ok {
		filters[FilterTimes] = strconv.Itoa(times)
	}
	return filters
}

var (
	rankDigits  = regexp.MustCompile(`(?:ranked|rank|number|no\.?)\s+(\d+)`)
	timesDigits = regexp.MustCompile(`(\d+)\s+(?:times|veces)`)
)

var wordNumbers = []struct {
	word string
	n    int
}{
	{"one", 1}, {"two", 2}, {"three", 3}, {"four", 4}, {"five", 5},
	{"uno", 1}, {"dos", 2}, {"tres", 3},
}

func parseRank(q string) (int, bool) {
	if m := rankDigits.FindStringSubmatch(q); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			return n, true
		}
	}
	for _, wn := range wordNumbers {
		if strings.Contains(q, "number "+wn.word) || strings.Contains(q, "ranked "+wn.word) {
			return wn.n, true
		}
	}
	return 0, false
}

func parseTimes(q string) (int, bool) {
	if m := timesDigits.FindStringSubmatch(q); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 1 {
			return n, true
		}
	}
	if strings.Contains(q, "twice") {
		return 2, true
	}
	for _, wn := range wordNumbers {
		if strings.Contains(q, wn.word+" times") {
			return wn.n, true
		}
	}
	return 0, false
}
