package router

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/baselinehq/baseline/internal/session"
	"github.com/baselinehq/baseline/internal/sqlparse"
)

type matchContext struct {
	question string
	entities map[session.EntityKind]string
	registry interface {
		MentionsFinal(string) bool
	}
}

type buildContext struct {
	entities map[session.EntityKind]string
	filters  map[string]string
}

// templateDef binds an intent tag to its matcher and SQL builder. The slice
// order is the matching order; adding a template never touches the existing
// entries.
type templateDef struct {
	tag   IntentTag
	match func(mc matchContext) bool
	build func(bc buildContext) (string, error)
}

var templates = []templateDef{
	{tag: IntentHeadToHead, match: matchHeadToHead, build: buildHeadToHead},
	{tag: IntentRepeatDefeat, match: matchRepeatDefeat, build: buildRepeatDefeat},
	{tag: IntentRankAtFinal, match: matchRankAtFinal, build: buildRankAtFinal},
	{tag: IntentTemporalRank, match: matchTemporalRank, build: buildTemporalRank},
	{tag: IntentMultiMetric, match: matchMultiMetric, build: buildMultiMetric},
}

func templateFor(tag IntentTag) (templateDef, bool) {
	for _, tmpl := range templates {
		if tmpl.tag == tag {
			return tmpl, true
		}
	}
	return templateDef{}, false
}

// BuildSQL renders the intent's bound template. ok is false when the intent
// carries no template and the generative path must produce the candidate.
func BuildSQL(intent Intent) (sql string, ok bool, err error) {
	tmpl, found := templateFor(intent.Template)
	if !found {
		return "", false, nil
	}
	sql, err = tmpl.build(buildContext{entities: intent.Entities, filters: intent.Filters})
	if err != nil {
		return "", false, err
	}
	return sql, true, nil
}

func matchHeadToHead(mc matchContext) bool {
	if mc.entities[session.EntityPlayer] == "" || mc.entities[session.EntityOpponent] == "" {
		return false
	}
	return containsAny(mc.question, "head to head", "versus", " vs ", "against", "contra")
}

func buildHeadToHead(bc buildContext) (string, error) {
	a, err := playerLiteral(bc, session.EntityPlayer)
	if err != nil {
		return "", err
	}
	b, err := playerLiteral(bc, session.EntityOpponent)
	if err != nil {
		return "", err
	}
	where := []string{
		fmt.Sprintf("((m.winner_id = %s AND m.loser_id = %s) OR (m.winner_id = %s AND m.loser_id = %s))", a, b, b, a),
		tourFilter(bc),
	}
	where = append(where, extraFilters(bc)...)
	return fmt.Sprintf(
		"SELECT SUM(CASE WHEN m.winner_id = %s THEN 1 ELSE 0 END) AS first_player_wins, SUM(CASE WHEN m.winner_id = %s THEN 1 ELSE 0 END) AS second_player_wins FROM matches m WHERE %s",
		a, b, strings.Join(where, " AND "),
	), nil
}

func matchRepeatDefeat(mc matchContext) bool {
	if mc.entities[session.EntityPlayer] == "" {
		return false
	}
	return strings.Contains(mc.question, "same tournament") ||
		strings.Contains(mc.question, "mismo torneo")
}

func buildRepeatDefeat(bc buildContext) (string, error) {
	id, err := playerLiteral(bc, session.EntityPlayer)
	if err != nil {
		return "", err
	}
	times := 2
	if raw, ok := bc.filters[FilterTimes]; ok {
		if n, err := strconv.Atoi(raw); err == nil && n > 1 {
			times = n
		}
	}
	where := []string{fmt.Sprintf("m.winner_id = %s", id), tourFilter(bc), "p.gender = " + tourLiteral(bc)}
	where = append(where, extraFilters(bc)...)
	return fmt.Sprintf(
		"SELECT p.first_name, p.last_name, m.tourney_name, COUNT(*) AS defeats FROM matches m JOIN players p ON p.player_id = m.loser_id WHERE %s GROUP BY p.first_name, p.last_name, m.tourney_name HAVING COUNT(*) >= %d ORDER BY defeats DESC",
		strings.Join(where, " AND "), times,
	), nil
}

func matchRankAtFinal(mc matchContext) bool {
	if mc.entities[session.EntityPlayer] == "" || mc.entities[session.EntityTournament] == "" {
		return false
	}
	return containsAny(mc.question, "rank", "ranked", "ranking", "clasificado") &&
		mc.registry.MentionsFinal(mc.question)
}

func buildRankAtFinal(bc buildContext) (string, error) {
	id, err := playerLiteral(bc, session.EntityPlayer)
	if err != nil {
		return "", err
	}
	tournament := bc.entities[session.EntityTournament]
	if tournament == "" {
		return "", fmt.Errorf("ranking_at_final: no tournament bound")
	}
	where := []string{
		fmt.Sprintf("m.winner_id = %s", id),
		"m.tourney_name = " + sqlparse.Quote(tournament),
		"m.round = 'F'",
		tourFilter(bc),
		"r.gender = " + tourLiteral(bc),
	}
	where = append(where, extraFilters(bc)...)
	return fmt.Sprintf(
		"SELECT r.rank FROM matches m JOIN rankings r ON r.player_id = m.winner_id AND r.ranking_date = %s WHERE %s ORDER BY m.match_date DESC LIMIT 1",
		latestSnapshotSubquery, strings.Join(where, " AND "),
	), nil
}

func matchTemporalRank(mc matchContext) bool {
	if mc.entities[session.EntityPlayer] == "" {
		return false
	}
	return containsAny(mc.question, "while ranked", "ranked number", "ranked no", "as number", "siendo numero", "siendo número")
}

func buildTemporalRank(bc buildContext) (string, error) {
	id, err := playerLiteral(bc, session.EntityPlayer)
	if err != nil {
		return "", err
	}
	rank := 1
	if raw, ok := bc.filters[FilterRank]; ok {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			rank = n
		}
	}
	where := []string{
		fmt.Sprintf("m.winner_id = %s", id),
		tourFilter(bc),
		"r.gender = " + tourLiteral(bc),
		fmt.Sprintf("r.rank = %d", rank),
	}
	where = append(where, extraFilters(bc)...)
	return fmt.Sprintf(
		"SELECT COUNT(*) AS wins FROM matches m JOIN rankings r ON r.player_id = m.winner_id AND r.ranking_date = %s WHERE %s",
		latestSnapshotSubquery, strings.Join(where, " AND "),
	), nil
}

func matchMultiMetric(mc matchContext) bool {
	if mc.entities[session.EntityPlayer] == "" {
		return false
	}
	return containsAny(mc.question, "aces", "ace") &&
		containsAny(mc.question, "wins", "won", "matches", "partidos")
}

func buildMultiMetric(bc buildContext) (string, error) {
	id, err := playerLiteral(bc, session.EntityPlayer)
	if err != nil {
		return "", err
	}
	where := []string{
		fmt.Sprintf("(m.winner_id = %s OR m.loser_id = %s)", id, id),
		tourFilter(bc),
	}
	where = append(where, extraFilters(bc)...)
	return fmt.Sprintf(
		"SELECT COUNT(*) AS matches_played, SUM(CASE WHEN m.winner_id = %s THEN 1 ELSE 0 END) AS wins, SUM(CASE WHEN m.winner_id = %s THEN m.w_ace ELSE m.l_ace END) AS aces FROM matches m WHERE %s",
		id, id, strings.Join(where, " AND "),
	), nil
}

// latestSnapshotSubquery anchors a joined ranking row to the most recent
// snapshot on or before the match date.
const latestSnapshotSubquery = "(SELECT MAX(r2.ranking_date) FROM rankings r2 WHERE r2.player_id = r.player_id AND r2.ranking_date <= m.match_date)"

func playerLiteral(bc buildContext, kind session.EntityKind) (string, error) {
	id := bc.entities[kind]
	if id == "" {
		return "", fmt.Errorf("template input: no %s bound", kind)
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("player identifier %q is not numeric", id)
		}
	}
	return id, nil
}

func tourLiteral(bc buildContext) string {
	tour := bc.filters[FilterTour]
	if tour != "WTA" {
		tour = "ATP"
	}
	return sqlparse.Quote(tour)
}

func tourFilter(bc buildContext) string {
	return "m.tour = " + tourLiteral(bc)
}

// extraFilters renders the optional surface and season filters shared by all
// templates.
func extraFilters(bc buildContext) []string {
	var out []string
	if surface, ok := bc.filters[FilterSurface]; ok {
		out = append(out, "m.surface = "+sqlparse.Quote(surface))
	}
	if year, ok := bc.filters[FilterYear]; ok {
		out = append(out, fmt.Sprintf("STRFTIME('%%Y', m.match_date) = '%s'", year))
	}
	return out
}

func containsAny(q string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(q, needle) {
			return true
		}
	}
	return false
}
