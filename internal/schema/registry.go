package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Registry is the static description of the three-table historical dataset.
// It is consulted by the router, transformer and guard and never mutated.
type Registry struct {
	tables     map[string][]string
	columnSet  map[string]bool
	sideStats  map[string]SideStat
	surfaces   map[string][]string
	wtaMarkers []string
	finalWords []string

	ambiguousKeywords []string
	recordKeywords    []string
	scopeKeywords     []string

	largeTables map[string]bool
}

// SideStat is a per-match metric recorded separately for winner and loser.
type SideStat struct {
	Name         string
	WinnerColumn string
	LoserColumn  string
}

const (
	TablePlayers  = "players"
	TableRankings = "rankings"
	TableMatches  = "matches"
)

// Default returns the registry for the players/rankings/matches dataset.
func Default() *Registry {
	r := &Registry{
		tables: map[string][]string{
			TablePlayers: {
				"player_id", "first_name", "last_name", "gender", "hand",
				"dob", "country", "height",
			},
			TableRankings: {
				"player_id", "ranking_date", "rank", "points", "gender",
			},
			TableMatches: {
				"match_id", "tour", "tourney_id", "tourney_name", "surface",
				"tourney_level", "match_date", "round", "best_of",
				"winner_id", "loser_id", "winner_rank", "loser_rank",
				"w_ace", "l_ace", "score",
			},
		},
		sideStats: map[string]SideStat{
			"ace": {Name: "ace", WinnerColumn: "w_ace", LoserColumn: "l_ace"},
		},
		surfaces: map[string][]string{
			"Clay":   {"clay", "tierra", "tierra batida", "polvo de ladrillo", "arcilla"},
			"Grass":  {"grass", "hierba", "césped", "cesped"},
			"Hard":   {"hard", "cemento", "dura", "cancha dura"},
			"Carpet": {"carpet", "moqueta"},
		},
		wtaMarkers: []string{
			"wta", "women", "women's", "female", "femenino", "femenina",
			"mujeres", "femenil",
		},
		finalWords: []string{
			"final", "finals", "finales", "title", "titles", "título",
			"titulo", "títulos", "titulos", "champion", "championship",
			"campeón", "campeon", "campeonato",
		},
		ambiguousKeywords: []string{
			"best player", "most impressive", "strongest era", "most dominant",
			"greatest", "strongest generation", "best era", "biggest upset",
			"most impressive career", "who was better", "who was more dominant",
			"mejor jugador", "más dominante", "mas dominante",
		},
		recordKeywords: []string{
			"record", "récord", "most wins", "most matches", "most victories",
			"all time leader", "all-time leader", "record of most",
			"record de mas", "record de más", "mas partidos ganados",
			"más partidos ganados",
		},
		scopeKeywords: []string{
			"grand slam", "masters", "masters 1000", "atp", "wta", "challenger",
			"futures", "roland garros", "wimbledon", "us open", "australian open",
		},
		largeTables: map[string]bool{
			TableMatches:  true,
			TableRankings: true,
		},
	}

	r.columnSet = map[string]bool{}
	for _, cols := range r.tables {
		for _, col := range cols {
			r.columnSet[col] = true
		}
	}
	return r
}

func (r *Registry) HasTable(name string) bool {
	_, ok := r.tables[strings.ToLower(name)]
	return ok
}

func (r *Registry) HasColumn(name string) bool {
	return r.columnSet[strings.ToLower(name)]
}

// Columns returns the column list of a table, or nil for unknown tables.
func (r *Registry) Columns(table string) []string {
	return r.tables[strings.ToLower(table)]
}

func (r *Registry) Tables() []string {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) IsLargeTable(name string) bool {
	return r.largeTables[strings.ToLower(name)]
}

// SideStatForColumn reports whether a column is a winner- or loser-prefixed
// statistic and returns the stat it belongs to.
func (r *Registry) SideStatForColumn(column string) (SideStat, bool) {
	column = strings.ToLower(column)
	for _, stat := range r.sideStats {
		if column == stat.WinnerColumn || column == stat.LoserColumn {
			return stat, true
		}
	}
	return SideStat{}, false
}

// CanonicalSurface detects a surface mention in the question and returns the
// canonical literal stored in the dataset ('Clay', 'Grass', 'Hard', 'Carpet').
func (r *Registry) CanonicalSurface(question string) (string, bool) {
	q := " " + strings.ToLower(question) + " "
	for _, canonical := range []string{"Clay", "Grass", "Hard", "Carpet"} {
		for _, synonym := range r.surfaces[canonical] {
			if containsWord(q, synonym) {
				return canonical, true
			}
		}
	}
	return "", false
}

// MentionsWTA reports whether the question explicitly targets the women's tour.
func (r *Registry) MentionsWTA(question string) bool {
	q := strings.ToLower(question)
	for _, marker := range r.wtaMarkers {
		if containsWord(" "+q+" ", marker) {
			return true
		}
	}
	return false
}

// MentionsFinal reports whether the question is about finals, titles or
// championships. Round-filter pruning keys off its absence.
func (r *Registry) MentionsFinal(question string) bool {
	q := " " + strings.ToLower(question) + " "
	for _, word := range r.finalWords {
		if containsWord(q, word) {
			return true
		}
	}
	return false
}

// IsAmbiguous reports whether the question uses subjective vocabulary with no
// bound metric, or asks for a record without any tournament scope.
func (r *Registry) IsAmbiguous(question string) bool {
	q := strings.ToLower(strings.TrimSpace(question))
	for _, keyword := range r.ambiguousKeywords {
		if strings.Contains(q, keyword) {
			return true
		}
	}
	record := false
	for _, keyword := range r.recordKeywords {
		if strings.Contains(q, keyword) {
			record = true
			break
		}
	}
	if !record {
		return false
	}
	for _, scope := range r.scopeKeywords {
		if strings.Contains(q, scope) {
			return false
		}
	}
	return true
}

// PromptSchema renders the schema description handed to the generator.
func (r *Registry) PromptSchema() string {
	var b strings.Builder
	b.WriteString("Tables:\n")
	for _, table := range r.Tables() {
		fmt.Fprintf(&b, "\n%s(%s)\n", table, strings.Join(r.tables[table], ", "))
	}
	b.WriteString("\nNotes:\n")
	b.WriteString("- Finals are stored as round = 'F', not 'Final'.\n")
	b.WriteString("- Grand Slam tournaments are stored as tourney_level = 'G'.\n")
	b.WriteString("- matches.tour, players.gender and rankings.gender use only 'ATP' or 'WTA'.\n")
	b.WriteString("- Columns starting with w_ refer to the match winner, l_ to the loser.\n")
	return b.String()
}

func containsWord(haystack, word string) bool {
	idx := strings.Index(haystack, word)
	for idx >= 0 {
		var before byte = ' '
		if idx > 0 {
			before = haystack[idx-1]
		}
		afterIdx := idx + len(word)
		var after byte = ' '
		if afterIdx < len(haystack) {
			after = haystack[afterIdx]
		}
		if !isWordByte(before) && !isWordByte(after) {
			return true
		}
		next := strings.Index(haystack[idx+1:], word)
		if next < 0 {
			return false
		}
		idx = idx + 1 + next
	}
	return false
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_'
}
