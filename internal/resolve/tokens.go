package resolve

import "strings"

// stopwords covers question vocabulary (English and Spanish) and domain
// terms that can never be part of a player or tournament name.
var stopwords = map[string]bool{
	"how": true, "many": true, "much": true, "what": true, "which": true,
	"who": true, "whom": true, "when": true, "where": true, "why": true,
	"did": true, "does": true, "has": true, "have": true, "had": true,
	"was": true, "were": true, "are": true, "the": true, "and": true,
	"against": true, "between": true, "while": true, "with": true,
	"win": true, "wins": true, "won": true, "lose": true, "lost": true,
	"beat": true, "beaten": true, "defeat": true, "defeated": true,
	"head": true, "versus": true,
	"play": true, "played": true, "player": true, "players": true,
	"match": true, "matches": true, "game": true, "games": true,
	"set": true, "sets": true, "ace": true, "aces": true,
	"final": true, "finals": true, "title": true, "titles": true,
	"ranked": true, "rank": true, "ranking": true, "number": true,
	"tournament": true, "tournaments": true, "surface": true,
	"clay": true, "grass": true, "hard": true, "carpet": true,
	"atp": true, "wta": true, "grand": true, "slam": true, "slams": true,
	"year": true, "years": true, "season": true, "time": true, "times": true,
	"most": true, "best": true, "all": true, "ever": true, "never": true,
	"cuantos": true, "cuántos": true, "cuantas": true, "cuántas": true,
	"quien": true, "quién": true, "partidos": true, "partido": true,
	"gano": true, "ganó": true, "contra": true, "sobre": true,
	"tierra": true, "batida": true, "hierba": true, "jugador": true,
	"jugadores": true, "torneo": true, "torneos": true, "finales": true,
	"este": true, "esta": true, "los": true, "las": true, "del": true,
	"que": true, "qué": true, "por": true, "para": true, "con": true,
}

// NameFragments extracts the candidate entity fragments from a question:
// adjacent token pairs first (full names), then single tokens (surnames),
// in question order without duplicates. It is a pure function; the caller
// resolves each fragment until one hits.
func NameFragments(question string) []string {
	tokens := tokenize(question)
	type kept struct {
		text string
		pos  int
	}
	candidates := make([]kept, 0, len(tokens))
	for i, tok := range tokens {
		if len(tok) < 3 || stopwords[strings.ToLower(tok)] {
			continue
		}
		candidates = append(candidates, kept{text: tok, pos: i})
	}

	seen := map[string]bool{}
	var fragments []string
	add := func(fragment string) {
		key := strings.ToLower(fragment)
		if !seen[key] {
			seen[key] = true
			fragments = append(fragments, fragment)
		}
	}
	for i := 0; i+1 < len(candidates); i++ {
		if candidates[i+1].pos == candidates[i].pos+1 {
			add(candidates[i].text + " " + candidates[i+1].text)
		}
	}
	for _, c := range candidates {
		add(c.text)
	}
	return fragments
}

func tokenize(question string) []string {
	return strings.FieldsFunc(question, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			return false
		case r >= 'à' && r <= 'ÿ':
			return false
		default:
			return true
		}
	})
}
