package transform

import (
	"strings"
	"testing"

	"github.com/baselinehq/baseline/internal/schema"
)

func newTransformer() *Transformer {
	return New(schema.Default())
}

func normalize(t *testing.T, question, sql string) Normalized {
	t.Helper()
	n, err := newTransformer().Normalize(question, Candidate{SQL: sql, Provenance: ProvenanceGenerated})
	if err != nil {
		t.Fatalf("Normalize(%q) error: %v", sql, err)
	}
	return n
}

func TestNormalizeIsIdempotent(t *testing.T) {
	question := "how many aces did nadal hit on clay"
	sql := "SELECT SUM(m.w_ace) AS aces FROM matches m JOIN players p ON p.player_id = m.winner_id WHERE lower(m.surface) = lower('clay') AND m.round = 'F'"

	first := normalize(t, question, sql)
	second := normalize(t, question, first.SQL)
	if first.SQL != second.SQL {
		t.Fatalf("normalization not idempotent:\n first  %s\n second %s", first.SQL, second.SQL)
	}
}

func TestNeutralizeSideStats(t *testing.T) {
	question := "total aces for federer"
	sql := "SELECT SUM(m.w_ace) AS aces FROM matches m JOIN players p ON p.player_id = m.winner_id"

	n := normalize(t, question, sql)
	want := "SELECT SUM(CASE WHEN p.player_id = m.winner_id THEN m.w_ace ELSE m.l_ace END) AS aces FROM matches m JOIN players p ON p.player_id = m.winner_id"
	if n.SQL != want {
		t.Fatalf("side-neutral rewrite:\n got  %s\n want %s", n.SQL, want)
	}
	if len(n.SideNeutralized) != 1 || n.SideNeutralized[0] != "ace" {
		t.Fatalf("SideNeutralized = %v, want [ace]", n.SideNeutralized)
	}
}

func TestNeutralizeSkipsExistingSideCase(t *testing.T) {
	question := "total aces for federer"
	sql := "SELECT SUM(CASE WHEN m.winner_id = p.player_id THEN m.w_ace ELSE m.l_ace END) AS aces FROM matches m JOIN players p ON p.player_id = m.winner_id OR p.player_id = m.loser_id"

	n := normalize(t, question, sql)
	if len(n.SideNeutralized) != 0 {
		t.Fatalf("SideNeutralized = %v, want empty for already-neutral statement", n.SideNeutralized)
	}
	if strings.Count(n.SQL, "CASE") != 1 {
		t.Fatalf("rewrite must not nest CASE expressions: %s", n.SQL)
	}
}

func TestNeutralizeSkipsWithoutSingleSubject(t *testing.T) {
	question := "total aces"
	sql := "SELECT SUM(m.w_ace) FROM matches m"

	n := normalize(t, question, sql)
	if len(n.SideNeutralized) != 0 {
		t.Fatalf("SideNeutralized = %v, want empty without a players alias", n.SideNeutralized)
	}
	if !strings.Contains(n.SQL, "m.w_ace") {
		t.Fatalf("statement changed without a subject: %s", n.SQL)
	}
}

func TestPruneRoundFilter(t *testing.T) {
	sql := "SELECT COUNT(*) FROM matches m WHERE m.round = 'F' AND m.surface = 'Clay'"

	n := normalize(t, "how many clay matches did nadal win", sql)
	if !n.PrunedRoundFilter {
		t.Fatal("expected round filter to be pruned")
	}
	want := "SELECT COUNT(*) FROM matches m WHERE m.surface = 'Clay'"
	if n.SQL != want {
		t.Fatalf("prune:\n got  %s\n want %s", n.SQL, want)
	}
}

func TestRoundFilterKeptForFinalQuestions(t *testing.T) {
	sql := "SELECT COUNT(*) FROM matches m WHERE m.round = 'F'"

	n := normalize(t, "how many finals did nadal win", sql)
	if n.PrunedRoundFilter {
		t.Fatal("round filter must survive when the question is about a final")
	}
	if !strings.Contains(n.SQL, "m.round = 'F'") {
		t.Fatalf("round filter dropped: %s", n.SQL)
	}
}

func TestPruneRoundFilterAsSoleConjunct(t *testing.T) {
	sql := "SELECT COUNT(*) FROM matches m WHERE m.round = 'F'"

	n := normalize(t, "how many matches did nadal win", sql)
	if !n.PrunedRoundFilter {
		t.Fatal("expected round filter to be pruned")
	}
	if n.SQL != "SELECT COUNT(*) FROM matches m" {
		t.Fatalf("WHERE clause should disappear entirely: %s", n.SQL)
	}
}

func TestNormalizeSurfaceLiterals(t *testing.T) {
	cases := []struct {
		question string
		sql      string
		want     string
	}{
		{
			"wins on tierra batida",
			"SELECT COUNT(*) FROM matches m WHERE lower(m.surface) = lower('clay')",
			"SELECT COUNT(*) FROM matches m WHERE m.surface = 'Clay'",
		},
		{
			"wins on grass",
			"SELECT COUNT(*) FROM matches m WHERE m.surface = 'GRASS'",
			"SELECT COUNT(*) FROM matches m WHERE m.surface = 'Grass'",
		},
	}
	for _, tc := range cases {
		n := normalize(t, tc.question, tc.sql)
		if n.SQL != tc.want {
			t.Fatalf("surface normalization for %q:\n got  %s\n want %s", tc.question, n.SQL, tc.want)
		}
	}
}

func TestSurfaceNotInjectedWhenAbsent(t *testing.T) {
	sql := "SELECT COUNT(*) FROM matches m"

	n := normalize(t, "wins on clay", sql)
	if strings.Contains(n.SQL, "surface") {
		t.Fatalf("normalization must never inject filters: %s", n.SQL)
	}
}

func TestAliasAndLabelMaps(t *testing.T) {
	sql := "SELECT p.first_name, COUNT(*) AS total_wins FROM players p JOIN matches m ON m.winner_id = p.player_id GROUP BY p.first_name"

	n := normalize(t, "who won the most", sql)
	if n.Aliases["p"] != schema.TablePlayers || n.Aliases["m"] != schema.TableMatches {
		t.Fatalf("Aliases = %v", n.Aliases)
	}
	if n.Labels["total_wins"] != "Total Wins" {
		t.Fatalf("Labels = %v", n.Labels)
	}
	if n.Labels["first_name"] != "First Name" {
		t.Fatalf("Labels = %v", n.Labels)
	}
}

func TestMalformedCandidateSurfacesParseError(t *testing.T) {
	_, err := newTransformer().Normalize("anything", Candidate{SQL: "DROP TABLE players"})
	if err == nil {
		t.Fatal("expected parse error for non-SELECT candidate")
	}
}
