package sqlparse

import (
	"errors"
	"testing"
)

func TestParseRenderRoundTrip(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{
			"select count(*) from matches m where m.tour = 'ATP';",
			"SELECT COUNT(*) FROM matches m WHERE m.tour = 'ATP'",
		},
		{
			"SELECT p.first_name, p.last_name FROM players p JOIN matches m ON m.winner_id = p.player_id WHERE m.round = 'F' AND m.tourney_level = 'G'",
			"SELECT p.first_name, p.last_name FROM players p JOIN matches m ON m.winner_id = p.player_id WHERE m.round = 'F' AND m.tourney_level = 'G'",
		},
		{
			"SELECT SUM(CASE WHEN m.winner_id = p.player_id THEN m.w_ace ELSE m.l_ace END) AS total_aces FROM matches m, players p",
			"SELECT SUM(CASE WHEN m.winner_id = p.player_id THEN m.w_ace ELSE m.l_ace END) AS total_aces FROM matches m, players p",
		},
		{
			"SELECT r.rank FROM rankings r WHERE r.ranking_date = (SELECT MAX(r2.ranking_date) FROM rankings r2 WHERE r2.player_id = r.player_id AND r2.ranking_date <= m.match_date)",
			"SELECT r.rank FROM rankings r WHERE r.ranking_date = (SELECT MAX(r2.ranking_date) FROM rankings r2 WHERE r2.player_id = r.player_id AND r2.ranking_date <= m.match_date)",
		},
		{
			"SELECT p.last_name FROM players p WHERE NOT EXISTS (SELECT 1 FROM matches m WHERE m.loser_id = p.player_id)",
			"SELECT p.last_name FROM players p WHERE NOT EXISTS (SELECT 1 FROM matches m WHERE m.loser_id = p.player_id)",
		},
		{
			"SELECT DISTINCT m.tourney_name FROM matches m LEFT OUTER JOIN players p ON p.player_id = m.winner_id ORDER BY m.tourney_name DESC LIMIT 10",
			"SELECT DISTINCT m.tourney_name FROM matches m LEFT JOIN players p ON p.player_id = m.winner_id ORDER BY m.tourney_name DESC LIMIT 10",
		},
		{
			"SELECT m.winner_id FROM matches m WHERE m.loser_id IN (SELECT player_id FROM players WHERE last_name = 'Federer') GROUP BY m.winner_id HAVING COUNT(DISTINCT m.loser_id) = 3",
			"SELECT m.winner_id FROM matches m WHERE m.loser_id IN (SELECT player_id FROM players WHERE last_name = 'Federer') GROUP BY m.winner_id HAVING COUNT(DISTINCT m.loser_id) = 3",
		},
		{
			"SELECT COUNT(*) FROM matches m WHERE m.surface = 'Clay' AND (m.winner_id = 101 OR m.loser_id = 101)",
			"SELECT COUNT(*) FROM matches m WHERE m.surface = 'Clay' AND (m.winner_id = 101 OR m.loser_id = 101)",
		},
		{
			"SELECT strftime('%Y', m.match_date) AS season, COUNT(*) FROM matches m GROUP BY strftime('%Y', m.match_date)",
			"SELECT STRFTIME('%Y', m.match_date) AS season, COUNT(*) FROM matches m GROUP BY STRFTIME('%Y', m.match_date)",
		},
	}
	for _, tc := range cases {
		stmt, err := Parse(tc.input)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", tc.input, err)
		}
		if got := Render(stmt); got != tc.want {
			t.Fatalf("Render mismatch:\n got  %s\n want %s", got, tc.want)
		}
	}
}

func TestRenderIsStableUnderReparse(t *testing.T) {
	input := "SELECT COUNT(*) AS wins FROM matches m JOIN rankings r ON r.player_id = m.winner_id AND r.ranking_date = (SELECT MAX(r2.ranking_date) FROM rankings r2 WHERE r2.player_id = r.player_id AND r2.ranking_date <= m.match_date) WHERE r.rank = 1"
	first, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	once := Render(first)
	second, err := Parse(once)
	if err != nil {
		t.Fatalf("reparse error: %v", err)
	}
	if twice := Render(second); twice != once {
		t.Fatalf("Render not stable:\n once  %s\n twice %s", once, twice)
	}
}

func TestParseRejectsNonSelect(t *testing.T) {
	for _, input := range []string{
		"DROP TABLE players",
		"DELETE FROM matches",
		"UPDATE players SET last_name = 'X'",
		"INSERT INTO matches VALUES (1)",
		"WITH x AS (SELECT 1) SELECT * FROM x",
	} {
		if _, err := Parse(input); !errors.Is(err, ErrNotSelect) {
			t.Fatalf("Parse(%q) error = %v, want ErrNotSelect", input, err)
		}
	}
}

func TestParseRejectsMultipleStatements(t *testing.T) {
	_, err := Parse("SELECT 1; SELECT 2")
	if !errors.Is(err, ErrMultipleStatements) {
		t.Fatalf("error = %v, want ErrMultipleStatements", err)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, input := range []string{
		"SELECT FROM",
		"SELECT * FROM matches WHERE",
		"SELECT * FROM matches UNION SELECT * FROM players",
		"SELECT COUNT( FROM matches",
	} {
		if _, err := Parse(input); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Parse(%q) error = %v, want ErrMalformed", input, err)
		}
	}
}

func TestAndWhereParenthesizesOrClauses(t *testing.T) {
	stmt, err := Parse("SELECT COUNT(*) FROM matches m WHERE m.winner_id = 1 OR m.loser_id = 1")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	AndWhere(stmt, Eq("m", "tour", "'ATP'"))
	got := Render(stmt)
	want := "SELECT COUNT(*) FROM matches m WHERE (m.winner_id = 1 OR m.loser_id = 1) AND m.tour = 'ATP'"
	if got != want {
		t.Fatalf("AndWhere:\n got  %s\n want %s", got, want)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	stmt, err := Parse("SELECT COUNT(*) FROM matches m WHERE m.round = 'F'")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	clone := Clone(stmt)
	AndWhere(clone, Eq("m", "tour", "'ATP'"))
	if Render(stmt) == Render(clone) {
		t.Fatal("mutating the clone must not affect the original")
	}
}
