// Package resolve maps name fragments from a question to row identifiers in
// the entity store. Zero matches, one match and several matches are three
// distinct outcomes the pipeline handles differently.
package resolve

import (
	"context"
	"database/sql"
	"fmt"
)

type Status string

const (
	StatusNotFound  Status = "not_found"
	StatusResolved  Status = "resolved"
	StatusAmbiguous Status = "ambiguous"
)

// Candidate is one possible match, carrying the attributes a clarification
// response uses to tell candidates apart.
type Candidate struct {
	ID        string
	Name      string
	BirthYear int
	Tour      string
}

// Outcome is the result of resolving one fragment. ID is set only when
// Status is resolved; Candidates only when ambiguous.
type Outcome struct {
	Status     Status
	ID         string
	Name       string
	Candidates []Candidate
}

// Resolver looks entities up in the backing store. It only ever reads.
type Resolver struct {
	db *sql.DB
}

func NewResolver(db *sql.DB) *Resolver {
	return &Resolver{db: db}
}

const maxCandidates = 8

// Player resolves a name fragment against the players table. A single bare
// token is treated as a surname; "first last" pairs match the full name.
func (r *Resolver) Player(ctx context.Context, fragment string) (Outcome, error) {
	query := `
SELECT CAST(player_id AS VARCHAR), first_name || ' ' || last_name, COALESCE(CAST(strftime(dob, '%Y') AS INTEGER), 0), gender
FROM players
WHERE LOWER(last_name) = LOWER(?) OR LOWER(first_name || ' ' || last_name) = LOWER(?)
ORDER BY player_id ASC
LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, fragment, fragment, maxCandidates+1)
	if err != nil {
		return Outcome{}, fmt.Errorf("resolve player %q: %w", fragment, err)
	}
	defer func() { _ = rows.Close() }()

	candidates := make([]Candidate, 0)
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.ID, &c.Name, &c.BirthYear, &c.Tour); err != nil {
			return Outcome{}, fmt.Errorf("scan player candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return Outcome{}, fmt.Errorf("iterate player candidates: %w", err)
	}
	return outcomeFor(candidates), nil
}

// Tournament resolves a fragment against the distinct tournament names in
// the matches table. The name itself is the identifier.
func (r *Resolver) Tournament(ctx context.Context, fragment string) (Outcome, error) {
	query := `
SELECT DISTINCT tourney_name
FROM matches
WHERE LOWER(tourney_name) LIKE '%' || LOWER(?) || '%'
ORDER BY tourney_name ASC
LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, fragment, maxCandidates+1)
	if err != nil {
		return Outcome{}, fmt.Errorf("resolve tournament %q: %w", fragment, err)
	}
	defer func() { _ = rows.Close() }()

	candidates := make([]Candidate, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return Outcome{}, fmt.Errorf("scan tournament candidate: %w", err)
		}
		candidates = append(candidates, Candidate{ID: name, Name: name})
	}
	if err := rows.Err(); err != nil {
		return Outcome{}, fmt.Errorf("iterate tournament candidates: %w", err)
	}
	return outcomeFor(candidates), nil
}

func outcomeFor(candidates []Candidate) Outcome {
	switch len(candidates) {
	case 0:
		return Outcome{Status: StatusNotFound}
	case 1:
		return Outcome{Status: StatusResolved, ID: candidates[0].ID, Name: candidates[0].Name}
	default:
		return Outcome{Status: StatusAmbiguous, Candidates: candidates}
	}
}
