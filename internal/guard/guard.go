// Package guard validates normalized SQL against the dataset's domain
// invariants. Recoverable violations are auto-corrected by deterministic
// injection; the rest reject the statement before it can reach an executor.
package guard

import (
	"github.com/baselinehq/baseline/internal/schema"
	"github.com/baselinehq/baseline/internal/sqlparse"
	"github.com/baselinehq/baseline/internal/transform"
)

// Check identifies one invariant on the guard's checklist.
type Check string

const (
	CheckTourFilter        Check = "tour_filter"
	CheckGenderFilter      Check = "gender_filter"
	CheckTemporalRank      Check = "temporal_rank"
	CheckNegativeExistence Check = "negative_existence"
	CheckJoinShape         Check = "join_shape"
	CheckSingleSelect      Check = "single_select"
	CheckPlayerJoin        Check = "player_join"
	CheckCostLimit         Check = "cost_limit"
)

func checklist() []Check {
	return []Check{
		CheckTourFilter, CheckGenderFilter, CheckTemporalRank,
		CheckNegativeExistence, CheckJoinShape, CheckSingleSelect,
		CheckPlayerJoin, CheckCostLimit,
	}
}

// Violation is an unrecoverable invariant breach.
type Violation struct {
	Check  Check
	Detail string
}

// Fix records one auto-correction applied to the statement.
type Fix struct {
	Check  Check
	Detail string
}

type VerdictKind string

const (
	VerdictPass          VerdictKind = "pass"
	VerdictAutoCorrected VerdictKind = "auto_corrected"
	VerdictRejected      VerdictKind = "rejected"
)

// Verdict is the guard's decision. SQL carries the statement an executor may
// run only when Kind is pass or auto_corrected.
type Verdict struct {
	Kind       VerdictKind
	SQL        string
	Fixes      []Fix
	Violations []Violation
	Checked    []Check
}

// Config bounds statements the cost estimator would otherwise let scan freely.
type Config struct {
	// MaxJoins is the largest join fan-out accepted before the statement is
	// rejected as too expensive.
	MaxJoins int
}

func DefaultConfig() Config {
	return Config{MaxJoins: 4}
}

type Guard struct {
	registry *schema.Registry
	cfg      Config
}

func New(registry *schema.Registry, cfg Config) *Guard {
	if cfg.MaxJoins <= 0 {
		cfg.MaxJoins = DefaultConfig().MaxJoins
	}
	return &Guard{registry: registry, cfg: cfg}
}

// Validate runs the full checklist against the normalized statement. All
// violations are collected before deciding: any unrecoverable one rejects the
// statement, otherwise the recoverable findings are corrected in a fixed
// order (filter injection, then join-shape rewrites) and the corrected SQL is
// returned. The input statement is never mutated, so identical inputs always
// produce identical verdicts.
func (g *Guard) Validate(question string, n transform.Normalized) Verdict {
	if n.Stmt == nil {
		return Verdict{
			Kind:       VerdictRejected,
			SQL:        n.SQL,
			Violations: []Violation{{Check: CheckSingleSelect, Detail: "candidate is not a parsed SELECT statement"}},
			Checked:    checklist(),
		}
	}

	stmt := sqlparse.Clone(n.Stmt)
	sc := scopes(stmt)

	var violations []Violation
	tourFix := g.checkTourFilter(question, stmt, sc)
	genderFix := g.checkGenderFilter(question, stmt, sc)
	violations = append(violations, g.checkTemporalRank(stmt, sc)...)
	rewritableNotExists, neViolations := g.checkNegativeExistence(stmt)
	violations = append(violations, neViolations...)
	violations = append(violations, g.checkJoinShape(stmt, sc)...)
	playerFix, pjViolations := g.checkPlayerJoin(stmt)
	violations = append(violations, pjViolations...)
	violations = append(violations, g.checkCostLimit(stmt, sc)...)

	if len(violations) > 0 {
		return Verdict{Kind: VerdictRejected, SQL: n.SQL, Violations: violations, Checked: checklist()}
	}

	var fixes []Fix
	if tourFix != nil {
		fixes = append(fixes, applyFilterFix(stmt, tourFix, []string{schema.TableMatches}))
	}
	if genderFix != nil {
		fixes = append(fixes, applyFilterFix(stmt, genderFix, []string{schema.TablePlayers, schema.TableRankings}))
	}
	if rewritableNotExists {
		fixes = append(fixes, applyNegativeExistence(stmt)...)
	}
	if playerFix != nil {
		fixes = append(fixes, applyPlayerJoin(stmt, playerFix))
		// The injected players reference must carry the mandatory gender
		// filter like any other.
		if f := g.checkGenderFilter(question, stmt, scopes(stmt)); f != nil {
			fixes = append(fixes, applyFilterFix(stmt, f, []string{schema.TablePlayers, schema.TableRankings}))
		}
	}

	if len(fixes) == 0 {
		return Verdict{Kind: VerdictPass, SQL: n.SQL, Checked: checklist()}
	}
	return Verdict{Kind: VerdictAutoCorrected, SQL: sqlparse.Render(stmt), Fixes: fixes, Checked: checklist()}
}
