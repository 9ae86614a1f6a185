// Package transform normalizes candidate SQL into the canonical structural
// form the guard validates. Normalization is a pure function of the SQL text
// and the originating question; it never touches the database.
package transform

import (
	"fmt"
	"sort"
	"strings"

	"github.com/baselinehq/baseline/internal/schema"
	"github.com/baselinehq/baseline/internal/sqlparse"
)

// Provenance records who produced a candidate statement.
type Provenance string

const (
	ProvenanceTemplate  Provenance = "template"
	ProvenanceGenerated Provenance = "generated"
)

// Candidate is raw SQL text that has not been validated yet.
type Candidate struct {
	SQL        string
	Provenance Provenance
}

// Normalized is the canonical structural form of a candidate statement.
type Normalized struct {
	Stmt       *sqlparse.Statement
	SQL        string
	Provenance Provenance

	// Aliases maps alias → table for every named table in scope.
	Aliases map[string]string
	// Labels maps result-column name → human-readable label.
	Labels map[string]string
	// SideNeutralized lists the statistics rewritten into subject-centric
	// CASE form.
	SideNeutralized []string
	// PrunedRoundFilter is set when an implicit round = 'F' filter was
	// removed because the question is not about a final.
	PrunedRoundFilter bool
}

type Transformer struct {
	Registry *schema.Registry
}

func New(registry *schema.Registry) *Transformer {
	return &Transformer{Registry: registry}
}

/// Normalize parses the candidate and applies the structural rewrites:
// alias and label extraction, side-neutral statistic rewriting, round-filter
// pruning and surface-literal normalization. Each rewrite is idempotent.
func (t *Transformer) Normalize(question string, candidate Candidate) (Normalized, error) {
	stmt, err := sqlparse.Parse(candidate.SQL)
	if err != nil {
		return Normalized{}, fmt.Errorf("parse candidate: %w", err)
	}

	n := Normalized{
		Stmt:       stmt,
		Provenance: candidate.Provenance,
		Aliases:    collectAliases(stmt),
	}

	n.SideNeutralized = t.neutralizeSideStats(stmt, n.Aliases)
	if !t.Registry.MentionsFinal(question) {
		n.PrunedRoundFilter = pruneRoundFilter(stmt)
	}
	if canonical, ok := t.Registry.CanonicalSurface(question); ok {
		normalizeSurfaceLiterals(stmt, canonical)
	}

	n.Labels = collectLabels(stmt)
	n.SQL = sqlparse.Render(stmt)
	return n, nil
}

func collectAliases(stmt *sqlparse.Statement) map[string]string {
	aliases := map[string]string{}
	var collect func(s *sqlparse.Statement)
	collect = func(s *sqlparse.Statement) {
		if s == nil {
			return
		}
		for _, ref := range s.From {
			if ref.Name != "" {
				aliases[ref.AliasOrName()] = ref.Name
			}
			collect(ref.Subquery)
		}
		for _, join := range s.Joins {
			if join.Table.Name != "" {
				aliases[join.Table.AliasOrName()] = join.Table.Name
			}
			collect(join.Table.Subquery)
		}
	}
	collect(stmt)

	// Subqueries in expression position see the outer aliases too.
	sqlparse.WalkExprs(stmt, func(e sqlparse.Expr) {
		switch sub := e.(type) {
		case sqlparse.Subquery:
			collect(sub.Select)
		case sqlparse.Exists:
			collect(sub.Select)
		case sqlparse.In:
			collect(sub.Select)
		}
	})
	return aliases
}

func collectLabels(stmt *sqlparse.Statement) map[string]string {
	labels := map[string]string{}
	for _, item := range stmt.Columns {
		name := item.Alias
		if name == "" {
			if col, ok := item.Expr.(sqlparse.Column); ok {
				name = col.Name
			}
		}
		if name == "" {
			continue
		}
		labels[name] = humanLabel(name)
	}
	return labels
}

func humanLabel(name string) string {
	parts := strings.Split(name, "_")
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}

// neutralizeSideStats rewrites winner-/loser-prefixed statistic columns that
// appear outside a winner/loser CASE into
// CASE WHEN subject = winner_id THEN w_col ELSE l_col END, so aggregation is
// subject-centric rather than outcome-centric. The subject is the single
// players alias in scope; with zero or several the reference is left alone
// for the guard to judge.
func (t *Transformer) neutralizeSideStats(stmt *sqlparse.Statement, aliases map[string]string) []string {
	subject := singleAliasFor(aliases, schema.TablePlayers)
	if subject == "" {
		return nil
	}

	rewritten := map[string]bool{}
	var rewrite func(e sqlparse.Expr) sqlparse.Expr
	rewrite = func(e sqlparse.Expr) sqlparse.Expr {
		switch node := e.(type) {
		case sqlparse.Case:
			if caseKeyedOnSide(node) {
				return node
			}
		case sqlparse.Column:
			if stat, ok := t.Registry.SideStatForColumn(node.Name); ok {
				rewritten[stat.Name] = true
				return sideNeutralCase(subject, node.Qualifier, stat)
			}
		}
		return rewriteChildren(e, rewrite)
	}
	rewriteStatementTopDown(stmt, rewrite)

	stats := make([]string, 0, len(rewritten))
	for stat := range rewritten {
		stats = append(stats, stat)
	}
	sort.Strings(stats)
	return stats
}

func sideNeutralCase(subject, matchQualifier string, stat schema.SideStat) sqlparse.Expr {
	return sqlparse.Case{
		Whens: []sqlparse.When{{
			Cond: sqlparse.Binary{
				Op:    "=",
				Left:  sqlparse.Column{Qualifier: subject, Name: "player_id"},
				Right: sqlparse.Column{Qualifier: matchQualifier, Name: "winner_id"},
			},
			Then: sqlparse.Column{Qualifier: matchQualifier, Name: stat.WinnerColumn},
		}},
		Else: sqlparse.Column{Qualifier: matchQualifier, Name: stat.LoserColumn},
	}
}

func caseKeyedOnSide(c sqlparse.Case) bool {
	keyed := false
	probe := func(e sqlparse.Expr) {
		if col, ok := e.(sqlparse.Column); ok {
			if col.Name == "winner_id" || col.Name == "loser_id" {
				keyed = true
			}
		}
	}
	for _, when := range c.Whens {
		sqlparse.WalkExpr(when.Cond, probe)
	}
	return keyed
}

func singleAliasFor(aliases map[string]string, table string) string {
	found := ""
	for alias, name := range aliases {
		if name != table {
			continue
		}
		if found != "" {
			return ""
		}
		found = alias
	}
	return found
}

// pruneRoundFilter removes round = 'F' conjuncts from WHERE and join
// predicates at every nesting level. It reports whether anything was removed.
func pruneRoundFilter(stmt *sqlparse.Statement) bool {
	pruned := false
	var pruneStatement func(s *sqlparse.Statement)
	var prune func(e sqlparse.Expr) sqlparse.Expr

	prune = func(e sqlparse.Expr) sqlparse.Expr {
		switch node := e.(type) {
		case sqlparse.Binary:
			if node.Op == "AND" {
				left := prune(node.Left)
				right := prune(node.Right)
				if left == nil {
					return right
				}
				if right == nil {
					return left
				}
				return sqlparse.Binary{Op: "AND", Left: left, Right: right}
			}
			if isRoundFinalPredicate(node) {
				pruned = true
				return nil
			}
		case sqlparse.Paren:
			inner := prune(node.Inner)
			if inner == nil {
				return nil
			}
			return sqlparse.Paren{Inner: inner}
		}
		return e
	}

	pruneStatement = func(s *sqlparse.Statement) {
		if s == nil {
			return
		}
		if s.Where != nil {
			s.Where = prune(s.Where)
		}
		for i := range s.Joins {
			if s.Joins[i].On != nil {
				s.Joins[i].On = prune(s.Joins[i].On)
			}
			pruneStatement(s.Joins[i].Table.Subquery)
		}
		for i := range s.From {
			pruneStatement(s.From[i].Subquery)
		}
		sqlparse.WalkExprs(s, func(e sqlparse.Expr) {
			switch sub := e.(type) {
			case sqlparse.Subquery:
				pruneStatement(sub.Select)
			case sqlparse.Exists:
				pruneStatement(sub.Select)
			case sqlparse.In:
				pruneStatement(sub.Select)
			}
		})
	}
	pruneStatement(stmt)
	return pruned
}

func isRoundFinalPredicate(b sqlparse.Binary) bool {
	if b.Op != "=" {
		return false
	}
	col, okCol := b.Left.(sqlparse.Column)
	lit, okLit := b.Right.(sqlparse.Literal)
	if !okCol || !okLit {
		col, okCol = b.Right.(sqlparse.Column)
		lit, okLit = b.Left.(sqlparse.Literal)
	}
	if !okCol || !okLit {
		return false
	}
	return col.Name == "round" && strings.EqualFold(strings.Trim(lit.Raw, "'"), "f")
}

// normalizeSurfaceLiterals rewrites existing surface comparisons to the
// canonical literal detected in the question. It never injects new filters.
func normalizeSurfaceLiterals(stmt *sqlparse.Statement, canonical string) {
	sqlparse.RewriteExprs(stmt, func(e sqlparse.Expr) sqlparse.Expr {
		b, ok := e.(sqlparse.Binary)
		if !ok || b.Op != "=" {
			return e
		}
		left, leftIsSurface := surfaceOperand(b.Left)
		if !leftIsSurface {
			return e
		}
		if _, isLiteral := literalOperand(b.Right); !isLiteral {
			return e
		}
		return sqlparse.Binary{
			Op:    "=",
			Left:  left,
			Right: sqlparse.Literal{Raw: sqlparse.Quote(canonical)},
		}
	})
}

// surfaceOperand unwraps surface or LOWER(surface) and returns the bare
// column reference.
func surfaceOperand(e sqlparse.Expr) (sqlparse.Expr, bool) {
	switch node := e.(type) {
	case sqlparse.Column:
		if node.Name == "surface" {
			return node, true
		}
	case sqlparse.Func:
		if node.Name == "LOWER" && len(node.Args) == 1 {
			if col, ok := node.Args[0].(sqlparse.Column); ok && col.Name == "surface" {
				return col, true
			}
		}
	}
	return nil, false
}

// literalOperand unwraps a string literal or LOWER('x').
func literalOperand(e sqlparse.Expr) (string, bool) {
	switch node := e.(type) {
	case sqlparse.Literal:
		if strings.HasPrefix(node.Raw, "'") {
			return strings.Trim(node.Raw, "'"), true
		}
	case sqlparse.Func:
		if node.Name == "LOWER" && len(node.Args) == 1 {
			if lit, ok := node.Args[0].(sqlparse.Literal); ok && strings.HasPrefix(lit.Raw, "'") {
				return strings.Trim(lit.Raw, "'"), true
			}
		}
	}
	return "", false
}


