package guard

import (
	"fmt"
	"sort"
	"strings"

	"github.com/baselinehq/baseline/internal/schema"
	"github.com/baselinehq/baseline/internal/sqlparse"
)

// filterFix is a pending tour or gender filter correction.
type filterFix struct {
	column  string
	literal string
	// rewrite means a filter on the column exists but carries the wrong
	// tour literal; otherwise the filter is missing and gets injected.
	rewrite bool
}

// playerJoinFix is a pending players-table join injection.
type playerJoinFix struct {
	alias        string
	matchesAlias string
	// qualify marks unqualified name columns that must be bound to the new
	// alias.
	qualify bool
}

// checkTourFilter verifies the mandatory tour filter on the matches table.
func (g *Guard) checkTourFilter(question string, stmt *sqlparse.Statement, sc []*sqlparse.Statement) *filterFix {
	return g.checkMandatoryFilter(question, stmt, sc, "tour", []string{schema.TableMatches})
}

// checkGenderFilter verifies the mandatory gender filter on any players or
// rankings reference.
func (g *Guard) checkGenderFilter(question string, stmt *sqlparse.Statement, sc []*sqlparse.Statement) *filterFix {
	return g.checkMandatoryFilter(question, stmt, sc, "gender", []string{schema.TablePlayers, schema.TableRankings})
}

func (g *Guard) checkMandatoryFilter(question string, stmt *sqlparse.Statement, sc []*sqlparse.Statement, column string, tables []string) *filterFix {
	if !anyTableReferenced(sc, tables) {
		return nil
	}
	required := "ATP"
	if g.registry.MentionsWTA(question) {
		required = "WTA"
	}

	present, wrong := false, false
	sqlparse.WalkExprs(stmt, func(e sqlparse.Expr) {
		b, ok := e.(sqlparse.Binary)
		if !ok {
			return
		}
		_, lit, ok := eqColumnLiteral(b, column)
		if !ok {
			return
		}
		if strings.EqualFold(trimQuotes(lit.Raw), required) {
			present = true
		} else {
			wrong = true
		}
	})
	if present {
		return nil
	}
	return &filterFix{column: column, literal: required, rewrite: wrong}
}

// checkTemporalRank rejects rank comparisons joined to matches that are not
// backed by a latest-snapshot correlated subquery.
func (g *Guard) checkTemporalRank(stmt *sqlparse.Statement, sc []*sqlparse.Statement) []Violation {
	if !anyTableReferenced(sc, []string{schema.TableMatches}) {
		return nil
	}
	compared := false
	sqlparse.WalkExprs(stmt, func(e sqlparse.Expr) {
		if b, ok := e.(sqlparse.Binary); ok && isRankComparison(b) {
			compared = true
		}
	})
	if !compared {
		return nil
	}

	snapshot := false
	sqlparse.WalkExprs(stmt, func(e sqlparse.Expr) {
		if sub, ok := e.(sqlparse.Subquery); ok && isLatestSnapshot(sub.Select) {
			snapshot = true
		}
	})
	if snapshot {
		return nil
	}
	return []Violation{{
		Check:  CheckTemporalRank,
		Detail: "rank comparison joined to matches without a latest-snapshot subquery bounded by ranking_date <= match_date",
	}}
}

func isRankComparison(b sqlparse.Binary) bool {
	switch b.Op {
	case "=", "<", "<=", ">", ">=":
	default:
		return false
	}
	col, okCol := b.Left.(sqlparse.Column)
	_, okLit := b.Right.(sqlparse.Literal)
	if !okCol || !okLit {
		col, okCol = b.Right.(sqlparse.Column)
		_, okLit = b.Left.(sqlparse.Literal)
	}
	return okCol && okLit && col.Name == "rank"
}

// isLatestSnapshot recognizes SELECT MAX(ranking_date) ... WHERE
// ranking_date <= match_date, the only accepted temporal anchor.
func isLatestSnapshot(s *sqlparse.Statement) bool {
	if s == nil || len(s.Columns) != 1 || s.Where == nil {
		return false
	}
	f, ok := s.Columns[0].Expr.(sqlparse.Func)
	if !ok || f.Name != "MAX" || len(f.Args) != 1 {
		return false
	}
	if col, ok := f.Args[0].(sqlparse.Column); !ok || col.Name != "ranking_date" {
		return false
	}
	bounded := false
	sqlparse.WalkExpr(s.Where, func(e sqlparse.Expr) {
		b, ok := e.(sqlparse.Binary)
		if !ok || b.Op != "<=" {
			return
		}
		l, lok := b.Left.(sqlparse.Column)
		r, rok := b.Right.(sqlparse.Column)
		if lok && rok && l.Name == "ranking_date" && r.Name == "match_date" {
			bounded = true
		}
	})
	return bounded
}

// checkNegativeExistence reports whether any top-level NOT EXISTS conjunct
// can be rewritten into an anti-join, and rejects negated EXISTS anywhere
// else.
func (g *Guard) checkNegativeExistence(stmt *sqlparse.Statement) (bool, []Violation) {
	rewritable := 0
	if stmt.Where != nil {
		taken := scopeTables(stmt)
		for _, c := range conjuncts(stmt.Where) {
			if node, ok := unwrapParen(c).(sqlparse.Exists); ok && node.Not {
				if plan, ok := planAntiJoin(taken, node); ok {
					taken[plan.table.AliasOrName()] = plan.table.Name
					rewritable++
				}
			}
		}
	}
	total := 0
	sqlparse.WalkExprs(stmt, func(e sqlparse.Expr) {
		if node, ok := e.(sqlparse.Exists); ok && node.Not {
			total++
		}
	})
	var violations []Violation
	if total > rewritable {
		violations = append(violations, Violation{
			Check:  CheckNegativeExistence,
			Detail: "negated EXISTS whose shape cannot be rewritten into an outer join with a null check",
		})
	}
	return rewritable > 0, violations
}

// checkJoinShape rejects cross joins without predicates and unconstrained
// EXISTS subqueries.
func (g *Guard) checkJoinShape(stmt *sqlparse.Statement, sc []*sqlparse.Statement) []Violation {
	var violations []Violation
	for _, s := range sc {
		for _, j := range s.Joins {
			if j.Type == sqlparse.JoinCross {
				violations = append(violations, Violation{Check: CheckJoinShape, Detail: "explicit CROSS JOIN"})
			} else if j.On == nil {
				violations = append(violations, Violation{Check: CheckJoinShape, Detail: fmt.Sprintf("join to %s without a predicate", j.Table.AliasOrName())})
			}
		}
		if len(s.From) < 2 {
			continue
		}
		linked := map[string]bool{}
		mark := func(e sqlparse.Expr) {
			sqlparse.WalkExpr(e, func(x sqlparse.Expr) {
				b, ok := x.(sqlparse.Binary)
				if !ok || b.Op != "=" {
					return
				}
				l, lok := b.Left.(sqlparse.Column)
				r, rok := b.Right.(sqlparse.Column)
				if lok && rok && l.Qualifier != r.Qualifier {
					linked[l.Qualifier] = true
					linked[r.Qualifier] = true
				}
			})
		}
		if s.Where != nil {
			mark(s.Where)
		}
		for _, j := range s.Joins {
			if j.On != nil {
				mark(j.On)
			}
		}
		for _, ref := range s.From {
			if !linked[ref.AliasOrName()] {
				violations = append(violations, Violation{Check: CheckJoinShape, Detail: fmt.Sprintf("comma join leaves %s without a join predicate", ref.AliasOrName())})
			}
		}
	}
	sqlparse.WalkExprs(stmt, func(e sqlparse.Expr) {
		if node, ok := e.(sqlparse.Exists); ok && !node.Not && node.Select != nil && node.Select.Where == nil {
			violations = append(violations, Violation{Check: CheckJoinShape, Detail: "unconstrained EXISTS"})
		}
	})
	return violations
}

// checkPlayerJoin verifies that projected player name columns are backed by
// a players join, and plans the injection when exactly one matches alias
// makes it unambiguous.
func (g *Guard) checkPlayerJoin(stmt *sqlparse.Statement) (*playerJoinFix, []Violation) {
	tables := scopeTables(stmt)
	needs := map[string]bool{}
	for _, item := range stmt.Columns {
		col, ok := item.Expr.(sqlparse.Column)
		if !ok || !isPlayerNameColumn(col.Name) {
			continue
		}
		if col.Qualifier == "" {
			if !hasTable(tables, schema.TablePlayers) {
				needs[""] = true
			}
			continue
		}
		if _, bound := tables[col.Qualifier]; bound {
			continue
		}
		needs[col.Qualifier] = true
	}
	if len(needs) == 0 {
		return nil, nil
	}
	if len(needs) > 1 {
		return nil, []Violation{{Check: CheckPlayerJoin, Detail: "player name columns spread over several unbound qualifiers"}}
	}

	matchesAliases := aliasesOf(tables, schema.TableMatches)
	if len(matchesAliases) != 1 {
		return nil, []Violation{{Check: CheckPlayerJoin, Detail: "player name columns without a players join and no unambiguous anchor to inject one"}}
	}
	fix := &playerJoinFix{matchesAlias: matchesAliases[0]}
	for qualifier := range needs {
		if qualifier == "" {
			fix.alias = freshAlias(tables, "p")
			fix.qualify = true
		} else {
			fix.alias = qualifier
		}
	}
	return fix, nil
}

func isPlayerNameColumn(name string) bool {
	return name == "first_name" || name == "last_name"
}

// checkCostLimit rejects statements whose estimated cost is unbounded: a scan
// of a known-large table with no filter, limit or aggregate, or a join
// fan-out past the configured maximum.
func (g *Guard) checkCostLimit(stmt *sqlparse.Statement, sc []*sqlparse.Statement) []Violation {
	var violations []Violation
	for _, s := range sc {
		tables := scopeTables(s)
		for _, alias := range sortedAliases(tables) {
			if !g.registry.IsLargeTable(tables[alias]) {
				continue
			}
			if s.Where == nil && s.Limit == nil && !hasAggregate(s) {
				violations = append(violations, Violation{Check: CheckCostLimit, Detail: fmt.Sprintf("unbounded scan of large table %s", tables[alias])})
			}
		}
	}
	if fanOut := len(stmt.Joins) + max(0, len(stmt.From)-1); fanOut > g.cfg.MaxJoins {
		violations = append(violations, Violation{Check: CheckCostLimit, Detail: fmt.Sprintf("join fan-out %d exceeds limit %d", fanOut, g.cfg.MaxJoins)})
	}
	return violations
}

func hasAggregate(s *sqlparse.Statement) bool {
	found := false
	for _, item := range s.Columns {
		sqlparse.WalkExpr(item.Expr, func(e sqlparse.Expr) {
			if f, ok := e.(sqlparse.Func); ok {
				switch f.Name {
				case "COUNT", "SUM", "AVG", "MIN", "MAX":
					found = true
				}
			}
		})
	}
	return found
}

// scopes lists every SELECT scope in the statement, outermost first.
func scopes(stmt *sqlparse.Statement) []*sqlparse.Statement {
	var out []*sqlparse.Statement
	var derived func(s *sqlparse.Statement)
	derived = func(s *sqlparse.Statement) {
		if s == nil {
			return
		}
		out = append(out, s)
		for _, ref := range s.From {
			derived(ref.Subquery)
		}
		for _, j := range s.Joins {
			derived(j.Table.Subquery)
		}
	}
	derived(stmt)
	sqlparse.WalkExprs(stmt, func(e sqlparse.Expr) {
		switch node := e.(type) {
		case sqlparse.Subquery:
			derived(node.Select)
		case sqlparse.Exists:
			derived(node.Select)
		case sqlparse.In:
			derived(node.Select)
		}
	})
	return out
}

// scopeTables maps alias → table for the named tables of a single scope.
func scopeTables(s *sqlparse.Statement) map[string]string {
	tables := map[string]string{}
	for _, ref := range s.From {
		if ref.Name != "" {
			tables[ref.AliasOrName()] = ref.Name
		}
	}
	for _, j := range s.Joins {
		if j.Table.Name != "" {
			tables[j.Table.AliasOrName()] = j.Table.Name
		}
	}
	return tables
}

func anyTableReferenced(sc []*sqlparse.Statement, names []string) bool {
	for _, s := range sc {
		tables := scopeTables(s)
		for _, name := range names {
			if hasTable(tables, name) {
				return true
			}
		}
	}
	return false
}

func hasTable(tables map[string]string, name string) bool {
	for _, table := range tables {
		if table == name {
			return true
		}
	}
	return false
}

func aliasesOf(tables map[string]string, name string) []string {
	var aliases []string
	for alias, table := range tables {
		if table == name {
			aliases = append(aliases, alias)
		}
	}
	sort.Strings(aliases)
	return aliases
}

func sortedAliases(tables map[string]string) []string {
	aliases := make([]string, 0, len(tables))
	for alias := range tables {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	return aliases
}

func freshAlias(tables map[string]string, base string) string {
	if _, taken := tables[base]; !taken {
		return base
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s%d", base, i)
		if _, taken := tables[candidate]; !taken {
			return candidate
		}
	}
}

func conjuncts(e sqlparse.Expr) []sqlparse.Expr {
	if b, ok := e.(sqlparse.Binary); ok && b.Op == "AND" {
		return append(conjuncts(b.Left), conjuncts(b.Right)...)
	}
	return []sqlparse.Expr{e}
}

func unwrapParen(e sqlparse.Expr) sqlparse.Expr {
	for {
		p, ok := e.(sqlparse.Paren)
		if !ok {
			return e
		}
		e = p.Inner
	}
}

// eqColumnLiteral matches `column = literal` in either order. An empty name
// matches any column.
func eqColumnLiteral(b sqlparse.Binary, name string) (sqlparse.Column, sqlparse.Literal, bool) {
	if b.Op != "=" {
		return sqlparse.Column{}, sqlparse.Literal{}, false
	}
	if col, ok := b.Left.(sqlparse.Column); ok {
		if lit, ok := b.Right.(sqlparse.Literal); ok && (name == "" || col.Name == name) {
			return col, lit, true
		}
	}
	if col, ok := b.Right.(sqlparse.Column); ok {
		if lit, ok := b.Left.(sqlparse.Literal); ok && (name == "" || col.Name == name) {
			return col, lit, true
		}
	}
	return sqlparse.Column{}, sqlparse.Literal{}, false
}

func trimQuotes(raw string) string {
	return strings.Trim(raw, "'")
}
