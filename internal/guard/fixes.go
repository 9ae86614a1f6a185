package guard

import (
	"fmt"
	"strings"

	"github.com/baselinehq/baseline/internal/sqlparse"
)

// applyFilterFix injects a missing mandatory filter, or rewrites an existing
// one carrying the wrong tour literal. Injection targets the outermost scope
// referencing one of the candidate tables, on its alphabetically first alias,
// so repeated runs produce identical SQL.
func applyFilterFix(stmt *sqlparse.Statement, f *filterFix, tables []string) Fix {
	if f.rewrite {
		sqlparse.RewriteExprs(stmt, func(e sqlparse.Expr) sqlparse.Expr {
			b, ok := e.(sqlparse.Binary)
			if !ok {
				return e
			}
			col, lit, ok := eqColumnLiteral(b, f.column)
			if !ok || strings.EqualFold(trimQuotes(lit.Raw), f.literal) {
				return e
			}
			return sqlparse.Binary{Op: "=", Left: col, Right: sqlparse.Literal{Raw: sqlparse.Quote(f.literal)}}
		})
		return Fix{
			Check:  fixCheckFor(f.column),
			Detail: fmt.Sprintf("rewrote %s filter to '%s'", f.column, f.literal),
		}
	}

	for _, s := range scopes(stmt) {
		scoped := scopeTables(s)
		for _, alias := range sortedAliases(scoped) {
			if !containsString(tables, scoped[alias]) {
				continue
			}
			sqlparse.AndWhere(s, sqlparse.Eq(alias, f.column, sqlparse.Quote(f.literal)))
			return Fix{
				Check:  fixCheckFor(f.column),
				Detail: fmt.Sprintf("injected %s.%s = '%s'", alias, f.column, f.literal),
			}
		}
	}
	// checkMandatoryFilter only plans a fix when a candidate table is
	// referenced, so a target scope always exists.
	return Fix{Check: fixCheckFor(f.column), Detail: "no injection target"}
}

func fixCheckFor(column string) Check {
	if column == "tour" {
		return CheckTourFilter
	}
	return CheckGenderFilter
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// antiJoinPlan is a NOT EXISTS conjunct rewritten into a LEFT JOIN plus a
// null check on the correlated key.
type antiJoinPlan struct {
	table   sqlparse.TableRef
	on      sqlparse.Expr
	nullKey sqlparse.Column
}

// planAntiJoin accepts only the unambiguous shape: a single named table, no
// joins, and a conjunction of equality predicates with at least one
// correlating the subquery alias to the outer scope.
func planAntiJoin(outerTables map[string]string, node sqlparse.Exists) (antiJoinPlan, bool) {
	sub := node.Select
	if sub == nil || len(sub.From) != 1 || sub.From[0].Name == "" || len(sub.Joins) != 0 || sub.Where == nil {
		return antiJoinPlan{}, false
	}
	alias := sub.From[0].AliasOrName()
	if _, taken := outerTables[alias]; taken {
		return antiJoinPlan{}, false
	}

	var key sqlparse.Column
	for _, c := range conjuncts(sub.Where) {
		b, ok := unwrapParen(c).(sqlparse.Binary)
		if !ok || b.Op != "=" {
			return antiJoinPlan{}, false
		}
		l, lok := b.Left.(sqlparse.Column)
		r, rok := b.Right.(sqlparse.Column)
		switch {
		case lok && rok:
			if key.Name == "" && l.Qualifier == alias && r.Qualifier != alias && r.Qualifier != "" {
				key = l
			}
			if key.Name == "" && r.Qualifier == alias && l.Qualifier != alias && l.Qualifier != "" {
				key = r
			}
		default:
			if _, _, ok := eqColumnLiteral(b, ""); !ok {
				return antiJoinPlan{}, false
			}
		}
	}
	if key.Name == "" {
		return antiJoinPlan{}, false
	}
	return antiJoinPlan{table: sub.From[0], on: sub.Where, nullKey: key}, true
}

// applyNegativeExistence rewrites every rewritable top-level NOT EXISTS
// conjunct into a LEFT JOIN with an IS NULL check.
func applyNegativeExistence(stmt *sqlparse.Statement) []Fix {
	if stmt.Where == nil {
		return nil
	}
	taken := scopeTables(stmt)
	var kept []sqlparse.Expr
	var fixes []Fix
	for _, c := range conjuncts(stmt.Where) {
		if node, ok := unwrapParen(c).(sqlparse.Exists); ok && node.Not {
			if plan, ok := planAntiJoin(taken, node); ok {
				stmt.Joins = append(stmt.Joins, sqlparse.Join{Type: sqlparse.JoinLeft, Table: plan.table, On: plan.on})
				taken[plan.table.AliasOrName()] = plan.table.Name
				kept = append(kept, sqlparse.IsNull{Expr: plan.nullKey})
				fixes = append(fixes, Fix{
					Check:  CheckNegativeExistence,
					Detail: fmt.Sprintf("rewrote NOT EXISTS on %s into a LEFT JOIN with IS NULL", plan.table.Name),
				})
				continue
			}
		}
		kept = append(kept, c)
	}
	stmt.Where = andChain(kept)
	return fixes
}

// applyPlayerJoin injects the players join anchored on the matches winner.
func applyPlayerJoin(stmt *sqlparse.Statement, fix *playerJoinFix) Fix {
	stmt.Joins = append(stmt.Joins, sqlparse.Join{
		Type:  sqlparse.JoinInner,
		Table: sqlparse.TableRef{Name: "players", Alias: fix.alias},
		On: sqlparse.Binary{
			Op:    "=",
			Left:  sqlparse.Column{Qualifier: fix.alias, Name: "player_id"},
			Right: sqlparse.Column{Qualifier: fix.matchesAlias, Name: "winner_id"},
		},
	})
	if fix.qualify {
		for i := range stmt.Columns {
			if col, ok := stmt.Columns[i].Expr.(sqlparse.Column); ok && col.Qualifier == "" && isPlayerNameColumn(col.Name) {
				col.Qualifier = fix.alias
				stmt.Columns[i].Expr = col
			}
		}
	}
	return Fix{
		Check:  CheckPlayerJoin,
		Detail: fmt.Sprintf("injected JOIN players %s ON %s.player_id = %s.winner_id", fix.alias, fix.alias, fix.matchesAlias),
	}
}

func andChain(list []sqlparse.Expr) sqlparse.Expr {
	if len(list) == 0 {
		return nil
	}
	e := list[0]
	for _, next := range list[1:] {
		e = sqlparse.Binary{Op: "AND", Left: e, Right: next}
	}
	return e
}
