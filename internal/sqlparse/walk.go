package sqlparse

import "strings"

// WalkExprs visits every expression in the statement, including expressions
// inside derived tables and subqueries, in deterministic order.
func WalkExprs(stmt *Statement, visit func(Expr)) {
	if stmt == nil {
		return
	}
	for _, item := range stmt.Columns {
		walkExpr(item.Expr, visit)
	}
	for _, ref := range stmt.From {
		WalkExprs(ref.Subquery, visit)
	}
	for _, join := range stmt.Joins {
		WalkExprs(join.Table.Subquery, visit)
		if join.On != nil {
			walkExpr(join.On, visit)
		}
	}
	if stmt.Where != nil {
		walkExpr(stmt.Where, visit)
	}
	for _, expr := range stmt.GroupBy {
		walkExpr(expr, visit)
	}
	if stmt.Having != nil {
		walkExpr(stmt.Having, visit)
	}
	for _, item := range stmt.OrderBy {
		walkExpr(item.Expr, visit)
	}
}

// WalkExpr visits one expression tree, including nested subqueries.
func WalkExpr(expr Expr, visit func(Expr)) {
	walkExpr(expr, visit)
}

func walkExpr(expr Expr, visit func(Expr)) {
	if expr == nil {
		return
	}
	visit(expr)
	switch e := expr.(type) {
	case Binary:
		walkExpr(e.Left, visit)
		walkExpr(e.Right, visit)
	case Unary:
		walkExpr(e.Operand, visit)
	case Paren:
		walkExpr(e.Inner, visit)
	case Func:
		for _, arg := range e.Args {
			walkExpr(arg, visit)
		}
	case Case:
		walkExpr(e.Operand, visit)
		for _, when := range e.Whens {
			walkExpr(when.Cond, visit)
			walkExpr(when.Then, visit)
		}
		walkExpr(e.Else, visit)
	case Subquery:
		WalkExprs(e.Select, visit)
	case Exists:
		WalkExprs(e.Select, visit)
	case In:
		walkExpr(e.Expr, visit)
		for _, item := range e.List {
			walkExpr(item, visit)
		}
		WalkExprs(e.Select, visit)
	case Between:
		walkExpr(e.Expr, visit)
		walkExpr(e.Lo, visit)
		walkExpr(e.Hi, visit)
	case IsNull:
		walkExpr(e.Expr, visit)
	}
}

// RewriteExprs rebuilds every expression slot of the statement bottom-up,
// replacing each node with fn's result. fn receives a node whose children
// have already been rewritten.
func RewriteExprs(stmt *Statement, fn func(Expr) Expr) {
	if stmt == nil {
		return
	}
	for i := range stmt.Columns {
		stmt.Columns[i].Expr = rewriteExpr(stmt.Columns[i].Expr, fn)
	}
	for i := range stmt.From {
		RewriteExprs(stmt.From[i].Subquery, fn)
	}
	for i := range stmt.Joins {
		RewriteExprs(stmt.Joins[i].Table.Subquery, fn)
		if stmt.Joins[i].On != nil {
			stmt.Joins[i].On = rewriteExpr(stmt.Joins[i].On, fn)
		}
	}
	if stmt.Where != nil {
		stmt.Where = rewriteExpr(stmt.Where, fn)
	}
	for i := range stmt.GroupBy {
		stmt.GroupBy[i] = rewriteExpr(stmt.GroupBy[i], fn)
	}
	if stmt.Having != nil {
		stmt.Having = rewriteExpr(stmt.Having, fn)
	}
	for i := range stmt.OrderBy {
		stmt.OrderBy[i].Expr = rewriteExpr(stmt.OrderBy[i].Expr, fn)
	}
}

func rewriteExpr(expr Expr, fn func(Expr) Expr) Expr {
	if expr == nil {
		return nil
	}
	switch e := expr.(type) {
	case Binary:
		e.Left = rewriteExpr(e.Left, fn)
		e.Right = rewriteExpr(e.Right, fn)
		return fn(e)
	case Unary:
		e.Operand = rewriteExpr(e.Operand, fn)
		return fn(e)
	case Paren:
		e.Inner = rewriteExpr(e.Inner, fn)
		return fn(e)
	case Func:
		for i := range e.Args {
			e.Args[i] = rewriteExpr(e.Args[i], fn)
		}
		return fn(e)
	case Case:
		if e.Operand != nil {
			e.Operand = rewriteExpr(e.Operand, fn)
		}
		for i := range e.Whens {
			e.Whens[i].Cond = rewriteExpr(e.Whens[i].Cond, fn)
			e.Whens[i].Then = rewriteExpr(e.Whens[i].Then, fn)
		}
		if e.Else != nil {
			e.Else = rewriteExpr(e.Else, fn)
		}
		return fn(e)
	case Subquery:
		RewriteExprs(e.Select, fn)
		return fn(e)
	case Exists:
		RewriteExprs(e.Select, fn)
		return fn(e)
	case In:
		e.Expr = rewriteExpr(e.Expr, fn)
		for i := range e.List {
			e.List[i] = rewriteExpr(e.List[i], fn)
		}
		RewriteExprs(e.Select, fn)
		return fn(e)
	case Between:
		e.Expr = rewriteExpr(e.Expr, fn)
		e.Lo = rewriteExpr(e.Lo, fn)
		e.Hi = rewriteExpr(e.Hi, fn)
		return fn(e)
	case IsNull:
		e.Expr = rewriteExpr(e.Expr, fn)
		return fn(e)
	default:
		return fn(expr)
	}
}

// Clone deep-copies a statement. Render/Parse round-trips are already
// lossless, so cloning goes through them to keep one canonical code path.
func Clone(stmt *Statement) *Statement {
	if stmt == nil {
		return nil
	}
	copied, err := Parse(Render(stmt))
	if err != nil {
		// A statement built by this package always re-parses.
		panic("sqlparse: clone round-trip failed: " + err.Error())
	}
	return copied
}

// AndWhere conjoins a predicate onto the statement's WHERE clause,
// parenthesizing an OR-rooted existing clause so the conjunction binds the
// whole of it.
func AndWhere(stmt *Statement, predicate Expr) {
	if stmt.Where == nil {
		stmt.Where = predicate
		return
	}
	left := stmt.Where
	if b, ok := left.(Binary); ok && b.Op == "OR" {
		left = Paren{Inner: left}
	}
	stmt.Where = Binary{Op: "AND", Left: left, Right: predicate}
}

// Eq builds `column = literal` predicates used by filter injection.
func Eq(qualifier, column, literal string) Expr {
	return Binary{
		Op:    "=",
		Left:  Column{Qualifier: qualifier, Name: column},
		Right: Literal{Raw: literal},
	}
}

// Quote renders a string as a single-quoted SQL literal.
func Quote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
