package transform

import "github.com/baselinehq/baseline/internal/sqlparse"

// rewriteStatementTopDown applies fn to every expression slot of the
// statement. fn owns the recursion: it may return a node unchanged to stop
// descending, or call rewriteChildren to continue.
func rewriteStatementTopDown(stmt *sqlparse.Statement, fn func(sqlparse.Expr) sqlparse.Expr) {
	if stmt == nil {
		return
	}
	for i := range stmt.Columns {
		stmt.Columns[i].Expr = fn(stmt.Columns[i].Expr)
	}
	for i := range stmt.From {
		rewriteStatementTopDown(stmt.From[i].Subquery, fn)
	}
	for i := range stmt.Joins {
		rewriteStatementTopDown(stmt.Joins[i].Table.Subquery, fn)
		if stmt.Joins[i].On != nil {
			stmt.Joins[i].On = fn(stmt.Joins[i].On)
		}
	}
	if stmt.Where != nil {
		stmt.Where = fn(stmt.Where)
	}
	for i := range stmt.GroupBy {
		stmt.GroupBy[i] = fn(stmt.GroupBy[i])
	}
	if stmt.Having != nil {
		stmt.Having = fn(stmt.Having)
	}
	for i := range stmt.OrderBy {
		stmt.OrderBy[i].Expr = fn(stmt.OrderBy[i].Expr)
	}
}

// rewriteChildren applies fn to the immediate children of e and returns the
// rebuilt node.
func rewriteChildren(e sqlparse.Expr, fn func(sqlparse.Expr) sqlparse.Expr) sqlparse.Expr {
	switch node := e.(type) {
	case sqlparse.Binary:
		node.Left = fn(node.Left)
		node.Right = fn(node.Right)
		return node
	case sqlparse.Unary:
		node.Operand = fn(node.Operand)
		return node
	case sqlparse.Paren:
		node.Inner = fn(node.Inner)
		return node
	case sqlparse.Func:
		for i := range node.Args {
			node.Args[i] = fn(node.Args[i])
		}
		return node
	case sqlparse.Case:
		if node.Operand != nil {
			node.Operand = fn(node.Operand)
		}
		for i := range node.Whens {
			node.Whens[i].Cond = fn(node.Whens[i].Cond)
			node.Whens[i].Then = fn(node.Whens[i].Then)
		}
		if node.Else != nil {
			node.Else = fn(node.Else)
		}
		return node
	case sqlparse.Subquery:
		rewriteStatementTopDown(node.Select, fn)
		return node
	case sqlparse.Exists:
		rewriteStatementTopDown(node.Select, fn)
		return node
	case sqlparse.In:
		node.Expr = fn(node.Expr)
		for i := range node.List {
			node.List[i] = fn(node.List[i])
		}
		rewriteStatementTopDown(node.Select, fn)
		return node
	case sqlparse.Between:
		node.Expr = fn(node.Expr)
		node.Lo = fn(node.Lo)
		node.Hi = fn(node.Hi)
		return node
	case sqlparse.IsNull:
		node.Expr = fn(node.Expr)
		return node
	default:
		return e
	}
}
