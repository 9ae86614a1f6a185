package sqlparse

import (
	"fmt"
	"strings"
)

// Render produces the canonical single-line form of the statement. Rendering
// then re-parsing yields an identical tree, which is what makes
// normalization idempotent and cache keys stable.
func Render(stmt *Statement) string {
	var b strings.Builder
	renderStatement(&b, stmt)
	return b.String()
}

func renderStatement(b *strings.Builder, stmt *Statement) {
	b.WriteString("SELECT ")
	if stmt.Distinct {
		b.WriteString("DISTINCT ")
	}
	for i, item := range stmt.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		renderExpr(b, item.Expr)
		if item.Alias != "" {
			b.WriteString(" AS ")
			b.WriteString(item.Alias)
		}
	}
	if len(stmt.From) > 0 {
		b.WriteString(" FROM ")
		for i, ref := range stmt.From {
			if i > 0 {
				b.WriteString(", ")
			}
			renderTableRef(b, ref)
		}
	}
	for _, join := range stmt.Joins {
		b.WriteString(" ")
		b.WriteString(string(join.Type))
		b.WriteString(" ")
		renderTableRef(b, join.Table)
		if join.On != nil {
			b.WriteString(" ON ")
			renderExpr(b, join.On)
		}
	}
	if stmt.Where != nil {
		b.WriteString(" WHERE ")
		renderExpr(b, stmt.Where)
	}
	if len(stmt.GroupBy) > 0 {
		b.WriteString(" GROUP BY ")
		for i, expr := range stmt.GroupBy {
			if i > 0 {
				b.WriteString(", ")
			}
			renderExpr(b, expr)
		}
	}
	if stmt.Having != nil {
		b.WriteString(" HAVING ")
		renderExpr(b, stmt.Having)
	}
	if len(stmt.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		for i, item := range stmt.OrderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			renderExpr(b, item.Expr)
			if item.Desc {
				b.WriteString(" DESC")
			}
		}
	}
	if stmt.Limit != nil {
		fmt.Fprintf(b, " LIMIT %d", *stmt.Limit)
	}
}

func renderTableRef(b *strings.Builder, ref TableRef) {
	if ref.Subquery != nil {
		b.WriteString("(")
		renderStatement(b, ref.Subquery)
		b.WriteString(") AS ")
		b.WriteString(ref.Alias)
		return
	}
	b.WriteString(ref.Name)
	if ref.Alias != "" {
		b.WriteString(" ")
		b.WriteString(ref.Alias)
	}
}

func renderExpr(b *strings.Builder, expr Expr) {
	switch e := expr.(type) {
	case Column:
		if e.Qualifier != "" {
			b.WriteString(e.Qualifier)
			b.WriteString(".")
		}
		b.WriteString(e.Name)
	case Star:
		if e.Qualifier != "" {
			b.WriteString(e.Qualifier)
			b.WriteString(".")
		}
		b.WriteString("*")
	case Literal:
		b.WriteString(e.Raw)
	case Binary:
		renderExpr(b, e.Left)
		b.WriteString(" ")
		b.WriteString(e.Op)
		b.WriteString(" ")
		renderExpr(b, e.Right)
	case Unary:
		if e.Op == "NOT" {
			b.WriteString("NOT ")
		} else {
			b.WriteString(e.Op)
		}
		renderExpr(b, e.Operand)
	case Paren:
		b.WriteString("(")
		renderExpr(b, e.Inner)
		b.WriteString(")")
	case Func:
		b.WriteString(e.Name)
		b.WriteString("(")
		if e.Star {
			b.WriteString("*")
		} else {
			if e.Distinct {
				b.WriteString("DISTINCT ")
			}
			for i, arg := range e.Args {
				if i > 0 {
					b.WriteString(", ")
				}
				renderExpr(b, arg)
			}
		}
		b.WriteString(")")
	case Case:
		b.WriteString("CASE")
		if e.Operand != nil {
			b.WriteString(" ")
			renderExpr(b, e.Operand)
		}
		for _, when := range e.Whens {
			b.WriteString(" WHEN ")
			renderExpr(b, when.Cond)
			b.WriteString(" THEN ")
			renderExpr(b, when.Then)
		}
		if e.Else != nil {
			b.WriteString(" ELSE ")
			renderExpr(b, e.Else)
		}
		b.WriteString(" END")
	case Subquery:
		b.WriteString("(")
		renderStatement(b, e.Select)
		b.WriteString(")")
	case Exists:
		if e.Not {
			b.WriteString("NOT ")
		}
		b.WriteString("EXISTS (")
		renderStatement(b, e.Select)
		b.WriteString(")")
	case In:
		renderExpr(b, e.Expr)
		if e.Not {
			b.WriteString(" NOT")
		}
		b.WriteString(" IN (")
		if e.Select != nil {
			renderStatement(b, e.Select)
		} else {
			for i, item := range e.List {
				if i > 0 {
					b.WriteString(", ")
				}
				renderExpr(b, item)
			}
		}
		b.WriteString(")")
	case Between:
		renderExpr(b, e.Expr)
		if e.Not {
			b.WriteString(" NOT")
		}
		b.WriteString(" BETWEEN ")
		renderExpr(b, e.Lo)
		b.WriteString(" AND ")
		renderExpr(b, e.Hi)
	case IsNull:
		renderExpr(b, e.Expr)
		if e.Not {
			b.WriteString(" IS NOT NULL")
		} else {
			b.WriteString(" IS NULL")
		}
	}
}
