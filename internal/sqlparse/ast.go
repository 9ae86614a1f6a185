// Package sqlparse holds a typed representation of the SELECT subset used by
// the governance pipeline, a small recursive-descent parser producing it, and
// a deterministic renderer. The transformer and guard operate on this
// structure instead of raw SQL text.
package sqlparse

// Statement is a single SELECT statement.
type Statement struct {
	Distinct bool
	Columns  []SelectItem
	From     []TableRef
	Joins    []Join
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	OrderBy  []OrderItem
	Limit    *int64
}

// SelectItem is one projected column, optionally aliased.
type SelectItem struct {
	Expr  Expr
	Alias string
}

// TableRef is a table name or a derived table, optionally aliased.
type TableRef struct {
	Name     string
	Alias    string
	Subquery *Statement
}

// AliasOrName returns the name the rest of the statement refers to this
// table by.
func (t TableRef) AliasOrName() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

// JoinType distinguishes the join keywords the subset recognizes.
type JoinType string

const (
	JoinInner JoinType = "JOIN"
	JoinLeft  JoinType = "LEFT JOIN"
	JoinCross JoinType = "CROSS JOIN"
)

// Join is one JOIN clause. On is nil when no predicate was written.
type Join struct {
	Type  JoinType
	Table TableRef
	On    Expr
}

// OrderItem is one ORDER BY element.
type OrderItem struct {
	Expr Expr
	Desc bool
}

// Expr is a node in the expression tree.
type Expr interface {
	exprNode()
}

// Column is a possibly qualified column reference.
type Column struct {
	Qualifier string
	Name      string
}

// Star is `*` or `alias.*`.
type Star struct {
	Qualifier string
}

// Literal keeps the source text of a number, string or NULL literal.
type Literal struct {
	Raw string
}

// Binary is an infix operation. Op is stored uppercase for keywords
// (AND, OR, LIKE) and verbatim for symbols.
type Binary struct {
	Op    string
	Left  Expr
	Right Expr
}

// Unary is NOT or arithmetic negation.
type Unary struct {
	Op      string
	Operand Expr
}

// Paren preserves explicit grouping from the source.
type Paren struct {
	Inner Expr
}

// Func is a function call such as COUNT(DISTINCT x) or MAX(r.ranking_date).
type Func struct {
	Name     string
	Distinct bool
	Star     bool
	Args     []Expr
}

// When is one WHEN/THEN arm of a CASE expression.
type When struct {
	Cond Expr
	Then Expr
}

// Case is a searched or simple CASE expression.
type Case struct {
	Operand Expr
	Whens   []When
	Else    Expr
}

// Subquery is a parenthesized scalar or row subquery.
type Subquery struct {
	Select *Statement
}

// Exists is [NOT] EXISTS (SELECT ...).
type Exists struct {
	Not    bool
	Select *Statement
}

// In is expr [NOT] IN (list) or expr [NOT] IN (SELECT ...).
type In struct {
	Expr   Expr
	Not    bool
	List   []Expr
	Select *Statement
}

// Between is expr [NOT] BETWEEN lo AND hi.
type Between struct {
	Expr Expr
	Not  bool
	Lo   Expr
	Hi   Expr
}

// IsNull is expr IS [NOT] NULL.
type IsNull struct {
	Expr Expr
	Not  bool
}

func (Column) exprNode()   {}
func (Star) exprNode()     {}
func (Literal) exprNode()  {}
func (Binary) exprNode()   {}
func (Unary) exprNode()    {}
func (Paren) exprNode()    {}
func (Func) exprNode()     {}
func (Case) exprNode()     {}
func (Subquery) exprNode() {}
func (Exists) exprNode()   {}
func (In) exprNode()       {}
func (Between) exprNode()  {}
func (IsNull) exprNode()   {}
