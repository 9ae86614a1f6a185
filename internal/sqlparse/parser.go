package sqlparse

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrNotSelect marks DDL/DML or anything that does not start with SELECT.
	ErrNotSelect = errors.New("statement is not a SELECT")
	// ErrMultipleStatements marks input containing more than one statement.
	ErrMultipleStatements = errors.New("multiple SQL statements")
	// ErrMalformed wraps all other parse failures.
	ErrMalformed = errors.New("malformed SQL")
)

// Parse parses exactly one SELECT statement. A trailing semicolon is
// tolerated; anything else after the statement is rejected.
func Parse(input string) (*Statement, error) {
	tokens, err := lex(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	p := &parser{tokens: tokens}
	if p.peek().keyword() != "SELECT" {
		return nil, fmt.Errorf("%w: starts with %q", ErrNotSelect, p.peek().text)
	}
	stmt, err := p.parseSelect()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tkSymbol && p.peek().text == ";" {
		p.next()
	}
	if p.peek().kind != tkEOF {
		if p.peek().keyword() == "SELECT" || p.peek().kind == tkIdent {
			return nil, fmt.Errorf("%w: trailing input %q", ErrMultipleStatements, p.peek().text)
		}
		return nil, fmt.Errorf("%w: trailing input %q", ErrMalformed, p.peek().text)
	}
	return stmt, nil
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token  { return p.tokens[p.pos] }
func (p *parser) next() token  { t := p.tokens[p.pos]; p.pos++; return t }
func (p *parser) save() int    { return p.pos }
func (p *parser) restore(m int) { p.pos = m }

func (p *parser) acceptKeyword(kw string) bool {
	if p.peek().keyword() == kw {
		p.next()
		return true
	}
	return false
}

func (p *parser) expectKeyword(kw string) error {
	if !p.acceptKeyword(kw) {
		return fmt.Errorf("%w: expected %s near %q", ErrMalformed, kw, p.peek().text)
	}
	return nil
}

func (p *parser) acceptSymbol(sym string) bool {
	if p.peek().kind == tkSymbol && p.peek().text == sym {
		p.next()
		return true
	}
	return false
}

func (p *parser) expectSymbol(sym string) error {
	if !p.acceptSymbol(sym) {
		return fmt.Errorf("%w: expected %q near %q", ErrMalformed, sym, p.peek().text)
	}
	return nil
}

var reservedAfterExpr = map[string]bool{
	"FROM": true, "WHERE": true, "GROUP": true, "HAVING": true,
	"ORDER": true, "LIMIT": true, "JOIN": true, "LEFT": true,
	"INNER": true, "CROSS": true, "ON": true, "AND": true, "OR": true,
	"WHEN": true, "THEN": true, "ELSE": true, "END": true, "AS": true,
	"NOT": true, "IN": true, "IS": true, "BETWEEN": true, "LIKE": true,
	"EXISTS": true, "SELECT": true, "DISTINCT": true, "BY": true,
	"ASC": true, "DESC": true, "UNION": true, "CASE": true, "NULL": true,
	"OUTER": true,
}

func (p *parser) parseSelect() (*Statement, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	stmt := &Statement{}
	if p.acceptKeyword("DISTINCT") {
		stmt.Distinct = true
	}

	for {
		item, err := p.parseSelectItem()
		if err != nil {
			return nil, err
		}
		stmt.Columns = append(stmt.Columns, item)
		if !p.acceptSymbol(",") {
			break
		}
	}

	if p.acceptKeyword("FROM") {
		for {
			ref, err := p.parseTableRef()
			if err != nil {
				return nil, err
			}
			stmt.From = append(stmt.From, ref)
			if !p.acceptSymbol(",") {
				break
			}
		}
		for {
			join, ok, err := p.parseJoin()
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			stmt.Joins = append(stmt.Joins, join)
		}
	}

	if p.acceptKeyword("WHERE") {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = expr
	}
	if p.acceptKeyword("GROUP") {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			stmt.GroupBy = append(stmt.GroupBy, expr)
			if !p.acceptSymbol(",") {
				break
			}
		}
	}
	if p.acceptKeyword("HAVING") {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Having = expr
	}
	if p.acceptKeyword("ORDER") {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			item := OrderItem{Expr: expr}
			if p.acceptKeyword("DESC") {
				item.Desc = true
			} else {
				p.acceptKeyword("ASC")
			}
			stmt.OrderBy = append(stmt.OrderBy, item)
			if !p.acceptSymbol(",") {
				break
			}
		}
	}
	if p.acceptKeyword("LIMIT") {
		tok := p.next()
		if tok.kind != tkNumber {
			return nil, fmt.Errorf("%w: LIMIT expects a number, got %q", ErrMalformed, tok.text)
		}
		n, err := strconv.ParseInt(tok.text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: LIMIT %q: %v", ErrMalformed, tok.text, err)
		}
		stmt.Limit = &n
	}
	if p.peek().keyword() == "UNION" {
		return nil, fmt.Errorf("%w: UNION is not supported", ErrMalformed)
	}
	return stmt, nil
}

func (p *parser) parseSelectItem() (SelectItem, error) {
	expr, err := p.parseExpr()
	if err != nil {
		return SelectItem{}, err
	}
	item := SelectItem{Expr: expr}
	if p.acceptKeyword("AS") {
		tok := p.next()
		if tok.kind != tkIdent {
			return SelectItem{}, fmt.Errorf("%w: expected alias after AS, got %q", ErrMalformed, tok.text)
		}
		item.Alias = strings.ToLower(tok.text)
	} else if p.peek().kind == tkIdent && !reservedAfterExpr[p.peek().keyword()] {
		item.Alias = strings.ToLower(p.next().text)
	}
	return item, nil
}

func (p *parser) parseTableRef() (TableRef, error) {
	if p.acceptSymbol("(") {
		sub, err := p.parseSelect()
		if err != nil {
			return TableRef{}, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return TableRef{}, err
		}
		ref := TableRef{Subquery: sub}
		p.acceptKeyword("AS")
		if p.peek().kind == tkIdent && !reservedAfterExpr[p.peek().keyword()] {
			ref.Alias = strings.ToLower(p.next().text)
		}
		if ref.Alias == "" {
			return TableRef{}, fmt.Errorf("%w: derived table requires an alias", ErrMalformed)
		}
		return ref, nil
	}
	tok := p.next()
	if tok.kind != tkIdent {
		return TableRef{}, fmt.Errorf("%w: expected table name, got %q", ErrMalformed, tok.text)
	}
	ref := TableRef{Name: strings.ToLower(tok.text)}
	if p.acceptKeyword("AS") {
		alias := p.next()
		if alias.kind != tkIdent {
			return TableRef{}, fmt.Errorf("%w: expected alias after AS, got %q", ErrMalformed, alias.text)
		}
		ref.Alias = strings.ToLower(alias.text)
	} else if p.peek().kind == tkIdent && !reservedAfterExpr[p.peek().keyword()] {
		ref.Alias = strings.ToLower(p.next().text)
	}
	return ref, nil
}

func (p *parser) parseJoin() (Join, bool, error) {
	joinType := JoinInner
	switch p.peek().keyword() {
	case "JOIN":
		p.next()
	case "INNER":
		p.next()
		if err := p.expectKeyword("JOIN"); err != nil {
			return Join{}, false, err
		}
	case "LEFT":
		p.next()
		p.acceptKeyword("OUTER")
		if err := p.expectKeyword("JOIN"); err != nil {
			return Join{}, false, err
		}
		joinType = JoinLeft
	case "CROSS":
		p.next()
		if err := p.expectKeyword("JOIN"); err != nil {
			return Join{}, false, err
		}
		joinType = JoinCross
	default:
		return Join{}, false, nil
	}

	table, err := p.parseTableRef()
	if err != nil {
		return Join{}, false, err
	}
	join := Join{Type: joinType, Table: table}
	if p.acceptKeyword("ON") {
		on, err := p.parseExpr()
		if err != nil {
			return Join{}, false, err
		}
		join.On = on
	}
	return join, true, nil
}

func (p *parser) parseExpr() (Expr, error) { return p.parseOr() }

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		mark := p.save()
		if !p.acceptKeyword("AND") {
			break
		}
		// BETWEEN consumes its own AND; if parseNot fails right after an
		// accepted AND the statement is malformed anyway.
		right, err := p.parseNot()
		if err != nil {
			p.restore(mark)
			return nil, err
		}
		left = Binary{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.peek().keyword() == "NOT" && p.tokens[p.pos+1].keyword() == "EXISTS" {
		p.next()
		p.next()
		sub, err := p.parseParenSelect()
		if err != nil {
			return nil, err
		}
		return Exists{Not: true, Select: sub}, nil
	}
	if p.acceptKeyword("NOT") {
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return Unary{Op: "NOT", Operand: operand}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if p.peek().kind == tkSymbol {
		switch p.peek().text {
		case "=", "<", ">", "<=", ">=", "<>", "!=":
			op := p.next().text
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			return Binary{Op: op, Left: left, Right: right}, nil
		}
	}
	not := false
	if p.peek().keyword() == "NOT" {
		switch p.tokens[p.pos+1].keyword() {
		case "IN", "BETWEEN", "LIKE":
			p.next()
			not = true
		}
	}
	switch p.peek().keyword() {
	case "IS":
		p.next()
		isNot := p.acceptKeyword("NOT")
		if err := p.expectKeyword("NULL"); err != nil {
			return nil, err
		}
		return IsNull{Expr: left, Not: isNot}, nil
	case "IN":
		p.next()
		if err := p.expectSymbol("("); err != nil {
			return nil, err
		}
		in := In{Expr: left, Not: not}
		if p.peek().keyword() == "SELECT" {
			sub, err := p.parseSelect()
			if err != nil {
				return nil, err
			}
			in.Select = sub
		} else {
			for {
				item, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				in.List = append(in.List, item)
				if !p.acceptSymbol(",") {
					break
				}
			}
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return in, nil
	case "BETWEEN":
		p.next()
		lo, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("AND"); err != nil {
			return nil, err
		}
		hi, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return Between{Expr: left, Not: not, Lo: lo, Hi: hi}, nil
	case "LIKE":
		p.next()
		pattern, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		op := "LIKE"
		if not {
			op = "NOT LIKE"
		}
		return Binary{Op: op, Left: left, Right: pattern}, nil
	}
	if not {
		return nil, fmt.Errorf("%w: dangling NOT near %q", ErrMalformed, p.peek().text)
	}
	return left, nil
}

func (p *parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tkSymbol {
		op := p.peek().text
		if op != "+" && op != "-" && op != "||" {
			break
		}
		p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tkSymbol {
		op := p.peek().text
		if op != "*" && op != "/" && op != "%" {
			break
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.peek().kind == tkSymbol && p.peek().text == "-" {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Unary{Op: "-", Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	tok := p.peek()
	switch {
	case tok.kind == tkNumber:
		p.next()
		return Literal{Raw: tok.text}, nil
	case tok.kind == tkString:
		p.next()
		return Literal{Raw: tok.text}, nil
	case tok.kind == tkSymbol && tok.text == "*":
		p.next()
		return Star{}, nil
	case tok.kind == tkSymbol && tok.text == "(":
		p.next()
		if p.peek().keyword() == "SELECT" {
			sub, err := p.parseSelect()
			if err != nil {
				return nil, err
			}
			if err := p.expectSymbol(")"); err != nil {
				return nil, err
			}
			return Subquery{Select: sub}, nil
		}
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return Paren{Inner: inner}, nil
	case tok.keyword() == "NULL":
		p.next()
		return Literal{Raw: "NULL"}, nil
	case tok.keyword() == "CASE":
		return p.parseCase()
	case tok.keyword() == "EXISTS":
		p.next()
		sub, err := p.parseParenSelect()
		if err != nil {
			return nil, err
		}
		return Exists{Select: sub}, nil
	case tok.kind == tkIdent:
		if reservedAfterExpr[tok.keyword()] {
			return nil, fmt.Errorf("%w: unexpected keyword %q", ErrMalformed, tok.text)
		}
		p.next()
		if p.acceptSymbol("(") {
			fn := Func{Name: strings.ToUpper(tok.text)}
			if p.acceptSymbol("*") {
				fn.Star = true
			} else if !p.acceptSymbol(")") {
				if p.acceptKeyword("DISTINCT") {
					fn.Distinct = true
				}
				for {
					arg, err := p.parseExpr()
					if err != nil {
						return nil, err
					}
					fn.Args = append(fn.Args, arg)
					if !p.acceptSymbol(",") {
						break
					}
				}
				if err := p.expectSymbol(")"); err != nil {
					return nil, err
				}
				return fn, nil
			} else {
				return fn, nil
			}
			if err := p.expectSymbol(")"); err != nil {
				return nil, err
			}
			return fn, nil
		}
		if p.acceptSymbol(".") {
			if p.acceptSymbol("*") {
				return Star{Qualifier: strings.ToLower(tok.text)}, nil
			}
			col := p.next()
			if col.kind != tkIdent {
				return nil, fmt.Errorf("%w: expected column after %q., got %q", ErrMalformed, tok.text, col.text)
			}
			return Column{Qualifier: strings.ToLower(tok.text), Name: strings.ToLower(col.text)}, nil
		}
		return Column{Name: strings.ToLower(tok.text)}, nil
	}
	return nil, fmt.Errorf("%w: unexpected token %q", ErrMalformed, tok.text)
}

func (p *parser) parseParenSelect() (*Statement, error) {
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	sub, err := p.parseSelect()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return sub, nil
}

func (p *parser) parseCase() (Expr, error) {
	if err := p.expectKeyword("CASE"); err != nil {
		return nil, err
	}
	c := Case{}
	if p.peek().keyword() != "WHEN" {
		operand, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		c.Operand = operand
	}
	for p.acceptKeyword("WHEN") {
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("THEN"); err != nil {
			return nil, err
		}
		then, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		c.Whens = append(c.Whens, When{Cond: cond, Then: then})
	}
	if len(c.Whens) == 0 {
		return nil, fmt.Errorf("%w: CASE without WHEN", ErrMalformed)
	}
	if p.acceptKeyword("ELSE") {
		elseExpr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		c.Else = elseExpr
	}
	if err := p.expectKeyword("END"); err != nil {
		return nil, err
	}
	return c, nil
}
