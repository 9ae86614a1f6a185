package sqlparse

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tkEOF tokenKind = iota
	tkIdent
	tkNumber
	tkString
	tkSymbol
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// keyword reports the uppercase form when the token is a bare identifier.
func (t token) keyword() string {
	if t.kind != tkIdent {
		return ""
	}
	return strings.ToUpper(t.text)
}

func lex(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '\'':
			start := i
			i++
			for {
				if i >= len(input) {
					return nil, fmt.Errorf("unterminated string literal at offset %d", start)
				}
				if input[i] == '\'' {
					if i+1 < len(input) && input[i+1] == '\'' {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
			tokens = append(tokens, token{tkString, input[start:i], start})
		case c == '"':
			start := i
			i++
			for i < len(input) && input[i] != '"' {
				i++
			}
			if i >= len(input) {
				return nil, fmt.Errorf("unterminated quoted identifier at offset %d", start)
			}
			i++
			tokens = append(tokens, token{tkIdent, strings.Trim(input[start:i], `"`), start})
		case isDigit(c):
			start := i
			for i < len(input) && (isDigit(input[i]) || input[i] == '.') {
				i++
			}
			tokens = append(tokens, token{tkNumber, input[start:i], start})
		case isIdentStart(c):
			start := i
			for i < len(input) && isIdentPart(input[i]) {
				i++
			}
			tokens = append(tokens, token{tkIdent, input[start:i], start})
		case c == '-' && i+1 < len(input) && input[i+1] == '-':
			for i < len(input) && input[i] != '\n' {
				i++
			}
		default:
			start := i
			symbol := ""
			two := ""
			if i+1 < len(input) {
				two = input[i : i+2]
			}
			switch two {
			case "<=", ">=", "<>", "!=", "||":
				symbol = two
				i += 2
			default:
				switch c {
				case '(', ')', ',', '.', ';', '=', '<', '>', '+', '-', '*', '/', '%':
					symbol = string(c)
					i++
				default:
					return nil, fmt.Errorf("unexpected character %q at offset %d", c, i)
				}
			}
			tokens = append(tokens, token{tkSymbol, symbol, start})
		}
	}
	tokens = append(tokens, token{tkEOF, "", len(input)})
	return tokens, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
