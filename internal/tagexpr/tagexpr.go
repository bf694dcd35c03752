// Package tagexpr compiles boolean tag filter expressions into evaluator
// functions over a tag set.
//
// Terms are bare identifiers (letters or underscore, then alphanumerics,
// underscores or hyphens), double-quoted strings with backslash escapes, or
// the constants 0 and 1. Operators in decreasing precedence: unary !, binary
// & and |, all right associative; parentheses group. A term evaluates to true
// iff the tag is present in the set.
package tagexpr

import "fmt"

// Func evaluates a compiled expression against a set of tags.
type Func func(tags map[string]struct{}) bool

// SyntaxError describes a malformed expression. The message echoes the input
// with an "@@@" marker inserted at the offending position.
type SyntaxError struct {
	Expr string
	Pos  int
}

func (e *SyntaxError) Error() string {
	pos := e.Pos
	if pos > len(e.Expr) {
		pos = len(e.Expr)
	}
	return fmt.Sprintf("parsing tag expression at \"@@@\": %s@@@%s", e.Expr[:pos], e.Expr[pos:])
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokTag
	tokConst
	tokNot
	tokAnd
	tokOr
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string // tag name or constant digit
	pos  int
}

type parser struct {
	expr   string
	tokens []token
	idx    int
}

// Compile parses expr and returns an evaluator with standard boolean
// semantics. Malformed input yields a *SyntaxError.
func Compile(expr string) (Func, error) {
	tokens, err := lex(expr)
	if err != nil {
		return nil, err
	}

	p := &parser{expr: expr, tokens: tokens}
	f, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, &SyntaxError{Expr: expr, Pos: tok.pos}
	}
	return f, nil
}

func lex(expr string) ([]token, error) {
	var tokens []token

	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '!':
			tokens = append(tokens, token{kind: tokNot, pos: i})
			i++
		case c == '&':
			tokens = append(tokens, token{kind: tokAnd, pos: i})
			i++
		case c == '|':
			tokens = append(tokens, token{kind: tokOr, pos: i})
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, pos: i})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, pos: i})
			i++
		case c == '0' || c == '1':
			tokens = append(tokens, token{kind: tokConst, text: string(c), pos: i})
			i++
		case c == '"':
			text, next, err := lexQuoted(expr, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokTag, text: text, pos: i})
			i = next
		case isIdentStart(c):
			start := i
			i++
			for i < len(expr) && isIdentPart(expr[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokTag, text: expr[start:i], pos: start})
		default:
			return nil, &SyntaxError{Expr: expr, Pos: i}
		}
	}

	tokens = append(tokens, token{kind: tokEOF, pos: len(expr)})
	return tokens, nil
}

func lexQuoted(expr string, start int) (string, int, error) {
	var text []byte
	i := start + 1 // skip the opening quote
	for i < len(expr) {
		switch expr[i] {
		case '\\':
			if i+1 >= len(expr) {
				return "", 0, &SyntaxError{Expr: expr, Pos: len(expr)}
			}
			text = append(text, expr[i+1])
			i += 2
		case '"':
			return string(text), i + 1, nil
		default:
			text = append(text, expr[i])
			i++
		}
	}
	return "", 0, &SyntaxError{Expr: expr, Pos: len(expr)}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c == '-' || (c >= '0' && c <= '9')
}

func (p *parser) peek() token {
	return p.tokens[p.idx]
}

func (p *parser) next() token {
	tok := p.tokens[p.idx]
	if tok.kind != tokEOF {
		p.idx++
	}
	return tok
}

func (p *parser) parseOr() (Func, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokOr {
		return left, nil
	}
	p.next()
	right, err := p.parseOr() // right associative
	if err != nil {
		return nil, err
	}
	return func(tags map[string]struct{}) bool {
		return left(tags) || right(tags)
	}, nil
}

func (p *parser) parseAnd() (Func, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokAnd {
		return left, nil
	}
	p.next()
	right, err := p.parseAnd() // right associative
	if err != nil {
		return nil, err
	}
	return func(tags map[string]struct{}) bool {
		return left(tags) && right(tags)
	}, nil
}

func (p *parser) parseUnary() (Func, error) {
	if p.peek().kind == tokNot {
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return func(tags map[string]struct{}) bool {
			return !inner(tags)
		}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Func, error) {
	tok := p.next()
	switch tok.kind {
	case tokTag:
		name := tok.text
		return func(tags map[string]struct{}) bool {
			_, ok := tags[name]
			return ok
		}, nil
	case tokConst:
		val := tok.text == "1"
		return func(map[string]struct{}) bool {
			return val
		}, nil
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, &SyntaxError{Expr: p.expr, Pos: closing.pos}
		}
		return inner, nil
	default:
		return nil, &SyntaxError{Expr: p.expr, Pos: tok.pos}
	}
}
