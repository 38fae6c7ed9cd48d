package condition

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokKind int

const (
	tokIdent tokKind = iota
	tokString
	tokNumber
	tokBool
	tokNull
	tokEq
	tokNeq
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
)

type token struct {
	kind tokKind
	text string
}

var operators = []struct {
	text string
	kind tokKind
}{
	{"==", tokEq},
	{"!=", tokNeq},
	{"&&", tokAnd},
	{"||", tokOr},
	{"!", tokNot},
	{"(", tokLParen},
	{")", tokRParen},
}

func lex(input string) ([]token, error) {
	var out []token
	rest := input
	for {
		rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
		if rest == "" {
			return out, nil
		}

		matched := false
		for _, op := range operators {
			if strings.HasPrefix(rest, op.text) {
				out = append(out, token{kind: op.kind, text: op.text})
				rest = rest[len(op.text):]
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		switch rest[0] {
		case '"', '\'':
			lit, n, err := scanQuoted(rest)
			if err != nil {
				return nil, err
			}
			out = append(out, token{kind: tokString, text: lit})
			rest = rest[n:]
			continue
		case '=', '&', '|':
			return nil, fmt.Errorf("condition: unexpected %q; use ==, && or ||", rest[0])
		}

		end := strings.IndexFunc(rest, func(r rune) bool {
			return unicode.IsSpace(r) || strings.ContainsRune("()!=&|\"'", r)
		})
		if end < 0 {
			end = len(rest)
		}
		word := rest[:end]
		rest = rest[end:]

		switch strings.ToLower(word) {
		case "true", "false":
			out = append(out, token{kind: tokBool, text: strings.ToLower(word)})
		case "null", "nil":
			out = append(out, token{kind: tokNull, text: "null"})
		default:
			if _, err := strconv.ParseFloat(word, 64); err == nil {
				out = append(out, token{kind: tokNumber, text: word})
			} else {
				out = append(out, token{kind: tokIdent, text: word})
			}
		}
	}
}

func scanQuoted(input string) (string, int, error) {
	quote := input[0]
	escaped := false
	for i := 1; i < len(input); i++ {
		c := input[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == quote:
			body := input[1:i]
			if quote == '\'' {
				body = strings.ReplaceAll(body, `"`, `\"`)
				body = strings.ReplaceAll(body, `\'`, `'`)
			}
			value, err := strconv.Unquote(`"` + body + `"`)
			if err != nil {
				return "", 0, fmt.Errorf("condition: invalid string literal: %w", err)
			}
			return value, i + 1, nil
		}
	}
	return "", 0, fmt.Errorf("condition: unterminated string literal")
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() token {
	if p.done() {
		return token{}
	}
	return p.toks[p.pos]
}

func (p *parser) accept(kind tokKind) bool {
	if !p.done() && p.toks[p.pos].kind == kind {
		p.pos++
		return true
	}
	return false
}

func (p *parser) or() (node, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.accept(tokOr) {
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = orNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) and() (node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.accept(tokAnd) {
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = andNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) unary() (node, error) {
	if p.accept(tokNot) {
		inner, err := p.unary()
		if err != nil {
			return nil, err
		}
		return notNode{inner: inner}, nil
	}
	return p.primary()
}

func (p *parser) primary() (node, error) {
	if p.accept(tokLParen) {
		inner, err := p.or()
		if err != nil {
			return nil, err
		}
		if !p.accept(tokRParen) {
			return nil, fmt.Errorf("condition: missing closing parenthesis")
		}
		return inner, nil
	}

	if p.done() {
		return nil, fmt.Errorf("condition: unexpected end of expression")
	}
	ident := p.toks[p.pos]
	if ident.kind != tokIdent {
		return nil, fmt.Errorf("condition: expected identifier, got %q", ident.text)
	}
	p.pos++

	negate := false
	switch {
	case p.accept(tokEq):
	case p.accept(tokNeq):
		negate = true
	default:
		return truthyNode{path: ident.text}, nil
	}

	if p.done() {
		return nil, fmt.Errorf("condition: missing literal after %q", ident.text)
	}
	lit := p.toks[p.pos]
	switch lit.kind {
	case tokString, tokNumber, tokBool, tokNull:
		p.pos++
	default:
		return nil, fmt.Errorf("condition: expected literal after %q, got %q", ident.text, lit.text)
	}
	return compareNode{path: ident.text, negate: negate, literal: lit}, nil
}
