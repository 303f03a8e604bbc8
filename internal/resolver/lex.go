package resolver

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenType string

const (
	tokIllegal  tokenType = "ILLEGAL"
	tokEOF      tokenType = "EOF"
	tokNumber   tokenType = "NUMBER"
	tokIdent    tokenType = "IDENT"
	tokString   tokenType = "STRING"
	tokOperator tokenType = "OPERATOR"

	tokLeftParen    tokenType = "("
	tokRightParen   tokenType = ")"
	tokLeftBracket  tokenType = "["
	tokRightBracket tokenType = "]"
	tokComma        tokenType = ","
	tokDot          tokenType = "."
)

type token struct {
	typ tokenType
	lit string
	pos int
}

func (t token) String() string {
	if t.typ == tokEOF {
		return "end of expression"
	}
	return fmt.Sprintf("%q at offset %d", t.lit, t.pos)
}

// Operator spellings, longest first so "**" wins over "*".
var operators = []string{
	"**", "//", "<<", ">>", "<=", ">=", "==", "!=",
	"+", "-", "*", "/", "%", "@", "<", ">", "&", "|", "^", "~",
}

// Keywords that act as operators. They are lexed so the parser can place
// them in the tree and the evaluator can reject them by name.
var keywordOperators = map[string]bool{
	"and": true,
	"or":  true,
	"not": true,
}

type lexer struct {
	input string
	pos   int
}

func newLexer(input string) *lexer {
	return &lexer{input: input}
}

func (l *lexer) all() []token {
	var toks []token
	for {
		tok := l.next()
		toks = append(toks, tok)
		if tok.typ == tokEOF || tok.typ == tokIllegal {
			return toks
		}
	}
}

func (l *lexer) next() token {
	l.skipSpace()
	if l.pos >= len(l.input) {
		return token{typ: tokEOF, pos: l.pos}
	}

	start := l.pos
	ch := l.input[l.pos]

	switch {
	case isDigit(ch), ch == '.' && l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1]):
		return l.number()
	case ch == '_' || isLetter(l.peekRune()):
		return l.ident()
	case ch == '\'' || ch == '"':
		return l.str(ch)
	}

	switch ch {
	case '(':
		l.pos++
		return token{typ: tokLeftParen, lit: "(", pos: start}
	case ')':
		l.pos++
		return token{typ: tokRightParen, lit: ")", pos: start}
	case '[':
		l.pos++
		return token{typ: tokLeftBracket, lit: "[", pos: start}
	case ']':
		l.pos++
		return token{typ: tokRightBracket, lit: "]", pos: start}
	case ',':
		l.pos++
		return token{typ: tokComma, lit: ",", pos: start}
	case '.':
		l.pos++
		return token{typ: tokDot, lit: ".", pos: start}
	}

	for _, op := range operators {
		if strings.HasPrefix(l.input[l.pos:], op) {
			l.pos += len(op)
			return token{typ: tokOperator, lit: op, pos: start}
		}
	}

	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size
	return token{typ: tokIllegal, lit: string(r), pos: start}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		l.pos += size
	}
}

func (l *lexer) peekRune() rune {
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

// number scans integer and float literals: 12, 1_000, 1.5, .5, 5., 1e3, 2.5E-2.
func (l *lexer) number() token {
	start := l.pos
	l.digits()
	if l.pos < len(l.input) && l.input[l.pos] == '.' {
		l.pos++
		l.digits()
	}
	if l.pos < len(l.input) && (l.input[l.pos] == 'e' || l.input[l.pos] == 'E') {
		save := l.pos
		l.pos++
		if l.pos < len(l.input) && (l.input[l.pos] == '+' || l.input[l.pos] == '-') {
			l.pos++
		}
		if l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.digits()
		} else {
			l.pos = save
		}
	}
	return token{typ: tokNumber, lit: l.input[start:l.pos], pos: start}
}

func (l *lexer) digits() {
	for l.pos < len(l.input) && (isDigit(l.input[l.pos]) || l.input[l.pos] == '_') {
		l.pos++
	}
}

func (l *lexer) ident() token {
	start := l.pos
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if r != '_' && !isLetter(r) && !unicode.IsDigit(r) {
			break
		}
		l.pos += size
	}
	lit := l.input[start:l.pos]
	if keywordOperators[lit] {
		return token{typ: tokOperator, lit: lit, pos: start}
	}
	return token{typ: tokIdent, lit: lit, pos: start}
}

func (l *lexer) str(quote byte) token {
	start := l.pos
	l.pos++
	for l.pos < len(l.input) {
		switch l.input[l.pos] {
		case '\\':
			l.pos += 2
			continue
		case quote:
			l.pos++
			return token{typ: tokString, lit: l.input[start:l.pos], pos: start}
		}
		l.pos++
	}
	l.pos = len(l.input)
	return token{typ: tokIllegal, lit: l.input[start:], pos: start}
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isLetter(r rune) bool {
	return unicode.IsLetter(r)
}
