package resolver

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Node is a @math syntax tree node.
type Node interface {
	String() string
}

// Literal is a numeric constant.
type Literal struct {
	Value number
}

// Binary applies Op to Left and Right.
type Binary struct {
	Op    string
	Left  Node
	Right Node
}

// Unary applies Op to Operand.
type Unary struct {
	Op      string
	Operand Node
}

// Unsupported stands for a construct the grammar recognises but never
// evaluates: names, calls, strings, attribute access and subscripts.
type Unsupported struct {
	Kind string
	Text string
}

func (l *Literal) String() string { return formatNumber(l.Value) }

func (b *Binary) String() string {
	return "(" + b.Left.String() + " " + b.Op + " " + b.Right.String() + ")"
}

func (u *Unary) String() string {
	if u.Op == "not" {
		return "(not " + u.Operand.String() + ")"
	}
	return "(" + u.Op + u.Operand.String() + ")"
}

func (u *Unsupported) String() string { return u.Text }

// Binding strength, loosest first.
const (
	_ int = iota
	precLowest
	precOr
	precAnd
	precNot
	precCompare
	precBitOr
	precBitXor
	precBitAnd
	precShift
	precSum
	precProduct
	precUnary
	precPower
)

var binaryPrecedence = map[string]int{
	"or":  precOr,
	"and": precAnd,
	"<":   precCompare,
	">":   precCompare,
	"<=":  precCompare,
	">=":  precCompare,
	"==":  precCompare,
	"!=":  precCompare,
	"|":   precBitOr,
	"^":   precBitXor,
	"&":   precBitAnd,
	"<<":  precShift,
	">>":  precShift,
	"+":   precSum,
	"-":   precSum,
	"*":   precProduct,
	"/":   precProduct,
	"//":  precProduct,
	"%":   precProduct,
	"@":   precProduct,
	"**":  precPower,
}

type parser struct {
	toks []token
	pos  int
}

// Parse turns a @math expression into a syntax tree. It fails with
// ErrTokenFormat on malformed input; it does not judge whether the
// tree is evaluable.
func Parse(expr string) (Node, error) {
	toks := newLexer(expr).all()
	if last := toks[len(toks)-1]; last.typ == tokIllegal {
		return nil, fmt.Errorf("%w: illegal character %s", ErrTokenFormat, last)
	}

	p := &parser{toks: toks}
	node, err := p.parseExpression(precLowest)
	if err != nil {
		return nil, err
	}
	if tok := p.cur(); tok.typ != tokEOF {
		return nil, fmt.Errorf("%w: unexpected %s", ErrTokenFormat, tok)
	}
	return node, nil
}

func (p *parser) cur() token {
	return p.toks[p.pos]
}

func (p *parser) advance() token {
	tok := p.toks[p.pos]
	if tok.typ != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) expect(typ tokenType) error {
	if tok := p.cur(); tok.typ != typ {
		return fmt.Errorf("%w: expected %q, got %s", ErrTokenFormat, string(typ), tok)
	}
	p.advance()
	return nil
}

func (p *parser) parseExpression(minPrec int) (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.cur()
		if tok.typ != tokOperator {
			return left, nil
		}
		prec, ok := binaryPrecedence[tok.lit]
		if !ok || prec < minPrec {
			return left, nil
		}
		p.advance()

		// ** is right-associative; the rest associate to the left.
		next := prec + 1
		if tok.lit == "**" {
			next = prec
		}
		right, err := p.parseExpression(next)
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: tok.lit, Left: left, Right: right}
	}
}

func (p *parser) parseUnary() (Node, error) {
	tok := p.cur()
	if tok.typ == tokOperator {
		var operandPrec int
		switch tok.lit {
		case "-", "+", "~":
			operandPrec = precUnary
		case "not":
			operandPrec = precNot
		default:
			return nil, fmt.Errorf("%w: unexpected %s", ErrTokenFormat, tok)
		}
		p.advance()
		operand, err := p.parseExpression(operandPrec)
		if err != nil {
			return nil, err
		}
		return &Unary{Op: tok.lit, Operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (Node, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		switch p.cur().typ {
		case tokLeftParen:
			p.advance()
			args, err := p.parseArguments()
			if err != nil {
				return nil, err
			}
			node = &Unsupported{Kind: "call", Text: node.String() + "(" + strings.Join(args, ", ") + ")"}
		case tokDot:
			p.advance()
			name := p.cur()
			if err := p.expect(tokIdent); err != nil {
				return nil, err
			}
			node = &Unsupported{Kind: "attribute", Text: node.String() + "." + name.lit}
		case tokLeftBracket:
			p.advance()
			index, err := p.parseExpression(precLowest)
			if err != nil {
				return nil, err
			}
			if err := p.expect(tokRightBracket); err != nil {
				return nil, err
			}
			node = &Unsupported{Kind: "subscript", Text: node.String() + "[" + index.String() + "]"}
		default:
			return node, nil
		}
	}
}

func (p *parser) parseArguments() ([]string, error) {
	var args []string
	for p.cur().typ != tokRightParen {
		arg, err := p.parseExpression(precLowest)
		if err != nil {
			return nil, err
		}
		args = append(args, arg.String())
		if p.cur().typ != tokComma {
			break
		}
		p.advance()
	}
	if err := p.expect(tokRightParen); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *parser) parsePrimary() (Node, error) {
	tok := p.advance()
	switch tok.typ {
	case tokNumber:
		n, err := parseNumber(tok.lit)
		if err != nil {
			return nil, err
		}
		return &Literal{Value: n}, nil
	case tokIdent:
		return &Unsupported{Kind: "name", Text: tok.lit}, nil
	case tokString:
		return &Unsupported{Kind: "string", Text: tok.lit}, nil
	case tokLeftParen:
		inner, err := p.parseExpression(precLowest)
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRightParen); err != nil {
			return nil, err
		}
		return inner, nil
	}
	return nil, fmt.Errorf("%w: unexpected %s", ErrTokenFormat, tok)
}

func parseNumber(lit string) (number, error) {
	if !validUnderscores(lit) {
		return number{}, fmt.Errorf("%w: invalid number literal %q", ErrTokenFormat, lit)
	}
	clean := strings.ReplaceAll(lit, "_", "")

	if !strings.ContainsAny(clean, ".eE") {
		i, err := strconv.ParseInt(clean, 10, 64)
		if errors.Is(err, strconv.ErrRange) {
			return number{}, fmt.Errorf("%w: integer literal %s", ErrOverflow, lit)
		}
		if err != nil {
			return number{}, fmt.Errorf("%w: invalid number literal %q", ErrTokenFormat, lit)
		}
		return intNumber(i), nil
	}

	// Out-of-range float literals saturate to infinity.
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return number{}, fmt.Errorf("%w: invalid number literal %q", ErrTokenFormat, lit)
	}
	return floatNumber(f), nil
}

// validUnderscores reports whether every underscore sits between two digits.
func validUnderscores(lit string) bool {
	for i := 0; i < len(lit); i++ {
		if lit[i] != '_' {
			continue
		}
		if i == 0 || i == len(lit)-1 || !isDigit(lit[i-1]) || !isDigit(lit[i+1]) {
			return false
		}
	}
	return true
}
