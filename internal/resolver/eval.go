package resolver

import (
	"fmt"
	"math"
)

// Eval parses and evaluates a @math expression. The result is an int64 or a
// float64.
func Eval(expr string) (any, error) {
	node, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	n, err := evaluate(node)
	if err != nil {
		return nil, err
	}
	return n.value(), nil
}

// evaluate walks the tree. Only literals, the allowed binary operators and
// unary minus are accepted; every other node is rejected.
func evaluate(node Node) (number, error) {
	switch n := node.(type) {
	case *Literal:
		return n.Value, nil
	case *Binary:
		apply, ok := binaryOperators[n.Op]
		if !ok {
			return number{}, fmt.Errorf("%w: binary operator %q", ErrUnsupportedOperator, n.Op)
		}
		left, err := evaluate(n.Left)
		if err != nil {
			return number{}, err
		}
		right, err := evaluate(n.Right)
		if err != nil {
			return number{}, err
		}
		return apply(left, right)
	case *Unary:
		apply, ok := unaryOperators[n.Op]
		if !ok {
			return number{}, fmt.Errorf("%w: unary operator %q", ErrUnsupportedOperator, n.Op)
		}
		operand, err := evaluate(n.Operand)
		if err != nil {
			return number{}, err
		}
		return apply(operand)
	case *Unsupported:
		return number{}, fmt.Errorf("%w: %s %s", ErrUnsupportedOperator, n.Kind, n.Text)
	default:
		return number{}, fmt.Errorf("%w: expression %T", ErrUnsupportedOperator, node)
	}
}

var binaryOperators = map[string]func(a, b number) (number, error){
	"+":  add,
	"-":  sub,
	"*":  mul,
	"/":  div,
	"%":  mod,
	"**": pow,
}

var unaryOperators = map[string]func(a number) (number, error){
	"-": neg,
}

func add(a, b number) (number, error) {
	if a.float || b.float {
		return floatNumber(a.toFloat() + b.toFloat()), nil
	}
	s := a.i + b.i
	if (a.i^s)&(b.i^s) < 0 {
		return number{}, fmt.Errorf("%w: %d + %d", ErrOverflow, a.i, b.i)
	}
	return intNumber(s), nil
}

func sub(a, b number) (number, error) {
	if a.float || b.float {
		return floatNumber(a.toFloat() - b.toFloat()), nil
	}
	d := a.i - b.i
	if (a.i^b.i)&(a.i^d) < 0 {
		return number{}, fmt.Errorf("%w: %d - %d", ErrOverflow, a.i, b.i)
	}
	return intNumber(d), nil
}

func mul(a, b number) (number, error) {
	if a.float || b.float {
		return floatNumber(a.toFloat() * b.toFloat()), nil
	}
	p, ok := mulInt(a.i, b.i)
	if !ok {
		return number{}, fmt.Errorf("%w: %d * %d", ErrOverflow, a.i, b.i)
	}
	return intNumber(p), nil
}

func mulInt(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	p := a * b
	if p/b != a {
		return 0, false
	}
	return p, true
}

// div is true division: the result is always a float.
func div(a, b number) (number, error) {
	if b.isZero() {
		return number{}, ErrDivisionByZero
	}
	return floatNumber(a.toFloat() / b.toFloat()), nil
}

// mod is floored: the result takes the sign of the divisor.
func mod(a, b number) (number, error) {
	if b.isZero() {
		return number{}, ErrDivisionByZero
	}
	if a.float || b.float {
		x, y := a.toFloat(), b.toFloat()
		r := math.Mod(x, y)
		if r != 0 && (r < 0) != (y < 0) {
			r += y
		}
		return floatNumber(r), nil
	}
	r := a.i % b.i
	if r != 0 && (r < 0) != (b.i < 0) {
		r += b.i
	}
	return intNumber(r), nil
}

func pow(a, b number) (number, error) {
	if !a.float && !b.float && b.i >= 0 {
		return powInt(a.i, b.i)
	}

	x, y := a.toFloat(), b.toFloat()
	if x == 0 && y < 0 {
		return number{}, fmt.Errorf("%w: zero raised to a negative power", ErrDivisionByZero)
	}
	if x < 0 && y != math.Trunc(y) && !math.IsInf(y, 0) {
		return number{}, fmt.Errorf("%w: negative number raised to a fractional power", ErrArithmetic)
	}
	r := math.Pow(x, y)
	if math.IsInf(r, 0) && !math.IsInf(x, 0) && !math.IsInf(y, 0) {
		return number{}, fmt.Errorf("%w: %s ** %s", ErrOverflow, formatFloat(x), formatFloat(y))
	}
	return floatNumber(r), nil
}

// powInt is exponentiation by squaring with overflow detection.
func powInt(base, exp int64) (number, error) {
	result := int64(1)
	b, e := base, exp
	for e > 0 {
		var ok bool
		if e&1 == 1 {
			if result, ok = mulInt(result, b); !ok {
				return number{}, fmt.Errorf("%w: %d ** %d", ErrOverflow, base, exp)
			}
		}
		e >>= 1
		if e > 0 {
			if b, ok = mulInt(b, b); !ok {
				return number{}, fmt.Errorf("%w: %d ** %d", ErrOverflow, base, exp)
			}
		}
	}
	return intNumber(result), nil
}

func neg(a number) (number, error) {
	if a.float {
		return floatNumber(-a.f), nil
	}
	if a.i == math.MinInt64 {
		return number{}, fmt.Errorf("%w: -(%d)", ErrOverflow, a.i)
	}
	return intNumber(-a.i), nil
}
