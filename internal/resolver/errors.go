package resolver

import (
	"errors"
	"fmt"
)

var (
	// ErrTokenFormat is returned when a token body is malformed or cannot be parsed.
	ErrTokenFormat = errors.New("malformed token")
	// ErrUnsupportedOperator is returned when a @math expression uses a construct outside the allowed set.
	ErrUnsupportedOperator = errors.New("unsupported operator")
	// ErrArithmetic is returned when a @math expression cannot be evaluated.
	ErrArithmetic = errors.New("arithmetic error")
	// ErrDivisionByZero is returned for division or modulo by zero.
	ErrDivisionByZero = fmt.Errorf("%w: division by zero", ErrArithmetic)
	// ErrOverflow is returned when a result does not fit the numeric type.
	ErrOverflow = fmt.Errorf("%w: numeric overflow", ErrArithmetic)
	// ErrMaxDepth is returned when nested @format placeholders recurse too deeply.
	ErrMaxDepth = errors.New("maximum token nesting depth exceeded")
)

// ResolutionError reports a token that failed to resolve.
type ResolutionError struct {
	Token string
	Err   error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve token %q: %v", e.Token, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}
