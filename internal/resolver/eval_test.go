package resolver

import (
	"errors"
	"testing"
)

func TestEval(t *testing.T) {
	t.Parallel()

	tests := []struct {
		expr string
		want any
	}{
		{expr: "2 + 3 * 4", want: int64(14)},
		{expr: "2 + 3 * (4 - 1)", want: int64(11)},
		{expr: "  2+3  ", want: int64(5)},
		{expr: "10 - 2 - 3", want: int64(5)},
		{expr: "-2 ** 2", want: int64(-4)},
		{expr: "(-2) ** 2", want: int64(4)},
		{expr: "2 ** 3 ** 2", want: int64(512)},
		{expr: "2 ** -1", want: 0.5},
		{expr: "2 ** -1 * 3", want: 1.5},
		{expr: "--3", want: int64(3)},
		{expr: "2 * -3", want: int64(-6)},
		{expr: "7 / 2", want: 3.5},
		{expr: "6 / 3", want: 2.0},
		{expr: "100 / 10 / 5", want: 2.0},
		{expr: "7 % 3", want: int64(1)},
		{expr: "-7 % 3", want: int64(2)},
		{expr: "7 % -3", want: int64(-2)},
		{expr: "7.5 % 2", want: 1.5},
		{expr: "-7.5 % 2", want: 0.5},
		{expr: "1.5 * 2", want: 3.0},
		{expr: "1_000 + 1", want: int64(1001)},
		{expr: "1e3", want: 1000.0},
		{expr: ".5 + 5.", want: 5.5},
		{expr: "2.5E-1 * 4", want: 1.0},
		{expr: "0 ** 0", want: int64(1)},
		{expr: "1024 * 1024 * 10", want: int64(10485760)},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.expr, func(t *testing.T) {
			t.Parallel()

			got, err := Eval(tc.expr)
			if err != nil {
				t.Fatalf("Eval(%q) returned error: %v", tc.expr, err)
			}
			if got != tc.want {
				t.Fatalf("Eval(%q) = %#v, want %#v", tc.expr, got, tc.want)
			}
		})
	}
}

func TestEvalErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		expr    string
		wantErr error
	}{
		{name: "DivisionByZero", expr: "1 / 0", wantErr: ErrDivisionByZero},
		{name: "FloatDivisionByZero", expr: "1.0 / 0.0", wantErr: ErrDivisionByZero},
		{name: "ModuloByZero", expr: "5 % 0", wantErr: ErrDivisionByZero},
		{name: "ZeroToNegativePower", expr: "0 ** -1", wantErr: ErrDivisionByZero},
		{name: "FractionalPowerOfNegative", expr: "(-8) ** 0.5", wantErr: ErrArithmetic},
		{name: "AdditionOverflow", expr: "9223372036854775807 + 1", wantErr: ErrOverflow},
		{name: "PowerOverflow", expr: "2 ** 64", wantErr: ErrOverflow},
		{name: "FloatPowerOverflow", expr: "10.0 ** 400", wantErr: ErrOverflow},
		{name: "LiteralOverflow", expr: "99999999999999999999", wantErr: ErrOverflow},
		{name: "Empty", expr: "", wantErr: ErrTokenFormat},
		{name: "DanglingOperator", expr: "1 +", wantErr: ErrTokenFormat},
		{name: "UnclosedParen", expr: "(1", wantErr: ErrTokenFormat},
		{name: "AdjacentNumbers", expr: "1 2", wantErr: ErrTokenFormat},
		{name: "IllegalCharacter", expr: "1 $ 2", wantErr: ErrTokenFormat},
		{name: "UnterminatedString", expr: "'abc", wantErr: ErrTokenFormat},
		{name: "BadUnderscore", expr: "1__0", wantErr: ErrTokenFormat},
		{name: "Tuple", expr: "1, 2", wantErr: ErrTokenFormat},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := Eval(tc.expr)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Eval(%q) error = %v, want %v", tc.expr, err, tc.wantErr)
			}
			if got != nil {
				t.Fatalf("Eval(%q) returned value %v alongside error", tc.expr, got)
			}
		})
	}
}

func TestEvalRejectsConstructsOutsideAllowList(t *testing.T) {
	t.Parallel()

	exprs := []string{
		"__import__('os')",
		"__import__('os').system('id')",
		"os.system",
		"abs(-1)",
		"x",
		"x + 1",
		"0 * x",
		"'a'",
		"(1)[0]",
		"(1).real",
		"1 < 2",
		"1 == 1",
		"1 and 2",
		"1 or 2",
		"not 1",
		"+1",
		"~1",
		"7 // 2",
		"1 << 2",
		"6 & 3",
		"6 | 3",
		"6 ^ 3",
		"2 @ 3",
	}

	for _, expr := range exprs {
		expr := expr
		t.Run(expr, func(t *testing.T) {
			t.Parallel()

			if _, err := Eval(expr); !errors.Is(err, ErrUnsupportedOperator) {
				t.Fatalf("Eval(%q) error = %v, want ErrUnsupportedOperator", expr, err)
			}
		})
	}
}

func TestParseTree(t *testing.T) {
	t.Parallel()

	tests := []struct {
		expr string
		want string
	}{
		{expr: "1 + 2 * 3", want: "(1 + (2 * 3))"},
		{expr: "-2 ** 2", want: "(-(2 ** 2))"},
		{expr: "2 ** 3 ** 2", want: "(2 ** (3 ** 2))"},
		{expr: "2 ** -1", want: "(2 ** (-1))"},
		{expr: "1 - 2 - 3", want: "((1 - 2) - 3)"},
		{expr: "1.5 % 2", want: "(1.5 % 2)"},
		{expr: "f(1, 2)", want: "f(1, 2)"},
	}

	for _, tc := range tests {
		node, err := Parse(tc.expr)
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", tc.expr, err)
		}
		if got := node.String(); got != tc.want {
			t.Fatalf("Parse(%q) = %s, want %s", tc.expr, got, tc.want)
		}
	}
}

func TestFormatFloat(t *testing.T) {
	t.Parallel()

	tests := map[float64]string{
		2:       "2.0",
		0.5:     "0.5",
		-3.25:   "-3.25",
		123.456: "123.456",
		1e16:    "1e+16",
		1e-5:    "1e-05",
		0:       "0.0",
	}
	for in, want := range tests {
		if got := formatFloat(in); got != want {
			t.Fatalf("formatFloat(%v) = %q, want %q", in, got, want)
		}
	}
}

func BenchmarkEval(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := Eval("2 + 3 * (4 - 1) ** 2 / 7 % 5"); err != nil {
			b.Fatalf("unexpected error: %v", err)
		}
	}
}
