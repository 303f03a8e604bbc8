package resolver

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// number is a @math operand: an int64 unless float is set.
type number struct {
	i     int64
	f     float64
	float bool
}

func intNumber(i int64) number     { return number{i: i} }
func floatNumber(f float64) number { return number{f: f, float: true} }

func (n number) toFloat() float64 {
	if n.float {
		return n.f
	}
	return float64(n.i)
}

func (n number) isZero() bool {
	if n.float {
		return n.f == 0
	}
	return n.i == 0
}

// value returns the number as int64 or float64.
func (n number) value() any {
	if n.float {
		return n.f
	}
	return n.i
}

func formatNumber(n number) string {
	if n.float {
		return formatFloat(n.f)
	}
	return strconv.FormatInt(n.i, 10)
}

// formatFloat renders floats the way configuration authors expect from the
// token language: 2.0, 0.5, 1e+16, inf, nan.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}

	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// formatScalar is the string form substituted into @format placeholders.
func formatScalar(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return formatFloat(x)
	case bool:
		if x {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(v)
	}
}
