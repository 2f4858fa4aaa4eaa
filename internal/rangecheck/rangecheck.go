package rangecheck

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
)

// DefaultRule flags a result lying strictly outside [norm_min, norm_max].
const DefaultRule = "result < norm_min || result > norm_max"

var ErrNonNumeric = errors.New("result is not numeric")

var knownVars = map[string]bool{
	"result":   true,
	"norm_min": true,
	"norm_max": true,
}

// Rule is a compiled boolean expression over result, norm_min and norm_max.
// It is safe for concurrent use.
type Rule struct {
	src  string
	expr *govaluate.EvaluableExpression
}

func Compile(src string) (*Rule, error) {
	if strings.TrimSpace(src) == "" {
		src = DefaultRule
	}
	expr, err := govaluate.NewEvaluableExpression(src)
	if err != nil {
		return nil, fmt.Errorf("compile rule %q: %w", src, err)
	}
	for _, v := range expr.Vars() {
		if !knownVars[v] {
			return nil, fmt.Errorf("compile rule %q: unknown variable %q", src, v)
		}
	}
	return &Rule{src: src, expr: expr}, nil
}

func MustCompile(src string) *Rule {
	r, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Rule) String() string { return r.src }

// Abnormal reports whether result violates the rule. A nil bound does not
// constrain its side of the range.
func (r *Rule) Abnormal(result string, normMin, normMax *float64) (bool, error) {
	value, err := ParseResult(result)
	if err != nil {
		return false, err
	}

	lo, hi := math.Inf(-1), math.Inf(1)
	if normMin != nil {
		lo = *normMin
	}
	if normMax != nil {
		hi = *normMax
	}

	out, err := r.expr.Evaluate(map[string]interface{}{
		"result":   value,
		"norm_min": lo,
		"norm_max": hi,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate rule: %w", err)
	}
	flag, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("evaluate rule: non-boolean result %v", out)
	}
	return flag, nil
}

// ParseResult reads a lab result as a finite number. A decimal comma is
// accepted.
func ParseResult(result string) (float64, error) {
	s := strings.TrimSpace(result)
	s = strings.Replace(s, ",", ".", 1)
	value, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: %q", ErrNonNumeric, result)
	}
	return value, nil
}
