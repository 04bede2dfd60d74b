// Package resolve turns intake answers into resolved findings: condition
// evaluation, finding activation, dimension layering, and priority buckets.
package resolve

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/openinspect/kestrel/internal/domain"
)

// EvalCondition evaluates a condition tree against a nested answer map.
// It returns the outcome plus the leaf field paths that evaluated true,
// retained for activation diagnostics. An unknown operator anywhere in the
// tree returns a config error; the caller skips the rule.
func EvalCondition(cond *domain.Condition, answers map[string]any) (bool, []string, error) {
	switch cond.Kind() {
	case domain.CondAll:
		// Empty group is vacuously true.
		var paths []string
		for i := range cond.All {
			ok, p, err := EvalCondition(&cond.All[i], answers)
			if err != nil {
				return false, nil, err
			}
			if !ok {
				return false, nil, nil
			}
			paths = append(paths, p...)
		}
		return true, paths, nil

	case domain.CondAny:
		// Empty group is false; all members are evaluated so the
		// triggering paths are independent of member order.
		matched := false
		var paths []string
		for i := range cond.Any {
			ok, p, err := EvalCondition(&cond.Any[i], answers)
			if err != nil {
				return false, nil, err
			}
			if ok {
				matched = true
				paths = append(paths, p...)
			}
		}
		if !matched {
			return false, nil, nil
		}
		return true, paths, nil

	default:
		ok, err := evalLeaf(cond, answers)
		if err != nil || !ok {
			return false, nil, err
		}
		return true, []string{cond.Field}, nil
	}
}

func evalLeaf(c *domain.Condition, answers map[string]any) (bool, error) {
	got := domain.ExtractAnswer(answers, c.Field)

	// Missing fields are false for every operator except ne against a
	// present literal.
	if got == nil {
		if c.Operator == domain.OpNe {
			return c.Value != nil, nil
		}
		switch c.Operator {
		case domain.OpEq, domain.OpGt, domain.OpLt, domain.OpGte, domain.OpLte,
			domain.OpIn, domain.OpNotIn:
			return false, nil
		}
		return false, fmt.Errorf("%w: unknown operator %q", domain.ErrConfig, c.Operator)
	}

	switch c.Operator {
	case domain.OpEq:
		return equalValues(got, c.Value), nil

	case domain.OpNe:
		return !equalValues(got, c.Value), nil

	case domain.OpGt, domain.OpLt, domain.OpGte, domain.OpLte:
		a, okA := toFloat(got)
		b, okB := toFloat(c.Value)
		if !okA || !okB {
			return false, nil
		}
		switch c.Operator {
		case domain.OpGt:
			return a > b, nil
		case domain.OpLt:
			return a < b, nil
		case domain.OpGte:
			return a >= b, nil
		default:
			return a <= b, nil
		}

	case domain.OpIn:
		return containsValue(c.Value, got), nil

	case domain.OpNotIn:
		return !containsValue(c.Value, got), nil

	default:
		return false, fmt.Errorf("%w: unknown operator %q", domain.ErrConfig, c.Operator)
	}
}

// equalValues compares numerically when both operands coerce to numbers,
// otherwise by case-sensitive canonical string.
func equalValues(a, b any) bool {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		return fa == fb
	}
	return canonical(a) == canonical(b)
}

// containsValue tests membership of got in the rule value, which may be a
// native list, a comma/line/semicolon/pipe-delimited string, or a bare
// literal treated as a single-element set.
func containsValue(ruleValue, got any) bool {
	needle := canonical(got)
	for _, member := range memberSet(ruleValue) {
		if member == needle {
			return true
		}
	}
	return false
}

func memberSet(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, m := range t {
			out = append(out, canonical(m))
		}
		return out
	case []string:
		return t
	case string:
		parts := strings.FieldsFunc(t, func(r rune) bool {
			return r == ',' || r == '\n' || r == ';' || r == '|'
		})
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	case nil:
		return nil
	default:
		return []string{canonical(v)}
	}
}

// canonical renders a value as its comparison string. Numbers use the
// shortest round-trip form so 3, 3.0, and "3" compare equal.
func canonical(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
