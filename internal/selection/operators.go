// internal/selection/operators.go
package selection

import "strings"

// Operator is a filter condition comparison.
type Operator int

const (
	OpEq Operator = iota + 1
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpPrefix
	OpSuffix
	OpIn
	OpExists
	OpIsNull
)

var operatorNames = map[Operator]string{
	OpEq:     "==",
	OpNeq:    "!=",
	OpLt:     "<",
	OpLte:    "<=",
	OpGt:     ">",
	OpGte:    ">=",
	OpPrefix: "starts_with",
	OpSuffix: "ends_with",
	OpIn:     "in",
	OpExists: "exists",
	OpIsNull: "is_null",
}

func (op Operator) String() string {
	if s, ok := operatorNames[op]; ok {
		return s
	}
	return "?"
}

// unary reports whether op takes no literal.
func (op Operator) unary() bool {
	return op == OpExists || op == OpIsNull
}

// apply compares an already coerced value against target.
// Ordering operators are numeric only; incomparable values never match.
func apply(op Operator, value, target any) bool {
	switch op {
	case OpEq:
		return equal(value, target)
	case OpNeq:
		return !equal(value, target)
	case OpLt, OpLte, OpGt, OpGte:
		a, aok := toFloat64(value)
		b, bok := toFloat64(target)
		if !aok || !bok {
			return false
		}
		switch op {
		case OpLt:
			return a < b
		case OpLte:
			return a <= b
		case OpGt:
			return a > b
		default:
			return a >= b
		}
	case OpPrefix:
		vs, ok1 := value.(string)
		ps, ok2 := target.(string)
		return ok1 && ok2 && strings.HasPrefix(vs, ps)
	case OpSuffix:
		vs, ok1 := value.(string)
		ss, ok2 := target.(string)
		return ok1 && ok2 && strings.HasSuffix(vs, ss)
	case OpIn:
		set, ok := target.([]any)
		if !ok {
			return false
		}
		for _, elem := range set {
			if equal(value, elem) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// equal compares scalars with numeric tolerance for mixed int/float forms.
// Lists and maps are never equal.
func equal(a, b any) bool {
	if na, ok := toFloat64(a); ok {
		nb, ok := toFloat64(b)
		return ok && na == nb
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return false
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
