// internal/selection/cost.go
package selection

/*
 * Cost model for condition ordering.
 *
 * Conditions inside an AND group are evaluated cheapest first so that a
 * failing cheap check short-circuits expensive ones. Cost is
 *   lookup_cost + operator_cost * type_multiplier * 8^wildcards
 * and ties keep authored order (stable sort).
 */

const (
	CostExists = 1
	CostEq     = 5
	CostOrder  = 7
	CostIn     = 8
	CostAffix  = 10

	CostLookupPerSegment = 16

	MultiplierBool    = 1
	MultiplierNumeric = 4
	MultiplierText    = 48
	MultiplierAny     = 128
)

// ConditionCost computes the evaluation cost of a condition.
func ConditionCost(path []PathSegment, op Operator, ft FieldType) int {
	lookup, wildcards := 0, 0
	for _, seg := range path {
		if seg.Wildcard {
			wildcards++
			continue
		}
		lookup += CostLookupPerSegment
	}
	exec := 1
	for range wildcards {
		exec *= 8
	}
	return lookup + operatorCost(op)*typeMultiplier(op, ft)*exec
}

func operatorCost(op Operator) int {
	switch op {
	case OpExists, OpIsNull:
		return CostExists
	case OpLt, OpLte, OpGt, OpGte:
		return CostOrder
	case OpIn:
		return CostIn
	case OpPrefix, OpSuffix:
		return CostAffix
	default:
		return CostEq
	}
}

func typeMultiplier(op Operator, ft FieldType) int {
	if op.unary() {
		return MultiplierBool
	}
	switch ft {
	case FieldTypeBoolean:
		return MultiplierBool
	case FieldTypeNumeric:
		return MultiplierNumeric
	case FieldTypeText:
		return MultiplierText
	default:
		return MultiplierAny
	}
}
