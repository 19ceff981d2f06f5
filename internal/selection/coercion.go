// internal/selection/coercion.go
package selection

import (
	"strconv"
	"strings"

	"github.com/solatis/quill/internal/types"
)

/*
 * Type coercion for filter conditions.
 *
 * The literal on the right of a condition fixes its FieldType; the property
 * value on the left is coerced to that type before comparison:
 *   - Numeric: strict, accepts numbers and numeric strings, rejects booleans
 *   - Text:    lenient, renders numbers and booleans as text
 *   - Boolean: strict, booleans only
 *   - Any:     value passed through unchanged
 *
 * Null is not a coercion failure: it reports IsNull and the condition falls
 * back to the missing-property policy (no match).
 */

// FieldType is the comparison type of a condition.
type FieldType int

const (
	FieldTypeAny FieldType = iota
	FieldTypeNumeric
	FieldTypeText
	FieldTypeBoolean
)

func (ft FieldType) String() string {
	switch ft {
	case FieldTypeNumeric:
		return "numeric"
	case FieldTypeText:
		return "text"
	case FieldTypeBoolean:
		return "boolean"
	default:
		return "any"
	}
}

// fieldTypeOf infers the comparison type from a literal.
func fieldTypeOf(literal any) FieldType {
	switch literal.(type) {
	case float64:
		return FieldTypeNumeric
	case string:
		return FieldTypeText
	case bool:
		return FieldTypeBoolean
	default:
		return FieldTypeAny
	}
}

// CoercionResult holds the coerced value or flags null.
type CoercionResult struct {
	Value  any
	IsNull bool
}

// Coerce converts value to fieldType.
// Returns ErrCoercionFailed for impossible conversions.
func Coerce(value any, fieldType FieldType) (CoercionResult, error) {
	if value == nil {
		return CoercionResult{IsNull: true}, nil
	}
	switch fieldType {
	case FieldTypeNumeric:
		if f, ok := toFloat64(value); ok {
			return CoercionResult{Value: f}, nil
		}
		s, ok := value.(string)
		if !ok {
			return CoercionResult{}, types.ErrCoercionFailed
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return CoercionResult{}, types.ErrCoercionFailed
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return CoercionResult{}, types.ErrCoercionFailed
		}
		return CoercionResult{Value: f}, nil
	case FieldTypeText:
		switch v := value.(type) {
		case string:
			return CoercionResult{Value: v}, nil
		case bool:
			return CoercionResult{Value: strconv.FormatBool(v)}, nil
		}
		if f, ok := toFloat64(value); ok {
			return CoercionResult{Value: strconv.FormatFloat(f, 'f', -1, 64)}, nil
		}
		// lists and maps have no text form
		return CoercionResult{}, types.ErrCoercionFailed
	case FieldTypeBoolean:
		if b, ok := value.(bool); ok {
			return CoercionResult{Value: b}, nil
		}
		return CoercionResult{}, types.ErrCoercionFailed
	default:
		return CoercionResult{Value: value}, nil
	}
}
