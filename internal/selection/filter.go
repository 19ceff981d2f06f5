// internal/selection/filter.go
package selection

import (
	"fmt"

	"github.com/solatis/quill/internal/rules"
)

// FilterCriterion is a stateless predicate over one Instructions' properties.
type FilterCriterion interface {
	Accept(ins *rules.Instructions) bool
	String() string
}

// PropertyFilter accepts Instructions whose property Name equals Value.
type PropertyFilter struct {
	Name  string
	Value rules.Value
}

// NewPropertyFilter parses value as JSON, falling back to a plain string.
func NewPropertyFilter(name, value string) PropertyFilter {
	v, err := rules.ParseValue([]byte(value))
	if err != nil {
		v = rules.String(value)
	}
	return PropertyFilter{Name: name, Value: v}
}

func (f PropertyFilter) Accept(ins *rules.Instructions) bool {
	v, ok := ins.Property(f.Name)
	return ok && v.Equal(f.Value)
}

func (f PropertyFilter) String() string {
	return fmt.Sprintf("%s:%s", f.Name, f.Value.Text())
}

// ExpressionFilter accepts Instructions whose property bag satisfies Expr.
type ExpressionFilter struct {
	Expr *Expression
}

func (f ExpressionFilter) Accept(ins *rules.Instructions) bool {
	return f.Expr.Evaluate(ins.Bag())
}

func (f ExpressionFilter) String() string {
	return f.Expr.String()
}
