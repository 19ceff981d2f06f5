// internal/selection/criteria.go
package selection

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/solatis/quill/internal/rules"
	"github.com/solatis/quill/internal/types"
)

// SortOrder is the direction of a sort.
type SortOrder int

const (
	Ascending SortOrder = iota
	Descending
)

func (o SortOrder) String() string {
	if o == Descending {
		return "desc"
	}
	return "asc"
}

// ParseSortOrder accepts asc and desc.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc":
		return Ascending, nil
	case "desc":
		return Descending, nil
	default:
		return Ascending, fmt.Errorf("%w: sort order %q", types.ErrInvalidCriteria, s)
	}
}

// Sorting orders actions by a top-level property.
type Sorting struct {
	Property string
	Order    SortOrder
}

// key extracts the sort key; ok is false when the property is absent.
func (s Sorting) key(ins *rules.Instructions) (rules.Value, bool) {
	return ins.Property(s.Property)
}

// Limit caps the number of selected actions. Count <= 0 means unlimited.
// UseLevels keeps whole runs of equal sort keys at the cutoff.
type Limit struct {
	Count     int
	UseLevels bool
}

// Criteria configures a criteria-driven selection.
type Criteria struct {
	Sorting *Sorting
	Limit   Limit
	Filters []FilterCriterion
}

// Accept reports whether ins passes every filter.
func (c Criteria) Accept(ins *rules.Instructions) bool {
	for _, f := range c.Filters {
		if !f.Accept(ins) {
			return false
		}
	}
	return true
}

// Request parameter names understood by ParseCriteria.
const (
	ParamSort     = "sort"
	ParamLimit    = "limit"
	ParamLevels   = "levels"
	ParamFilter   = "filter"
	ParamProperty = "property"
)

// HasCriteriaParams reports whether params carry any criteria parameter.
func HasCriteriaParams(params map[string][]string) bool {
	for _, k := range []string{ParamSort, ParamLimit, ParamLevels, ParamFilter, ParamProperty} {
		if len(params[k]) > 0 {
			return true
		}
	}
	return false
}

// ParseCriteria builds Criteria from request parameters:
//
//	sort=prop:asc|desc  limit=N  levels=true|false
//	filter=<expression> (repeatable)  property=name:value (repeatable)
func ParseCriteria(params map[string][]string) (Criteria, error) {
	var c Criteria

	if v := last(params[ParamSort]); v != "" {
		prop, order, _ := strings.Cut(v, ":")
		if strings.TrimSpace(prop) == "" {
			return Criteria{}, fmt.Errorf("%w: sort %q has no property", types.ErrInvalidCriteria, v)
		}
		o, err := ParseSortOrder(order)
		if err != nil {
			return Criteria{}, err
		}
		c.Sorting = &Sorting{Property: strings.TrimSpace(prop), Order: o}
	}

	if v := last(params[ParamLimit]); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Criteria{}, fmt.Errorf("%w: limit %q", types.ErrInvalidCriteria, v)
		}
		c.Limit.Count = n
	}

	if v := last(params[ParamLevels]); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Criteria{}, fmt.Errorf("%w: levels %q", types.ErrInvalidCriteria, v)
		}
		c.Limit.UseLevels = b
	}

	for _, v := range params[ParamProperty] {
		name, value, ok := strings.Cut(v, ":")
		if !ok || name == "" {
			return Criteria{}, fmt.Errorf("%w: property filter %q, want name:value", types.ErrInvalidCriteria, v)
		}
		c.Filters = append(c.Filters, NewPropertyFilter(name, value))
	}

	for _, v := range params[ParamFilter] {
		expr, err := ParseExpression(v)
		if err != nil {
			return Criteria{}, fmt.Errorf("%w: %w", types.ErrInvalidCriteria, err)
		}
		c.Filters = append(c.Filters, ExpressionFilter{Expr: expr})
	}

	return c, nil
}

func last(vs []string) string {
	if len(vs) == 0 {
		return ""
	}
	return strings.TrimSpace(vs[len(vs)-1])
}
