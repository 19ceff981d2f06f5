// internal/selection/config.go
package selection

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/solatis/quill/internal/rules"
	"github.com/solatis/quill/internal/types"
)

// File is the on-disk form of named strategies.
//
//	strategies:
//	  by-priority:
//	    sort: {property: priority, order: desc}
//	    limit: {count: 1, levels: true}
//	    filters:
//	      - property: lang
//	        value: en
//	      - expression: 'enabled == true'
type File struct {
	Strategies map[string]StrategyConfig `yaml:"strategies"`
}

// StrategyConfig declares one criteria-driven strategy.
type StrategyConfig struct {
	Sort *struct {
		Property string `yaml:"property"`
		Order    string `yaml:"order"`
	} `yaml:"sort"`
	Limit struct {
		Count  int  `yaml:"count"`
		Levels bool `yaml:"levels"`
	} `yaml:"limit"`
	Filters []FilterConfig `yaml:"filters"`
}

// FilterConfig is either a property equality or an expression.
type FilterConfig struct {
	Property   string    `yaml:"property"`
	Value      yaml.Node `yaml:"value"`
	Expression string    `yaml:"expression"`
}

// Criteria compiles the declaration.
func (sc StrategyConfig) Criteria() (Criteria, error) {
	var c Criteria
	if sc.Sort != nil {
		if sc.Sort.Property == "" {
			return Criteria{}, fmt.Errorf("%w: sort without property", types.ErrInvalidCriteria)
		}
		order, err := ParseSortOrder(sc.Sort.Order)
		if err != nil {
			return Criteria{}, err
		}
		c.Sorting = &Sorting{Property: sc.Sort.Property, Order: order}
	}
	c.Limit = Limit{Count: sc.Limit.Count, UseLevels: sc.Limit.Levels}

	for i, fc := range sc.Filters {
		switch {
		case fc.Expression != "" && fc.Property != "":
			return Criteria{}, fmt.Errorf("%w: filter %d sets both property and expression", types.ErrInvalidCriteria, i)
		case fc.Expression != "":
			expr, err := ParseExpression(fc.Expression)
			if err != nil {
				return Criteria{}, err
			}
			c.Filters = append(c.Filters, ExpressionFilter{Expr: expr})
		case fc.Property != "":
			var raw any
			if err := fc.Value.Decode(&raw); err != nil {
				return Criteria{}, fmt.Errorf("%w: filter %d value: %v", types.ErrInvalidCriteria, i, err)
			}
			v, err := rules.FromInterface(raw)
			if err != nil {
				return Criteria{}, fmt.Errorf("%w: filter %d value: %v", types.ErrInvalidCriteria, i, err)
			}
			c.Filters = append(c.Filters, PropertyFilter{Name: fc.Property, Value: v})
		default:
			return Criteria{}, fmt.Errorf("%w: filter %d is empty", types.ErrInvalidCriteria, i)
		}
	}
	return c, nil
}

// LoadStrategies reads a strategies file and registers every declaration.
func LoadStrategies(r io.Reader, reg *Registry) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidCriteria, err)
	}

	names := make([]string, 0, len(f.Strategies))
	for name := range f.Strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c, err := f.Strategies[name].Criteria()
		if err != nil {
			return nil, fmt.Errorf("strategy %q: %w", name, err)
		}
		if err := reg.Register(NewCriteriaStrategy(name, c)); err != nil {
			return nil, err
		}
	}
	return names, nil
}

// LoadStrategiesFile is LoadStrategies for a path.
func LoadStrategiesFile(path string, reg *Registry) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadStrategies(f, reg)
}
