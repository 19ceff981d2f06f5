// internal/selection/strategy.go
package selection

import (
	"fmt"
	"sort"
	"sync"

	"github.com/solatis/quill/internal/types"
)

// Built-in strategy names.
const (
	DefaultStrategyName  = "default"
	CriteriaStrategyName = "criteria"
)

// Strategy creates a fresh Collector per rewrite pass.
// Implementations hold only immutable configuration and may be shared.
type Strategy interface {
	Name() string
	NewCollector() Collector
}

// DefaultStrategy selects every action in discovery order.
type DefaultStrategy struct{}

func (DefaultStrategy) Name() string { return DefaultStrategyName }

func (DefaultStrategy) NewCollector() Collector { return &DefaultCollector{} }

// CriteriaStrategy filters, sorts and limits per Criteria.
type CriteriaStrategy struct {
	name     string
	criteria Criteria
}

// NewCriteriaStrategy creates a criteria-driven strategy under name.
func NewCriteriaStrategy(name string, criteria Criteria) *CriteriaStrategy {
	return &CriteriaStrategy{name: name, criteria: criteria}
}

func (s *CriteriaStrategy) Name() string { return s.name }

// Criteria returns the strategy's configuration.
func (s *CriteriaStrategy) Criteria() Criteria { return s.criteria }

// NewCollector picks a level collector when a positive limit uses levels.
func (s *CriteriaStrategy) NewCollector() Collector {
	if s.criteria.Limit.Count > 0 && s.criteria.Limit.UseLevels {
		return NewLevelCollector(s.criteria)
	}
	return NewFlatCollector(s.criteria)
}

// Registry maps strategy names to shared Strategy instances.
type Registry struct {
	mu          sync.RWMutex
	strategies  map[string]Strategy
	defaultName string
}

// NewRegistry creates a registry holding the default strategy.
func NewRegistry() *Registry {
	return &Registry{
		strategies:  map[string]Strategy{DefaultStrategyName: DefaultStrategy{}},
		defaultName: DefaultStrategyName,
	}
}

// Register adds or replaces a named strategy. The criteria name is reserved
// for request-supplied criteria.
func (r *Registry) Register(s Strategy) error {
	if s.Name() == "" || s.Name() == CriteriaStrategyName {
		return fmt.Errorf("%w: reserved strategy name %q", types.ErrInvalidCriteria, s.Name())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.Name()] = s
	return nil
}

// SetDefault makes name the strategy used when a request names none.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.strategies[name]; !ok {
		return fmt.Errorf("%w: %q", types.ErrUnknownStrategy, name)
	}
	r.defaultName = name
	return nil
}

// Lookup returns the strategy registered under name.
func (r *Registry) Lookup(name string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownStrategy, name)
	}
	return s, nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies))
	for n := range r.strategies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve picks the strategy for a request. An empty name selects the
// default; "criteria" builds a one-off strategy from params. Criteria
// parameters with any other strategy are rejected.
func (r *Registry) Resolve(name string, params map[string][]string) (Strategy, error) {
	if name == CriteriaStrategyName {
		c, err := ParseCriteria(params)
		if err != nil {
			return nil, err
		}
		return NewCriteriaStrategy(CriteriaStrategyName, c), nil
	}
	if HasCriteriaParams(params) {
		return nil, fmt.Errorf("%w: criteria parameters require strategy %q", types.ErrInvalidCriteria, CriteriaStrategyName)
	}
	if name == "" {
		r.mu.RLock()
		name = r.defaultName
		r.mu.RUnlock()
	}
	return r.Lookup(name)
}
