// internal/selection/collector.go
package selection

import (
	"sort"

	"github.com/solatis/quill/internal/rules"
)

/*
 * Action collectors.
 *
 * A Collector ingests Actions in discovery order and finalizes them once.
 * Collectors are created per rewrite pass and never shared.
 *
 * The matcher groups every Instructions sharing an input into one Action.
 * Criteria-driven collectors split those groups so that each Instructions is
 * filtered, sorted and counted on its own property bag; the default
 * collector keeps them grouped.
 *
 * Sorting is stable, so ties keep discovery order. Actions without the sort
 * property go after all actions that have it, in either direction.
 *
 * Limits:
 *   - flat:   first Count actions after sorting
 *   - levels: whole runs of equal sort keys until the running total reaches
 *             Count; the run crossing the threshold is kept entirely
 */

// Collector accumulates actions for one rewrite pass.
type Collector interface {
	Collect(a rules.Action)
	CreateActions() []rules.Action
}

// DefaultCollector keeps every action in arrival order.
type DefaultCollector struct {
	actions []rules.Action
}

func (c *DefaultCollector) Collect(a rules.Action) {
	c.actions = append(c.actions, a)
}

func (c *DefaultCollector) CreateActions() []rules.Action {
	return c.actions
}

// entry is one split action with its precomputed sort key.
type entry struct {
	action rules.Action
	key    rules.Value
	hasKey bool
}

// criteriaCollector filters and sorts; flat and level limits differ only in finalization.
type criteriaCollector struct {
	criteria Criteria
	entries  []entry
}

func (c *criteriaCollector) Collect(a rules.Action) {
	for _, ins := range a.Instructions {
		if !c.criteria.Accept(ins) {
			continue
		}
		e := entry{action: a.WithInstructions(ins)}
		if c.criteria.Sorting != nil {
			e.key, e.hasKey = c.criteria.Sorting.key(ins)
		}
		c.entries = append(c.entries, e)
	}
}

func (c *criteriaCollector) sorted() []entry {
	s := c.criteria.Sorting
	if s == nil {
		return c.entries
	}
	sort.SliceStable(c.entries, func(i, j int) bool {
		a, b := c.entries[i], c.entries[j]
		if a.hasKey != b.hasKey {
			return a.hasKey
		}
		if !a.hasKey {
			return false
		}
		if s.Order == Descending {
			return rules.Compare(a.key, b.key) > 0
		}
		return rules.Compare(a.key, b.key) < 0
	})
	return c.entries
}

func sameKey(a, b entry) bool {
	if a.hasKey != b.hasKey {
		return false
	}
	return !a.hasKey || rules.Compare(a.key, b.key) == 0
}

func actionsOf(entries []entry) []rules.Action {
	out := make([]rules.Action, len(entries))
	for i, e := range entries {
		out[i] = e.action
	}
	return out
}

// FlatCollector truncates to Limit.Count after filtering and sorting.
type FlatCollector struct {
	criteriaCollector
}

// NewFlatCollector creates a flat collector for criteria.
func NewFlatCollector(criteria Criteria) *FlatCollector {
	return &FlatCollector{criteriaCollector{criteria: criteria}}
}

func (c *FlatCollector) CreateActions() []rules.Action {
	entries := c.sorted()
	if n := c.criteria.Limit.Count; n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return actionsOf(entries)
}

// LevelCollector keeps whole levels of equal sort keys up to Limit.Count.
type LevelCollector struct {
	criteriaCollector
}

// NewLevelCollector creates a tie-preserving top-K collector for criteria.
func NewLevelCollector(criteria Criteria) *LevelCollector {
	return &LevelCollector{criteriaCollector{criteria: criteria}}
}

func (c *LevelCollector) CreateActions() []rules.Action {
	entries := c.sorted()
	limit := c.criteria.Limit.Count
	// without a sort key every action is on the same level
	if c.criteria.Sorting == nil || limit <= 0 {
		return actionsOf(entries)
	}
	end := 0
	for end < len(entries) && end < limit {
		next := end + 1
		for next < len(entries) && sameKey(entries[end], entries[next]) {
			next++
		}
		end = next
	}
	return actionsOf(entries[:end])
}
