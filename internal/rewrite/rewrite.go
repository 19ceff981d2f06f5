// internal/rewrite/rewrite.go
package rewrite

import (
	"context"
	"fmt"

	"github.com/solatis/quill/internal/pkg/logger"
	"github.com/solatis/quill/internal/query"
	"github.com/solatis/quill/internal/rules"
	"github.com/solatis/quill/internal/selection"
	"github.com/solatis/quill/internal/types"
)

/*
 * Rewrite pipeline.
 *
 *   1. Raw user query: return it unchanged, no matching
 *   2. Clone the query; all edits happen on the clone
 *   3. Flatten the clone into a PositionSequence plus a node index
 *   4. Match against the engine's current RulesCollection snapshot
 *   5. Feed every Action to a fresh collector from the strategy
 *   6. Apply surviving actions in order, instructions in authored order
 *
 * Any interpreter error fails the whole call and the clone is discarded,
 * so callers never observe a partially rewritten query.
 */

// Decoration is one out-of-band annotation produced by DECORATE.
type Decoration struct {
	Key   string
	Value rules.Value
}

// Applied records one Instructions that was applied.
type Applied struct {
	ID  string
	Log string
}

// Result is the outcome of a rewrite.
type Result struct {
	Query       *query.ExpandedQuery
	Decorations []Decoration
	Applied     []Applied
	// Matched is the number of actions before selection.
	Matched int
}

// Rewriter applies the active rule set to queries. Safe for concurrent use.
type Rewriter struct {
	engine *rules.Engine
	log    *logger.Logger
}

// New creates a Rewriter reading rules from engine.
func New(engine *rules.Engine, log *logger.Logger) *Rewriter {
	if log == nil {
		log = logger.Nop()
	}
	return &Rewriter{engine: engine, log: log}
}

// Engine returns the engine backing the rewriter.
func (r *Rewriter) Engine() *rules.Engine {
	return r.engine
}

// Rewrite applies the rules selected by strategy to q. q is never modified.
func (r *Rewriter) Rewrite(ctx context.Context, q *query.ExpandedQuery, strategy selection.Strategy) (*Result, error) {
	if q.IsRaw() {
		return &Result{Query: q}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc := r.engine.Load()
	if rc == nil {
		return nil, types.ErrNoRules
	}

	work := q.Clone()
	root, ok := work.UserQuery.(*query.BooleanQuery)
	if !ok {
		return nil, fmt.Errorf("%w: user query %T", types.ErrUnexpectedNode, work.UserQuery)
	}
	seq, index := query.Flatten(root)

	collector := strategy.NewCollector()
	matched := 0
	for a := range rc.Match(seq) {
		collector.Collect(a)
		matched++
	}
	actions := collector.CreateActions()

	it := &interpreter{
		opts:    rc.Options(),
		query:   work,
		index:   index,
		removed: make(map[*query.Term]bool),
	}
	result := &Result{Query: work, Matched: matched}
	log := r.log.WithContext(ctx)
	for _, a := range actions {
		for _, ins := range a.Instructions {
			if err := it.apply(a, ins, result); err != nil {
				return nil, fmt.Errorf("rule %q: %w", ins.ID, err)
			}
			result.Applied = append(result.Applied, Applied{ID: ins.ID, Log: ins.Log()})
			log.Debug("rule applied", "rule_id", ins.ID, "start", a.Start, "end", a.End)
		}
	}
	return result, nil
}

// Actions returns the actions strategy selects for seq, without applying them.
func (r *Rewriter) Actions(seq *rules.PositionSequence[rules.Term], strategy selection.Strategy) ([]rules.Action, error) {
	rc := r.engine.Load()
	if rc == nil {
		return nil, types.ErrNoRules
	}
	collector := strategy.NewCollector()
	for a := range rc.Match(seq) {
		collector.Collect(a)
	}
	return collector.CreateActions(), nil
}
