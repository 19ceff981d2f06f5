// internal/rewrite/interpreter.go
package rewrite

import (
	"fmt"

	"github.com/solatis/quill/internal/query"
	"github.com/solatis/quill/internal/rules"
	"github.com/solatis/quill/internal/types"
)

// interpreter applies instructions to one cloned query.
type interpreter struct {
	opts    rules.Options
	query   *query.ExpandedQuery
	index   [][]*query.Term
	removed map[*query.Term]bool
}

func (it *interpreter) apply(a rules.Action, ins *rules.Instructions, res *Result) error {
	for _, instr := range ins.List {
		var err error
		switch in := instr.(type) {
		case rules.SynonymInstruction:
			err = it.synonym(a, in)
		case rules.DeleteInstruction:
			err = it.delete(a, in)
		case *rules.BoostInstruction:
			it.boost(a, in)
		case rules.FilterInstruction:
			it.query.Filters = append(it.query.Filters, attached(in.Query, in.Raw))
		case rules.DecorateInstruction:
			res.Decorations = append(res.Decorations, Decoration{Key: in.Key, Value: in.Value})
		default:
			err = fmt.Errorf("%w: instruction %T", types.ErrUnexpectedNode, instr)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// node returns the query term behind a match.
func (it *interpreter) node(m rules.TermMatch) (*query.Term, error) {
	if m.Position >= len(it.index) || m.Index >= len(it.index[m.Position]) {
		return nil, fmt.Errorf("%w: no term at position %d index %d", types.ErrUnexpectedNode, m.Position, m.Index)
	}
	return it.index[m.Position][m.Index], nil
}

// synonym adds the synonym next to every matched term. A multi-term synonym
// becomes a generated BooleanQuery requiring all its terms.
func (it *interpreter) synonym(a rules.Action, in rules.SynonymInstruction) error {
	for _, m := range a.Matches {
		t, err := it.node(m)
		if err != nil {
			return err
		}
		if it.removed[t] {
			continue
		}
		parent := t.Parent()
		if parent == nil {
			return fmt.Errorf("%w: matched term %q is detached", types.ErrUnexpectedNode, t)
		}
		if len(in.Terms) == 1 {
			for _, gen := range generatedTerms(in.Terms[0]) {
				parent.Add(gen)
			}
			continue
		}
		bq := query.NewBooleanQuery(query.Should, true)
		for _, st := range in.Terms {
			d := query.NewDisjunctionMaxQuery(query.Must, true)
			for _, gen := range generatedTerms(st) {
				d.Add(gen)
			}
			bq.Add(d)
		}
		parent.Add(bq)
	}
	return nil
}

// generatedTerms expands a field-scoped rule term into one query term per field.
func generatedTerms(t rules.Term) []*query.Term {
	if !t.HasFields() {
		return []*query.Term{query.NewTerm("", t.Value, true)}
	}
	out := make([]*query.Term, len(t.Fields))
	for i, f := range t.Fields {
		out[i] = query.NewTerm(f, t.Value, true)
	}
	return out
}

func (it *interpreter) delete(a rules.Action, in rules.DeleteInstruction) error {
	for _, m := range a.Matches {
		if !in.Deletes(it.opts, m.Term) {
			continue
		}
		t, err := it.node(m)
		if err != nil {
			return err
		}
		if it.removed[t] {
			continue
		}
		if err := query.RemoveTerm(t); err != nil {
			return err
		}
		it.removed[t] = true
	}
	return nil
}

func (it *interpreter) boost(a rules.Action, in *rules.BoostInstruction) {
	bq := query.BoostQuery{
		Query:  attached(in.Resolve(a.MatchedTerms()), in.Raw),
		Factor: in.Factor,
	}
	if in.Direction == rules.BoostDown {
		it.query.BoostDown = append(it.query.BoostDown, bq)
		return
	}
	it.query.BoostUp = append(it.query.BoostUp, bq)
}

// attached builds the generated query for a BOOST or FILTER clause.
func attached(text string, raw bool) query.Query {
	if raw {
		return &query.RawQuery{Text: text}
	}
	return query.ParseGenerated(text)
}
