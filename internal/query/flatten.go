// internal/query/flatten.go
package query

import "github.com/solatis/quill/internal/rules"

// Flatten converts the top-level disjunctions of bq into a matcher sequence,
// one position per disjunction. Only user terms are included; generated
// terms and nested BooleanQuerys never trigger rules.
//
// The returned index mirrors the sequence: index[pos][i] is the query Term
// behind element i of position pos.
func Flatten(bq *BooleanQuery) (*rules.PositionSequence[rules.Term], [][]*Term) {
	seq := rules.NewPositionSequence[rules.Term](len(bq.Clauses))
	index := make([][]*Term, 0, len(bq.Clauses))
	for _, d := range bq.Clauses {
		var (
			elems []rules.Term
			nodes []*Term
		)
		for _, t := range d.Terms() {
			if t.Generated {
				continue
			}
			if t.Field == "" {
				elems = append(elems, rules.NewTerm(t.Value))
			} else {
				elems = append(elems, rules.NewTerm(t.Value, t.Field))
			}
			nodes = append(nodes, t)
		}
		seq.Add(elems...)
		index = append(index, nodes)
	}
	return seq, index
}
