// internal/query/query.go
package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/solatis/quill/internal/types"
)

/*
 * Query tree.
 *
 * A user query is either a RawQuery (opaque, never rewritten) or a
 * BooleanQuery of DisjunctionMaxQuery clauses, one per user token. A
 * disjunction holds alternatives for its position: the user's Term plus any
 * generated Terms or generated BooleanQuerys (multi-term synonyms).
 *
 *   BooleanQuery ─┬─ DisjunctionMaxQuery ─┬─ Term
 *                 │                       └─ BooleanQuery (generated) ─ ...
 *                 └─ DisjunctionMaxQuery ── Term
 *
 * Every node below the root keeps a non-owning parent pointer so the
 * interpreter can edit the tree in place from a matched Term. The parent of
 * a Term is always a disjunction; the parent of a disjunction is always a
 * BooleanQuery.
 */

// Occur is the boolean role of a clause.
type Occur int

const (
	Should Occur = iota
	Must
	MustNot
)

func (o Occur) prefix() string {
	switch o {
	case Must:
		return "+"
	case MustNot:
		return "-"
	default:
		return ""
	}
}

// Query is a top-level query: *BooleanQuery or *RawQuery.
type Query interface {
	String() string
	clone() Query
}

// RawQuery is an opaque query string the parser could not decompose.
type RawQuery struct {
	Text string
}

func (r *RawQuery) String() string { return r.Text }

func (r *RawQuery) clone() Query { return &RawQuery{Text: r.Text} }

// Clause is a child of a DisjunctionMaxQuery: *Term or *BooleanQuery.
type Clause interface {
	String() string
	IsGenerated() bool
	setParent(d *DisjunctionMaxQuery)
	cloneClause() Clause
}

// Term is a leaf token.
type Term struct {
	Field     string
	Value     string
	Generated bool

	parent *DisjunctionMaxQuery
}

// NewTerm creates a detached term.
func NewTerm(field, value string, generated bool) *Term {
	return &Term{Field: field, Value: value, Generated: generated}
}

// Parent returns the containing disjunction, nil when detached.
func (t *Term) Parent() *DisjunctionMaxQuery { return t.parent }

func (t *Term) IsGenerated() bool { return t.Generated }

func (t *Term) setParent(d *DisjunctionMaxQuery) { t.parent = d }

func (t *Term) String() string {
	if t.Field == "" {
		return t.Value
	}
	return t.Field + ":" + t.Value
}

func (t *Term) cloneClause() Clause {
	return &Term{Field: t.Field, Value: t.Value, Generated: t.Generated}
}

// DisjunctionMaxQuery holds the alternatives for one position.
type DisjunctionMaxQuery struct {
	Occur     Occur
	Generated bool
	Clauses   []Clause

	parent *BooleanQuery
}

// NewDisjunctionMaxQuery creates a detached disjunction.
func NewDisjunctionMaxQuery(occur Occur, generated bool) *DisjunctionMaxQuery {
	return &DisjunctionMaxQuery{Occur: occur, Generated: generated}
}

// Parent returns the containing BooleanQuery, nil when detached.
func (d *DisjunctionMaxQuery) Parent() *BooleanQuery { return d.parent }

// Add appends c and adopts it.
func (d *DisjunctionMaxQuery) Add(c Clause) {
	c.setParent(d)
	d.Clauses = append(d.Clauses, c)
}

// Terms returns the direct Term clauses.
func (d *DisjunctionMaxQuery) Terms() []*Term {
	var out []*Term
	for _, c := range d.Clauses {
		if t, ok := c.(*Term); ok {
			out = append(out, t)
		}
	}
	return out
}

func (d *DisjunctionMaxQuery) remove(c Clause) bool {
	for i, existing := range d.Clauses {
		if existing == c {
			d.Clauses = append(d.Clauses[:i], d.Clauses[i+1:]...)
			c.setParent(nil)
			return true
		}
	}
	return false
}

func (d *DisjunctionMaxQuery) String() string {
	if len(d.Clauses) == 1 {
		return d.Occur.prefix() + d.Clauses[0].String()
	}
	parts := make([]string, len(d.Clauses))
	for i, c := range d.Clauses {
		parts[i] = c.String()
	}
	return d.Occur.prefix() + "(" + strings.Join(parts, " | ") + ")"
}

func (d *DisjunctionMaxQuery) cloneDMQ() *DisjunctionMaxQuery {
	out := &DisjunctionMaxQuery{Occur: d.Occur, Generated: d.Generated}
	for _, c := range d.Clauses {
		out.Add(c.cloneClause())
	}
	return out
}

// BooleanQuery is a conjunction/disjunction of positions.
type BooleanQuery struct {
	Occur     Occur
	Generated bool
	Clauses   []*DisjunctionMaxQuery

	parent *DisjunctionMaxQuery
}

// NewBooleanQuery creates a detached BooleanQuery.
func NewBooleanQuery(occur Occur, generated bool) *BooleanQuery {
	return &BooleanQuery{Occur: occur, Generated: generated}
}

// Parent returns the containing disjunction, nil for a root.
func (b *BooleanQuery) Parent() *DisjunctionMaxQuery { return b.parent }

func (b *BooleanQuery) IsGenerated() bool { return b.Generated }

func (b *BooleanQuery) setParent(d *DisjunctionMaxQuery) { b.parent = d }

// Add appends d and adopts it.
func (b *BooleanQuery) Add(d *DisjunctionMaxQuery) {
	d.parent = b
	b.Clauses = append(b.Clauses, d)
}

func (b *BooleanQuery) remove(d *DisjunctionMaxQuery) bool {
	for i, existing := range b.Clauses {
		if existing == d {
			b.Clauses = append(b.Clauses[:i], b.Clauses[i+1:]...)
			d.parent = nil
			return true
		}
	}
	return false
}

func (b *BooleanQuery) String() string {
	parts := make([]string, len(b.Clauses))
	for i, c := range b.Clauses {
		parts[i] = c.String()
	}
	s := strings.Join(parts, " ")
	if b.parent != nil {
		return b.Occur.prefix() + "(" + s + ")"
	}
	return s
}

// Clone deep-copies the tree. The copy is detached from any parent.
func (b *BooleanQuery) Clone() *BooleanQuery {
	out := &BooleanQuery{Occur: b.Occur, Generated: b.Generated}
	for _, d := range b.Clauses {
		out.Add(d.cloneDMQ())
	}
	return out
}

func (b *BooleanQuery) clone() Query { return b.Clone() }

func (b *BooleanQuery) cloneClause() Clause { return b.Clone() }

// RemoveTerm detaches t from its disjunction. A disjunction left empty is
// removed from its BooleanQuery; the cascade stops there.
// Returns ErrUnexpectedNode when t is not attached where its parent says.
func RemoveTerm(t *Term) error {
	d := t.parent
	if d == nil {
		return fmt.Errorf("%w: term %q has no parent", types.ErrUnexpectedNode, t)
	}
	if !d.remove(t) {
		return fmt.Errorf("%w: term %q not found in parent", types.ErrUnexpectedNode, t)
	}
	if len(d.Clauses) > 0 {
		return nil
	}
	b := d.parent
	if b == nil {
		return nil
	}
	if !b.remove(d) {
		return fmt.Errorf("%w: disjunction not found in parent", types.ErrUnexpectedNode)
	}
	return nil
}

// BoostQuery is a scoring-only clause.
type BoostQuery struct {
	Query  Query
	Factor float64
}

func (bq BoostQuery) String() string {
	return fmt.Sprintf("%s^%s", bq.Query, strconv.FormatFloat(bq.Factor, 'f', -1, 64))
}

// ExpandedQuery is a user query plus the clauses attached by rewriting.
type ExpandedQuery struct {
	UserQuery Query
	BoostUp   []BoostQuery
	BoostDown []BoostQuery
	Filters   []Query
}

// NewExpandedQuery wraps q.
func NewExpandedQuery(q Query) *ExpandedQuery {
	return &ExpandedQuery{UserQuery: q}
}

// IsRaw reports whether the user query is opaque.
func (e *ExpandedQuery) IsRaw() bool {
	_, ok := e.UserQuery.(*RawQuery)
	return ok
}

// Clone deep-copies the query and its attached clauses.
func (e *ExpandedQuery) Clone() *ExpandedQuery {
	out := &ExpandedQuery{UserQuery: e.UserQuery.clone()}
	for _, b := range e.BoostUp {
		out.BoostUp = append(out.BoostUp, BoostQuery{Query: b.Query.clone(), Factor: b.Factor})
	}
	for _, b := range e.BoostDown {
		out.BoostDown = append(out.BoostDown, BoostQuery{Query: b.Query.clone(), Factor: b.Factor})
	}
	for _, f := range e.Filters {
		out.Filters = append(out.Filters, f.clone())
	}
	return out
}

func (e *ExpandedQuery) String() string {
	var sb strings.Builder
	sb.WriteString(e.UserQuery.String())
	for _, f := range e.Filters {
		sb.WriteString(" FILTER(" + f.String() + ")")
	}
	for _, b := range e.BoostUp {
		sb.WriteString(" UP(" + b.String() + ")")
	}
	for _, b := range e.BoostDown {
		sb.WriteString(" DOWN(" + b.String() + ")")
	}
	return sb.String()
}
