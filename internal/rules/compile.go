// internal/rules/compile.go
package rules

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/solatis/quill/internal/types"
)

/*
 * Rule compilation.
 *
 * The Compiler threads all build state explicitly (trie root, rule vector,
 * id set, ordinal counter) and produces an immutable RulesCollection. One
 * Compiler builds one collection; nothing is global.
 *
 * Compilation workflow per rule:
 *   1. Validate instructions (non-empty, placeholders within input length,
 *      delete terms covered by the input)
 *   2. Resolve the id: explicit _id (string, unique) or <input>#<ordinal>
 *   3. Insert the input terms as a trie path, normalized by Options
 *   4. Attach the Instructions to the terminal for the input's boundaries
 *
 * Rules with identical terms and boundaries share a terminal and fire as one
 * Action. Rules with identical terms but different boundaries get distinct
 * terminals on the same node.
 *
 * The first failure aborts the whole load; no partial collection is returned.
 */

// RuleError is a load-time failure tied to a rule's source line.
type RuleError struct {
	Line  int
	Input string
	Err   error
}

func (e *RuleError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: rule %q: %v", e.Line, e.Input, e.Err)
	}
	return fmt.Sprintf("rule %q: %v", e.Input, e.Err)
}

func (e *RuleError) Unwrap() error { return e.Err }

// node is a trie node. Edges are keyed by normalized term value and carry the
// rule term so field scopes can be checked against query elements.
type node struct {
	exact     map[string][]*edge
	prefix    map[string][]*edge
	terminals []*terminal
}

type edge struct {
	term Term
	next *node
}

type terminal struct {
	left, right  bool
	instructions []*Instructions
}

func newNode() *node {
	return &node{}
}

// child returns the node reached over t, creating the edge if needed.
func (n *node) child(t Term, key string) *node {
	edges := &n.exact
	if t.Prefix {
		edges = &n.prefix
	}
	if *edges == nil {
		*edges = make(map[string][]*edge)
	}
	for _, e := range (*edges)[key] {
		if sameFields(e.term.Fields, t.Fields) {
			return e.next
		}
	}
	next := newNode()
	(*edges)[key] = append((*edges)[key], &edge{term: t, next: next})
	return next
}

func (n *node) terminal(left, right bool) *terminal {
	for _, t := range n.terminals {
		if t.left == left && t.right == right {
			return t
		}
	}
	t := &terminal{left: left, right: right}
	n.terminals = append(n.terminals, t)
	return t
}

// Compiler accumulates rules into a trie.
type Compiler struct {
	opts    Options
	root    *node
	rules   []*Instructions
	ids     map[string]int
	ordinal int
	depth   int
}

// NewCompiler creates a compiler applying opts to every rule.
func NewCompiler(opts Options) *Compiler {
	return &Compiler{
		opts: opts,
		root: newNode(),
		ids:  make(map[string]int),
	}
}

// Add validates def and inserts it into the trie.
func (c *Compiler) Add(def Definition) error {
	wrap := func(err error) error {
		return &RuleError{Line: def.Line, Input: def.Input.String(), Err: err}
	}

	if def.Input.Len() == 0 {
		return wrap(types.ErrEmptyInput)
	}
	if len(def.Instructions) == 0 {
		return wrap(types.ErrEmptyInstructions)
	}
	if len(c.rules) >= types.MaxRuleSetSize {
		return wrap(fmt.Errorf("rule set exceeds %d rules", types.MaxRuleSetSize))
	}
	if err := c.validateInstructions(def); err != nil {
		return wrap(err)
	}

	id, err := c.resolveID(def)
	if err != nil {
		return wrap(err)
	}

	props := def.Properties
	if props == nil {
		props = NewProperties()
	}
	ins := &Instructions{
		ID:         id,
		List:       append([]Instruction(nil), def.Instructions...),
		Properties: props,
		line:       def.Line,
		ordinal:    c.ordinal,
		bag:        props.Interface(),
	}

	n := c.root
	for _, t := range def.Input.terms {
		n = n.child(t, c.opts.Normalize(t.Value))
	}
	term := n.terminal(def.Input.requiresLeftBoundary, def.Input.requiresRightBoundary)
	term.instructions = append(term.instructions, ins)

	c.ids[id] = def.Line
	c.rules = append(c.rules, ins)
	c.ordinal++
	c.depth = max(c.depth, def.Input.Len())
	return nil
}

func (c *Compiler) validateInstructions(def Definition) error {
	inputTerms := def.Input.terms
	for _, instr := range def.Instructions {
		switch in := instr.(type) {
		case nil:
			return errors.New("nil instruction")
		case *BoostInstruction:
			if in.MaxPlaceholder() > len(inputTerms) {
				return fmt.Errorf("%w: $%d with %d input terms",
					types.ErrUnresolvedPlaceholder, in.MaxPlaceholder(), len(inputTerms))
			}
		case DeleteInstruction:
			for _, dt := range in.Terms {
				if !c.coveredByInput(dt, inputTerms) {
					return fmt.Errorf("%w: %s", types.ErrDeleteTermNotInInput, dt)
				}
			}
		case SynonymInstruction:
			if len(in.Terms) == 0 {
				return fmt.Errorf("%w: synonym without terms", types.ErrEmptyInput)
			}
		}
	}
	return nil
}

// coveredByInput reports whether some input term can match what dt deletes.
func (c *Compiler) coveredByInput(dt Term, inputTerms []Term) bool {
	for _, it := range inputTerms {
		if c.opts.Normalize(it.Value) == c.opts.Normalize(dt.Value) && it.Prefix == dt.Prefix {
			return true
		}
		// a prefix input term covers longer literal delete terms
		if it.Prefix && !dt.Prefix && c.opts.TermMatches(it, Term{Value: dt.Value, Fields: it.Fields}) {
			return true
		}
	}
	return false
}

func (c *Compiler) resolveID(def Definition) (string, error) {
	id := def.Input.String() + "#" + strconv.Itoa(c.ordinal)
	if v, ok := def.Properties.Get(types.PropertyID); ok {
		s, isString := v.AsString()
		if !isString {
			return "", fmt.Errorf("%w: got %s", types.ErrIDNotString, v.Kind())
		}
		id = s
	}
	if line, dup := c.ids[id]; dup {
		return "", fmt.Errorf("%w: %q (first defined on line %d)", types.ErrDuplicateID, id, line)
	}
	return id, nil
}

// Len returns the number of rules added so far.
func (c *Compiler) Len() int {
	return len(c.rules)
}

// Build returns the compiled collection. The Compiler must not be used afterwards.
func (c *Compiler) Build() *RulesCollection {
	rc := &RulesCollection{
		opts:     c.opts,
		root:     c.root,
		rules:    c.rules,
		maxDepth: c.depth,
	}
	c.root = nil
	c.rules = nil
	return rc
}

// Compile builds a RulesCollection from defs, failing on the first invalid rule.
func Compile(defs []Definition, opts Options) (*RulesCollection, error) {
	c := NewCompiler(opts)
	for _, def := range defs {
		if err := c.Add(def); err != nil {
			return nil, err
		}
	}
	return c.Build(), nil
}

// RulesCollection is an immutable compiled rule set, safe for concurrent Match calls.
type RulesCollection struct {
	opts     Options
	root     *node
	rules    []*Instructions
	maxDepth int
}

// Len returns the number of compiled rules.
func (rc *RulesCollection) Len() int {
	if rc == nil {
		return 0
	}
	return len(rc.rules)
}

// Options returns the matching policy the collection was compiled with.
func (rc *RulesCollection) Options() Options {
	return rc.opts
}

// MaxDepth returns the longest input length in the collection.
func (rc *RulesCollection) MaxDepth() int {
	return rc.maxDepth
}

// Rules returns the compiled Instructions in definition order.
func (rc *RulesCollection) Rules() []*Instructions {
	if rc == nil {
		return nil
	}
	return append([]*Instructions(nil), rc.rules...)
}

// Lookup returns the Instructions with the given id.
func (rc *RulesCollection) Lookup(id string) (*Instructions, bool) {
	for _, ins := range rc.Rules() {
		if ins.ID == id {
			return ins, true
		}
	}
	return nil, false
}
