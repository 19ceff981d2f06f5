// internal/rules/instructions.go
package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/solatis/quill/internal/types"
)

/*
 * Rewrite effects.
 *
 * Instruction is a closed sum type: the unexported marker method keeps
 * implementations inside this package so that the interpreter in
 * internal/rewrite can switch over the five variants exhaustively.
 *
 * Boost queries may reference matched input terms with $1..$n (1-indexed).
 * Placeholders are parsed once when the instruction is constructed; the
 * compiler rejects indexes beyond the owning input's length, so Resolve never
 * sees an out-of-range index at request time.
 */

// InstructionKind tags an Instruction variant.
type InstructionKind int

const (
	KindSynonym InstructionKind = iota + 1
	KindDelete
	KindBoost
	KindFilter
	KindDecorate
)

func (k InstructionKind) String() string {
	switch k {
	case KindSynonym:
		return "SYNONYM"
	case KindDelete:
		return "DELETE"
	case KindBoost:
		return "BOOST"
	case KindFilter:
		return "FILTER"
	case KindDecorate:
		return "DECORATE"
	default:
		return "UNKNOWN"
	}
}

// Instruction is one rewrite effect.
type Instruction interface {
	Kind() InstructionKind
	String() string
	instruction()
}

// SynonymInstruction adds Terms as a generated alternative to the matched span.
// More than one term forms a multi-term synonym.
type SynonymInstruction struct {
	Terms []Term
}

func (SynonymInstruction) Kind() InstructionKind { return KindSynonym }
func (SynonymInstruction) instruction()          {}

func (s SynonymInstruction) String() string {
	return "SYNONYM: " + joinTerms(s.Terms)
}

// DeleteInstruction removes matched terms. Empty Terms deletes every matched term.
type DeleteInstruction struct {
	Terms []Term
}

func (DeleteInstruction) Kind() InstructionKind { return KindDelete }
func (DeleteInstruction) instruction()          {}

func (d DeleteInstruction) String() string {
	if len(d.Terms) == 0 {
		return "DELETE"
	}
	return "DELETE: " + joinTerms(d.Terms)
}

// Deletes reports whether the instruction removes a matched element.
func (d DeleteInstruction) Deletes(opts Options, elem Term) bool {
	if len(d.Terms) == 0 {
		return true
	}
	for _, t := range d.Terms {
		if opts.TermMatches(t, elem) {
			return true
		}
	}
	return false
}

// BoostDirection is UP or DOWN.
type BoostDirection int

const (
	BoostUp BoostDirection = iota
	BoostDown
)

func (d BoostDirection) String() string {
	if d == BoostDown {
		return "DOWN"
	}
	return "UP"
}

// BoostInstruction attaches a scoring-only clause.
type BoostInstruction struct {
	Direction BoostDirection
	Factor    float64
	Query     string
	// Raw marks Query as opaque to the query parser.
	Raw bool

	segments       []querySegment
	maxPlaceholder int
}

// querySegment is either a literal or a 1-based placeholder index.
type querySegment struct {
	literal     string
	placeholder int
}

// NewBoostInstruction parses $n placeholders in query.
// A factor <= 0 and $0 are rejected.
func NewBoostInstruction(dir BoostDirection, factor float64, query string, raw bool) (*BoostInstruction, error) {
	if !(factor > 0) {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidBoostFactor, factor)
	}
	segments, maxIdx, err := parsePlaceholders(query)
	if err != nil {
		return nil, err
	}
	return &BoostInstruction{
		Direction:      dir,
		Factor:         factor,
		Query:          query,
		Raw:            raw,
		segments:       segments,
		maxPlaceholder: maxIdx,
	}, nil
}

func (*BoostInstruction) Kind() InstructionKind { return KindBoost }
func (*BoostInstruction) instruction()          {}

func (b *BoostInstruction) String() string {
	q := b.Query
	if b.Raw {
		q = "* " + q
	}
	return fmt.Sprintf("%s(%s): %s", b.Direction, strconv.FormatFloat(b.Factor, 'f', -1, 64), q)
}

// HasPlaceholders reports whether Query references matched terms.
func (b *BoostInstruction) HasPlaceholders() bool {
	return b.maxPlaceholder > 0
}

// MaxPlaceholder returns the highest $n index in Query, 0 if none.
func (b *BoostInstruction) MaxPlaceholder() int {
	return b.maxPlaceholder
}

// Resolve substitutes placeholders with the values of matched, in order.
// Callers guarantee len(matched) >= MaxPlaceholder().
func (b *BoostInstruction) Resolve(matched []Term) string {
	if b.maxPlaceholder == 0 {
		return b.Query
	}
	var sb strings.Builder
	for _, seg := range b.segments {
		if seg.placeholder == 0 {
			sb.WriteString(seg.literal)
			continue
		}
		sb.WriteString(matched[seg.placeholder-1].Value)
	}
	return sb.String()
}

// parsePlaceholders splits s on $n references. "$" not followed by a digit is literal.
func parsePlaceholders(s string) ([]querySegment, int, error) {
	var (
		segments []querySegment
		lit      strings.Builder
		maxIdx   int
	)
	for i := 0; i < len(s); i++ {
		if s[i] != '$' || i+1 >= len(s) || !isDigit(s[i+1]) {
			lit.WriteByte(s[i])
			continue
		}
		j := i + 1
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		idx, err := strconv.Atoi(s[i+1 : j])
		if err != nil || idx < 1 || idx > types.MaxPlaceholderIndex {
			return nil, 0, fmt.Errorf("%w: %s", types.ErrUnresolvedPlaceholder, s[i:j])
		}
		if lit.Len() > 0 {
			segments = append(segments, querySegment{literal: lit.String()})
			lit.Reset()
		}
		segments = append(segments, querySegment{placeholder: idx})
		maxIdx = max(maxIdx, idx)
		i = j - 1
	}
	if lit.Len() > 0 {
		segments = append(segments, querySegment{literal: lit.String()})
	}
	return segments, maxIdx, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// FilterInstruction attaches Query as a mandatory non-scoring clause.
type FilterInstruction struct {
	Query string
	Raw   bool
}

func (FilterInstruction) Kind() InstructionKind { return KindFilter }
func (FilterInstruction) instruction()          {}

func (f FilterInstruction) String() string {
	if f.Raw {
		return "FILTER: * " + f.Query
	}
	return "FILTER: " + f.Query
}

// DecorateInstruction records (Key, Value) in the decoration log.
// Key is empty for unkeyed decorations.
type DecorateInstruction struct {
	Key   string
	Value Value
}

func (DecorateInstruction) Kind() InstructionKind { return KindDecorate }
func (DecorateInstruction) instruction()          {}

func (d DecorateInstruction) String() string {
	if d.Key == "" {
		return "DECORATE: " + d.Value.String()
	}
	return fmt.Sprintf("DECORATE(%s): %s", d.Key, d.Value.String())
}

// Instructions is the compiled right-hand side of one rule.
// Immutable once returned by the compiler.
type Instructions struct {
	ID         string
	List       []Instruction
	Properties *Properties

	line    int
	ordinal int
	bag     map[string]any
}

// Ordinal returns the 0-based position of the rule in its rule set.
func (ins *Instructions) Ordinal() int { return ins.ordinal }

// Line returns the source line the rule was defined on, 0 if unknown.
func (ins *Instructions) Line() int { return ins.line }

// Property returns the value of a property.
func (ins *Instructions) Property(key string) (Value, bool) {
	return ins.Properties.Get(key)
}

// Log returns the _log property rendered as text, or "" if absent.
func (ins *Instructions) Log() string {
	v, ok := ins.Properties.Get(types.PropertyLog)
	if !ok {
		return ""
	}
	return v.Text()
}

// Bag returns the properties as plain Go values for path resolution.
// The map is shared and must not be modified.
func (ins *Instructions) Bag() map[string]any {
	return ins.bag
}

// Definition is one authored rule before compilation.
type Definition struct {
	Line         int
	Input        Input
	Instructions []Instruction
	Properties   *Properties
}

func joinTerms(terms []Term) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, " ")
}
