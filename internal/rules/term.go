// internal/rules/term.go
package rules

import (
	"sort"
	"strings"
)

/*
 * Term model shared by rule inputs, instructions and query sequences.
 *
 * A Term is an exact or prefix value, optionally scoped to a set of fields.
 * The same type describes both sides of a match: rule terms compiled into the
 * trie, and the elements of the PositionSequence built from a user query.
 *
 * Field policy (Options.FieldPolicy):
 *   - FieldPolicyAnyField: an unscoped rule term matches any element, scoped
 *     or not. A scoped rule term matches when its field set intersects the
 *     element's field set.
 *   - FieldPolicyUnscopedOnly: an unscoped rule term only matches unscoped
 *     elements. Scoped rule terms behave as above.
 *
 * Case policy (Options.IgnoreCase) is applied to rule terms at compile time
 * and to element values at match time, never to field names.
 */

// Term is an immutable matchable token.
// Fields is sorted and deduplicated; nil means unscoped.
type Term struct {
	Value  string
	Fields []string
	Prefix bool
}

// NewTerm creates an exact term, optionally scoped to fields.
func NewTerm(value string, fields ...string) Term {
	return Term{Value: value, Fields: normalizeFields(fields)}
}

// NewPrefixTerm creates a prefix (wildcard) term, optionally scoped to fields.
func NewPrefixTerm(value string, fields ...string) Term {
	return Term{Value: value, Fields: normalizeFields(fields), Prefix: true}
}

// HasFields reports whether the term is scoped to at least one field.
func (t Term) HasFields() bool {
	return len(t.Fields) > 0
}

// Equal reports whether two terms have the same class, value and field set.
func (t Term) Equal(o Term) bool {
	return t.Prefix == o.Prefix && t.Value == o.Value && sameFields(t.Fields, o.Fields)
}

// String renders the term in rule-file notation, escaping reserved characters.
func (t Term) String() string {
	var sb strings.Builder
	switch len(t.Fields) {
	case 0:
	case 1:
		sb.WriteString(t.Fields[0])
		sb.WriteByte(':')
	default:
		sb.WriteByte('{')
		sb.WriteString(strings.Join(t.Fields, ","))
		sb.WriteString("}:")
	}
	sb.WriteString(Escape(t.Value))
	if t.Prefix {
		sb.WriteByte('*')
	}
	return sb.String()
}

// FieldPolicy controls how unscoped rule terms treat scoped query elements.
type FieldPolicy int

const (
	FieldPolicyAnyField FieldPolicy = iota
	FieldPolicyUnscopedOnly
)

// ParseFieldPolicy converts a configuration value to FieldPolicy.
func ParseFieldPolicy(s string) (FieldPolicy, bool) {
	switch s {
	case "", "any_field":
		return FieldPolicyAnyField, true
	case "unscoped_only":
		return FieldPolicyUnscopedOnly, true
	default:
		return FieldPolicyAnyField, false
	}
}

// Options is the compile-time matching policy of a RulesCollection.
type Options struct {
	IgnoreCase  bool
	FieldPolicy FieldPolicy
}

// DefaultOptions returns case-insensitive matching with FieldPolicyAnyField.
func DefaultOptions() Options {
	return Options{IgnoreCase: true, FieldPolicy: FieldPolicyAnyField}
}

// Normalize applies the case policy to a term value.
func (o Options) Normalize(value string) string {
	if o.IgnoreCase {
		return strings.ToLower(value)
	}
	return value
}

// FieldsMatch applies the field policy to a rule term's fields and an element's fields.
func (o Options) FieldsMatch(ruleFields, elemFields []string) bool {
	if len(ruleFields) == 0 {
		return o.FieldPolicy == FieldPolicyAnyField || len(elemFields) == 0
	}
	for _, rf := range ruleFields {
		for _, ef := range elemFields {
			if rf == ef {
				return true
			}
		}
	}
	return false
}

// TermMatches reports whether rule term t accepts query element elem.
// Prefix terms match any element value starting with the literal prefix.
func (o Options) TermMatches(t, elem Term) bool {
	if !o.FieldsMatch(t.Fields, elem.Fields) {
		return false
	}
	want := o.Normalize(t.Value)
	got := o.Normalize(elem.Value)
	if t.Prefix {
		return strings.HasPrefix(got, want)
	}
	return got == want
}

// normalizeFields sorts and deduplicates field names, dropping empty ones.
func normalizeFields(fields []string) []string {
	if len(fields) == 0 {
		return nil
	}
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	dedup := out[:1]
	for _, f := range out[1:] {
		if f != dedup[len(dedup)-1] {
			dedup = append(dedup, f)
		}
	}
	return dedup
}

func sameFields(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
