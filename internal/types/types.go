// Package types provides identifiers, limits and sentinel errors shared across
// Quill components.
//
// The rewriting model itself (terms, rule inputs, instructions) lives in
// internal/rules; this package stays dependency-light so that the CLI, the
// rule-file parser and the service shell can share error values without
// importing the matcher.
package types

// RuleSetID identifies one immutable, stored version of a rule set.
// UUIDv7 time-ordering makes "latest version" a simple ORDER BY.
type RuleSetID string

// RequestID correlates log lines of one rewrite request.
type RequestID string

// Resource limits enforced at rule load time and request time.
const (
	// MaxInputTerms bounds the depth of the trie (D in the O(Q*D) bound).
	MaxInputTerms = 32

	// MaxRuleSetSize caps the number of rules in one rule set.
	MaxRuleSetSize = 500_000

	// MaxPlaceholderIndex caps $n placeholder indexes.
	MaxPlaceholderIndex = MaxInputTerms

	// MaxPathDepth prevents stack overflow during recursive property path resolution.
	MaxPathDepth = 16

	// MaxNestedWildcards limits wildcard expansion in property paths.
	MaxNestedWildcards = 2

	// MaxInOperatorValues limits IN operator list size in filter expressions.
	MaxInOperatorValues = 64

	// MaxFilterConditions limits the conditions of a single filter expression.
	MaxFilterConditions = 64
)

// Reserved property keys.
const (
	// PropertyID holds the explicit rule id; string only, unique per rule set.
	PropertyID = "_id"

	// PropertyLog holds a message recorded in the rewrite log when the rule fires.
	PropertyLog = "_log"
)
