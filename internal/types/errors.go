package types

import "errors"

// Sentinel errors for Quill operations.
var (
	// ErrEmptyInput indicates a rule input without any terms.
	ErrEmptyInput = errors.New("rule input has no terms")

	// ErrWildcardOnly indicates a term consisting of the wildcard marker alone.
	ErrWildcardOnly = errors.New("wildcard term needs at least one literal character")

	// ErrWildcardNotLast indicates a prefix term that is not the final input term.
	ErrWildcardNotLast = errors.New("* is only allowed on the last input term")

	// ErrWildcardRightBoundary indicates a prefix term anchored to the right boundary.
	ErrWildcardRightBoundary = errors.New("* cannot be combined with right boundary")

	// ErrTooManyInputTerms indicates an input exceeds MaxInputTerms.
	ErrTooManyInputTerms = errors.New("rule input has too many terms")

	// ErrUnbalancedQuote indicates a boundary quote in the middle of an input.
	ErrUnbalancedQuote = errors.New("unbalanced quote in rule input")

	// ErrIllegalEscape indicates an unknown backslash escape sequence.
	ErrIllegalEscape = errors.New("illegal escape sequence")

	// ErrDuplicateID indicates two rules declare the same _id.
	ErrDuplicateID = errors.New("duplicate rule id")

	// ErrIDNotString indicates an _id property that is not a string.
	ErrIDNotString = errors.New("rule id must be a string")

	// ErrUnresolvedPlaceholder indicates a $n placeholder without a matching input term.
	ErrUnresolvedPlaceholder = errors.New("placeholder does not refer to an input term")

	// ErrInvalidBoostFactor indicates a boost factor that is not a positive number.
	ErrInvalidBoostFactor = errors.New("boost factor must be a positive number")

	// ErrDeleteTermNotInInput indicates a DELETE term that the rule input never matches.
	ErrDeleteTermNotInInput = errors.New("delete term is not part of the rule input")

	// ErrEmptyInstructions indicates a rule without instructions.
	ErrEmptyInstructions = errors.New("rule has no instructions")

	// ErrUnknownStrategy indicates a selection strategy name that is not registered.
	ErrUnknownStrategy = errors.New("unknown selection strategy")

	// ErrInvalidCriteria indicates malformed sort, limit or filter parameters.
	ErrInvalidCriteria = errors.New("invalid selection criteria")

	// ErrInvalidExpression indicates a filter expression that cannot be parsed.
	ErrInvalidExpression = errors.New("invalid filter expression")

	// ErrPathTooDeep indicates a property path exceeds MaxPathDepth.
	ErrPathTooDeep = errors.New("property path exceeds maximum depth")

	// ErrTooManyWildcards indicates a property path exceeds MaxNestedWildcards.
	ErrTooManyWildcards = errors.New("property path has too many wildcards")

	// ErrTooManyInValues indicates an IN operator exceeds MaxInOperatorValues.
	ErrTooManyInValues = errors.New("IN operator has too many values")

	// ErrCoercionFailed indicates type coercion failed.
	ErrCoercionFailed = errors.New("type coercion failed")

	// ErrFieldNotFound indicates a property path could not be resolved.
	ErrFieldNotFound = errors.New("property not found")

	// ErrUnexpectedNode indicates a query tree shape the interpreter cannot edit.
	// This is an integration defect, never a user error.
	ErrUnexpectedNode = errors.New("unexpected query node")

	// ErrQueryTooLong indicates a raw query string exceeds the configured limit.
	ErrQueryTooLong = errors.New("query exceeds maximum length")

	// ErrNoRules indicates the engine was asked to rewrite before rules were loaded.
	ErrNoRules = errors.New("no rules loaded")

	// ErrInvalidRequest indicates a malformed service request message.
	ErrInvalidRequest = errors.New("invalid request")
)
