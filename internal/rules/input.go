// internal/rules/input.go
package rules

import (
	"fmt"
	"strings"

	"github.com/solatis/quill/internal/types"
)

// Input is the compiled trigger pattern of a rule: ordered terms plus
// boundary anchors. Only the last term may be a prefix term.
type Input struct {
	terms                 []Term
	requiresLeftBoundary  bool
	requiresRightBoundary bool
}

// NewInput validates and creates an Input.
// Rejects empty inputs, wildcard-only terms, prefix terms before the last
// position and prefix terms anchored to the right boundary.
func NewInput(terms []Term, requiresLeftBoundary, requiresRightBoundary bool) (Input, error) {
	if len(terms) == 0 {
		return Input{}, types.ErrEmptyInput
	}
	if len(terms) > types.MaxInputTerms {
		return Input{}, fmt.Errorf("%w: %d > %d", types.ErrTooManyInputTerms, len(terms), types.MaxInputTerms)
	}

	last := len(terms) - 1
	for i, t := range terms {
		if t.Value == "" {
			if t.Prefix {
				return Input{}, types.ErrWildcardOnly
			}
			return Input{}, fmt.Errorf("%w: empty term at position %d", types.ErrEmptyInput, i)
		}
		if t.Prefix && i != last {
			return Input{}, fmt.Errorf("%w: %s", types.ErrWildcardNotLast, t)
		}
	}
	if terms[last].Prefix && requiresRightBoundary {
		return Input{}, types.ErrWildcardRightBoundary
	}

	owned := make([]Term, len(terms))
	copy(owned, terms)
	return Input{
		terms:                 owned,
		requiresLeftBoundary:  requiresLeftBoundary,
		requiresRightBoundary: requiresRightBoundary,
	}, nil
}

// Terms returns a copy of the input terms.
func (in Input) Terms() []Term {
	out := make([]Term, len(in.terms))
	copy(out, in.terms)
	return out
}

// Len returns the number of terms.
func (in Input) Len() int {
	return len(in.terms)
}

// RequiresLeftBoundary reports whether matches must start at position 0.
func (in Input) RequiresLeftBoundary() bool {
	return in.requiresLeftBoundary
}

// RequiresRightBoundary reports whether matches must end at the last position.
func (in Input) RequiresRightBoundary() bool {
	return in.requiresRightBoundary
}

// String renders the input literal, e.g. `"iphone case` for a left-anchored input.
// Used to synthesize ids for rules without an explicit _id.
func (in Input) String() string {
	parts := make([]string, len(in.terms))
	for i, t := range in.terms {
		parts[i] = t.String()
	}
	s := strings.Join(parts, " ")
	if in.requiresLeftBoundary {
		s = `"` + s
	}
	if in.requiresRightBoundary {
		s += `"`
	}
	return s
}
