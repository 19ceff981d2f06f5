// internal/rules/match.go
package rules

import (
	"iter"
	"unicode/utf8"
)

/*
 * Trie matching over a PositionSequence.
 *
 * For every start position i the matcher walks the trie depth-first against
 * sequence[i], sequence[i+1], ... Every element at a position is tried
 * against every edge it satisfies, so co-occurring elements open independent
 * paths. Each node reached after consuming at least one term emits its
 * terminals whose boundary requirements hold:
 *   - left:  i == 0
 *   - right: end == sequence.Len()
 *
 * All matches are emitted in discovery order: by start position, then by
 * depth-first order (shorter spans before the longer spans extending them).
 * Selection decides what survives.
 *
 * Prefix edges are looked up by every rune-boundary prefix of the element's
 * normalized value, so the cost per element is bounded by its length rather
 * than by the number of prefix rules.
 */

// TermMatch is one query element consumed by a match.
type TermMatch struct {
	Term Term
	// Position is the sequence position of the element.
	Position int
	// Index is the element's index within its position.
	Index int
}

// Action is one positioned match of a rule input.
// Instructions holds every rule sharing that input and boundaries.
type Action struct {
	Instructions []*Instructions
	Matches      []TermMatch
	Start        int
	End          int
}

// MatchedTerms returns the consumed elements, one per position.
func (a Action) MatchedTerms() []Term {
	out := make([]Term, len(a.Matches))
	for i, m := range a.Matches {
		out[i] = m.Term
	}
	return out
}

// WithInstructions returns a copy of a carrying only ins.
func (a Action) WithInstructions(ins ...*Instructions) Action {
	a.Instructions = ins
	return a
}

// Match yields every Action for seq. Matching never fails; a nil collection
// or an unmatched sequence yields nothing.
func (rc *RulesCollection) Match(seq *PositionSequence[Term]) iter.Seq[Action] {
	return func(yield func(Action) bool) {
		if rc == nil || rc.root == nil {
			return
		}
		n := seq.Len()
		m := matcher{rc: rc, seq: seq, n: n, yield: yield}
		for start := 0; start < n; start++ {
			if !m.walk(rc.root, start, start, nil) {
				return
			}
		}
	}
}

// Actions collects Match into a slice.
func (rc *RulesCollection) Actions(seq *PositionSequence[Term]) []Action {
	var out []Action
	for a := range rc.Match(seq) {
		out = append(out, a)
	}
	return out
}

type matcher struct {
	rc    *RulesCollection
	seq   *PositionSequence[Term]
	n     int
	yield func(Action) bool
}

// walk emits the terminals of nd, then descends over position pos.
// Returns false once the consumer stops iteration.
func (m *matcher) walk(nd *node, start, pos int, matches []TermMatch) bool {
	if len(matches) > 0 {
		for _, t := range nd.terminals {
			if t.left && start != 0 {
				continue
			}
			if t.right && pos != m.n {
				continue
			}
			a := Action{
				Instructions: t.instructions,
				Matches:      matches,
				Start:        start,
				End:          pos,
			}
			if !m.yield(a) {
				return false
			}
		}
	}
	if pos >= m.n {
		return true
	}

	opts := m.rc.opts
	for idx, elem := range m.seq.At(pos) {
		value := opts.Normalize(elem.Value)
		tm := TermMatch{Term: elem, Position: pos, Index: idx}

		for _, e := range nd.exact[value] {
			if !opts.FieldsMatch(e.term.Fields, elem.Fields) {
				continue
			}
			if !m.walk(e.next, start, pos+1, extend(matches, tm)) {
				return false
			}
		}

		if len(nd.prefix) == 0 {
			continue
		}
		for end := 1; end <= len(value); end++ {
			if end < len(value) && !utf8.RuneStart(value[end]) {
				continue
			}
			for _, e := range nd.prefix[value[:end]] {
				if !opts.FieldsMatch(e.term.Fields, elem.Fields) {
					continue
				}
				if !m.walk(e.next, start, pos+1, extend(matches, tm)) {
					return false
				}
			}
		}
	}
	return true
}

// extend appends without aliasing the backing array of emitted actions.
func extend(matches []TermMatch, tm TermMatch) []TermMatch {
	return append(matches[:len(matches):len(matches)], tm)
}
