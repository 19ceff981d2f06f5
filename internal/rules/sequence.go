// internal/rules/sequence.go
package rules

// PositionSequence is an ordered list of positions, each holding one or more
// co-occurring elements. Positions are contiguous and 0-indexed.
// Built fresh per query; treat as read-only once handed to the matcher.
type PositionSequence[T any] struct {
	positions [][]T
}

// NewPositionSequence creates an empty sequence with room for n positions.
func NewPositionSequence[T any](n int) *PositionSequence[T] {
	return &PositionSequence[T]{positions: make([][]T, 0, n)}
}

// SequenceOf builds a sequence with one element per position.
func SequenceOf[T any](elems ...T) *PositionSequence[T] {
	seq := NewPositionSequence[T](len(elems))
	for _, e := range elems {
		seq.Add(e)
	}
	return seq
}

// Add appends a new position holding the given elements.
// A position without elements is allowed; it matches nothing.
func (s *PositionSequence[T]) Add(elems ...T) {
	s.positions = append(s.positions, append([]T(nil), elems...))
}

// AddToLast appends an element to the last position, creating one if empty.
func (s *PositionSequence[T]) AddToLast(elem T) {
	if len(s.positions) == 0 {
		s.Add(elem)
		return
	}
	last := len(s.positions) - 1
	s.positions[last] = append(s.positions[last], elem)
}

// Len returns the number of positions.
func (s *PositionSequence[T]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.positions)
}

// At returns the elements of position i. The slice must not be modified.
func (s *PositionSequence[T]) At(i int) []T {
	return s.positions[i]
}
