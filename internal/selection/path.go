// internal/selection/path.go
package selection

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/solatis/quill/internal/types"
)

// PathSegment is one step of a property path: a map key, a list index or a
// wildcard over either.
type PathSegment struct {
	Key      string
	Index    int
	IsIndex  bool
	Wildcard bool
}

func (s PathSegment) String() string {
	switch {
	case s.Wildcard:
		return "[*]"
	case s.IsIndex:
		return "[" + strconv.Itoa(s.Index) + "]"
	default:
		return s.Key
	}
}

// FormatPath renders segments back to dotted notation.
func FormatPath(path []PathSegment) string {
	var sb strings.Builder
	for i, seg := range path {
		if i > 0 && !seg.IsIndex && !seg.Wildcard {
			sb.WriteByte('.')
		}
		sb.WriteString(seg.String())
	}
	return sb.String()
}

// ParsePath parses `a.b[0].c`, `a[*]` and `a.*` notation.
// Enforces MaxPathDepth and MaxNestedWildcards.
func ParsePath(s string) ([]PathSegment, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty path", types.ErrInvalidExpression)
	}
	var path []PathSegment
	wildcards := 0
	i := 0
	for i < len(s) {
		switch c := s[i]; {
		case c == '.':
			if i == 0 || i+1 >= len(s) || s[i+1] == '.' {
				return nil, fmt.Errorf("%w: malformed path %q", types.ErrInvalidExpression, s)
			}
			i++
		case c == '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("%w: unclosed [ in path %q", types.ErrInvalidExpression, s)
			}
			inner := s[i+1 : i+end]
			if inner == "*" {
				path = append(path, PathSegment{Wildcard: true})
				wildcards++
			} else {
				idx, err := strconv.Atoi(inner)
				if err != nil || idx < 0 {
					return nil, fmt.Errorf("%w: bad index %q in path %q", types.ErrInvalidExpression, inner, s)
				}
				path = append(path, PathSegment{Index: idx, IsIndex: true})
			}
			i += end + 1
		default:
			j := i
			for j < len(s) && s[j] != '.' && s[j] != '[' {
				j++
			}
			key := s[i:j]
			if key == "*" {
				path = append(path, PathSegment{Wildcard: true})
				wildcards++
			} else {
				path = append(path, PathSegment{Key: key})
			}
			i = j
		}
	}
	if len(path) > types.MaxPathDepth {
		return nil, types.ErrPathTooDeep
	}
	if wildcards > types.MaxNestedWildcards {
		return nil, types.ErrTooManyWildcards
	}
	return path, nil
}
