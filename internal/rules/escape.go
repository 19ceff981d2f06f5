// internal/rules/escape.go
package rules

import (
	"fmt"
	"strings"

	"github.com/solatis/quill/internal/types"
)

// escapable lists the characters that carry syntax in rule inputs and may be
// written literally when preceded by a backslash.
const escapable = `*"#\`

// Unescape resolves \*, \", \# and \\ to their literal characters.
// Any other escape, including a trailing backslash, is rejected.
func Unescape(s string) (string, error) {
	if strings.IndexByte(s, '\\') < 0 {
		return s, nil
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		if i+1 >= len(s) {
			return "", fmt.Errorf("%w: trailing backslash in %q", types.ErrIllegalEscape, s)
		}
		next := s[i+1]
		if strings.IndexByte(escapable, next) < 0 {
			return "", fmt.Errorf("%w: \\%c in %q", types.ErrIllegalEscape, next, s)
		}
		sb.WriteByte(next)
		i++
	}
	return sb.String(), nil
}

// Escape is the inverse of Unescape.
func Escape(s string) string {
	if !strings.ContainsAny(s, escapable) {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(escapable, s[i]) >= 0 {
			sb.WriteByte('\\')
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}
