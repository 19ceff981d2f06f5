// internal/selection/fieldpath.go
package selection

import (
	"sort"

	"github.com/solatis/quill/internal/types"
)

/*
 * Property path resolution over an Instructions property bag.
 *
 * The bag is the plain-Go form of rules.Properties (map[string]any, []any,
 * float64, string, bool, nil). Wildcards have ANY semantics: the first
 * element, in sorted key order for maps, for which the rest of the path
 * resolves wins. Limits are re-checked here because paths may be built
 * programmatically without ParsePath.
 */

// ResolveResult holds the resolved value and the concrete path taken.
type ResolveResult struct {
	Value        any
	ResolvedPath []PathSegment
	Found        bool
}

// Resolve walks data along path.
// Returns ErrFieldNotFound if no value exists at path.
func Resolve(path []PathSegment, data any) (ResolveResult, error) {
	if len(path) > types.MaxPathDepth {
		return ResolveResult{}, types.ErrPathTooDeep
	}
	wildcards := 0
	for _, seg := range path {
		if seg.Wildcard {
			wildcards++
		}
	}
	if wildcards > types.MaxNestedWildcards {
		return ResolveResult{}, types.ErrTooManyWildcards
	}
	return resolve(path, data, nil)
}

func resolve(path []PathSegment, current any, taken []PathSegment) (ResolveResult, error) {
	if len(path) == 0 {
		return ResolveResult{Value: current, ResolvedPath: taken, Found: true}, nil
	}
	seg, rest := path[0], path[1:]

	switch v := current.(type) {
	case map[string]any:
		if seg.Wildcard {
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				next := append(taken[:len(taken):len(taken)], PathSegment{Key: k})
				if res, err := resolve(rest, v[k], next); err == nil && res.Found {
					return res, nil
				}
			}
			return ResolveResult{}, types.ErrFieldNotFound
		}
		if seg.IsIndex {
			return ResolveResult{}, types.ErrFieldNotFound
		}
		val, ok := v[seg.Key]
		if !ok {
			return ResolveResult{}, types.ErrFieldNotFound
		}
		return resolve(rest, val, append(taken[:len(taken):len(taken)], seg))

	case []any:
		if seg.Wildcard {
			for i, elem := range v {
				next := append(taken[:len(taken):len(taken)], PathSegment{Index: i, IsIndex: true})
				if res, err := resolve(rest, elem, next); err == nil && res.Found {
					return res, nil
				}
			}
			return ResolveResult{}, types.ErrFieldNotFound
		}
		if !seg.IsIndex || seg.Index < 0 || seg.Index >= len(v) {
			return ResolveResult{}, types.ErrFieldNotFound
		}
		return resolve(rest, v[seg.Index], append(taken[:len(taken):len(taken)], seg))

	default:
		// scalar or null with path remaining
		return ResolveResult{}, types.ErrFieldNotFound
	}
}

// Any reports whether fn holds for some value reachable through path.
// Wildcards expand to every element; keys are visited in sorted order and
// the walk stops at the first value satisfying fn.
func Any(path []PathSegment, data any, fn func(any) bool) bool {
	if len(path) == 0 {
		return fn(data)
	}
	seg, rest := path[0], path[1:]
	switch v := data.(type) {
	case map[string]any:
		if seg.Wildcard {
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if Any(rest, v[k], fn) {
					return true
				}
			}
			return false
		}
		val, ok := v[seg.Key]
		return ok && !seg.IsIndex && Any(rest, val, fn)
	case []any:
		if seg.Wildcard {
			for _, elem := range v {
				if Any(rest, elem, fn) {
					return true
				}
			}
			return false
		}
		if !seg.IsIndex || seg.Index < 0 || seg.Index >= len(v) {
			return false
		}
		return Any(rest, v[seg.Index], fn)
	default:
		return false
	}
}
