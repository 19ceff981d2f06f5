package selection

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/quill/internal/types"
)

func TestResolve_Normal(t *testing.T) {
	tests := []struct {
		name string
		path []PathSegment
		data any
		want any
	}{
		{
			name: "nested object traversal",
			path: []PathSegment{{Key: "brand"}, {Key: "name"}},
			data: map[string]any{"brand": map[string]any{"name": "acme"}},
			want: "acme",
		},
		{
			name: "array index access",
			path: []PathSegment{{Key: "tags"}, {Index: 1, IsIndex: true}},
			data: map[string]any{"tags": []any{"a", "b"}},
			want: "b",
		},
		{
			name: "wildcard on object sorted keys",
			path: []PathSegment{{Wildcard: true}, {Key: "rank"}},
			data: map[string]any{
				"z": map[string]any{"rank": float64(1)},
				"a": map[string]any{"rank": float64(2)},
			},
			want: float64(2),
		},
		{
			name: "nested wildcards",
			path: []PathSegment{{Key: "groups"}, {Wildcard: true}, {Key: "items"}, {Wildcard: true}, {Key: "w"}},
			data: map[string]any{"groups": []any{
				map[string]any{"items": []any{map[string]any{"x": 1}}},
				map[string]any{"items": []any{map[string]any{"w": "found"}}},
			}},
			want: "found",
		},
		{
			name: "empty path returns root",
			path: nil,
			data: "scalar",
			want: "scalar",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Resolve(tt.path, tt.data)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if !res.Found || res.Value != tt.want {
				t.Errorf("Resolve() = %+v, want %v", res, tt.want)
			}
		})
	}
}

func TestResolve_EdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		path    []PathSegment
		data    any
		wantErr error
	}{
		{"empty object", []PathSegment{{Key: "missing"}}, map[string]any{}, types.ErrFieldNotFound},
		{"empty array", []PathSegment{{Index: 0, IsIndex: true}}, []any{}, types.ErrFieldNotFound},
		{"null intermediate", []PathSegment{{Key: "a"}, {Key: "b"}}, map[string]any{"a": nil}, types.ErrFieldNotFound},
		{"scalar with path remaining", []PathSegment{{Key: "a"}, {Key: "b"}}, map[string]any{"a": "x"}, types.ErrFieldNotFound},
		{"negative index", []PathSegment{{Index: -1, IsIndex: true}}, []any{1.0}, types.ErrFieldNotFound},
		{"key on array", []PathSegment{{Key: "a"}}, []any{1.0}, types.ErrFieldNotFound},
		{"index on object", []PathSegment{{Index: 0, IsIndex: true}}, map[string]any{"0": "v"}, types.ErrFieldNotFound},
		{
			"path too deep",
			make([]PathSegment, types.MaxPathDepth+1),
			map[string]any{},
			types.ErrPathTooDeep,
		},
		{
			"too many wildcards",
			[]PathSegment{{Wildcard: true}, {Wildcard: true}, {Wildcard: true}},
			[]any{},
			types.ErrTooManyWildcards,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Resolve(tt.path, tt.data); !errors.Is(err, tt.wantErr) {
				t.Errorf("Resolve() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAny(t *testing.T) {
	data := map[string]any{"tags": []any{"red", "blue"}}
	path := []PathSegment{{Key: "tags"}, {Wildcard: true}}
	if !Any(path, data, func(v any) bool { return v == "blue" }) {
		t.Errorf("Any(blue) = false, want true")
	}
	if Any(path, data, func(v any) bool { return v == "green" }) {
		t.Errorf("Any(green) = true, want false")
	}
	if Any([]PathSegment{{Key: "tags"}, {Key: "x"}}, data, func(any) bool { return true }) {
		t.Errorf("Any(key on array) = true, want false")
	}
}

func TestResolve_PropertyNeverCrashes(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	data := map[string]any{"key": []any{map[string]any{"key": "value"}, nil, 3.0}}

	properties.Property("resolution never crashes regardless of path", prop.ForAll(
		func(depth int, wildcards int, useArray bool) (ok bool) {
			path := make([]PathSegment, depth)
			used := 0
			for i := range depth {
				switch {
				case used < wildcards && i%2 == 0:
					path[i] = PathSegment{Wildcard: true}
					used++
				case useArray && i%3 == 0:
					path[i] = PathSegment{Index: i - 1, IsIndex: true}
				default:
					path[i] = PathSegment{Key: "key"}
				}
			}

			defer func() {
				if r := recover(); r != nil {
					t.Errorf("Resolve() panicked: %v", r)
					ok = false
				}
			}()

			_, _ = Resolve(path, data)
			Any(path, data, func(any) bool { return false })
			return true
		},
		gen.IntRange(0, 20),
		gen.IntRange(0, 5),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestResolve_PropertyWildcardDeterminism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("wildcard resolution picks the smallest matching key", prop.ForAll(
		func(keys []string) bool {
			data := make(map[string]any, len(keys))
			smallest := ""
			for _, k := range keys {
				data[k] = map[string]any{"v": k}
				if smallest == "" || k < smallest {
					smallest = k
				}
			}
			res, err := Resolve([]PathSegment{{Wildcard: true}, {Key: "v"}}, data)
			if len(data) == 0 {
				return errors.Is(err, types.ErrFieldNotFound)
			}
			return err == nil && res.Value == smallest && FormatPath(res.ResolvedPath) != ""
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t)
}
