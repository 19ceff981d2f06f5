// internal/core/api/convert.go
package api

import (
	"context"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/solatis/quill/internal/query"
	"github.com/solatis/quill/internal/rewrite"
	"github.com/solatis/quill/internal/rules"
	"github.com/solatis/quill/internal/types"
	"google.golang.org/protobuf/types/known/structpb"
)

type request struct {
	Query    string
	Strategy string
	Params   map[string][]string
}

func decodeRequest(req *structpb.Struct, maxQueryLength int) (request, error) {
	var r request
	fields := req.GetFields()

	q, ok := fields["query"]
	if !ok {
		return r, fmt.Errorf("%w: query is required", types.ErrInvalidRequest)
	}
	sv, ok := q.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return r, fmt.Errorf("%w: query must be a string", types.ErrInvalidRequest)
	}
	r.Query = sv.StringValue
	if maxQueryLength > 0 && utf8.RuneCountInString(r.Query) > maxQueryLength {
		return r, fmt.Errorf("%w: %d characters, limit %d", types.ErrQueryTooLong, utf8.RuneCountInString(r.Query), maxQueryLength)
	}

	if s, ok := fields["strategy"]; ok {
		r.Strategy = s.GetStringValue()
	}

	if p, ok := fields["params"]; ok {
		ps := p.GetStructValue()
		if ps == nil {
			return r, fmt.Errorf("%w: params must be an object", types.ErrInvalidRequest)
		}
		r.Params = make(map[string][]string, len(ps.GetFields()))
		for name, v := range ps.GetFields() {
			vals, err := paramStrings(v)
			if err != nil {
				return r, fmt.Errorf("%w: param %q: %w", types.ErrInvalidCriteria, name, err)
			}
			r.Params[name] = vals
		}
	}
	return r, nil
}

// paramStrings flattens a scalar or list parameter into its string forms.
func paramStrings(v *structpb.Value) ([]string, error) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return []string{k.StringValue}, nil
	case *structpb.Value_NumberValue:
		return []string{strconv.FormatFloat(k.NumberValue, 'f', -1, 64)}, nil
	case *structpb.Value_BoolValue:
		return []string{strconv.FormatBool(k.BoolValue)}, nil
	case *structpb.Value_ListValue:
		var out []string
		for _, e := range k.ListValue.GetValues() {
			if _, nested := e.GetKind().(*structpb.Value_ListValue); nested {
				return nil, fmt.Errorf("nested lists are not allowed")
			}
			s, err := paramStrings(e)
			if err != nil {
				return nil, err
			}
			out = append(out, s...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value %T", k)
	}
}

func encodeResult(ctx context.Context, res *rewrite.Result) (*structpb.Struct, error) {
	q := res.Query
	decorations := make([]any, 0, len(res.Decorations))
	for _, d := range res.Decorations {
		decorations = append(decorations, map[string]any{"key": d.Key, "value": d.Value.Interface()})
	}
	applied := make([]any, 0, len(res.Applied))
	for _, a := range res.Applied {
		entry := map[string]any{"id": a.ID}
		if a.Log != "" {
			entry["log"] = a.Log
		}
		applied = append(applied, entry)
	}

	return structpb.NewStruct(map[string]any{
		"request_id":  requestID(ctx),
		"query":       q.String(),
		"user_query":  q.UserQuery.String(),
		"raw":         q.IsRaw(),
		"filters":     queryStrings(q.Filters),
		"boost_up":    boostStrings(q.BoostUp),
		"boost_down":  boostStrings(q.BoostDown),
		"decorations": decorations,
		"applied":     applied,
		"matched":     res.Matched,
	})
}

func encodeActions(ctx context.Context, actions []rules.Action) (*structpb.Struct, error) {
	out := make([]any, 0, len(actions))
	for _, a := range actions {
		ids := make([]any, 0, len(a.Instructions))
		var instructions []any
		for _, ins := range a.Instructions {
			ids = append(ids, ins.ID)
			for _, in := range ins.List {
				instructions = append(instructions, in.String())
			}
		}
		matches := make([]any, 0, len(a.Matches))
		for _, m := range a.Matches {
			matches = append(matches, m.Term.String())
		}
		out = append(out, map[string]any{
			"ids":          ids,
			"start":        a.Start,
			"end":          a.End,
			"matches":      matches,
			"instructions": instructions,
		})
	}
	return structpb.NewStruct(map[string]any{
		"request_id": requestID(ctx),
		"actions":    out,
	})
}

func queryStrings(qs []query.Query) []any {
	out := make([]any, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.String())
	}
	return out
}

func boostStrings(bs []query.BoostQuery) []any {
	out := make([]any, 0, len(bs))
	for _, b := range bs {
		out = append(out, map[string]any{"query": b.Query.String(), "factor": b.Factor})
	}
	return out
}
