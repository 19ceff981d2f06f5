package api

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/quill/internal/core/config"
	"github.com/solatis/quill/internal/core/db"
	"github.com/solatis/quill/internal/metrics"
	"github.com/solatis/quill/internal/pkg/logger"
	"github.com/solatis/quill/internal/rewrite"
	"github.com/solatis/quill/internal/rulefile"
	"github.com/solatis/quill/internal/rules"
	"github.com/solatis/quill/internal/selection"
)

const laptopRules = `
laptop =>
  SYNONYM: notebook
  DECORATE(banner): {"id": 7}
  @_id: "laptop-syn"
  @priority: 1

laptop =>
  UP(2): brand:acme
  @_id: "laptop-boost"
  @_log: boost acme laptops
  @priority: 5
`

type fakeReloader struct {
	n   int
	err error
}

func (f fakeReloader) Reload(context.Context) (int, error) { return f.n, f.err }

func newService(t *testing.T, ruleText string, reloader Reloader) (*RewriteService, *prometheus.Registry) {
	t.Helper()
	engine := rules.NewEngine(nil)
	if ruleText != "" {
		rc, err := rulefile.Compile(strings.NewReader(ruleText), rules.DefaultOptions())
		require.NoError(t, err)
		engine.Swap(rc)
	}
	reg := prometheus.NewRegistry()
	cfg := config.DefaultConfig().Server
	cfg.MaxQueryLength = 40
	svc, err := NewRewriteService(cfg, rewrite.New(engine, nil), selection.NewRegistry(), reloader, metrics.New(reg), logger.Nop())
	require.NoError(t, err)
	return svc, reg
}

func rewriteRequest(t *testing.T, q, strategy string, params map[string][]string) *structpb.Struct {
	t.Helper()
	req, err := NewRewriteRequest(q, strategy, params)
	require.NoError(t, err)
	return req
}

func requireCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, want, status.Code(err), "err = %v", err)
}

func TestRewrite_DefaultStrategy(t *testing.T) {
	svc, reg := newService(t, laptopRules, nil)

	resp, err := svc.Rewrite(context.Background(), rewriteRequest(t, "cheap laptop", "", nil))
	require.NoError(t, err)
	m := resp.AsMap()

	require.Equal(t, "cheap (laptop | notebook)", m["user_query"])
	require.Equal(t, false, m["raw"])
	require.Equal(t, float64(1), m["matched"])
	require.Equal(t, []any{map[string]any{"query": "brand:acme", "factor": float64(2)}}, m["boost_up"])
	require.Equal(t, []any{map[string]any{"key": "banner", "value": map[string]any{"id": float64(7)}}}, m["decorations"])
	require.Equal(t, []any{
		map[string]any{"id": "laptop-syn"},
		map[string]any{"id": "laptop-boost", "log": "boost acme laptops"},
	}, m["applied"])

	require.Equal(t, float64(1), counterValue(t, reg, "quill_rewrites_total", "ok"))
}

func TestRewrite_CriteriaStrategy(t *testing.T) {
	svc, _ := newService(t, laptopRules, nil)

	req := rewriteRequest(t, "laptop", selection.CriteriaStrategyName, map[string][]string{
		selection.ParamSort:  {"priority:desc"},
		selection.ParamLimit: {"1"},
	})
	resp, err := svc.Rewrite(context.Background(), req)
	require.NoError(t, err)
	m := resp.AsMap()
	require.Equal(t, "laptop", m["user_query"])
	require.Equal(t, []any{map[string]any{"id": "laptop-boost", "log": "boost acme laptops"}}, m["applied"])
}

func TestRewrite_NumericParams(t *testing.T) {
	svc, _ := newService(t, laptopRules, nil)

	req, err := structpb.NewStruct(map[string]any{
		"query":    "laptop",
		"strategy": "criteria",
		"params":   map[string]any{"sort": "priority:asc", "limit": 1, "levels": false},
	})
	require.NoError(t, err)
	resp, err := svc.Rewrite(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, []any{map[string]any{"id": "laptop-syn"}}, resp.AsMap()["applied"])
}

func TestRewrite_RawQueryPassesThrough(t *testing.T) {
	svc, reg := newService(t, laptopRules, nil)

	resp, err := svc.Rewrite(context.Background(), rewriteRequest(t, "* laptop AND x", "", nil))
	require.NoError(t, err)
	m := resp.AsMap()
	require.Equal(t, true, m["raw"])
	require.Equal(t, "laptop AND x", m["user_query"])
	require.Empty(t, m["applied"])
	require.Equal(t, float64(1), counterValue(t, reg, "quill_rewrites_total", "raw"))
}

func TestRewrite_Errors(t *testing.T) {
	svc, _ := newService(t, laptopRules, nil)
	ctx := context.Background()

	_, err := svc.Rewrite(ctx, &structpb.Struct{})
	requireCode(t, err, codes.InvalidArgument)

	_, err = svc.Rewrite(ctx, rewriteRequest(t, strings.Repeat("x", 41), "", nil))
	requireCode(t, err, codes.InvalidArgument)

	_, err = svc.Rewrite(ctx, rewriteRequest(t, "laptop", "nope", nil))
	requireCode(t, err, codes.InvalidArgument)

	_, err = svc.Rewrite(ctx, rewriteRequest(t, "laptop", "", map[string][]string{"sort": {"priority"}}))
	requireCode(t, err, codes.InvalidArgument)

	_, err = svc.Rewrite(ctx, rewriteRequest(t, "laptop", "criteria", map[string][]string{"filter": {"priority >>> 1"}}))
	requireCode(t, err, codes.InvalidArgument)

	expired, cancel := context.WithDeadline(ctx, time.Now().Add(-time.Second))
	defer cancel()
	_, err = svc.Rewrite(expired, rewriteRequest(t, "laptop", "", nil))
	requireCode(t, err, codes.DeadlineExceeded)

	empty, _ := newService(t, "", nil)
	_, err = empty.Rewrite(ctx, rewriteRequest(t, "laptop", "", nil))
	requireCode(t, err, codes.FailedPrecondition)
}

func TestActions(t *testing.T) {
	svc, _ := newService(t, laptopRules, nil)

	resp, err := svc.Actions(context.Background(), rewriteRequest(t, "cheap laptop", "", nil))
	require.NoError(t, err)
	actions := resp.AsMap()["actions"].([]any)
	require.Len(t, actions, 1)
	a := actions[0].(map[string]any)
	require.Equal(t, []any{"laptop-syn", "laptop-boost"}, a["ids"])
	require.Equal(t, float64(1), a["start"])
	require.Equal(t, float64(2), a["end"])
	require.Equal(t, []any{"laptop"}, a["matches"])
	require.Len(t, a["instructions"], 3)
}

func TestActions_RawQueryMatchesNothing(t *testing.T) {
	svc, _ := newService(t, laptopRules, nil)

	resp, err := svc.Actions(context.Background(), rewriteRequest(t, "* laptop", "", nil))
	require.NoError(t, err)
	require.Empty(t, resp.AsMap()["actions"])
}

func TestReloadRules(t *testing.T) {
	ctx := context.Background()

	svc, _ := newService(t, laptopRules, fakeReloader{n: 4})
	resp, err := svc.ReloadRules(ctx, &structpb.Struct{})
	require.NoError(t, err)
	require.Equal(t, float64(4), resp.AsMap()["rules"])

	tests := []struct {
		name     string
		reloader Reloader
		code     codes.Code
	}{
		{"not configured", nil, codes.FailedPrecondition},
		{"broken rules", fakeReloader{err: &rules.RuleError{Line: 3, Input: "x", Err: errors.New("bad")}}, codes.FailedPrecondition},
		{"broken file", fakeReloader{err: &rulefile.ParseError{Line: 1, Err: errors.New("bad")}}, codes.FailedPrecondition},
		{"missing rule set", fakeReloader{err: db.ErrRuleSetNotFound}, codes.NotFound},
		{"source down", fakeReloader{err: errors.New("connection refused")}, codes.Unavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newService(t, laptopRules, tt.reloader)
			_, err := svc.ReloadRules(ctx, &structpb.Struct{})
			requireCode(t, err, tt.code)
		})
	}
}

func TestNewRewriteService_Validation(t *testing.T) {
	_, err := NewRewriteService(config.ServerConfig{}, nil, selection.NewRegistry(), nil, nil, nil)
	require.Error(t, err)
	_, err = NewRewriteService(config.ServerConfig{}, rewrite.New(rules.NewEngine(nil), nil), nil, nil, nil, nil)
	require.Error(t, err)
}

// counterValue returns the value of name{result=result} gathered from reg.
func counterValue(t *testing.T, reg *prometheus.Registry, name, result string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "result" && l.GetValue() == result {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
