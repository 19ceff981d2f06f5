package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	for _, format := range []string{"text", "json"} {
		if l := New("info", format); l == nil || l.Logger == nil {
			t.Fatalf("New(info, %s) returned nil", format)
		}
	}
}

func TestLogger_WithContext(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "info", "json")

	ctx := ContextWithRequestID(context.Background(), "req-123")
	l.WithContext(ctx).Info("rewrite")
	if !strings.Contains(buf.String(), `"request_id":"req-123"`) {
		t.Errorf("output = %s, want request_id", buf.String())
	}

	if got := l.WithContext(context.Background()); got != l {
		t.Errorf("WithContext() without id returned a new logger")
	}
}

func TestLogger_Helpers(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "debug", "text")
	l.WithRuleSet("default").WithComponent("watch").WithError(errors.New("boom")).Debug("reload")

	out := buf.String()
	for _, want := range []string{"rule_set=default", "component=watch", "error=boom", "level=DEBUG"} {
		if !strings.Contains(out, want) {
			t.Errorf("output = %s, want %s", out, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"bogus": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
