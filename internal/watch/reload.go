// internal/watch/reload.go
package watch

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/solatis/quill/internal/core/db"
	"github.com/solatis/quill/internal/metrics"
	"github.com/solatis/quill/internal/pkg/logger"
	"github.com/solatis/quill/internal/rulefile"
	"github.com/solatis/quill/internal/rules"
)

// Loader produces a freshly compiled RulesCollection.
type Loader func(ctx context.Context) (*rules.RulesCollection, error)

// FileLoader compiles the rule file at path on every call.
func FileLoader(path string, opts rules.Options) Loader {
	return func(ctx context.Context) (*rules.RulesCollection, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		rc, err := rulefile.Compile(f, opts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return rc, nil
	}
}

// Reloader recompiles rules and publishes them to an Engine.
// A failed load leaves the active collection untouched.
type Reloader struct {
	engine  *rules.Engine
	load    Loader
	metrics *metrics.Metrics
	log     *logger.Logger

	mu sync.Mutex
}

// NewReloader creates a reloader; m may be nil.
func NewReloader(engine *rules.Engine, load Loader, m *metrics.Metrics, log *logger.Logger) *Reloader {
	return &Reloader{
		engine:  engine,
		load:    load,
		metrics: m,
		log:     log.WithComponent("reloader"),
	}
}

// Reload loads and swaps in a new collection, returning its rule count.
// Concurrent calls are serialized so the last successful load wins.
func (r *Reloader) Reload(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rc, err := r.safeLoad(ctx)
	if err != nil {
		prev := 0
		if cur := r.engine.Load(); cur != nil {
			prev = cur.Len()
		}
		r.metrics.ObserveReload(err, prev)
		r.log.WithError(err).Error("rule reload failed, keeping previous rules", "rules", prev)
		return 0, err
	}

	r.engine.Swap(rc)
	r.metrics.ObserveReload(nil, rc.Len())
	r.log.Info("rules loaded", "rules", rc.Len(), "max_depth", rc.MaxDepth())
	return rc.Len(), nil
}

// safeLoad turns a panicking loader into a failed reload so the server keeps
// serving the previous collection.
func (r *Reloader) safeLoad(ctx context.Context) (rc *rules.RulesCollection, err error) {
	defer func() {
		if p := recover(); p != nil {
			rc, err = nil, fmt.Errorf("rule loader panicked: %v", p)
		}
	}()
	return r.load(ctx)
}

// RuleSetSource returns the newest stored version of a rule set.
type RuleSetSource interface {
	Latest(ctx context.Context, name string) (db.RuleSet, error)
}

// StoreLoader compiles the latest version of the named rule set.
func StoreLoader(src RuleSetSource, name string, opts rules.Options) Loader {
	return func(ctx context.Context) (*rules.RulesCollection, error) {
		rs, err := src.Latest(ctx, name)
		if err != nil {
			return nil, err
		}
		rc, err := rulefile.Compile(strings.NewReader(rs.Source), opts)
		if err != nil {
			return nil, fmt.Errorf("rule set %s v%d: %w", rs.Name, rs.Version, err)
		}
		return rc, nil
	}
}
