// internal/rules/engine.go
package rules

import "sync/atomic"

// Engine holds the active RulesCollection.
// Readers take a snapshot with Load; a reload publishes a new collection with
// Swap, so in-flight matches keep the collection they started with.
type Engine struct {
	current atomic.Pointer[RulesCollection]
}

// NewEngine creates an engine serving rc, which may be nil until rules are loaded.
func NewEngine(rc *RulesCollection) *Engine {
	e := &Engine{}
	if rc != nil {
		e.current.Store(rc)
	}
	return e
}

// Load returns the active collection, nil if none has been loaded.
func (e *Engine) Load() *RulesCollection {
	return e.current.Load()
}

// Swap publishes rc and returns the previously active collection.
func (e *Engine) Swap(rc *RulesCollection) *RulesCollection {
	return e.current.Swap(rc)
}
