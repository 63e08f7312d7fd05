package component

import (
	"sync"
	"sync/atomic"

	"github.com/jangala-audio/dspcore/internal/dsperr"
	"github.com/jangala-audio/dspcore/internal/ids"
)

// Registry tracks every live component instance by id: a sync.Map plus
// an atomic counter, the fixed-lifetime component table the IPC
// dispatcher's component_new/component_free handlers drive.
type Registry struct {
	entries sync.Map // ids.ComponentID -> Component
	count   atomic.Int64
}

// NewRegistry returns an empty component registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers a newly constructed component. Registering a duplicate
// id is a configuration bug, reported rather than silently overwritten.
func (r *Registry) Add(c Component) error {
	if _, loaded := r.entries.LoadOrStore(c.ID(), c); loaded {
		return dsperr.New(dsperr.CodeBadParam, "component: id already registered")
	}
	r.count.Add(1)
	return nil
}

// Get looks up a component by id.
func (r *Registry) Get(id ids.ComponentID) (Component, bool) {
	v, ok := r.entries.Load(id)
	if !ok {
		return nil, false
	}
	return v.(Component), true
}

// Remove frees and deregisters a component. A component still paused
// (not reset off the scheduler's run list) cannot be freed.
func (r *Registry) Remove(id ids.ComponentID) error {
	v, ok := r.entries.Load(id)
	if !ok {
		return dsperr.New(dsperr.CodeBadParam, "component: unknown id")
	}
	c := v.(Component)
	if c.State() == StatePaused {
		return dsperr.New(dsperr.CodeBadState, "component: must reset before free while paused")
	}
	if err := c.Free(); err != nil {
		return err
	}
	r.entries.Delete(id)
	r.count.Add(-1)
	return nil
}

// Count returns the number of currently registered components.
func (r *Registry) Count() int64 {
	return r.count.Load()
}

// ForEach visits every registered component in no particular order. The
// callback must not call Add/Remove on this registry.
func (r *Registry) ForEach(fn func(Component)) {
	r.entries.Range(func(_, v any) bool {
		fn(v.(Component))
		return true
	})
}
