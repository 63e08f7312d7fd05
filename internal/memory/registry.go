package memory

import (
	"fmt"
	"sync"
)

// Registry holds every named pool the platform descriptor declared,
// keyed by name, and routes allocation requests to the first pool whose
// capability mask satisfies the request — callers pick a pool by
// capability mask, not by name, for general allocation while still allowing name-addressed allocation for
// callers (like buffer creation) that must land in a specific pool.
type Registry struct {
	mu    sync.RWMutex
	pools map[string]*Pool
	order []string // insertion order, used when resolving by capability only
}

// NewRegistry returns an empty pool registry.
func NewRegistry() *Registry {
	return &Registry{pools: make(map[string]*Pool)}
}

// Register adds a pool under its name. Registering the same name twice
// is a configuration error.
func (r *Registry) Register(p *Pool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.pools[p.Name]; exists {
		return fmt.Errorf("memory: pool %q already registered", p.Name)
	}
	r.pools[p.Name] = p
	r.order = append(r.order, p.Name)
	return nil
}

// Pool returns the named pool, or false if no such pool was registered.
func (r *Registry) Pool(name string) (*Pool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pools[name]
	return p, ok
}

// Alloc allocates from the named pool directly.
func (r *Registry) Alloc(poolName string, size uint32, caps Capability) (*Block, error) {
	p, ok := r.Pool(poolName)
	if !ok {
		return nil, fmt.Errorf("memory: no such pool %q", poolName)
	}
	return p.Alloc(size, caps)
}

// AllocByCapability allocates size bytes from the first registered pool
// (in registration order) whose mask satisfies caps, without the caller
// needing to know pool names. This is the front-end general-purpose
// components use; buffer creation instead names "buffer" or
// "low-power-buffer" explicitly so audio data lands where DMA expects it.
func (r *Registry) AllocByCapability(size uint32, caps Capability) (*Block, string, error) {
	r.mu.RLock()
	names := append([]string(nil), r.order...)
	r.mu.RUnlock()

	for _, name := range names {
		p, _ := r.Pool(name)
		if !p.Capabilities.Satisfies(caps) {
			continue
		}
		b, err := p.Alloc(size, caps)
		if err == nil {
			return b, name, nil
		}
		if err != ErrOutOfMemory {
			return nil, "", err
		}
	}
	return nil, "", ErrOutOfMemory
}

// Free releases a block back to the named pool.
func (r *Registry) Free(poolName string, b *Block) error {
	p, ok := r.Pool(poolName)
	if !ok {
		return fmt.Errorf("memory: no such pool %q", poolName)
	}
	return p.Free(b)
}

// Names returns the registered pool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}
