package threadloop

import (
	"sync"
)

// Registry maps threads to the loop bound to each. Entries are added only by
// [Loop.BindThread] and removed only by [Loop.UnbindThread], and a loop is
// present only while it is running. It is safe for concurrent use.
//
// Loops use [DefaultRegistry] unless configured [WithRegistry]. Separate
// registries are independent: each enforces one loop per thread only among
// its own loops.
type Registry struct {
	loops map[ThreadID]*Loop
	mu    sync.RWMutex
}

// defaultRegistry is the process-wide registry. Thread identity is global, so
// a single instance backs CurrentLoop and friends. It starts empty, and is
// drained as loops unbind.
var defaultRegistry = NewRegistry()

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{loops: make(map[ThreadID]*Loop)}
}

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry { return defaultRegistry }

// register fails if id is already mapped, to any loop.
func (r *Registry) register(id ThreadID, loop *Loop) bool {
	if id == InvalidThreadID || loop == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.loops[id]; ok {
		return false
	}
	r.loops[id] = loop
	return true
}

// unregister removes the entry for id, if it maps to loop.
func (r *Registry) unregister(id ThreadID, loop *Loop) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loops[id] != loop {
		return false
	}
	delete(r.loops, id)
	return true
}

// Lookup returns the loop bound to the given thread, or nil.
func (r *Registry) Lookup(id ThreadID) *Loop {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loops[id]
}

// Current returns the loop bound to the calling thread, or nil.
func (r *Registry) Current() *Loop {
	return r.Lookup(CurrentThreadID())
}

// Contains reports whether loop is registered against any thread.
func (r *Registry) Contains(loop *Loop) bool {
	if loop == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.loops {
		if v == loop {
			return true
		}
	}
	return false
}

// Len returns the number of bound threads.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.loops)
}

// CurrentLoop returns the loop bound to the calling thread, in the default
// registry, or nil.
func CurrentLoop() *Loop { return defaultRegistry.Current() }

// LoopForThread returns the loop bound to the given thread, in the default
// registry, or nil.
func LoopForThread(id ThreadID) *Loop { return defaultRegistry.Lookup(id) }

// IsRunningLoop reports whether loop is currently bound, in the default
// registry.
func IsRunningLoop(loop *Loop) bool { return defaultRegistry.Contains(loop) }
