package executor

import "sync"

type jobKey struct {
	ConnectionID uint
	Name         string
}

// Registry is the process-wide set of in-flight runs, keyed by
// (connectionID, scheduleName). It is the single source of truth for
// "is this job currently executing"; the persisted schedule status is
// only a mirror of it.
type Registry struct {
	mu     sync.Mutex
	active map[jobKey]struct{}
}

func NewRegistry() *Registry {
	return &Registry{active: make(map[jobKey]struct{})}
}

// TryAcquire claims the slot for a run. The check and the insert are one
// step under the lock, so two concurrent triggers can never both win.
func (r *Registry) TryAcquire(connectionID uint, name string) bool {
	key := jobKey{ConnectionID: connectionID, Name: name}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.active[key]; exists {
		return false
	}

	r.active[key] = struct{}{}
	return true
}

func (r *Registry) Release(connectionID uint, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, jobKey{ConnectionID: connectionID, Name: name})
}

func (r *Registry) Running(connectionID uint, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.active[jobKey{ConnectionID: connectionID, Name: name}]
	return exists
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
