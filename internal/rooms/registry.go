package rooms

import (
	"sort"
	"sync"
)

// Registry owns one Index per tracked community and serializes all access to
// each of them. Event handlers and the eviction sweep both mutate the same
// indices; the per-community lock is what keeps a concurrent sweep and a
// concurrent create/kick/ban from losing updates.
type Registry struct {
	mu          sync.Mutex
	communities map[string]*communityEntry
}

type communityEntry struct {
	mu    sync.Mutex
	index *Index
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{communities: make(map[string]*communityEntry)}
}

// Track ensures an index exists for the community. Tracking an already
// tracked community is a no-op.
func (r *Registry) Track(community string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.communities[community]; !ok {
		r.communities[community] = &communityEntry{index: NewIndex()}
	}
}

// Tracked reports whether the community currently has an index.
func (r *Registry) Tracked(community string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.communities[community]
	return ok
}

// Drop removes the community's index and returns the rooms it held, in
// channel order. Returns nil when the community was not tracked.
func (r *Registry) Drop(community string) []*Room {
	r.mu.Lock()
	entry, ok := r.communities[community]
	if ok {
		delete(r.communities, community)
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.index.Rooms()
}

// With runs fn with exclusive access to the community's index and reports
// whether the community was tracked. The index must not escape fn.
func (r *Registry) With(community string, fn func(*Index)) bool {
	r.mu.Lock()
	entry, ok := r.communities[community]
	r.mu.Unlock()
	if !ok {
		return false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	fn(entry.index)
	return true
}

// Communities returns the tracked community handles in sorted order.
func (r *Registry) Communities() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.communities))
	for community := range r.communities {
		out = append(out, community)
	}
	sort.Strings(out)
	return out
}
