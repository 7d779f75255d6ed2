package registry

import (
	"sort"
	"sync"
)

// Registry is the process-wide map of active validator identifiers keyed by
// canonical index. Producers swap whole snapshots under the mutex; readers
// get copies. The updated flag is a one-bit signal consumed by the duty
// fetcher to invalidate its caches.
type Registry struct {
	mu        sync.RWMutex
	active    map[string]Identifier
	withAlias map[string]Identifier
	updated   bool
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		active:    map[string]Identifier{},
		withAlias: map[string]Identifier{},
	}
}

// Seed publishes the startup snapshot without raising the updated flag.
func (r *Registry) Seed(active map[string]Identifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.swap(active)
}

// Publish replaces the snapshot and raises the updated flag.
func (r *Registry) Publish(active map[string]Identifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.swap(active)
	r.updated = true
}

// Union merges resolved identifiers into the snapshot and raises the flag.
// It returns the identifiers as stored.
func (r *Registry) Union(resolved map[string]Identifier) []Identifier {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make(map[string]Identifier, len(r.active)+len(resolved))
	for index, id := range r.active {
		next[index] = id
	}
	added := make([]Identifier, 0, len(resolved))
	for index, id := range resolved {
		next[index] = id
		added = append(added, id)
	}
	r.swap(next)
	r.updated = true
	sort.Slice(added, func(i, j int) bool { return added[i].Index < added[j].Index })
	return added
}

// Remove deletes every entry whose index or pubkey matches one of the
// supplied identifiers and raises the flag. The removed set is returned.
func (r *Registry) Remove(raw map[string]Identifier) []Identifier {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make(map[string]Identifier, len(r.active))
	var removed []Identifier
	for index, id := range r.active {
		if matchesAny(id, raw) {
			removed = append(removed, id)
			continue
		}
		next[index] = id
	}
	if len(removed) > 0 {
		r.swap(next)
		r.updated = true
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].Index < removed[j].Index })
	return removed
}

func matchesAny(id Identifier, raw map[string]Identifier) bool {
	for _, candidate := range raw {
		if candidate.Index != "" && candidate.Index == id.Index {
			return true
		}
		if candidate.Pubkey != "" && candidate.Pubkey == id.Pubkey {
			return true
		}
	}
	return false
}

func (r *Registry) swap(active map[string]Identifier) {
	withAlias := make(map[string]Identifier)
	for index, id := range active {
		if id.Alias != "" {
			withAlias[index] = id
		}
	}
	r.active = active
	r.withAlias = withAlias
}

// ActiveIdentifiers returns a copy of the current snapshot.
func (r *Registry) ActiveIdentifiers() map[string]Identifier {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Identifier, len(r.active))
	for index, id := range r.active {
		out[index] = id
	}
	return out
}

// ActiveWithAlias returns the subset of the snapshot carrying an alias.
func (r *Registry) ActiveWithAlias() map[string]Identifier {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Identifier, len(r.withAlias))
	for index, id := range r.withAlias {
		out[index] = id
	}
	return out
}

// ActiveIndices returns the sorted canonical indices of the snapshot.
func (r *Registry) ActiveIndices() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	indices := make([]string, 0, len(r.active))
	for index := range r.active {
		indices = append(indices, index)
	}
	sort.Slice(indices, func(i, j int) bool {
		if len(indices[i]) != len(indices[j]) {
			return len(indices[i]) < len(indices[j])
		}
		return indices[i] < indices[j]
	})
	return indices
}

// Len returns the size of the active snapshot.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}

// ConsumeUpdated clears and returns the updated flag. A true return tells
// the caller to rebuild any identifier-derived caches.
func (r *Registry) ConsumeUpdated() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	updated := r.updated
	r.updated = false
	return updated
}
