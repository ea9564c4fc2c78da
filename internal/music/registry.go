package music

import "sync"

// Registry is the single owner of per-guild queues. Lookups lazily allocate,
// so callers never see a nil queue.
type Registry struct {
	mu            sync.Mutex
	queues        map[string]*Queue
	defaultVolume int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		queues:        make(map[string]*Queue),
		defaultVolume: DefaultVolume,
	}
}

// SetDefaultVolume sets the starting volume for queues created afterwards.
func (r *Registry) SetDefaultVolume(percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultVolume = clampInt(percent, 0, MaxVolume)
}

// Get returns the guild's queue, creating an empty one on first reference.
func (r *Registry) Get(guildID string) *Queue {
	r.mu.Lock()
	defer r.mu.Unlock()

	if q, ok := r.queues[guildID]; ok {
		return q
	}
	q := NewQueue(guildID)
	q.SetVolume(r.defaultVolume)
	r.queues[guildID] = q
	return q
}

// Has reports whether the guild has an active queue. An allocated but empty
// queue counts as inactive.
func (r *Registry) Has(guildID string) bool {
	r.mu.Lock()
	q, ok := r.queues[guildID]
	r.mu.Unlock()

	return ok && !q.IsEmpty()
}

// Delete drops the guild's queue. Contents are not cleared first; teardown
// ordering is the playback engine's concern.
func (r *Registry) Delete(guildID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.queues, guildID)
}

// Count returns the number of allocated queues, for stats.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queues)
}
