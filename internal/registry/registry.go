// Package registry tracks which user identities currently have a live
// bidirectional channel open.
package registry

import "sync"

// Registry maps user identity to a live channel handle. A user has at most
// one entry: a reconnect replaces the prior handle (last identify wins)
// without disconnecting the old one.
//
// Unregister keys purely by user ID, regardless of which channel instance
// triggered it. A stale disconnect from a previously-replaced channel
// therefore clears the newer connection's entry for the same user; this is
// documented behaviour, not an accident.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Channel
}

func New() *Registry {
	return &Registry{conns: make(map[string]Channel)}
}

// Register binds the channel to the user, silently overwriting any prior
// entry. Returns true if an existing connection was replaced.
func (r *Registry) Register(userID string, ch Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, replaced := r.conns[userID]
	r.conns[userID] = ch
	return replaced
}

// Unregister removes the user's entry unconditionally.
func (r *Registry) Unregister(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, userID)
}

// Get returns the user's live channel, if any.
func (r *Registry) Get(userID string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, ok := r.conns[userID]
	return ch, ok
}

// UserIDs returns the currently connected user identities.
func (r *Registry) UserIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.conns))
	for id := range r.conns {
		out = append(out, id)
	}
	return out
}

// Count returns the number of connected users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
