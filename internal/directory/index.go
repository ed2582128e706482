// Package directory holds the per-user index of notification IDs.
//
// The index is a projection over the queue: the queue is the source of truth
// for payload and expiry, and the index must tolerate staleness. An ID present
// here but absent or expired in the queue is skipped when materializing
// results and pruned during reconciliation.
package directory

import "sync"

// Index maps user identity to the set of notification IDs relevant to that
// user. Per-user entries are created lazily on first Add and deleted once
// their ID set becomes empty.
type Index struct {
	mu     sync.RWMutex
	byUser map[string]map[string]struct{}
}

func NewIndex() *Index {
	return &Index{byUser: make(map[string]map[string]struct{})}
}

// Add inserts the notification ID into the user's set, creating the entry on
// first use.
func (ix *Index) Add(userID, notificationID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	set, ok := ix.byUser[userID]
	if !ok {
		set = make(map[string]struct{})
		ix.byUser[userID] = set
	}
	set[notificationID] = struct{}{}
}

// Remove deletes the ID from the user's set, dropping the entry if it empties.
func (ix *Index) Remove(userID, notificationID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(userID, notificationID)
}

func (ix *Index) removeLocked(userID, notificationID string) {
	set, ok := ix.byUser[userID]
	if !ok {
		return
	}
	delete(set, notificationID)
	if len(set) == 0 {
		delete(ix.byUser, userID)
	}
}

// RemoveEverywhere scrubs the ID out of every user's set, cleaning up
// now-empty entries.
func (ix *Index) RemoveEverywhere(notificationID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for userID, set := range ix.byUser {
		if _, ok := set[notificationID]; ok {
			delete(set, notificationID)
			if len(set) == 0 {
				delete(ix.byUser, userID)
			}
		}
	}
}

// IDs returns a copy of the user's tracked notification IDs.
func (ix *Index) IDs(userID string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	set := ix.byUser[userID]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// Contains reports whether the ID is tracked for the user.
func (ix *Index) Contains(userID, notificationID string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	_, ok := ix.byUser[userID][notificationID]
	return ok
}

// Users returns the number of users with at least one tracked notification.
func (ix *Index) Users() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.byUser)
}

// Prune removes every ID for which expired reports true, deleting user
// entries that empty out. Returns the number of IDs removed.
func (ix *Index) Prune(expired func(notificationID string) bool) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	removed := 0
	for userID, set := range ix.byUser {
		for id := range set {
			if expired(id) {
				delete(set, id)
				removed++
			}
		}
		if len(set) == 0 {
			delete(ix.byUser, userID)
		}
	}
	return removed
}
