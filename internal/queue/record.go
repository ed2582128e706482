package queue

import (
	"maps"
	"time"
)

// Record is a single timestamped, per-item-TTL entry in the queue.
// ExpiresAt is always the last TTL-anchor time plus the current TTL; it is
// computed at enqueue time and recomputed whenever the TTL changes.
type Record[T any] struct {
	ID         string            `json:"id"`
	Payload    T                 `json:"payload"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
	TTL        time.Duration     `json:"ttl"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// expired reports whether the record's deadline has passed.
// A record with ExpiresAt <= now is expired.
func (r *Record[T]) expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// clone returns a copy safe to hand to callers. The metadata map is copied so
// mutations on the result cannot corrupt queue state.
func (r *Record[T]) clone() Record[T] {
	c := *r
	c.Metadata = maps.Clone(r.Metadata)
	return c
}
