package storage

import "context"

// SnapshotStore persists one durable record per queue instance, keyed by the
// queue's configured persistence key. Each Save fully overwrites the previous
// snapshot; the store is not append-only.
//
// Load returns domain.ErrNotFound when no snapshot exists for the key — the
// queue treats that as a clean first start, not an error.
type SnapshotStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}
