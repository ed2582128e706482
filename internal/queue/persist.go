package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/realtime-notify/internal/domain"
)

// snapshot is the durable form of the queue's full state. Timestamps are
// millisecond epochs and TTLs are millisecond counts so the layout stays
// stable regardless of Go's duration encoding. The snapshot includes records
// that have expired but not yet been swept, for faithful restore; the load
// path discards them with one sweep.
type snapshot[T any] struct {
	Items            []snapshotItem[T] `json:"items"`
	SavedAt          int64             `json:"saved_at"`
	DefaultTTLMillis int64             `json:"default_ttl_millis"`
	MaxSize          int               `json:"max_size"`
}

type snapshotItem[T any] struct {
	ID         string            `json:"id"`
	Payload    T                 `json:"payload"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	EnqueuedAt int64             `json:"enqueued_at"`
	TTLMillis  int64             `json:"ttl_millis"`
	ExpiresAt  int64             `json:"expires_at"`
}

func (si *snapshotItem[T]) record() *Record[T] {
	return &Record[T]{
		ID:         si.ID,
		Payload:    si.Payload,
		Metadata:   si.Metadata,
		EnqueuedAt: time.UnixMilli(si.EnqueuedAt),
		TTL:        time.Duration(si.TTLMillis) * time.Millisecond,
		ExpiresAt:  time.UnixMilli(si.ExpiresAt),
	}
}

// snapshotLocked serializes the queue's full state, or returns nil when
// auto-persist is off. Caller holds the lock; the actual write happens after
// the lock is released.
func (q *Queue[T]) snapshotLocked() []byte {
	if !q.autoPersist() {
		return nil
	}
	return q.forceSnapshotLocked()
}

// forceSnapshotLocked serializes regardless of the auto-persist setting.
// Used by Close for the final persist.
func (q *Queue[T]) forceSnapshotLocked() []byte {
	if q.store == nil {
		return nil
	}

	snap := snapshot[T]{
		Items:            make([]snapshotItem[T], 0, q.order.Len()),
		SavedAt:          q.now().UnixMilli(),
		DefaultTTLMillis: q.opts.DefaultTTL.Milliseconds(),
		MaxSize:          q.opts.MaxSize,
	}
	for el := q.order.Front(); el != nil; el = el.Next() {
		rec := el.Value.(*Record[T])
		snap.Items = append(snap.Items, snapshotItem[T]{
			ID:         rec.ID,
			Payload:    rec.Payload,
			Metadata:   rec.Metadata,
			EnqueuedAt: rec.EnqueuedAt.UnixMilli(),
			TTLMillis:  rec.TTL.Milliseconds(),
			ExpiresAt:  rec.ExpiresAt.UnixMilli(),
		})
	}

	data, err := json.Marshal(snap)
	if err != nil {
		q.logger.Error("queue snapshot marshal failed", zap.Error(err))
		return nil
	}
	return data
}

// load restores prior state before the queue accepts operations. A missing
// snapshot starts the queue empty; any other failure is logged and the queue
// starts empty — never fatal. The restored set is truncated to the most
// recent MaxSize records (keeping the tail) and swept once.
func (q *Queue[T]) load() {
	if q.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	data, err := q.store.Load(ctx, q.opts.PersistenceKey)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			q.logger.Warn("queue snapshot load failed, starting empty",
				zap.String("key", q.opts.PersistenceKey), zap.Error(err))
		}
		return
	}

	var snap snapshot[T]
	if err := json.Unmarshal(data, &snap); err != nil {
		q.logger.Warn("queue snapshot corrupt, starting empty",
			zap.String("key", q.opts.PersistenceKey), zap.Error(err))
		return
	}

	items := snap.Items
	truncated := 0
	if len(items) > q.opts.MaxSize {
		truncated = len(items) - q.opts.MaxSize
		items = items[truncated:]
	}

	for i := range items {
		rec := items[i].record()
		q.byID[rec.ID] = q.order.PushBack(rec)
	}
	swept := q.sweepLocked(q.now())

	q.logger.Info("queue snapshot restored",
		zap.String("key", q.opts.PersistenceKey),
		zap.Int("restored", q.order.Len()),
		zap.Int("truncated", truncated),
		zap.Int("expired_discarded", swept),
	)
}
