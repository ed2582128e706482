package queue_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/realtime-notify/internal/queue"
	"github.com/notifyhub/realtime-notify/internal/storage"
)

// fakeClock lets tests advance time past record deadlines without sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newQueue(t *testing.T, opts queue.Options, store storage.SnapshotStore, clock *fakeClock) *queue.Queue[string] {
	t.Helper()
	var ropts []queue.Option
	if clock != nil {
		ropts = append(ropts, queue.WithNowFunc(clock.Now))
	}
	q, err := queue.New[string](opts, store, zap.NewNop(), ropts...)
	if err != nil {
		t.Fatalf("unexpected error creating queue: %v", err)
	}
	t.Cleanup(q.Close)
	return q
}

func TestNew_RejectsNonPositiveMaxSize(t *testing.T) {
	if _, err := queue.New[string](queue.Options{MaxSize: 0}, nil, zap.NewNop()); err == nil {
		t.Fatal("expected error for max size 0")
	}
}

func TestQueue_EnqueueDequeueFIFO(t *testing.T) {
	q := newQueue(t, queue.Options{MaxSize: 10}, nil, nil)

	q.Enqueue("a", "first")
	q.Enqueue("b", "second")
	q.Enqueue("c", "third")

	for _, want := range []string{"a", "b", "c"} {
		rec, ok := q.Dequeue()
		if !ok {
			t.Fatalf("expected record %q, queue empty", want)
		}
		if rec.ID != want {
			t.Fatalf("expected id %q, got %q", want, rec.ID)
		}
	}

	if _, ok := q.Dequeue(); ok {
		t.Fatal("expected empty queue after draining")
	}
}

// TestQueue_CapacityInvariant verifies totalSize() <= maxSize immediately
// after every enqueue, with no TTL expiry involved.
func TestQueue_CapacityInvariant(t *testing.T) {
	const maxSize = 5
	q := newQueue(t, queue.Options{MaxSize: maxSize}, nil, nil)

	for i := 0; i < 20; i++ {
		q.Enqueue(fmt.Sprintf("id-%d", i), "payload")
		if got := q.TotalSize(); got > maxSize {
			t.Fatalf("after enqueue %d: total size %d exceeds max %d", i, got, maxSize)
		}
	}
}

// TestQueue_FIFOEviction verifies eviction is purely positional: enqueueing
// maxSize+1 items drops the first-inserted one, leaving the last maxSize in
// insertion order.
func TestQueue_FIFOEviction(t *testing.T) {
	q := newQueue(t, queue.Options{MaxSize: 3}, nil, nil)

	q.Enqueue("a", "1")
	q.Enqueue("b", "2")
	q.Enqueue("c", "3")
	q.Enqueue("d", "4")

	if _, ok := q.GetByID("a"); ok {
		t.Fatal("expected oldest record to be evicted")
	}

	all := q.GetAll()
	wantOrder := []string{"b", "c", "d"}
	if len(all) != len(wantOrder) {
		t.Fatalf("expected %d records, got %d", len(wantOrder), len(all))
	}
	for i, want := range wantOrder {
		if all[i].ID != want {
			t.Fatalf("position %d: expected %q, got %q", i, want, all[i].ID)
		}
	}
}

// TestQueue_ExpiryExclusion verifies an expired record is excluded from reads
// but still counted by TotalSize until a sweep-bearing call runs.
func TestQueue_ExpiryExclusion(t *testing.T) {
	clock := newFakeClock()
	q := newQueue(t, queue.Options{MaxSize: 10}, nil, clock)

	q.Enqueue("short", "payload", queue.WithTTL(10*time.Millisecond))

	if _, ok := q.GetByID("short"); !ok {
		t.Fatal("expected record to be readable before expiry")
	}

	clock.Advance(11 * time.Millisecond)

	// No sweep has run yet: the record is physically present but expired.
	if got := q.TotalSize(); got != 1 {
		t.Fatalf("expected pre-sweep total 1, got %d", got)
	}
	if !q.IsExpired("short") {
		t.Fatal("expected IsExpired to report true before the sweep")
	}
	if got := q.ExpiredCount(); got != 1 {
		t.Fatalf("expected expired count 1, got %d", got)
	}

	// Any read sweeps first and must not return the expired record.
	if _, ok := q.GetByID("short"); ok {
		t.Fatal("expected expired record to be excluded from GetByID")
	}
	if got := q.TotalSize(); got != 0 {
		t.Fatalf("expected total 0 after sweep-bearing read, got %d", got)
	}
}

func TestQueue_DefaultTTLApplied(t *testing.T) {
	clock := newFakeClock()
	q := newQueue(t, queue.Options{MaxSize: 10, DefaultTTL: time.Hour}, nil, clock)

	q.Enqueue("a", "payload")

	remaining, ok := q.TimeUntilExpiry("a")
	if !ok {
		t.Fatal("expected record to exist")
	}
	if remaining != time.Hour {
		t.Fatalf("expected remaining = 1h, got %v", remaining)
	}
}

// TestQueue_ExtendTTLAddsToDeadline verifies ExtendTTL is additive from the
// existing deadline, not re-anchored to now.
func TestQueue_ExtendTTLAddsToDeadline(t *testing.T) {
	clock := newFakeClock()
	q := newQueue(t, queue.Options{MaxSize: 10}, nil, clock)

	q.Enqueue("a", "payload", queue.WithTTL(1000*time.Millisecond))
	clock.Advance(500 * time.Millisecond)

	if !q.ExtendTTL("a", 5000*time.Millisecond) {
		t.Fatal("expected ExtendTTL to succeed")
	}

	remaining, _ := q.TimeUntilExpiry("a")
	if want := 5500 * time.Millisecond; remaining != want {
		t.Fatalf("expected remaining %v, got %v", want, remaining)
	}
}

// TestQueue_UpdateTTLReanchors verifies UpdateTTL restarts the clock from
// now, discarding the previous deadline entirely.
func TestQueue_UpdateTTLReanchors(t *testing.T) {
	clock := newFakeClock()
	q := newQueue(t, queue.Options{MaxSize: 10}, nil, clock)

	q.Enqueue("a", "payload", queue.WithTTL(1000*time.Millisecond))
	clock.Advance(500 * time.Millisecond)

	if !q.UpdateTTL("a", 2000*time.Millisecond) {
		t.Fatal("expected UpdateTTL to succeed")
	}

	remaining, _ := q.TimeUntilExpiry("a")
	if want := 2000 * time.Millisecond; remaining != want {
		t.Fatalf("expected remaining %v, got %v", want, remaining)
	}
}

func TestQueue_UpdateByID_ExpiredIsNoOp(t *testing.T) {
	clock := newFakeClock()
	q := newQueue(t, queue.Options{MaxSize: 10}, nil, clock)

	q.Enqueue("a", "payload", queue.WithTTL(10*time.Millisecond))
	clock.Advance(11 * time.Millisecond)

	updated := q.UpdateByID("a", func(rec queue.Record[string]) queue.Record[string] {
		rec.Payload = "changed"
		return rec
	})
	if updated {
		t.Fatal("expected update on expired record to return false")
	}
}

func TestQueue_UpdateByID_ReplacesPayload(t *testing.T) {
	q := newQueue(t, queue.Options{MaxSize: 10}, nil, nil)

	q.Enqueue("a", "before")
	ok := q.UpdateByID("a", func(rec queue.Record[string]) queue.Record[string] {
		rec.Payload = "after"
		return rec
	})
	if !ok {
		t.Fatal("expected update to succeed")
	}

	rec, _ := q.GetByID("a")
	if rec.Payload != "after" {
		t.Fatalf("expected payload %q, got %q", "after", rec.Payload)
	}
}

// TestQueue_RemoveByID_WorksOnExpired verifies removal ignores expiration
// state: an expired-but-unswept record can still be removed explicitly.
func TestQueue_RemoveByID_WorksOnExpired(t *testing.T) {
	clock := newFakeClock()
	q := newQueue(t, queue.Options{MaxSize: 10}, nil, clock)

	q.Enqueue("a", "payload", queue.WithTTL(10*time.Millisecond))
	clock.Advance(11 * time.Millisecond)

	if !q.RemoveByID("a") {
		t.Fatal("expected removal of expired-but-unswept record to succeed")
	}
	if q.RemoveByID("a") {
		t.Fatal("expected second removal to return false")
	}
}

func TestQueue_ExpiringWithin(t *testing.T) {
	clock := newFakeClock()
	q := newQueue(t, queue.Options{MaxSize: 10}, nil, clock)

	q.Enqueue("soon", "p", queue.WithTTL(10*time.Millisecond))
	q.Enqueue("later", "p", queue.WithTTL(100*time.Millisecond))
	q.Enqueue("expired", "p", queue.WithTTL(5*time.Millisecond))

	clock.Advance(6 * time.Millisecond)

	items := q.ExpiringWithin(50 * time.Millisecond)
	if len(items) != 1 || items[0].ID != "soon" {
		t.Fatalf("expected exactly [soon], got %v", items)
	}
}

func TestQueue_SizeSweepsTotalSizeDoesNot(t *testing.T) {
	clock := newFakeClock()
	q := newQueue(t, queue.Options{MaxSize: 10}, nil, clock)

	q.Enqueue("live", "p", queue.WithTTL(time.Hour))
	q.Enqueue("dead", "p", queue.WithTTL(10*time.Millisecond))
	clock.Advance(11 * time.Millisecond)

	if got := q.TotalSize(); got != 2 {
		t.Fatalf("expected raw total 2, got %d", got)
	}
	if got := q.Size(); got != 1 {
		t.Fatalf("expected live size 1, got %d", got)
	}
	// Size swept, so the raw count now matches.
	if got := q.TotalSize(); got != 1 {
		t.Fatalf("expected raw total 1 after sweep, got %d", got)
	}
}

func TestQueue_EnqueueExistingIDReplaces(t *testing.T) {
	q := newQueue(t, queue.Options{MaxSize: 10}, nil, nil)

	q.Enqueue("a", "old")
	q.Enqueue("b", "other")
	q.Enqueue("a", "new")

	if got := q.TotalSize(); got != 2 {
		t.Fatalf("expected 2 records, got %d", got)
	}

	all := q.GetAll()
	if all[0].ID != "b" || all[1].ID != "a" {
		t.Fatalf("expected re-enqueued record at the back, got order %q, %q", all[0].ID, all[1].ID)
	}
	if all[1].Payload != "new" {
		t.Fatalf("expected replaced payload, got %q", all[1].Payload)
	}
}

func TestQueue_GetByFilter(t *testing.T) {
	q := newQueue(t, queue.Options{MaxSize: 10}, nil, nil)

	q.Enqueue("a", "keep")
	q.Enqueue("b", "drop")
	q.Enqueue("c", "keep")

	got := q.GetByFilter(func(rec queue.Record[string]) bool {
		return rec.Payload == "keep"
	})
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("unexpected filter result: %v", got)
	}
}

func TestQueue_GetAllReturnsCopies(t *testing.T) {
	q := newQueue(t, queue.Options{MaxSize: 10}, nil, nil)

	q.Enqueue("a", "payload", queue.WithMetadata(map[string]string{"k": "v"}))

	all := q.GetAll()
	all[0].Metadata["k"] = "mutated"
	all[0].Payload = "mutated"

	rec, _ := q.GetByID("a")
	if rec.Payload != "payload" || rec.Metadata["k"] != "v" {
		t.Fatal("mutating a returned snapshot must not corrupt queue state")
	}
}

func TestQueue_Clear(t *testing.T) {
	q := newQueue(t, queue.Options{MaxSize: 10}, nil, nil)

	q.Enqueue("a", "1")
	q.Enqueue("b", "2")
	q.Clear()

	if got := q.TotalSize(); got != 0 {
		t.Fatalf("expected empty queue after Clear, got %d", got)
	}
}

func TestQueue_PersistAndRestore(t *testing.T) {
	store := storage.NewMemStore()
	opts := queue.Options{MaxSize: 10, PersistenceKey: "test-queue"}

	q1 := newQueue(t, opts, store, nil)
	q1.Enqueue("a", "1")
	q1.Enqueue("b", "2")
	q1.Enqueue("c", "3")
	q1.Close()

	if store.SaveCount("test-queue") == 0 {
		t.Fatal("expected at least one persist")
	}

	q2 := newQueue(t, opts, store, nil)
	all := q2.GetAll()
	wantOrder := []string{"a", "b", "c"}
	if len(all) != len(wantOrder) {
		t.Fatalf("expected %d restored records, got %d", len(wantOrder), len(all))
	}
	for i, want := range wantOrder {
		if all[i].ID != want || all[i].Payload != fmt.Sprint(i+1) {
			t.Fatalf("position %d: got id=%q payload=%q", i, all[i].ID, all[i].Payload)
		}
	}
}

// TestQueue_RestoreTruncatesToMaxSize verifies that a snapshot larger than
// the configured capacity keeps only the most recent records (the tail).
func TestQueue_RestoreTruncatesToMaxSize(t *testing.T) {
	store := storage.NewMemStore()

	q1 := newQueue(t, queue.Options{MaxSize: 10, PersistenceKey: "k"}, store, nil)
	for i := 0; i < 5; i++ {
		q1.Enqueue(fmt.Sprintf("id-%d", i), "p")
	}
	q1.Close()

	q2 := newQueue(t, queue.Options{MaxSize: 3, PersistenceKey: "k"}, store, nil)
	all := q2.GetAll()
	wantOrder := []string{"id-2", "id-3", "id-4"}
	if len(all) != len(wantOrder) {
		t.Fatalf("expected %d records after truncation, got %d", len(wantOrder), len(all))
	}
	for i, want := range wantOrder {
		if all[i].ID != want {
			t.Fatalf("position %d: expected %q, got %q", i, want, all[i].ID)
		}
	}
}

// TestQueue_RestoreDiscardsExpired verifies the one sweep that runs right
// after loading a snapshot drops records that expired while the process was
// down.
func TestQueue_RestoreDiscardsExpired(t *testing.T) {
	store := storage.NewMemStore()
	clock := newFakeClock()
	opts := queue.Options{MaxSize: 10, PersistenceKey: "k"}

	q1 := newQueue(t, opts, store, clock)
	q1.Enqueue("stale", "p", queue.WithTTL(50*time.Millisecond))
	q1.Enqueue("fresh", "p", queue.WithTTL(time.Hour))
	q1.Close()

	// Simulate downtime long enough for "stale" to expire.
	clock.Advance(time.Minute)

	q2 := newQueue(t, opts, store, clock)
	if _, ok := q2.GetByID("stale"); ok {
		t.Fatal("expected expired record to be discarded on restore")
	}
	if _, ok := q2.GetByID("fresh"); !ok {
		t.Fatal("expected live record to survive restore")
	}
}

func TestQueue_MissingSnapshotStartsEmpty(t *testing.T) {
	store := storage.NewMemStore()
	q := newQueue(t, queue.Options{MaxSize: 10, PersistenceKey: "never-saved"}, store, nil)

	if got := q.TotalSize(); got != 0 {
		t.Fatalf("expected empty queue on first start, got %d records", got)
	}
}

func TestQueue_CorruptSnapshotStartsEmpty(t *testing.T) {
	store := storage.NewMemStore()
	if err := store.Save(context.Background(), "k", []byte("{not json")); err != nil {
		t.Fatal(err)
	}

	q := newQueue(t, queue.Options{MaxSize: 10, PersistenceKey: "k"}, store, nil)
	if got := q.TotalSize(); got != 0 {
		t.Fatalf("expected empty queue after corrupt snapshot, got %d records", got)
	}
}
