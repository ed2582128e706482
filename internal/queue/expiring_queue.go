package queue

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/realtime-notify/internal/storage"
)

const (
	DefaultTTL             = 24 * time.Hour
	DefaultPersistInterval = 5 * time.Second
	DefaultSweepInterval   = 60 * time.Second
)

// Options configures a Queue. MaxSize is required; every other field has a
// default applied by New. Persistence is active only when PersistenceKey is
// set and a store is supplied; auto-persist is then on unless
// DisableAutoPersist is set.
type Options struct {
	MaxSize            int
	DefaultTTL         time.Duration
	PersistenceKey     string
	DisableAutoPersist bool
	PersistInterval    time.Duration
	SweepInterval      time.Duration
}

func (o *Options) applyDefaults() {
	if o.DefaultTTL <= 0 {
		o.DefaultTTL = DefaultTTL
	}
	if o.PersistInterval <= 0 {
		o.PersistInterval = DefaultPersistInterval
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = DefaultSweepInterval
	}
}

// Option tweaks queue runtime behaviour. Currently only used to inject a
// clock for deterministic expiry tests.
type Option func(*runtimeOpts)

type runtimeOpts struct {
	now func() time.Time
}

// WithNowFunc replaces the wall clock. Tests use this to advance time past
// record deadlines without sleeping.
func WithNowFunc(now func() time.Time) Option {
	return func(ro *runtimeOpts) {
		if now != nil {
			ro.now = now
		}
	}
}

// Queue is an ordered, capacity-bounded, per-item-expiring key-value sequence
// with optional durable snapshotting.
//
// Expired records are excluded from every read operation but remain physically
// present until a sweep removes them; most mutating and reading operations run
// a sweep first, and a periodic sweeper bounds how long expired records linger
// with no queue activity. When the queue is at capacity, Enqueue evicts the
// single oldest record by insertion order — purely positional, independent of
// TTL — so a well-formed Enqueue never fails.
//
// Persistence is best-effort durability, not a transactional guarantee: I/O
// failures are logged and never propagate to the caller, and the in-memory
// state is always the authority during a live process.
type Queue[T any] struct {
	mu    sync.Mutex
	order *list.List               // of *Record[T], front = oldest
	byID  map[string]*list.Element

	opts   Options
	store  storage.SnapshotStore // nil when persistence is disabled
	logger *zap.Logger
	now    func() time.Time

	done      chan struct{}
	loops     sync.WaitGroup
	closeOnce sync.Once
}

// New constructs the queue, loads any prior snapshot, and starts the periodic
// sweep and auto-persist loops. A missing snapshot is not an error; a corrupt
// or unreadable one is logged and the queue starts empty.
func New[T any](opts Options, store storage.SnapshotStore, logger *zap.Logger, ropts ...Option) (*Queue[T], error) {
	if opts.MaxSize <= 0 {
		return nil, fmt.Errorf("queue max size must be positive, got %d", opts.MaxSize)
	}
	opts.applyDefaults()

	ro := runtimeOpts{now: time.Now}
	for _, o := range ropts {
		o(&ro)
	}

	if opts.PersistenceKey == "" {
		store = nil
	}

	q := &Queue[T]{
		order:  list.New(),
		byID:   make(map[string]*list.Element),
		opts:   opts,
		store:  store,
		logger: logger,
		now:    ro.now,
		done:   make(chan struct{}),
	}

	q.load()

	q.loops.Add(1)
	go q.sweepLoop()
	if q.autoPersist() {
		q.loops.Add(1)
		go q.persistLoop()
	}

	return q, nil
}

func (q *Queue[T]) autoPersist() bool {
	return q.store != nil && !q.opts.DisableAutoPersist
}

// EnqueueOption customises a single Enqueue call.
type EnqueueOption func(*enqueueConfig)

type enqueueConfig struct {
	ttl      time.Duration
	metadata map[string]string
}

// WithTTL overrides the queue-wide default TTL for this record.
func WithTTL(ttl time.Duration) EnqueueOption {
	return func(c *enqueueConfig) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithMetadata attaches opaque side-channel data, untouched by the queue.
func WithMetadata(md map[string]string) EnqueueOption {
	return func(c *enqueueConfig) { c.metadata = md }
}

// Enqueue appends a record. Expired records are swept first; if the live count
// is still at capacity the oldest record is evicted. Re-enqueueing an existing
// ID replaces the old record and moves it to the back.
func (q *Queue[T]) Enqueue(id string, payload T, opts ...EnqueueOption) {
	cfg := enqueueConfig{ttl: q.opts.DefaultTTL}
	for _, o := range opts {
		o(&cfg)
	}

	q.mu.Lock()
	now := q.now()
	q.sweepLocked(now)

	if el, ok := q.byID[id]; ok {
		q.removeLocked(el)
	}
	if q.order.Len() >= q.opts.MaxSize {
		if oldest := q.order.Front(); oldest != nil {
			q.removeLocked(oldest)
		}
	}

	rec := &Record[T]{
		ID:         id,
		Payload:    payload,
		Metadata:   cfg.metadata,
		EnqueuedAt: now,
		TTL:        cfg.ttl,
		ExpiresAt:  now.Add(cfg.ttl),
	}
	q.byID[id] = q.order.PushBack(rec)

	data := q.snapshotLocked()
	q.mu.Unlock()
	q.save(data)
}

// Dequeue removes and returns the oldest surviving record.
func (q *Queue[T]) Dequeue() (Record[T], bool) {
	q.mu.Lock()
	q.sweepLocked(q.now())

	front := q.order.Front()
	if front == nil {
		q.mu.Unlock()
		return Record[T]{}, false
	}
	rec := front.Value.(*Record[T])
	q.removeLocked(front)

	data := q.snapshotLocked()
	q.mu.Unlock()
	q.save(data)
	return rec.clone(), true
}

// GetAll returns a snapshot copy of all surviving records in insertion order.
func (q *Queue[T]) GetAll() []Record[T] {
	q.mu.Lock()
	swept := q.sweepLocked(q.now())

	out := make([]Record[T], 0, q.order.Len())
	for el := q.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*Record[T]).clone())
	}

	var data []byte
	if swept > 0 {
		data = q.snapshotLocked()
	}
	q.mu.Unlock()
	q.save(data)
	return out
}

// GetByFilter returns surviving records matching the predicate, in insertion order.
func (q *Queue[T]) GetByFilter(pred func(Record[T]) bool) []Record[T] {
	var out []Record[T]
	for _, rec := range q.GetAll() {
		if pred(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// GetByID returns the record with the given ID if it is present and not expired.
func (q *Queue[T]) GetByID(id string) (Record[T], bool) {
	q.mu.Lock()
	swept := q.sweepLocked(q.now())

	var (
		rec Record[T]
		ok  bool
	)
	if el, found := q.byID[id]; found {
		rec = el.Value.(*Record[T]).clone()
		ok = true
	}

	var data []byte
	if swept > 0 {
		data = q.snapshotLocked()
	}
	q.mu.Unlock()
	q.save(data)
	return rec, ok
}

// RemoveByID removes the record regardless of its expiration state — it works
// even on records that have expired but not yet been swept.
func (q *Queue[T]) RemoveByID(id string) bool {
	q.mu.Lock()
	el, ok := q.byID[id]
	if !ok {
		q.mu.Unlock()
		return false
	}
	q.removeLocked(el)
	data := q.snapshotLocked()
	q.mu.Unlock()
	q.save(data)
	return true
}

// UpdateByID replaces the record's payload state via update. The sweep runs
// first, so updating a just-expired record is a no-op returning false.
// The record's ID is preserved.
func (q *Queue[T]) UpdateByID(id string, update func(Record[T]) Record[T]) bool {
	q.mu.Lock()
	q.sweepLocked(q.now())

	el, ok := q.byID[id]
	if !ok {
		q.mu.Unlock()
		return false
	}
	old := el.Value.(*Record[T])
	updated := update(old.clone())
	updated.ID = old.ID
	el.Value = &updated

	data := q.snapshotLocked()
	q.mu.Unlock()
	q.save(data)
	return true
}

// UpdateTTL assigns a new TTL and re-anchors the deadline to the current time:
// ExpiresAt becomes now + ttl.
func (q *Queue[T]) UpdateTTL(id string, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	q.mu.Lock()
	now := q.now()
	q.sweepLocked(now)

	el, ok := q.byID[id]
	if !ok {
		q.mu.Unlock()
		return false
	}
	rec := el.Value.(*Record[T])
	rec.TTL = ttl
	rec.ExpiresAt = now.Add(ttl)

	data := q.snapshotLocked()
	q.mu.Unlock()
	q.save(data)
	return true
}

// ExtendTTL adds to the existing deadline without re-anchoring:
// ExpiresAt becomes ExpiresAt + additional. Contrast with UpdateTTL, which
// restarts the clock from now.
func (q *Queue[T]) ExtendTTL(id string, additional time.Duration) bool {
	if additional <= 0 {
		return false
	}
	q.mu.Lock()
	q.sweepLocked(q.now())

	el, ok := q.byID[id]
	if !ok {
		q.mu.Unlock()
		return false
	}
	rec := el.Value.(*Record[T])
	rec.TTL += additional
	rec.ExpiresAt = rec.ExpiresAt.Add(additional)

	data := q.snapshotLocked()
	q.mu.Unlock()
	q.save(data)
	return true
}

// IsExpired reports whether the record is absent or past its deadline.
// It does not sweep: a record that has expired but not yet been swept still
// reports true here while remaining physically present.
func (q *Queue[T]) IsExpired(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	el, ok := q.byID[id]
	if !ok {
		return true
	}
	return el.Value.(*Record[T]).expired(q.now())
}

// TimeUntilExpiry returns the remaining time before the record expires.
// The second result is false when the record is absent.
func (q *Queue[T]) TimeUntilExpiry(id string) (time.Duration, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	el, ok := q.byID[id]
	if !ok {
		return 0, false
	}
	return el.Value.(*Record[T]).ExpiresAt.Sub(q.now()), true
}

// Size sweeps and returns the live record count.
func (q *Queue[T]) Size() int {
	q.mu.Lock()
	swept := q.sweepLocked(q.now())
	n := q.order.Len()

	var data []byte
	if swept > 0 {
		data = q.snapshotLocked()
	}
	q.mu.Unlock()
	q.save(data)
	return n
}

// TotalSize returns the raw count including expired-but-not-yet-swept records.
// No sweep is performed; this deliberately exposes pre-sweep state for
// diagnostics.
func (q *Queue[T]) TotalSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.order.Len()
}

// ExpiredCount returns how many records have passed their deadline but are
// still physically present. Read-only: no sweep, no persist.
func (q *Queue[T]) ExpiredCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	count := 0
	for el := q.order.Front(); el != nil; el = el.Next() {
		if el.Value.(*Record[T]).expired(now) {
			count++
		}
	}
	return count
}

// ExpiringWithin returns records whose remaining time-to-live is in
// (0, within]. Already-expired records and records with exactly zero
// remaining are excluded.
func (q *Queue[T]) ExpiringWithin(within time.Duration) []Record[T] {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var out []Record[T]
	for el := q.order.Front(); el != nil; el = el.Next() {
		rec := el.Value.(*Record[T])
		remaining := rec.ExpiresAt.Sub(now)
		if remaining > 0 && remaining <= within {
			out = append(out, rec.clone())
		}
	}
	return out
}

// DefaultTTLValue returns the queue-wide default TTL.
func (q *Queue[T]) DefaultTTLValue() time.Duration {
	return q.opts.DefaultTTL
}

// Clear empties the queue.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	q.order.Init()
	clear(q.byID)
	data := q.snapshotLocked()
	q.mu.Unlock()
	q.save(data)
}

// Close stops the sweep and persist loops and performs one final persist.
// Safe to call once at shutdown; subsequent calls are no-ops.
func (q *Queue[T]) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
		q.loops.Wait()

		q.mu.Lock()
		data := q.forceSnapshotLocked()
		q.mu.Unlock()
		q.save(data)
	})
}

// ---- internal ----

// sweepLocked removes every record with ExpiresAt <= now from the live set.
// Returns the number removed. Caller holds the lock.
func (q *Queue[T]) sweepLocked(now time.Time) int {
	removed := 0
	for el := q.order.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*Record[T]).expired(now) {
			q.removeLocked(el)
			removed++
		}
		el = next
	}
	return removed
}

func (q *Queue[T]) removeLocked(el *list.Element) {
	rec := q.order.Remove(el).(*Record[T])
	delete(q.byID, rec.ID)
}

// sweepLoop purges expired records on a fixed timer, independent of any call,
// so expired records are bounded in how long they linger even with no queue
// activity.
func (q *Queue[T]) sweepLoop() {
	defer q.loops.Done()

	ticker := time.NewTicker(q.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.done:
			return
		case <-ticker.C:
			q.mu.Lock()
			swept := q.sweepLocked(q.now())
			var data []byte
			if swept > 0 {
				data = q.snapshotLocked()
			}
			q.mu.Unlock()
			q.save(data)
			if swept > 0 {
				q.logger.Debug("swept expired records", zap.Int("count", swept))
			}
		}
	}
}

// persistLoop snapshots on a fixed timer independent of individual writes,
// bounding data loss on crash between writes.
func (q *Queue[T]) persistLoop() {
	defer q.loops.Done()

	ticker := time.NewTicker(q.opts.PersistInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.done:
			return
		case <-ticker.C:
			q.mu.Lock()
			data := q.snapshotLocked()
			q.mu.Unlock()
			q.save(data)
		}
	}
}

func (q *Queue[T]) save(data []byte) {
	if data == nil || q.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := q.store.Save(ctx, q.opts.PersistenceKey, data); err != nil {
		q.logger.Error("queue persist failed",
			zap.String("key", q.opts.PersistenceKey), zap.Error(err))
	}
}
