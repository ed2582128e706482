package service

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notifyhub/realtime-notify/internal/directory"
	"github.com/notifyhub/realtime-notify/internal/domain"
	"github.com/notifyhub/realtime-notify/internal/queue"
	"github.com/notifyhub/realtime-notify/internal/registry"
)

// Hooks carries metric callbacks injected by main. Using a struct keeps the
// service constructor signature clean; nil fields become no-ops.
type Hooks struct {
	OnCreated    func(notificationType string)
	OnDelivered  func()
	OnPush       func()
	OnPushFailed func()
	OnConnected  func(connectedUsers int)
	OnStats      func(stats domain.Stats)
}

func (h *Hooks) normalize() {
	if h.OnCreated == nil {
		h.OnCreated = func(string) {}
	}
	if h.OnDelivered == nil {
		h.OnDelivered = func() {}
	}
	if h.OnPush == nil {
		h.OnPush = func() {}
	}
	if h.OnPushFailed == nil {
		h.OnPushFailed = func() {}
	}
	if h.OnConnected == nil {
		h.OnConnected = func(int) {}
	}
	if h.OnStats == nil {
		h.OnStats = func(domain.Stats) {}
	}
}

// NotificationService owns the per-user directory index and the connection
// registry as fields of one long-lived instance. It coordinates the queue,
// the index, and real-time fan-out to connected users.
//
// The index is a cache over the queue: the queue alone decides expiry, and the
// service reconciles the index against it both on demand (before per-user
// reads) and on a periodic timer, so memory does not grow unbounded from
// users who never poll.
type NotificationService struct {
	q      *queue.Queue[domain.Notification]
	index  *directory.Index
	reg    *registry.Registry
	logger *zap.Logger
	hooks  Hooks

	reconcileInterval time.Duration
}

func NewNotificationService(
	q *queue.Queue[domain.Notification],
	logger *zap.Logger,
	hooks Hooks,
	reconcileInterval time.Duration,
) *NotificationService {
	hooks.normalize()
	if reconcileInterval <= 0 {
		reconcileInterval = 60 * time.Second
	}
	return &NotificationService{
		q:                 q,
		index:             directory.NewIndex(),
		reg:               registry.New(),
		logger:            logger,
		hooks:             hooks,
		reconcileInterval: reconcileInterval,
	}
}

// Add validates the request, creates the notification, enqueues it, indexes
// it for every target user, and fans it out to the currently connected
// targets. Returns the stored notification.
func (s *NotificationService) Add(req domain.CreateNotificationRequest) (*domain.Notification, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	n := domain.Notification{
		ID:            uuid.New().String(),
		Type:          req.Type,
		Title:         req.Title,
		Message:       req.Message,
		Data:          req.Data,
		TargetUserIDs: slices.Clone(req.TargetUserIDs),
		ReadBy:        []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var opts []queue.EnqueueOption
	if ttl := req.TTL(); ttl > 0 {
		opts = append(opts, queue.WithTTL(ttl))
	}
	s.q.Enqueue(n.ID, n, opts...)

	for _, userID := range n.TargetUserIDs {
		s.index.Add(userID, n.ID)
	}

	s.hooks.OnCreated(n.Type)
	s.logger.Info("notification created",
		zap.String("id", n.ID),
		zap.String("type", n.Type),
		zap.Int("targets", len(n.TargetUserIDs)),
	)

	s.SendRealTime(n)
	return &n, nil
}

// Broadcast creates one notification targeting exactly the set of users
// connected at call time. With zero users connected it fails with
// ErrNoConnectedUsers and creates no record.
func (s *NotificationService) Broadcast(req domain.BroadcastRequest) (*domain.Notification, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	targets := s.reg.UserIDs()
	if len(targets) == 0 {
		return nil, domain.ErrNoConnectedUsers
	}

	return s.Add(domain.CreateNotificationRequest{
		Type:          req.Type,
		Title:         req.Title,
		Message:       req.Message,
		Data:          req.Data,
		TargetUserIDs: targets,
		TTLMillis:     req.TTLMillis,
	})
}

// SendRealTime pushes the notification to every currently connected target,
// concurrently, then pushes each target's updated unread count. After all
// pushes attempt, if at least one target was connected, the notification is
// marked delivered exactly once — delivery means "at least one recipient saw
// it live", not "every recipient saw it".
func (s *NotificationService) SendRealTime(n domain.Notification) {
	var (
		wg           sync.WaitGroup
		anyConnected atomic.Bool
	)

	for _, userID := range n.TargetUserIDs {
		ch, ok := s.reg.Get(userID)
		if !ok {
			continue
		}
		anyConnected.Store(true)

		wg.Add(1)
		go func(userID string, ch registry.Channel) {
			defer wg.Done()
			if err := ch.Emit(registry.EventNewNotification, n); err != nil {
				s.logger.Warn("realtime push failed",
					zap.String("user_id", userID),
					zap.String("notification_id", n.ID),
					zap.Error(err),
				)
				s.hooks.OnPushFailed()
				return
			}
			s.hooks.OnPush()
			s.pushUnreadCount(userID, ch)
		}(userID, ch)
	}
	wg.Wait()

	if anyConnected.Load() {
		s.MarkAsDelivered(n.ID)
	}
}

// UserConnected registers the channel for the user — last identify wins,
// silently overwriting any prior handle — and immediately catches the client
// up: the full current notification list followed by the unread count.
func (s *NotificationService) UserConnected(userID string, ch registry.Channel) {
	s.reg.Register(userID, ch)
	s.hooks.OnConnected(s.reg.Count())

	if err := ch.Emit(registry.EventAllNotifications, s.GetUserNotifications(userID)); err != nil {
		s.logger.Warn("catch-up push failed", zap.String("user_id", userID), zap.Error(err))
	}
	s.pushUnreadCount(userID, ch)
}

// UserDisconnected removes the registry entry for the user, unconditionally
// and regardless of which channel instance triggered it.
func (s *NotificationService) UserDisconnected(userID string) {
	s.reg.Unregister(userID)
	s.hooks.OnConnected(s.reg.Count())
}

// GetUserNotifications reconciles the index, resolves the user's remaining
// IDs through the queue, and returns the surviving notifications newest
// first. Dangling IDs are pruned as a side effect.
func (s *NotificationService) GetUserNotifications(userID string) []domain.Notification {
	s.Reconcile()

	ids := s.index.IDs(userID)
	out := make([]domain.Notification, 0, len(ids))
	for _, id := range ids {
		rec, ok := s.q.GetByID(id)
		if !ok {
			s.index.Remove(userID, id)
			continue
		}
		out = append(out, rec.Payload)
	}

	slices.SortFunc(out, func(a, b domain.Notification) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// GetUnreadNotifications returns the user's notifications not yet
// acknowledged by that user, newest first.
func (s *NotificationService) GetUnreadNotifications(userID string) []domain.Notification {
	all := s.GetUserNotifications(userID)
	unread := make([]domain.Notification, 0, len(all))
	for _, n := range all {
		if !n.IsReadBy(userID) {
			unread = append(unread, n)
		}
	}
	return unread
}

// UnreadCount returns how many of the user's notifications are unread.
func (s *NotificationService) UnreadCount(userID string) int {
	return len(s.GetUnreadNotifications(userID))
}

// MarkAsRead records the user's acknowledgement. Idempotent on the ReadBy
// set; UpdatedAt is bumped either way. Returns false when the notification is
// absent or expired. On success the user's unread count is re-pushed over
// their live channel, if any.
func (s *NotificationService) MarkAsRead(notificationID, userID string) bool {
	ok := s.q.UpdateByID(notificationID, func(rec queue.Record[domain.Notification]) queue.Record[domain.Notification] {
		n := rec.Payload
		n.MarkReadBy(userID)
		n.UpdatedAt = time.Now().UTC()
		rec.Payload = n
		return rec
	})
	if !ok {
		return false
	}

	if ch, connected := s.reg.Get(userID); connected {
		s.pushUnreadCount(userID, ch)
	}
	return true
}

// MarkAsDelivered stamps the first live delivery. Already-delivered
// notifications keep their original DeliveredAt. Returns false when the
// notification is absent or expired.
func (s *NotificationService) MarkAsDelivered(notificationID string) bool {
	firstDelivery := false
	ok := s.q.UpdateByID(notificationID, func(rec queue.Record[domain.Notification]) queue.Record[domain.Notification] {
		n := rec.Payload
		if !n.IsDelivered {
			now := time.Now().UTC()
			n.IsDelivered = true
			n.DeliveredAt = &now
			n.UpdatedAt = now
			firstDelivery = true
		}
		rec.Payload = n
		return rec
	})
	if ok && firstDelivery {
		s.hooks.OnDelivered()
	}
	return ok
}

// RemoveNotification removes the record from the queue unconditionally and
// scrubs its ID out of every user's index entry.
func (s *NotificationService) RemoveNotification(notificationID string) bool {
	removed := s.q.RemoveByID(notificationID)
	s.index.RemoveEverywhere(notificationID)
	return removed
}

// UpdateNotificationTTL re-anchors the notification's deadline to now + ttl.
func (s *NotificationService) UpdateNotificationTTL(notificationID string, ttl time.Duration) bool {
	return s.q.UpdateTTL(notificationID, ttl)
}

// ExtendNotificationTTL adds to the existing deadline without re-anchoring.
func (s *NotificationService) ExtendNotificationTTL(notificationID string, additional time.Duration) bool {
	return s.q.ExtendTTL(notificationID, additional)
}

// GetNotificationsByType scans the queue-wide live snapshot — unscoped by
// recipient — and returns matches newest first. Callers needing a per-user
// view filter the result further.
func (s *NotificationService) GetNotificationsByType(notificationType string) []domain.Notification {
	records := s.q.GetByFilter(func(rec queue.Record[domain.Notification]) bool {
		return rec.Payload.Type == notificationType
	})

	out := make([]domain.Notification, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Payload)
	}
	slices.SortFunc(out, func(a, b domain.Notification) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// GetNotification resolves a single live notification by ID.
func (s *NotificationService) GetNotification(notificationID string) (domain.Notification, bool) {
	rec, ok := s.q.GetByID(notificationID)
	if !ok {
		return domain.Notification{}, false
	}
	return rec.Payload, true
}

// Reconcile drops every indexed ID whose queue record is absent or expired,
// removing user entries that empty out. Returns the number of IDs pruned.
func (s *NotificationService) Reconcile() int {
	return s.index.Prune(s.q.IsExpired)
}

// Tracks reports whether the index currently holds the notification for the
// user. Diagnostic; the queue remains the source of truth.
func (s *NotificationService) Tracks(userID, notificationID string) bool {
	return s.index.Contains(userID, notificationID)
}

// ConnectedUsers returns the number of users with a live channel.
func (s *NotificationService) ConnectedUsers() int {
	return s.reg.Count()
}

// Stats returns the diagnostic snapshot combining queue and directory state.
// Pre-sweep counts are captured before the live count's sweep runs.
func (s *NotificationService) Stats() domain.Stats {
	total := s.q.TotalSize()
	pendingExpired := s.q.ExpiredCount()
	live := s.q.Size()

	return domain.Stats{
		LiveNotifications:  live,
		PendingExpired:     pendingExpired,
		TotalNotifications: total,
		ConnectedUsers:     s.reg.Count(),
		TrackedUsers:       s.index.Users(),
		DefaultTTLMillis:   s.q.DefaultTTLValue().Milliseconds(),
	}
}

// Run reconciles the index on a fixed timer independent of query activity and
// refreshes the stats gauges. Stops cleanly when ctx is cancelled.
func (s *NotificationService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.reconcileInterval)
	defer ticker.Stop()

	s.logger.Info("directory reconciler started", zap.Duration("interval", s.reconcileInterval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("directory reconciler stopping")
			return
		case <-ticker.C:
			pruned := s.Reconcile()
			if pruned > 0 {
				s.logger.Debug("pruned stale directory entries", zap.Int("count", pruned))
			}
			s.hooks.OnStats(s.Stats())
		}
	}
}

func (s *NotificationService) pushUnreadCount(userID string, ch registry.Channel) {
	if err := ch.Emit(registry.EventUnreadCount, s.UnreadCount(userID)); err != nil {
		s.logger.Warn("unread count push failed", zap.String("user_id", userID), zap.Error(err))
	}
}
