package ws

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/notifyhub/realtime-notify/internal/domain"
	"github.com/notifyhub/realtime-notify/internal/ratelimiter"
	"github.com/notifyhub/realtime-notify/internal/registry"
	"github.com/notifyhub/realtime-notify/internal/service"
)

// Session is the thin per-connection protocol state machine: anonymous until
// a successful identify event binds it to a user, identified afterwards.
// Every operation except identify and disconnect requires identified state;
// invoking one while anonymous yields an explicit error reply rather than a
// silent failure.
//
// Events are handled on the connection's read goroutine, one at a time. A
// panic while handling one event is caught at the event boundary and surfaced
// as an error reply; it never tears down the channel itself.
type Session struct {
	ch      registry.Channel
	svc     *service.NotificationService
	limiter *ratelimiter.EventLimiter
	logger  *zap.Logger

	userID string // empty while anonymous
}

func NewSession(
	ch registry.Channel,
	svc *service.NotificationService,
	limiter *ratelimiter.EventLimiter,
	logger *zap.Logger,
) *Session {
	return &Session{ch: ch, svc: svc, limiter: limiter, logger: logger}
}

// UserID returns the bound user identity, or "" while anonymous.
func (s *Session) UserID() string { return s.userID }

// HandleEvent dispatches one inbound event.
func (s *Session) HandleEvent(event string, data json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("event handler panicked",
				zap.String("event", event), zap.Any("panic", r))
			s.emit(registry.EventError, errorPayload{Message: "internal error"})
		}
	}()

	if !s.limiter.Allow() {
		s.emit(registry.EventError, errorPayload{Message: "rate limit exceeded"})
		return
	}

	switch event {
	case EventIdentify:
		s.handleIdentify(data)
	case EventDisconnect:
		s.Teardown()
	case EventMarkAsRead:
		if s.requireIdentified() {
			s.handleMarkAsRead(data)
		}
	case EventGetAllNotifications:
		if s.requireIdentified() {
			s.emit(registry.EventAllNotifications, s.svc.GetUserNotifications(s.userID))
		}
	case EventGetUnreadNotifications:
		if s.requireIdentified() {
			s.emit(registry.EventUnreadNotifications, s.svc.GetUnreadNotifications(s.userID))
		}
	case EventGetNotificationsByType:
		if s.requireIdentified() {
			s.handleGetByType(data)
		}
	default:
		s.emit(registry.EventError, errorPayload{Message: fmt.Sprintf("unknown event %q", event)})
	}
}

// Teardown releases the registry entry for the bound user, if any was bound.
// Called both for an explicit disconnect event and when the transport closes.
func (s *Session) Teardown() {
	if s.userID == "" {
		return
	}
	s.svc.UserDisconnected(s.userID)
	s.logger.Debug("session torn down", zap.String("user_id", s.userID))
	s.userID = ""
}

func (s *Session) handleIdentify(data json.RawMessage) {
	var p identifyPayload
	if err := json.Unmarshal(data, &p); err != nil || p.UserID == "" {
		s.emit(registry.EventIdentificationError,
			errorPayload{Message: domain.ErrMissingUserID.Error()})
		return
	}

	// Re-identifying as a different user releases the old binding; otherwise
	// the previous user's registry entry would keep pointing at this channel.
	if s.userID != "" && s.userID != p.UserID {
		s.svc.UserDisconnected(s.userID)
	}

	s.userID = p.UserID
	s.emit(registry.EventIdentified, identifiedPayload{Success: true, UserID: p.UserID})

	// Registering also catches the client up with its full list and unread count.
	s.svc.UserConnected(p.UserID, s.ch)
}

func (s *Session) handleMarkAsRead(data json.RawMessage) {
	var p markAsReadPayload
	if err := json.Unmarshal(data, &p); err != nil || p.NotificationID == "" {
		s.emit(registry.EventMarkAsReadError,
			markAsReadErrorPayload{NotificationID: p.NotificationID, Message: "notification_id is required"})
		return
	}

	if !s.svc.MarkAsRead(p.NotificationID, s.userID) {
		s.emit(registry.EventMarkAsReadError,
			markAsReadErrorPayload{NotificationID: p.NotificationID, Message: "notification not found or expired"})
		return
	}
	s.emit(registry.EventMarkAsReadSuccess,
		markAsReadSuccessPayload{NotificationID: p.NotificationID})
}

func (s *Session) handleGetByType(data json.RawMessage) {
	var p byTypePayload
	if err := json.Unmarshal(data, &p); err != nil || p.Type == "" {
		s.emit(registry.EventError, errorPayload{Message: "type is required"})
		return
	}

	// The type scan is queue-wide; scope it to the bound user here.
	all := s.svc.GetNotificationsByType(p.Type)
	scoped := make([]domain.Notification, 0, len(all))
	for _, n := range all {
		if n.IsTargetedAt(s.userID) {
			scoped = append(scoped, n)
		}
	}
	s.emit(registry.EventNotificationsByType,
		byTypeResultPayload{Type: p.Type, Notifications: scoped})
}

func (s *Session) requireIdentified() bool {
	if s.userID == "" {
		s.emit(registry.EventError, errorPayload{Message: domain.ErrNotIdentified.Error()})
		return false
	}
	return true
}

func (s *Session) emit(event string, payload any) {
	if err := s.ch.Emit(event, payload); err != nil {
		s.logger.Warn("emit failed", zap.String("event", event), zap.Error(err))
	}
}
