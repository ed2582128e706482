package domain

import (
	"slices"
	"time"
)

// Notification is the payload type carried by the queue and tracked by the
// per-user directory. Producers supply the business fields (Type, Title,
// Message, Data); the service adds the tracking envelope (ReadBy, delivery
// stamps) at creation time.
type Notification struct {
	ID            string         `json:"notification_id"`
	Type          string         `json:"type"`
	Title         string         `json:"title,omitempty"`
	Message       string         `json:"message"`
	Data          map[string]any `json:"data,omitempty"`
	TargetUserIDs []string       `json:"target_user_ids"`
	ReadBy        []string       `json:"read_by"`
	IsDelivered   bool           `json:"is_delivered"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeliveredAt   *time.Time     `json:"delivered_at,omitempty"`
}

// IsReadBy reports whether the given user has acknowledged the notification.
func (n *Notification) IsReadBy(userID string) bool {
	return slices.Contains(n.ReadBy, userID)
}

// MarkReadBy records the acknowledgement. Insertion is idempotent: a second
// call for the same user leaves ReadBy unchanged.
func (n *Notification) MarkReadBy(userID string) {
	if !n.IsReadBy(userID) {
		n.ReadBy = append(n.ReadBy, userID)
	}
}

// IsTargetedAt reports whether userID is one of the notification's recipients.
func (n *Notification) IsTargetedAt(userID string) bool {
	return slices.Contains(n.TargetUserIDs, userID)
}

// CreateNotificationRequest is the inbound payload for a single notification.
// TTLMillis of zero means "use the queue's default TTL".
type CreateNotificationRequest struct {
	Type          string         `json:"type"`
	Title         string         `json:"title,omitempty"`
	Message       string         `json:"message"`
	Data          map[string]any `json:"data,omitempty"`
	TargetUserIDs []string       `json:"target_user_ids"`
	TTLMillis     int64          `json:"ttl_millis,omitempty"`
}

func (r *CreateNotificationRequest) Validate() error {
	if r.Type == "" {
		return ErrInvalidType
	}
	if len(r.Message) > 4096 {
		return ErrInvalidMessage
	}
	if len(r.TargetUserIDs) == 0 {
		return ErrNoTargets
	}
	for _, id := range r.TargetUserIDs {
		if id == "" {
			return ErrInvalidTarget
		}
	}
	if r.TTLMillis < 0 {
		return ErrInvalidTTL
	}
	return nil
}

// TTL converts the request's millisecond TTL to a duration.
// Zero means the caller left it unspecified.
func (r *CreateNotificationRequest) TTL() time.Duration {
	return time.Duration(r.TTLMillis) * time.Millisecond
}

// BroadcastRequest is the inbound payload for a broadcast to every currently
// connected user. Targets are resolved by the service at call time.
type BroadcastRequest struct {
	Type      string         `json:"type"`
	Title     string         `json:"title,omitempty"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	TTLMillis int64          `json:"ttl_millis,omitempty"`
}

func (r *BroadcastRequest) Validate() error {
	if r.Type == "" {
		return ErrInvalidType
	}
	if len(r.Message) > 4096 {
		return ErrInvalidMessage
	}
	if r.TTLMillis < 0 {
		return ErrInvalidTTL
	}
	return nil
}

// Stats is the diagnostic snapshot combining queue and directory state,
// served by GET /api/v1/stats.
type Stats struct {
	LiveNotifications  int   `json:"live_notifications"`
	PendingExpired     int   `json:"pending_expired"`
	TotalNotifications int   `json:"total_notifications"`
	ConnectedUsers     int   `json:"connected_users"`
	TrackedUsers       int   `json:"tracked_users"`
	DefaultTTLMillis   int64 `json:"default_ttl_millis"`
}
