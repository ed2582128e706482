package ws

import (
	"encoding/json"

	"github.com/notifyhub/realtime-notify/internal/domain"
)

// Client-to-server event names. Server-to-client names live in the registry
// package alongside the Channel contract.
const (
	EventIdentify               = "identify"
	EventMarkAsRead             = "mark_as_read"
	EventGetAllNotifications    = "get_all_notifications"
	EventGetUnreadNotifications = "get_unread_notifications"
	EventGetNotificationsByType = "get_notifications_by_type"
	EventDisconnect             = "disconnect"
)

// Envelope is the wire frame for both directions: a named event plus an
// optional JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type identifyPayload struct {
	UserID string `json:"user_id"`
}

type markAsReadPayload struct {
	NotificationID string `json:"notification_id"`
}

type byTypePayload struct {
	Type string `json:"type"`
}

type identifiedPayload struct {
	Success bool   `json:"success"`
	UserID  string `json:"user_id"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type markAsReadSuccessPayload struct {
	NotificationID string `json:"notification_id"`
}

type markAsReadErrorPayload struct {
	NotificationID string `json:"notification_id"`
	Message        string `json:"message"`
}

type byTypeResultPayload struct {
	Type          string                `json:"type"`
	Notifications []domain.Notification `json:"notifications"`
}
