package registry

// Channel is the abstract bidirectional event channel a connected client is
// reached through. The transport is pluggable; anything implementing
// named-event send semantics suffices.
type Channel interface {
	// Emit sends a named event with a JSON-serializable payload.
	Emit(event string, payload any) error
}

// Server-to-client event names. These form the channel contract shared by the
// fan-out service and the transport layer.
const (
	EventIdentified          = "identified"
	EventIdentificationError = "identification_error"
	EventAllNotifications    = "all_notifications"
	EventUnreadNotifications = "unread_notifications"
	EventUnreadCount         = "unread_count"
	EventNewNotification     = "new_notification"
	EventNotificationsByType = "notifications_by_type"
	EventMarkAsReadSuccess   = "mark_as_read_success"
	EventMarkAsReadError     = "mark_as_read_error"
	EventError               = "error"
)
