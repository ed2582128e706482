package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
// Operations addressing a specific notification ID signal absence with a
// boolean result instead of an error; these sentinels cover genuinely
// invalid requests.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidType      = errors.New("notification type must not be empty")
	ErrInvalidMessage   = errors.New("message must not exceed 4096 characters")
	ErrNoTargets        = errors.New("at least one target user is required")
	ErrInvalidTarget    = errors.New("target user ids must not be empty")
	ErrInvalidTTL       = errors.New("ttl must not be negative")
	ErrNoConnectedUsers = errors.New("no connected users to broadcast to")
	ErrNotIdentified    = errors.New("connection has not identified a user")
	ErrMissingUserID    = errors.New("user id is required")
)
