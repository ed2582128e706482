package ratelimiter

import "golang.org/x/time/rate"

// EventLimiter is a token bucket bounding how many inbound channel events a
// single connection may submit per second. Burst is set equal to the rate so
// no extra burst capacity is allowed beyond the configured per-second maximum.
type EventLimiter struct {
	limiter *rate.Limiter
}

// New creates an EventLimiter granting eventsPerSec tokens per second.
func New(eventsPerSec int) *EventLimiter {
	if eventsPerSec <= 0 {
		eventsPerSec = 1
	}
	return &EventLimiter{
		limiter: rate.NewLimiter(rate.Limit(eventsPerSec), eventsPerSec),
	}
}

// Allow reports whether one more event may be processed now. Non-blocking:
// the session turns a false result into an error reply rather than stalling
// the read loop.
func (el *EventLimiter) Allow() bool {
	return el.limiter.Allow()
}
