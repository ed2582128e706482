package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/notifyhub/realtime-notify/internal/domain"
	"github.com/notifyhub/realtime-notify/internal/service"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	NotificationsCreated   *prometheus.CounterVec
	NotificationsDelivered prometheus.Counter
	RealtimePushes         prometheus.Counter
	RealtimePushFailures   prometheus.Counter
	ConnectedUsers         prometheus.Gauge
	QueueLiveItems         prometheus.Gauge
	QueuePendingExpired    prometheus.Gauge
	TrackedUsers           prometheus.Gauge
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NotificationsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Total number of notifications created, by type.",
		}, []string{"type"}),

		NotificationsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifications_delivered_total",
			Help: "Total number of notifications that reached at least one live recipient.",
		}),

		RealtimePushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "realtime_pushes_total",
			Help: "Total number of successful per-recipient live pushes.",
		}),

		RealtimePushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "realtime_push_failures_total",
			Help: "Total number of per-recipient live pushes that failed.",
		}),

		ConnectedUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "connected_users",
			Help: "Current number of users with a live channel.",
		}),
		QueueLiveItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_live_items",
			Help: "Current number of non-expired records in the notification queue.",
		}),
		QueuePendingExpired: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_pending_expired_items",
			Help: "Records past their deadline but not yet swept.",
		}),
		TrackedUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracked_users",
			Help: "Users with at least one indexed notification.",
		}),
	}

	reg.MustRegister(
		m.NotificationsCreated,
		m.NotificationsDelivered,
		m.RealtimePushes,
		m.RealtimePushFailures,
		m.ConnectedUsers,
		m.QueueLiveItems,
		m.QueuePendingExpired,
		m.TrackedUsers,
	)

	return m
}

// ServiceHooks returns the metric callbacks expected by service.Hooks.
// Centralises the prometheus observation calls so the service stays
// metrics-agnostic.
func (m *Metrics) ServiceHooks() service.Hooks {
	return service.Hooks{
		OnCreated: func(notificationType string) {
			m.NotificationsCreated.WithLabelValues(notificationType).Inc()
		},
		OnDelivered:  m.NotificationsDelivered.Inc,
		OnPush:       m.RealtimePushes.Inc,
		OnPushFailed: m.RealtimePushFailures.Inc,
		OnConnected: func(connected int) {
			m.ConnectedUsers.Set(float64(connected))
		},
		OnStats: func(stats domain.Stats) {
			m.QueueLiveItems.Set(float64(stats.LiveNotifications))
			m.QueuePendingExpired.Set(float64(stats.PendingExpired))
			m.ConnectedUsers.Set(float64(stats.ConnectedUsers))
			m.TrackedUsers.Set(float64(stats.TrackedUsers))
		},
	}
}
