package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/notifyhub/realtime-notify/internal/api/handler"
	apimw "github.com/notifyhub/realtime-notify/internal/api/middleware"
	"github.com/notifyhub/realtime-notify/internal/service"
	"github.com/notifyhub/realtime-notify/internal/ws"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(
	svc *service.NotificationService,
	wsHandler *ws.Handler,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1<<20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	nh := handler.NewNotificationHandler(svc, logger)
	sh := handler.NewStatsHandler(svc)
	hh := handler.NewHealthHandler()

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	// Live channel upgrade
	r.Get("/ws", wsHandler.ServeWS)

	r.Route("/api/v1", func(r chi.Router) {
		// Notifications — note: /broadcast must be registered before /{id}
		// so chi does not treat the literal string "broadcast" as an ID.
		r.Post("/notifications/broadcast", nh.Broadcast)
		r.Post("/notifications", nh.Create)
		r.Get("/notifications", nh.ListByType)
		r.Get("/notifications/{id}", nh.GetByID)
		r.Delete("/notifications/{id}", nh.Remove)
		r.Post("/notifications/{id}/read", nh.MarkRead)
		r.Put("/notifications/{id}/ttl", nh.UpdateTTL)
		r.Post("/notifications/{id}/ttl/extend", nh.ExtendTTL)

		// Per-user views
		r.Get("/users/{userID}/notifications", nh.ListForUser)

		// JSON stats snapshot
		r.Get("/stats", sh.GetStats)
	})

	return r
}
