package handler

import (
	"net/http"

	"github.com/notifyhub/realtime-notify/internal/service"
)

// StatsHandler serves a human-readable JSON snapshot of queue and directory
// state. Raw Prometheus metrics are available at /metrics via
// promhttp.Handler and are separate from this endpoint.
type StatsHandler struct {
	svc *service.NotificationService
}

func NewStatsHandler(svc *service.NotificationService) *StatsHandler {
	return &StatsHandler{svc: svc}
}

// GetStats handles GET /api/v1/stats
//
// @Summary  Real-time queue and directory snapshot
// @Tags     stats
// @Produce  json
// @Success  200  {object}  domain.Stats
// @Router   /api/v1/stats [get]
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.svc.Stats())
}
