package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/notifyhub/realtime-notify/internal/api/middleware"
	"github.com/notifyhub/realtime-notify/internal/domain"
	"github.com/notifyhub/realtime-notify/internal/service"
)

// NotificationHandler exposes the producer interface plus per-notification
// management endpoints. Order, payment, and ticket services call Create;
// everything else is operational surface.
type NotificationHandler struct {
	svc    *service.NotificationService
	logger *zap.Logger
}

func NewNotificationHandler(svc *service.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, logger: logger}
}

// Create handles POST /api/v1/notifications
//
// @Summary     Create a notification for one or more target users
// @Tags        notifications
// @Accept      json
// @Produce     json
// @Param       body  body      domain.CreateNotificationRequest  true  "Notification payload"
// @Success     201   {object}  domain.Notification
// @Failure     422   {object}  map[string]string
// @Router      /api/v1/notifications [post]
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	n, err := h.svc.Add(req)
	if err != nil {
		h.logger.Warn("create notification failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, n)
}

// Broadcast handles POST /api/v1/notifications/broadcast
//
// @Summary     Create a notification targeting every currently connected user
// @Tags        notifications
// @Accept      json
// @Produce     json
// @Param       body  body      domain.BroadcastRequest  true  "Broadcast payload"
// @Success     201   {object}  domain.Notification
// @Failure     409   {object}  map[string]string  "No users connected"
// @Router      /api/v1/notifications/broadcast [post]
func (h *NotificationHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req domain.BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	n, err := h.svc.Broadcast(req)
	if err != nil {
		h.logger.Warn("broadcast failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, n)
}

// GetByID handles GET /api/v1/notifications/{id}
//
// @Summary  Get a live notification by ID
// @Tags     notifications
// @Produce  json
// @Param    id   path      string  true  "Notification UUID"
// @Success  200  {object}  domain.Notification
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/notifications/{id} [get]
func (h *NotificationHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, ok := h.svc.GetNotification(id)
	if !ok {
		respondError(w, http.StatusNotFound, "notification not found or expired")
		return
	}
	respondJSON(w, http.StatusOK, n)
}

// ListByType handles GET /api/v1/notifications?type=X
//
// @Summary  List live notifications of a type, queue-wide, newest first
// @Tags     notifications
// @Produce  json
// @Param    type  query     string  true  "Notification type"
// @Success  200   {object}  map[string]any
// @Router   /api/v1/notifications [get]
func (h *NotificationHandler) ListByType(w http.ResponseWriter, r *http.Request) {
	t := r.URL.Query().Get("type")
	if t == "" {
		respondError(w, http.StatusBadRequest, "type query parameter is required")
		return
	}
	notifications := h.svc.GetNotificationsByType(t)
	respondJSON(w, http.StatusOK, map[string]any{
		"type":  t,
		"data":  notifications,
		"total": len(notifications),
	})
}

// ListForUser handles GET /api/v1/users/{userID}/notifications[?unread=true]
//
// @Summary  List a user's live notifications, newest first
// @Tags     notifications
// @Produce  json
// @Param    userID  path      string  true   "User ID"
// @Param    unread  query     bool    false  "Only unread notifications"
// @Success  200     {object}  map[string]any
// @Router   /api/v1/users/{userID}/notifications [get]
func (h *NotificationHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var notifications []domain.Notification
	if r.URL.Query().Get("unread") == "true" {
		notifications = h.svc.GetUnreadNotifications(userID)
	} else {
		notifications = h.svc.GetUserNotifications(userID)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"data":    notifications,
		"total":   len(notifications),
		"unread":  h.svc.UnreadCount(userID),
	})
}

type markReadRequest struct {
	UserID string `json:"user_id"`
}

// MarkRead handles POST /api/v1/notifications/{id}/read
//
// @Summary  Mark a notification as read by a user
// @Tags     notifications
// @Accept   json
// @Param    id    path  string           true  "Notification UUID"
// @Param    body  body  markReadRequest  true  "Acknowledging user"
// @Success  204
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if !h.svc.MarkAsRead(chi.URLParam(r, "id"), req.UserID) {
		respondError(w, http.StatusNotFound, "notification not found or expired")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateTTLRequest struct {
	TTLMillis int64 `json:"ttl_millis"`
}

// UpdateTTL handles PUT /api/v1/notifications/{id}/ttl
// Re-anchors the deadline: the notification now expires ttl_millis from now.
func (h *NotificationHandler) UpdateTTL(w http.ResponseWriter, r *http.Request) {
	var req updateTTLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TTLMillis <= 0 {
		respondError(w, http.StatusBadRequest, "ttl_millis must be a positive integer")
		return
	}

	ttl := time.Duration(req.TTLMillis) * time.Millisecond
	if !h.svc.UpdateNotificationTTL(chi.URLParam(r, "id"), ttl) {
		respondError(w, http.StatusNotFound, "notification not found or expired")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type extendTTLRequest struct {
	AdditionalMillis int64 `json:"additional_millis"`
}

// ExtendTTL handles POST /api/v1/notifications/{id}/ttl/extend
// Adds to the existing deadline without re-anchoring.
func (h *NotificationHandler) ExtendTTL(w http.ResponseWriter, r *http.Request) {
	var req extendTTLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AdditionalMillis <= 0 {
		respondError(w, http.StatusBadRequest, "additional_millis must be a positive integer")
		return
	}

	additional := time.Duration(req.AdditionalMillis) * time.Millisecond
	if !h.svc.ExtendNotificationTTL(chi.URLParam(r, "id"), additional) {
		respondError(w, http.StatusNotFound, "notification not found or expired")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Remove handles DELETE /api/v1/notifications/{id}
//
// @Summary  Remove a notification regardless of expiration state
// @Tags     notifications
// @Param    id   path  string  true  "Notification UUID"
// @Success  204
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/notifications/{id} [delete]
func (h *NotificationHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if !h.svc.RemoveNotification(chi.URLParam(r, "id")) {
		respondError(w, http.StatusNotFound, "notification not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
