package handlers

import (
	"context"
	"net/http"
	"time"

	"repcirAPI/internal/types/notification"
	"repcirAPI/services"
)

type NotificationHandler struct {
	service *services.NotificationService
}

func NewNotificationHandler(service *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := clerkIDFrom(w, r)
	if !ok {
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	resp, err := h.service.List(ctx, clerkID, limit)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if resp.Notifications == nil {
		resp.Notifications = []*notification.Notification{}
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := clerkIDFrom(w, r)
	if !ok {
		return
	}

	n, err := h.service.MarkAllRead(ctx, clerkID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := clerkIDFrom(w, r)
	if !ok {
		return
	}

	var req notification.RegisterDeviceRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	if err := h.service.RegisterDevice(ctx, clerkID, req); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Device registered"})
}
