package handlers

import (
	"context"
	"net/http"
	"time"

	"repcirAPI/internal/types/circle"
	"repcirAPI/services"
)

type CircleHandler struct {
	circleService *services.CircleService
}

func NewCircleHandler(circleService *services.CircleService) *CircleHandler {
	return &CircleHandler{circleService: circleService}
}

func (h *CircleHandler) ListCircles(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := clerkIDFrom(w, r)
	if !ok {
		return
	}

	circles, err := h.circleService.ListCircles(ctx, clerkID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if circles == nil {
		circles = []*circle.Circle{}
	}
	respondWithJSON(w, http.StatusOK, circles)
}

func (h *CircleHandler) CreateCircle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := clerkIDFrom(w, r)
	if !ok {
		return
	}

	var req circle.CreateCircleRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	c, err := h.circleService.CreateCircle(ctx, clerkID, req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, c)
}

func (h *CircleHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := clerkIDFrom(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	members, err := h.circleService.ListMembers(ctx, clerkID, id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, members)
}

func (h *CircleHandler) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := clerkIDFrom(w, r)
	if !ok {
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	var req circle.CreateInvitationRequest
	if r.ContentLength != 0 {
		if err := decodeAndValidate(w, r, &req); err != nil {
			respondWithAppError(w, r, err)
			return
		}
	}

	inv, err := h.circleService.CreateInvitation(ctx, clerkID, id, req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, inv)
}

func (h *CircleHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := clerkIDFrom(w, r)
	if !ok {
		return
	}

	var req circle.RedeemRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	resp, err := h.circleService.Redeem(ctx, clerkID, req.Code)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}
