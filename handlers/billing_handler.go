package handlers

import (
	"context"
	"net/http"
	"time"

	"repcirAPI/internal/types/subscription"
	"repcirAPI/services"
)

type BillingHandler struct {
	billingService *services.BillingService
}

func NewBillingHandler(billingService *services.BillingService) *BillingHandler {
	return &BillingHandler{billingService: billingService}
}

func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := clerkIDFrom(w, r)
	if !ok {
		return
	}

	var req subscription.CheckoutRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	resp, err := h.billingService.Checkout(ctx, clerkID, req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *BillingHandler) Portal(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := clerkIDFrom(w, r)
	if !ok {
		return
	}

	resp, err := h.billingService.Portal(ctx, clerkID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *BillingHandler) Subscription(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := clerkIDFrom(w, r)
	if !ok {
		return
	}

	sub, err := h.billingService.Subscription(ctx, clerkID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sub)
}
