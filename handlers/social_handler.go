package handlers

import (
	"context"
	"net/http"
	"time"

	"repcirAPI/internal/types/feed"
	"repcirAPI/services"
)

// SocialHandler serves badges and the activity feed.
type SocialHandler struct {
	badgeService *services.BadgeService
	feedService  *services.FeedService
}

func NewSocialHandler(badgeService *services.BadgeService, feedService *services.FeedService) *SocialHandler {
	return &SocialHandler{badgeService: badgeService, feedService: feedService}
}

func (h *SocialHandler) ListBadges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := clerkIDFrom(w, r)
	if !ok {
		return
	}

	badges, err := h.badgeService.ListBadges(ctx, clerkID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, badges)
}

func (h *SocialHandler) Feed(w http.ResponseWriter, r *http.Request) {
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

	items, err := h.feedService.List(ctx, clerkID, limit)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if items == nil {
		items = []*feed.Item{}
	}
	respondWithJSON(w, http.StatusOK, items)
}
