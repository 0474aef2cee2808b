package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"repcirAPI/internal/logger"
	"repcirAPI/internal/repository"
	"repcirAPI/internal/types/feed"
)

type FeedService struct {
	users repository.UserStore
	feed  repository.FeedStore
	now   func() time.Time
	log   zerolog.Logger
}

func NewFeedService(users repository.UserStore, store repository.FeedStore) *FeedService {
	return &FeedService{
		users: users,
		feed:  store,
		now:   func() time.Time { return time.Now().UTC() },
		log:   logger.With("feed"),
	}
}

// Record appends an activity. Failures are logged only.
func (s *FeedService) Record(ctx context.Context, a *feed.Activity) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	if err := s.feed.InsertActivity(ctx, a); err != nil {
		s.log.Warn().Err(err).Str("user_id", a.UserID.String()).Str("kind", string(a.Kind)).Msg("Failed to record activity")
	}
}

// List returns the caller's activities and those of their circle-mates, newest first.
func (s *FeedService) List(ctx context.Context, clerkID string, limit int) ([]*feed.Item, error) {
	userID, err := resolveUserID(ctx, s.users, clerkID)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = feed.DefaultLimit
	}
	if limit > feed.MaxLimit {
		limit = feed.MaxLimit
	}

	items, err := s.feed.ListFeed(ctx, userID, limit)
	if err != nil {
		return nil, wrap("list feed", err)
	}
	return items, nil
}
