package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"repcirAPI/internal/logger"
	"repcirAPI/internal/metrics"
	"repcirAPI/internal/queue"
	"repcirAPI/internal/repository"
	"repcirAPI/internal/types/badge"
	"repcirAPI/internal/types/feed"
	"repcirAPI/internal/types/notification"
)

type badgeEvaluateEvent struct {
	UserID uuid.UUID `json:"user_id"`
	Reason string    `json:"reason"`
}

type BadgeService struct {
	users      repository.UserStore
	badges     repository.BadgeStore
	bus        queue.Bus
	activities ActivityRecorder
	notifier   Notifier
	now        func() time.Time
	log        zerolog.Logger
}

func NewBadgeService(users repository.UserStore, badges repository.BadgeStore, bus queue.Bus, activities ActivityRecorder, notifier Notifier) *BadgeService {
	return &BadgeService{
		users:      users,
		badges:     badges,
		bus:        bus,
		activities: activities,
		notifier:   notifier,
		now:        func() time.Time { return time.Now().UTC() },
		log:        logger.With("badges"),
	}
}

// Trigger publishes a badge evaluation request. Delivery is at most once;
// a failed publish is logged and dropped.
func (s *BadgeService) Trigger(ctx context.Context, userID uuid.UUID, reason string) {
	err := s.bus.Publish(ctx, queue.TopicBadgeEvaluate, badgeEvaluateEvent{UserID: userID, Reason: reason})
	if err != nil {
		metrics.JobsDispatched.WithLabelValues(queue.TopicBadgeEvaluate, "error").Inc()
		s.log.Warn().Err(err).Str("user_id", userID.String()).Str("reason", reason).Msg("Badge trigger dropped")
		return
	}
	metrics.JobsDispatched.WithLabelValues(queue.TopicBadgeEvaluate, "ok").Inc()
}

// Subscribe registers the evaluation consumer on the bus.
func (s *BadgeService) Subscribe() error {
	return s.bus.Subscribe(queue.TopicBadgeEvaluate, s.handleEvaluate)
}

func (s *BadgeService) handleEvaluate(ctx context.Context, body []byte) error {
	var ev badgeEvaluateEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("invalid badge event: %w", err)
	}
	_, err := s.Evaluate(ctx, ev.UserID)
	return err
}

// Evaluate awards every badge the user now qualifies for and returns the new ones.
func (s *BadgeService) Evaluate(ctx context.Context, userID uuid.UUID) ([]*badge.Badge, error) {
	stats, err := s.badges.BadgeStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load badge stats: %w", err)
	}
	all, err := s.badges.ListBadges(ctx)
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	held, err := s.badges.ListUserBadges(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user badges: %w", err)
	}

	owned := make(map[uuid.UUID]struct{}, len(held))
	for _, ub := range held {
		owned[ub.BadgeID] = struct{}{}
	}

	var awarded []*badge.Badge
	for _, b := range all {
		if _, ok := owned[b.ID]; ok || !b.Qualifies(stats) {
			continue
		}

		isNew, err := s.badges.AwardBadge(ctx, userID, b.ID, s.now())
		if err != nil {
			return awarded, fmt.Errorf("award badge %s: %w", b.Name, err)
		}
		if !isNew {
			continue
		}
		awarded = append(awarded, b)

		s.activities.Record(ctx, &feed.Activity{
			UserID:    userID,
			Kind:      feed.KindBadgeEarned,
			SubjectID: subjectID(b.ID),
			Data:      map[string]any{"badge_name": b.Name, "icon": b.Icon},
		})
		s.notifier.Notify(ctx, userID, notification.NotificationBadgeEarned,
			"New badge unlocked",
			fmt.Sprintf("You earned %s: %s", b.Name, b.Description),
			map[string]any{"badge_id": b.ID.String()},
		)
	}

	if len(awarded) > 0 {
		s.log.Info().Str("user_id", userID.String()).Int("awarded", len(awarded)).Msg("Badges awarded")
	}
	return awarded, nil
}

func (s *BadgeService) ListBadges(ctx context.Context, clerkID string) ([]*badge.BadgeWithStatus, error) {
	userID, err := resolveUserID(ctx, s.users, clerkID)
	if err != nil {
		return nil, err
	}

	all, err := s.badges.ListBadges(ctx)
	if err != nil {
		return nil, wrap("list badges", err)
	}
	held, err := s.badges.ListUserBadges(ctx, userID)
	if err != nil {
		return nil, wrap("list user badges", err)
	}

	awardedAt := make(map[uuid.UUID]time.Time, len(held))
	for _, ub := range held {
		awardedAt[ub.BadgeID] = ub.AwardedAt
	}

	out := make([]*badge.BadgeWithStatus, 0, len(all))
	for _, b := range all {
		item := &badge.BadgeWithStatus{Badge: *b}
		if at, ok := awardedAt[b.ID]; ok {
			at := at
			item.Earned = true
			item.AwardedAt = &at
		}
		out = append(out, item)
	}
	return out, nil
}
