package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"repcirAPI/internal/types/badge"
	"repcirAPI/internal/types/challenge"
	"repcirAPI/internal/types/feed"
	"repcirAPI/internal/types/workout"
)

func (s *Store) ListBadges(ctx context.Context) ([]*badge.Badge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*badge.Badge, 0, len(s.badges))
	for _, b := range s.badges {
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CriteriaType != out[j].CriteriaType {
			return out[i].CriteriaType < out[j].CriteriaType
		}
		return out[i].CriteriaValue < out[j].CriteriaValue
	})
	return out, nil
}

func (s *Store) ListUserBadges(ctx context.Context, userID uuid.UUID) ([]*badge.UserBadge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*badge.UserBadge
	for k, ub := range s.userBadges {
		if k.a == userID {
			cp := *ub
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) AwardBadge(ctx context.Context, userID, badgeID uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{userID, badgeID}
	if _, ok := s.userBadges[key]; ok {
		return false, nil
	}
	s.userBadges[key] = &badge.UserBadge{UserID: userID, BadgeID: badgeID, AwardedAt: at}
	return true, nil
}

func (s *Store) BadgeStats(ctx context.Context, userID uuid.UUID) (badge.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats badge.Stats
	for _, p := range s.participants {
		if p.UserID != userID {
			continue
		}
		if p.Status == challenge.StatusCompleted {
			stats.ChallengesCompleted++
		}
		stats.LongestStreak = max(stats.LongestStreak, p.LongestStreak)
	}
	for k := range s.members {
		if k.b == userID {
			stats.CirclesJoined++
		}
	}
	for _, j := range s.jobs {
		if j.UserID == userID && j.Status == workout.JobCompleted {
			stats.WorkoutsGenerated++
		}
	}
	return stats, nil
}

func (s *Store) InsertActivity(ctx context.Context, a *feed.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	cp := *a
	s.activities = append(s.activities, &cp)
	return nil
}

func (s *Store) ListFeed(ctx context.Context, userID uuid.UUID, limit int) ([]*feed.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mates := s.circleMates(userID)
	var out []*feed.Item
	for _, a := range s.activities {
		if _, ok := mates[a.UserID]; !ok {
			continue
		}
		item := &feed.Item{Activity: *a}
		if u, ok := s.users[a.UserID]; ok {
			item.Username = u.Username
			item.ImageURL = u.ImageURL
		}
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
