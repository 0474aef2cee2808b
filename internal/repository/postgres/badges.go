package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"repcirAPI/internal/types/badge"
	"repcirAPI/internal/types/feed"
)

func (s *Store) ListBadges(ctx context.Context) ([]*badge.Badge, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, description, icon, criteria_type, criteria_value
		FROM badges
		ORDER BY criteria_type, criteria_value
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*badge.Badge
	for rows.Next() {
		b := &badge.Badge{}
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.Icon, &b.CriteriaType, &b.CriteriaValue); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) ListUserBadges(ctx context.Context, userID uuid.UUID) ([]*badge.UserBadge, error) {
	rows, err := s.db.Query(ctx, `SELECT user_id, badge_id, awarded_at FROM user_badges WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*badge.UserBadge
	for rows.Next() {
		ub := &badge.UserBadge{}
		if err := rows.Scan(&ub.UserID, &ub.BadgeID, &ub.AwardedAt); err != nil {
			return nil, err
		}
		out = append(out, ub)
	}
	return out, rows.Err()
}

func (s *Store) AwardBadge(ctx context.Context, userID, badgeID uuid.UUID, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO user_badges (user_id, badge_id, awarded_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, badge_id) DO NOTHING
	`, userID, badgeID, at)
	if err != nil {
		return false, translate(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) BadgeStats(ctx context.Context, userID uuid.UUID) (badge.Stats, error) {
	var stats badge.Stats
	err := s.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM challenge_participants WHERE user_id = $1 AND status = 'completed'),
			(SELECT COALESCE(MAX(longest_streak), 0) FROM challenge_participants WHERE user_id = $1),
			(SELECT COUNT(*) FROM circle_members WHERE user_id = $1),
			(SELECT COUNT(*) FROM workout_generation_jobs WHERE user_id = $1 AND status = 'completed')
	`, userID).Scan(&stats.ChallengesCompleted, &stats.LongestStreak, &stats.CirclesJoined, &stats.WorkoutsGenerated)
	return stats, err
}

func (s *Store) InsertActivity(ctx context.Context, a *feed.Activity) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	data := a.Data
	if data == nil {
		data = map[string]any{}
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO activities (id, user_id, kind, subject_id, data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, a.ID, a.UserID, a.Kind, a.SubjectID, data).Scan(&a.CreatedAt)
	return translate(err)
}

func (s *Store) ListFeed(ctx context.Context, userID uuid.UUID, limit int) ([]*feed.Item, error) {
	rows, err := s.db.Query(ctx, `
		SELECT a.id, a.user_id, a.kind, a.subject_id, a.data, a.created_at, u.username, u.image_url
		FROM activities a
		JOIN users u ON u.id = a.user_id
		WHERE a.user_id = $1
		   OR a.user_id IN (
				SELECT m2.user_id
				FROM circle_members m1
				JOIN circle_members m2 ON m2.circle_id = m1.circle_id
				WHERE m1.user_id = $1
		   )
		ORDER BY a.created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*feed.Item
	for rows.Next() {
		it := &feed.Item{}
		if err := rows.Scan(&it.ID, &it.UserID, &it.Kind, &it.SubjectID, &it.Data, &it.CreatedAt,
			&it.Username, &it.ImageURL); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
