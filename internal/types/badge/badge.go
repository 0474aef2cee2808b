package badge

import (
	"time"

	"github.com/google/uuid"
)

type CriteriaType string

const (
	CriteriaChallengesCompleted CriteriaType = "challenges_completed"
	CriteriaLongestStreak       CriteriaType = "longest_streak"
	CriteriaCirclesJoined       CriteriaType = "circles_joined"
	CriteriaWorkoutsGenerated   CriteriaType = "workouts_generated"
)

type Badge struct {
	ID            uuid.UUID    `json:"id" db:"id"`
	Name          string       `json:"name" db:"name"`
	Description   string       `json:"description" db:"description"`
	Icon          string       `json:"icon" db:"icon"`
	CriteriaType  CriteriaType `json:"criteria_type" db:"criteria_type"`
	CriteriaValue int          `json:"criteria_value" db:"criteria_value"`
}

type UserBadge struct {
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	BadgeID   uuid.UUID `json:"badge_id" db:"badge_id"`
	AwardedAt time.Time `json:"awarded_at" db:"awarded_at"`
}

type BadgeWithStatus struct {
	Badge
	Earned    bool       `json:"earned"`
	AwardedAt *time.Time `json:"awarded_at,omitempty"`
}

// Stats are the per-user counters badge criteria are checked against.
type Stats struct {
	ChallengesCompleted int `json:"challenges_completed"`
	LongestStreak       int `json:"longest_streak"`
	CirclesJoined       int `json:"circles_joined"`
	WorkoutsGenerated   int `json:"workouts_generated"`
}

func (s Stats) Value(c CriteriaType) int {
	switch c {
	case CriteriaChallengesCompleted:
		return s.ChallengesCompleted
	case CriteriaLongestStreak:
		return s.LongestStreak
	case CriteriaCirclesJoined:
		return s.CirclesJoined
	case CriteriaWorkoutsGenerated:
		return s.WorkoutsGenerated
	default:
		return 0
	}
}

// Qualifies reports whether the stats satisfy the badge criteria.
func (b *Badge) Qualifies(s Stats) bool {
	return b.CriteriaValue > 0 && s.Value(b.CriteriaType) >= b.CriteriaValue
}
