package feed

import (
	"time"

	"github.com/google/uuid"
)

type ActivityKind string

const (
	KindChallengeJoined    ActivityKind = "challenge_joined"
	KindChallengeCompleted ActivityKind = "challenge_completed"
	KindBadgeEarned        ActivityKind = "badge_earned"
	KindCircleJoined       ActivityKind = "circle_joined"
	KindWorkoutGenerated   ActivityKind = "workout_generated"
)

type Activity struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	UserID    uuid.UUID      `json:"user_id" db:"user_id"`
	Kind      ActivityKind   `json:"kind" db:"kind"`
	SubjectID *uuid.UUID     `json:"subject_id,omitempty" db:"subject_id"`
	Data      map[string]any `json:"data,omitempty" db:"data"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

type Item struct {
	Activity
	Username string `json:"username"`
	ImageURL string `json:"image_url"`
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)
