package notification

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationChallengeCompleted NotificationType = "challenge_completed"
	NotificationBadgeEarned        NotificationType = "badge_earned"
	NotificationNewMessage         NotificationType = "new_message"
	NotificationCircleJoined       NotificationType = "circle_joined"
	NotificationWorkoutReady       NotificationType = "workout_ready"
)

type Notification struct {
	ID        uuid.UUID        `json:"id" db:"id"`
	UserID    uuid.UUID        `json:"user_id" db:"user_id"`
	Type      NotificationType `json:"type" db:"type"`
	Title     string           `json:"title" db:"title"`
	Body      string           `json:"body" db:"body"`
	Data      map[string]any   `json:"data,omitempty" db:"data"`
	ReadAt    *time.Time       `json:"read_at,omitempty" db:"read_at"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}

type DeviceToken struct {
	Token    string `json:"token" db:"token"`
	Platform string `json:"platform" db:"platform"`
}
