package workout

import "github.com/google/uuid"

type GenerateRequest struct {
	Goal            string   `json:"goal" validate:"required,max=200"`
	DurationMinutes int      `json:"duration_minutes" validate:"required,min=10,max=180"`
	Equipment       []string `json:"equipment" validate:"max=20,dive,required,max=50"`
	Level           string   `json:"level" validate:"required,oneof=beginner intermediate advanced"`
}

// GenerateEvent is the queue payload for a pending job.
type GenerateEvent struct {
	JobID  uuid.UUID `json:"job_id"`
	UserID uuid.UUID `json:"user_id"`
}
