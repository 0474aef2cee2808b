package workout

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobError      JobStatus = "error"
)

type Exercise struct {
	Name        string `json:"name"`
	Sets        int    `json:"sets"`
	Reps        string `json:"reps"`
	RestSeconds int    `json:"rest_seconds"`
	Notes       string `json:"notes,omitempty"`
}

type Plan struct {
	Title     string     `json:"title"`
	Summary   string     `json:"summary"`
	WarmUp    []string   `json:"warm_up,omitempty"`
	Exercises []Exercise `json:"exercises"`
	CoolDown  []string   `json:"cool_down,omitempty"`
}

type GenerationJob struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	UserID    uuid.UUID       `json:"user_id" db:"user_id"`
	Status    JobStatus       `json:"status" db:"status"`
	Prompt    GenerateRequest `json:"prompt" db:"prompt"`
	Result    *Plan           `json:"result,omitempty" db:"result"`
	Error     string          `json:"error,omitempty" db:"error"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

func (j *GenerationJob) Finished() bool {
	return j.Status == JobCompleted || j.Status == JobError
}
