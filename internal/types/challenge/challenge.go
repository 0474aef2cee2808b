package challenge

import (
	"time"

	"github.com/google/uuid"
)

type ParticipantStatus string

const (
	StatusActive    ParticipantStatus = "active"
	StatusCompleted ParticipantStatus = "completed"
	StatusQuit      ParticipantStatus = "quit"
)

type DailyTask struct {
	Name       string `json:"name"`
	IsRequired bool   `json:"is_required"`
}

type Challenge struct {
	ID               uuid.UUID   `json:"id" db:"id"`
	Name             string      `json:"name" db:"name"`
	Description      string      `json:"description" db:"description"`
	DurationDays     int         `json:"duration_days" db:"duration_days"`
	DailyTasks       []DailyTask `json:"daily_tasks" db:"daily_tasks"`
	RestartOnFail    bool        `json:"restart_on_fail" db:"restart_on_fail"`
	ParticipantCount int         `json:"participant_count" db:"participant_count"`
	CompletionCount  int         `json:"completion_count" db:"completion_count"`
	IsActive         bool        `json:"is_active" db:"is_active"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
}

// RequiredTasks returns the tasks that must be reported for a day to count.
func (c *Challenge) RequiredTasks() []DailyTask {
	required := make([]DailyTask, 0, len(c.DailyTasks))
	for _, t := range c.DailyTasks {
		if t.IsRequired {
			required = append(required, t)
		}
	}
	return required
}

type Participant struct {
	ID            uuid.UUID         `json:"id" db:"id"`
	ChallengeID   uuid.UUID         `json:"challenge_id" db:"challenge_id"`
	UserID        uuid.UUID         `json:"user_id" db:"user_id"`
	Status        ParticipantStatus `json:"status" db:"status"`
	CurrentDay    int               `json:"current_day" db:"current_day"`
	CurrentStreak int               `json:"current_streak" db:"current_streak"`
	LongestStreak int               `json:"longest_streak" db:"longest_streak"`
	DaysCompleted int               `json:"days_completed" db:"days_completed"`
	StartDate     time.Time         `json:"start_date" db:"start_date"`
	CompletedDate *time.Time        `json:"completed_date,omitempty" db:"completed_date"`
	UpdatedAt     time.Time         `json:"updated_at" db:"updated_at"`
}

type TaskResult struct {
	TaskName  string `json:"task_name"`
	Completed bool   `json:"completed"`
}

type Progress struct {
	ID             uuid.UUID    `json:"id" db:"id"`
	ParticipantID  uuid.UUID    `json:"participant_id" db:"participant_id"`
	Date           time.Time    `json:"date" db:"date"`
	Day            int          `json:"day" db:"day"`
	Completed      bool         `json:"completed" db:"completed"`
	TasksCompleted []TaskResult `json:"tasks_completed" db:"tasks_completed"`
	Notes          string       `json:"notes,omitempty" db:"notes"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
}

type ProofUpload struct {
	ID            uuid.UUID `json:"id" db:"id"`
	ParticipantID uuid.UUID `json:"participant_id" db:"participant_id"`
	Day           int       `json:"day" db:"day"`
	ObjectKey     string    `json:"-" db:"object_key"`
	URL           string    `json:"url" db:"url"`
	ContentType   string    `json:"content_type" db:"content_type"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
