// Package checkin computes the day transition of a challenge participant.
// It performs no I/O; callers persist the outcome.
package checkin

import (
	"time"

	"repcirAPI/internal/apperrors"
	"repcirAPI/internal/types/challenge"
)

// Input is one day's report from the participant.
type Input struct {
	CompletedTasks []string
	Notes          string
	Now            time.Time
}

// Outcome is the participant state after a check-in.
//
// Progress is nil when the day triggered a restart; in that case nothing is
// written to the ledger for the date.
type Outcome struct {
	Participant challenge.Participant
	Progress    *challenge.Progress
	Reset       bool
	Completed   bool
}

// Today returns the UTC calendar day containing t.
func Today(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CompletedRequired reports whether every required task appears in reported.
// Matching is by exact name.
func CompletedRequired(ch *challenge.Challenge, reported []string) bool {
	set := make(map[string]struct{}, len(reported))
	for _, name := range reported {
		set[name] = struct{}{}
	}
	for _, task := range ch.RequiredTasks() {
		if _, ok := set[task.Name]; !ok {
			return false
		}
	}
	return true
}

// Evaluate applies one check-in to p and returns the resulting state.
func Evaluate(ch *challenge.Challenge, p challenge.Participant, in Input) (Outcome, error) {
	if p.Status != challenge.StatusActive {
		return Outcome{}, apperrors.Precondition("not an active participant")
	}

	now := in.Now.UTC()
	passed := CompletedRequired(ch, in.CompletedTasks)

	if !passed && ch.RestartOnFail {
		p.CurrentDay = 1
		p.CurrentStreak = 0
		p.UpdatedAt = now
		return Outcome{Participant: p, Reset: true}, nil
	}

	reported := make(map[string]struct{}, len(in.CompletedTasks))
	for _, name := range in.CompletedTasks {
		reported[name] = struct{}{}
	}
	tasks := make([]challenge.TaskResult, 0, len(ch.DailyTasks))
	for _, task := range ch.DailyTasks {
		_, done := reported[task.Name]
		tasks = append(tasks, challenge.TaskResult{TaskName: task.Name, Completed: done})
	}

	checkedDay := p.CurrentDay
	progress := &challenge.Progress{
		ParticipantID:  p.ID,
		Date:           Today(now),
		Day:            checkedDay,
		Completed:      passed,
		TasksCompleted: tasks,
		Notes:          in.Notes,
		CreatedAt:      now,
	}

	if passed {
		p.CurrentStreak++
		if p.CurrentStreak > p.LongestStreak {
			p.LongestStreak = p.CurrentStreak
		}
		p.DaysCompleted++
	} else {
		p.CurrentStreak = 0
	}
	p.CurrentDay = checkedDay + 1
	p.UpdatedAt = now

	out := Outcome{Participant: p, Progress: progress}
	if checkedDay >= ch.DurationDays {
		completedAt := now
		out.Participant.Status = challenge.StatusCompleted
		out.Participant.CompletedDate = &completedAt
		out.Completed = true
	}
	return out, nil
}
