package checkin

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repcirAPI/internal/apperrors"
	"repcirAPI/internal/types/challenge"
)

func newParticipant() challenge.Participant {
	return challenge.Participant{
		ID:          uuid.New(),
		ChallengeID: uuid.New(),
		UserID:      uuid.New(),
		Status:      challenge.StatusActive,
		CurrentDay:  1,
	}
}

func runChallenge(days int, restart bool) *challenge.Challenge {
	return &challenge.Challenge{
		ID:            uuid.New(),
		Name:          "Run streak",
		DurationDays:  days,
		DailyTasks:    []challenge.DailyTask{{Name: "run", IsRequired: true}, {Name: "stretch"}},
		RestartOnFail: restart,
		IsActive:      true,
	}
}

func TestThreeDayScenario(t *testing.T) {
	ch := runChallenge(3, false)
	p := newParticipant()
	day := time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC)

	out, err := Evaluate(ch, p, Input{CompletedTasks: []string{"run"}, Now: day})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Participant.CurrentDay)
	assert.Equal(t, 1, out.Participant.CurrentStreak)
	assert.False(t, out.Completed)
	require.NotNil(t, out.Progress)
	assert.True(t, out.Progress.Completed)
	assert.Equal(t, 1, out.Progress.Day)

	out, err = Evaluate(ch, out.Participant, Input{CompletedTasks: []string{}, Now: day.AddDate(0, 0, 1)})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Participant.CurrentDay)
	assert.Equal(t, 0, out.Participant.CurrentStreak)
	assert.False(t, out.Reset)
	require.NotNil(t, out.Progress)
	assert.False(t, out.Progress.Completed)
	assert.Equal(t, challenge.StatusActive, out.Participant.Status)

	out, err = Evaluate(ch, out.Participant, Input{CompletedTasks: []string{"run"}, Now: day.AddDate(0, 0, 2)})
	require.NoError(t, err)
	assert.Equal(t, 4, out.Participant.CurrentDay)
	assert.Equal(t, 1, out.Participant.CurrentStreak)
	assert.Equal(t, 1, out.Participant.LongestStreak)
	assert.Equal(t, 2, out.Participant.DaysCompleted)
	assert.True(t, out.Completed)
	assert.Equal(t, challenge.StatusCompleted, out.Participant.Status)
	require.NotNil(t, out.Participant.CompletedDate)
}

func TestRestartOnFailResetsWithoutProgress(t *testing.T) {
	ch := runChallenge(30, true)
	p := newParticipant()
	p.CurrentDay = 6
	p.CurrentStreak = 5
	p.LongestStreak = 5
	p.DaysCompleted = 5

	out, err := Evaluate(ch, p, Input{CompletedTasks: []string{"stretch"}, Now: time.Now()})
	require.NoError(t, err)

	assert.True(t, out.Reset)
	assert.Nil(t, out.Progress)
	assert.Equal(t, 1, out.Participant.CurrentDay)
	assert.Equal(t, 0, out.Participant.CurrentStreak)
	assert.Equal(t, 5, out.Participant.LongestStreak)
	assert.Equal(t, 5, out.Participant.DaysCompleted)
	assert.False(t, out.Completed)
}

func TestStreakGrowthKeepsLongestAsMax(t *testing.T) {
	ch := runChallenge(30, false)
	p := newParticipant()
	p.CurrentStreak = 2
	p.LongestStreak = 7

	out, err := Evaluate(ch, p, Input{CompletedTasks: []string{"run", "stretch"}, Now: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Participant.CurrentStreak)
	assert.Equal(t, 7, out.Participant.LongestStreak)

	p.CurrentStreak = 7
	out, err = Evaluate(ch, p, Input{CompletedTasks: []string{"run"}, Now: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, 8, out.Participant.CurrentStreak)
	assert.Equal(t, 8, out.Participant.LongestStreak)
}

func TestTaskResultsFollowChallengeOrder(t *testing.T) {
	ch := runChallenge(10, false)

	out, err := Evaluate(ch, newParticipant(), Input{CompletedTasks: []string{"stretch", "run", "unknown"}, Now: time.Now()})
	require.NoError(t, err)
	require.NotNil(t, out.Progress)
	assert.Equal(t, []challenge.TaskResult{
		{TaskName: "run", Completed: true},
		{TaskName: "stretch", Completed: true},
	}, out.Progress.TasksCompleted)
}

func TestNoRequiredTasksAlwaysPasses(t *testing.T) {
	ch := &challenge.Challenge{DurationDays: 5, DailyTasks: []challenge.DailyTask{{Name: "walk"}}}
	assert.True(t, CompletedRequired(ch, nil))
}

func TestInactiveParticipantRejected(t *testing.T) {
	ch := runChallenge(3, false)
	for _, status := range []challenge.ParticipantStatus{challenge.StatusQuit, challenge.StatusCompleted} {
		p := newParticipant()
		p.Status = status

		_, err := Evaluate(ch, p, Input{CompletedTasks: []string{"run"}, Now: time.Now()})
		require.Error(t, err)
		assert.True(t, apperrors.IsKind(err, apperrors.KindPreconditionFailed), string(status))
	}
}

func TestTodayNormalizesToUTCMidnight(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	local := time.Date(2026, 5, 2, 1, 15, 0, 0, loc)

	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), Today(local))
}
