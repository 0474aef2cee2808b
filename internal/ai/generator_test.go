package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repcirAPI/internal/types/workout"
)

func TestParsePlanAcceptsFencedJSON(t *testing.T) {
	text := "```json\n{\"title\":\"Push day\",\"summary\":\"Chest and triceps\",\"exercises\":[{\"name\":\"Push-up\",\"sets\":3,\"reps\":\"12\",\"rest_seconds\":60}]}\n```"

	plan, err := ParsePlan(text)
	require.NoError(t, err)
	assert.Equal(t, "Push day", plan.Title)
	require.Len(t, plan.Exercises, 1)
	assert.Equal(t, 3, plan.Exercises[0].Sets)
}

func TestParsePlanRejectsEmptyOrInvalid(t *testing.T) {
	for _, text := range []string{
		"",
		"not json",
		`{"title":"x","exercises":[]}`,
		`{"title":"x","exercises":[{"name":"  "}]}`,
	} {
		_, err := ParsePlan(text)
		assert.Error(t, err, text)
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(workout.GenerateRequest{Goal: "lose fat", DurationMinutes: 30, Level: "beginner"})
	assert.Contains(t, prompt, "bodyweight only")
	assert.Contains(t, prompt, "30 minutes")

	prompt = BuildPrompt(workout.GenerateRequest{Goal: "strength", DurationMinutes: 45, Level: "advanced", Equipment: []string{"barbell", "rack"}})
	assert.Contains(t, prompt, "barbell, rack")
}
