// Package ai turns a workout request into a structured plan using Gemini.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"repcirAPI/internal/types/workout"
)

const systemPrompt = `You are a certified strength and conditioning coach.
Return a single JSON object with the fields:
title (string), summary (string), warm_up (array of strings),
exercises (array of {name, sets, reps, rest_seconds, notes}), cool_down (array of strings).
Only use the listed equipment. Keep the total session within the requested duration.`

type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, req workout.GenerateRequest) (*workout.Plan, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(BuildPrompt(req)), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr[float32](0.7),
	})
	if err != nil {
		return nil, fmt.Errorf("generation request failed: %w", err)
	}
	return ParsePlan(resp.Text())
}

func BuildPrompt(req workout.GenerateRequest) string {
	equipment := "bodyweight only"
	if len(req.Equipment) > 0 {
		equipment = strings.Join(req.Equipment, ", ")
	}
	return fmt.Sprintf(
		"Goal: %s\nDuration: %d minutes\nLevel: %s\nEquipment: %s",
		req.Goal, req.DurationMinutes, req.Level, equipment,
	)
}

// ParsePlan decodes the model output, tolerating a surrounding code fence.
func ParsePlan(text string) (*workout.Plan, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if text == "" {
		return nil, errors.New("empty response from model")
	}

	var plan workout.Plan
	if err := json.Unmarshal([]byte(text), &plan); err != nil {
		return nil, fmt.Errorf("invalid plan JSON: %w", err)
	}
	if len(plan.Exercises) == 0 {
		return nil, errors.New("plan has no exercises")
	}
	for i, ex := range plan.Exercises {
		if strings.TrimSpace(ex.Name) == "" {
			return nil, fmt.Errorf("exercise %d has no name", i+1)
		}
	}
	return &plan, nil
}
