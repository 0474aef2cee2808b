package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"repcirAPI/internal/apperrors"
	"repcirAPI/internal/checkin"
	"repcirAPI/internal/logger"
	"repcirAPI/internal/metrics"
	"repcirAPI/internal/queue"
	"repcirAPI/internal/repository"
	"repcirAPI/internal/types/feed"
	"repcirAPI/internal/types/notification"
	"repcirAPI/internal/types/workout"
)

const (
	dispatchFailedMessage = "failed to dispatch generation job"
	maxJobErrorLength     = 500
)

type WorkoutService struct {
	users         repository.UserStore
	workouts      repository.WorkoutStore
	subscriptions repository.SubscriptionStore
	bus           queue.Bus
	generator     WorkoutGenerator
	badges        BadgeTrigger
	activities    ActivityRecorder
	notifier      Notifier
	freeDaily     int
	now           func() time.Time
	log           zerolog.Logger
}

func NewWorkoutService(users repository.UserStore, workouts repository.WorkoutStore, subscriptions repository.SubscriptionStore, bus queue.Bus, badges BadgeTrigger, activities ActivityRecorder, notifier Notifier, freeDaily int) *WorkoutService {
	return &WorkoutService{
		users:         users,
		workouts:      workouts,
		subscriptions: subscriptions,
		bus:           bus,
		badges:        badges,
		activities:    activities,
		notifier:      notifier,
		freeDaily:     freeDaily,
		now:           func() time.Time { return time.Now().UTC() },
		log:           logger.With("workouts"),
	}
}

// SetGenerator enables AI generation.
func (s *WorkoutService) SetGenerator(g WorkoutGenerator) {
	s.generator = g
}

// Subscribe registers the generation consumer on the bus.
func (s *WorkoutService) Subscribe() error {
	return s.bus.Subscribe(queue.TopicWorkoutGenerate, s.handleGenerate)
}

// Generate creates a pending job and hands it to the queue. When the
// publish fails the job is marked as errored and still returned.
func (s *WorkoutService) Generate(ctx context.Context, clerkID string, req workout.GenerateRequest) (*workout.GenerationJob, error) {
	if s.generator == nil {
		return nil, apperrors.Precondition("workout generation is not enabled")
	}

	userID, err := resolveUserID(ctx, s.users, clerkID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	job := &workout.GenerationJob{
		UserID:    userID,
		Status:    workout.JobPending,
		Prompt:    req,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.createJob(ctx, job, now); err != nil {
		return nil, err
	}

	err = s.bus.Publish(ctx, queue.TopicWorkoutGenerate, workout.GenerateEvent{JobID: job.ID, UserID: userID})
	if err != nil {
		metrics.JobsDispatched.WithLabelValues(queue.TopicWorkoutGenerate, "error").Inc()
		s.log.Error().Err(err).Str("job_id", job.ID.String()).Msg("Failed to dispatch generation job")

		job.Status = workout.JobError
		job.Error = dispatchFailedMessage
		job.UpdatedAt = s.now()
		if err := s.workouts.UpdateJob(ctx, job); err != nil {
			return nil, wrap("mark generation job failed", err)
		}
		return job, nil
	}
	metrics.JobsDispatched.WithLabelValues(queue.TopicWorkoutGenerate, "ok").Inc()

	return job, nil
}

// createJob stores the job, enforcing the free daily allowance for users
// without an active subscription.
func (s *WorkoutService) createJob(ctx context.Context, job *workout.GenerationJob, now time.Time) error {
	sub, err := s.subscriptions.GetSubscription(ctx, job.UserID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return wrap("get subscription", err)
	}
	if sub.IsPremium(now) {
		if err := s.workouts.CreateJob(ctx, job); err != nil {
			return wrap("create generation job", err)
		}
		return nil
	}

	created, err := s.workouts.CreateJobWithinQuota(ctx, job, checkin.Today(now), s.freeDaily)
	if err != nil {
		return wrap("create generation job", err)
	}
	if !created {
		return apperrors.BusinessRule("daily generation limit reached")
	}
	return nil
}

func (s *WorkoutService) handleGenerate(ctx context.Context, body []byte) error {
	var ev workout.GenerateEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("invalid generation event: %w", err)
	}
	return s.Process(ctx, ev.JobID)
}

// Process runs one generation job. Jobs that are no longer pending are skipped.
func (s *WorkoutService) Process(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.workouts.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load generation job %s: %w", jobID, err)
	}
	if job.Status != workout.JobPending {
		s.log.Debug().Str("job_id", jobID.String()).Str("status", string(job.Status)).Msg("Skipping job that is not pending")
		return nil
	}

	job.Status = workout.JobProcessing
	job.UpdatedAt = s.now()
	if err := s.workouts.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("mark job processing: %w", err)
	}

	plan, genErr := s.generator.Generate(ctx, job.Prompt)
	if genErr != nil {
		s.log.Warn().Err(genErr).Str("job_id", jobID.String()).Msg("Workout generation failed")
		job.Status = workout.JobError
		job.Error = truncate(genErr.Error(), maxJobErrorLength)
	} else {
		job.Status = workout.JobCompleted
		job.Result = plan
	}
	job.UpdatedAt = s.now()
	if err := s.workouts.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("store generation result: %w", err)
	}
	if genErr != nil {
		return nil
	}

	s.activities.Record(ctx, &feed.Activity{
		UserID:    job.UserID,
		Kind:      feed.KindWorkoutGenerated,
		SubjectID: subjectID(job.ID),
		Data:      map[string]any{"title": plan.Title},
	})
	s.notifier.Notify(ctx, job.UserID, notification.NotificationWorkoutReady,
		"Your workout is ready",
		plan.Title,
		map[string]any{"job_id": job.ID.String()},
	)
	s.badges.Trigger(ctx, job.UserID, "workout_generated")
	return nil
}

// GetJob returns the caller's job. Other users' jobs look missing.
func (s *WorkoutService) GetJob(ctx context.Context, clerkID string, jobID uuid.UUID) (*workout.GenerationJob, error) {
	userID, err := resolveUserID(ctx, s.users, clerkID)
	if err != nil {
		return nil, err
	}

	job, err := s.workouts.GetJob(ctx, jobID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && job.UserID != userID) {
		return nil, apperrors.NotFound("generation job not found")
	}
	if err != nil {
		return nil, wrap("get generation job", err)
	}
	return job, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
