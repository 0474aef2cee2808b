package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repcirAPI/internal/apperrors"
	"repcirAPI/internal/queue"
	"repcirAPI/internal/repository/memory"
	"repcirAPI/internal/types/subscription"
	"repcirAPI/internal/types/workout"
)

type published struct {
	topic string
	body  []byte
}

type fakeBus struct {
	mu         sync.Mutex
	publishErr error
	published  []published
	handlers   map[string]queue.Handler
}

func (b *fakeBus) Publish(ctx context.Context, topic string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return b.publishErr
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	b.published = append(b.published, published{topic: topic, body: body})
	return nil
}

func (b *fakeBus) Subscribe(topic string, h queue.Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers == nil {
		b.handlers = make(map[string]queue.Handler)
	}
	b.handlers[topic] = h
	return nil
}

func (b *fakeBus) Close() error { return nil }

func (b *fakeBus) Published() []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]published(nil), b.published...)
}

type fakeGenerator struct {
	plan *workout.Plan
	err  error
}

func (g *fakeGenerator) Generate(ctx context.Context, req workout.GenerateRequest) (*workout.Plan, error) {
	return g.plan, g.err
}

var sampleRequest = workout.GenerateRequest{Goal: "strength", DurationMinutes: 30, Level: "beginner"}

func newWorkoutService(e *testEnv, bus queue.Bus, gen WorkoutGenerator) *WorkoutService {
	s := NewWorkoutService(e.store, e.store, e.store, bus, e.badges, e.feed, e.notes, 2)
	s.now = e.clock.Now
	if gen != nil {
		s.SetGenerator(gen)
	}
	return s
}

func TestGenerateDisabledWithoutGenerator(t *testing.T) {
	e := newTestEnv(t)
	e.addUser(t, "user_1")
	svc := newWorkoutService(e, &fakeBus{}, nil)

	_, err := svc.Generate(context.Background(), "user_1", sampleRequest)
	assert.True(t, apperrors.IsKind(err, apperrors.KindPreconditionFailed))
}

func TestGeneratePublishesPendingJob(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	userID := e.addUser(t, "user_1")
	bus := &fakeBus{}
	svc := newWorkoutService(e, bus, &fakeGenerator{})

	job, err := svc.Generate(ctx, "user_1", sampleRequest)
	require.NoError(t, err)
	assert.Equal(t, workout.JobPending, job.Status)

	msgs := bus.Published()
	require.Len(t, msgs, 1)
	assert.Equal(t, queue.TopicWorkoutGenerate, msgs[0].topic)

	var ev workout.GenerateEvent
	require.NoError(t, json.Unmarshal(msgs[0].body, &ev))
	assert.Equal(t, job.ID, ev.JobID)
	assert.Equal(t, userID, ev.UserID)
}

func TestGeneratePublishFailureMarksJobErrored(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.addUser(t, "user_1")
	svc := newWorkoutService(e, &fakeBus{publishErr: errors.New("broker down")}, &fakeGenerator{})

	job, err := svc.Generate(ctx, "user_1", sampleRequest)
	require.NoError(t, err)
	assert.Equal(t, workout.JobError, job.Status)
	assert.Equal(t, dispatchFailedMessage, job.Error)

	stored, err := e.store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, workout.JobError, stored.Status)

	// Failed dispatches do not use up the daily allowance.
	for i := 0; i < 3; i++ {
		_, err = svc.Generate(ctx, "user_1", sampleRequest)
		require.NoError(t, err)
	}
}

func TestGenerateDailyLimit(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	userID := e.addUser(t, "user_1")
	svc := newWorkoutService(e, &fakeBus{}, &fakeGenerator{})

	for i := 0; i < 2; i++ {
		_, err := svc.Generate(ctx, "user_1", sampleRequest)
		require.NoError(t, err)
	}
	_, err := svc.Generate(ctx, "user_1", sampleRequest)
	assert.True(t, apperrors.IsKind(err, apperrors.KindBusinessRule))

	require.NoError(t, e.store.UpsertSubscription(ctx, &subscription.Subscription{
		UserID:           userID,
		Status:           "active",
		CurrentPeriodEnd: e.clock.Now().Add(30 * 24 * time.Hour),
	}))
	_, err = svc.Generate(ctx, "user_1", sampleRequest)
	assert.NoError(t, err, "premium users are not limited")

	require.NoError(t, e.store.UpsertSubscription(ctx, &subscription.Subscription{
		UserID: userID,
		Status: "canceled",
	}))
	e.clock.Advance(24 * time.Hour)
	_, err = svc.Generate(ctx, "user_1", sampleRequest)
	assert.NoError(t, err, "the allowance resets at the next UTC day")
}

func TestGenerateDailyLimitUnderConcurrency(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.addUser(t, "user_1")
	svc := newWorkoutService(e, &fakeBus{}, &fakeGenerator{})

	const callers = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		limited int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Generate(ctx, "user_1", sampleRequest)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case apperrors.IsKind(err, apperrors.KindBusinessRule):
				limited++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, ok)
	assert.Equal(t, callers-2, limited)
}

type quotaRecorder struct {
	*memory.Store
	mu     sync.Mutex
	since  time.Time
	limit  int
	guards int
}

func (q *quotaRecorder) CreateJobWithinQuota(ctx context.Context, j *workout.GenerationJob, since time.Time, limit int) (bool, error) {
	q.mu.Lock()
	q.since, q.limit = since, limit
	q.guards++
	q.mu.Unlock()
	return q.Store.CreateJobWithinQuota(ctx, j, since, limit)
}

func TestGenerateUsesGuardedInsert(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	userID := e.addUser(t, "user_1")
	store := &quotaRecorder{Store: e.store}
	svc := NewWorkoutService(e.store, store, e.store, &fakeBus{}, e.badges, e.feed, e.notes, 2)
	svc.now = e.clock.Now
	svc.SetGenerator(&fakeGenerator{})

	_, err := svc.Generate(ctx, "user_1", sampleRequest)
	require.NoError(t, err)
	assert.Equal(t, 1, store.guards)
	assert.Equal(t, 2, store.limit)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), store.since)

	// premium jobs skip the allowance entirely
	require.NoError(t, e.store.UpsertSubscription(ctx, &subscription.Subscription{
		UserID:           userID,
		Status:           "active",
		CurrentPeriodEnd: e.clock.Now().Add(24 * time.Hour),
	}))
	_, err = svc.Generate(ctx, "user_1", sampleRequest)
	require.NoError(t, err)
	assert.Equal(t, 1, store.guards)
}

func TestProcessCompletesJob(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.addUser(t, "user_1")
	plan := &workout.Plan{Title: "Full body", Exercises: []workout.Exercise{{Name: "Squat", Sets: 3, Reps: "10"}}}
	bus := &fakeBus{}
	svc := newWorkoutService(e, bus, &fakeGenerator{plan: plan})
	require.NoError(t, svc.Subscribe())

	job, err := svc.Generate(ctx, "user_1", sampleRequest)
	require.NoError(t, err)

	msgs := bus.Published()
	require.Len(t, msgs, 1)
	require.NoError(t, bus.handlers[queue.TopicWorkoutGenerate](ctx, msgs[0].body))

	got, err := svc.GetJob(ctx, "user_1", job.ID)
	require.NoError(t, err)
	assert.Equal(t, workout.JobCompleted, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, "Full body", got.Result.Title)
	assert.Equal(t, 1, e.badges.Count("workout_generated"))
	assert.Equal(t, 1, e.notes.Count("workout_ready"))

	// Redelivery of a finished job is a no-op.
	require.NoError(t, svc.Process(ctx, job.ID))
	assert.Equal(t, 1, e.badges.Count("workout_generated"))
}

func TestProcessRecordsGeneratorError(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.addUser(t, "user_1")
	svc := newWorkoutService(e, &fakeBus{}, &fakeGenerator{err: errors.New(strings.Repeat("x", 600))})

	job, err := svc.Generate(ctx, "user_1", sampleRequest)
	require.NoError(t, err)
	require.NoError(t, svc.Process(ctx, job.ID))

	got, err := svc.GetJob(ctx, "user_1", job.ID)
	require.NoError(t, err)
	assert.Equal(t, workout.JobError, got.Status)
	assert.Len(t, got.Error, maxJobErrorLength)
	assert.Zero(t, e.notes.Count("workout_ready"))
}

func TestGetJobHidesOtherUsersJobs(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.addUser(t, "user_1")
	e.addUser(t, "user_2")
	svc := newWorkoutService(e, &fakeBus{}, &fakeGenerator{})

	job, err := svc.Generate(ctx, "user_1", sampleRequest)
	require.NoError(t, err)

	_, err = svc.GetJob(ctx, "user_2", job.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))

	_, err = svc.GetJob(ctx, "user_1", uuid.New())
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}
