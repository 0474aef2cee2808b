package services

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repcirAPI/internal/repository/memory"
	"repcirAPI/internal/types/circle"
	"repcirAPI/internal/types/notification"
	"repcirAPI/internal/types/workout"
)

var testPolicy = RetentionPolicy{
	Interval:        time.Hour,
	InvitationAge:   7 * 24 * time.Hour,
	JobAge:          30 * 24 * time.Hour,
	NotificationAge: 30 * 24 * time.Hour,
	ProofUploadAge:  30 * 24 * time.Hour,
}

// seedRetentionData leaves one stale and one fresh row in every category.
func seedRetentionData(t *testing.T, e *testEnv, storage *fakeStorage) {
	t.Helper()
	ctx := context.Background()
	userID := e.addUser(t, "user_1")
	now := e.clock.Now()
	old := now.Add(-60 * 24 * time.Hour)

	expired := now.Add(-10 * 24 * time.Hour)
	future := now.Add(24 * time.Hour)
	require.NoError(t, e.store.CreateInvitation(ctx, &circle.Invitation{Code: "OLDCODE2", ExpiresAt: &expired, CreatedAt: old}))
	require.NoError(t, e.store.CreateInvitation(ctx, &circle.Invitation{Code: "NEWCODE2", ExpiresAt: &future, CreatedAt: now}))

	require.NoError(t, e.store.CreateJob(ctx, &workout.GenerationJob{UserID: userID, Status: workout.JobCompleted, CreatedAt: old, UpdatedAt: old}))
	require.NoError(t, e.store.CreateJob(ctx, &workout.GenerationJob{UserID: userID, Status: workout.JobPending, CreatedAt: old, UpdatedAt: old}))

	require.NoError(t, e.store.InsertNotification(ctx, &notification.Notification{UserID: userID, Type: "badge_earned", ReadAt: &old, CreatedAt: old}))
	require.NoError(t, e.store.InsertNotification(ctx, &notification.Notification{UserID: userID, Type: "badge_earned", CreatedAt: old}))

	// One proof upload belonging to a participant who quit long ago.
	ch := e.addChallenge(30, false)
	challenges := newChallengeService(e)
	challenges.SetStorage(storage)
	challenges.now = func() time.Time { return old }
	_, err := challenges.Join(ctx, "user_1", ch.ID)
	require.NoError(t, err)
	_, err = challenges.UploadProof(ctx, "user_1", ch.ID, ProofFile{Body: bytes.NewReader([]byte("png")), Size: 3, ContentType: "image/png"})
	require.NoError(t, err)
	_, err = challenges.Leave(ctx, "user_1", ch.ID)
	require.NoError(t, err)
}

func TestRetentionRun(t *testing.T) {
	e := newTestEnv(t)
	storage := &fakeStorage{}
	seedRetentionData(t, e, storage)

	svc := NewRetentionService(e.store, storage, testPolicy)
	svc.now = e.clock.Now

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Failed())
	assert.Equal(t, CategoryResult{Deleted: 1}, report.Results[CategoryExpiredInvitations])
	assert.Equal(t, CategoryResult{Deleted: 1}, report.Results[CategoryGenerationJobs])
	assert.Equal(t, CategoryResult{Deleted: 1}, report.Results[CategoryReadNotifications])
	assert.Equal(t, CategoryResult{Deleted: 1}, report.Results[CategoryProofUploads])
	assert.Len(t, storage.deletes, 1)

	_, err = e.store.GetInvitationByCode(context.Background(), "NEWCODE2")
	assert.NoError(t, err)
}

func TestRetentionRunsAtMostHourly(t *testing.T) {
	e := newTestEnv(t)
	svc := NewRetentionService(e.store, nil, testPolicy)
	svc.now = e.clock.Now
	ctx := context.Background()

	_, err := svc.Run(ctx)
	require.NoError(t, err)

	e.clock.Advance(59 * time.Minute)
	_, err = svc.Run(ctx)
	assert.ErrorIs(t, err, ErrRetentionTooSoon)

	e.clock.Advance(time.Minute)
	_, err = svc.Run(ctx)
	assert.NoError(t, err)
}

type failingJobsStore struct {
	*memory.Store
}

func (f failingJobsStore) DeleteFinishedJobs(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, errors.New("relation does not exist")
}

func TestRetentionCategoryFailureIsIsolated(t *testing.T) {
	e := newTestEnv(t)
	storage := &fakeStorage{}
	seedRetentionData(t, e, storage)

	svc := NewRetentionService(failingJobsStore{e.store}, storage, testPolicy)
	svc.now = e.clock.Now

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Failed())
	assert.Equal(t, "relation does not exist", report.Results[CategoryGenerationJobs].Error)
	assert.Equal(t, int64(1), report.Results[CategoryExpiredInvitations].Deleted)
	assert.Equal(t, int64(1), report.Results[CategoryReadNotifications].Deleted)
	assert.Equal(t, int64(1), report.Results[CategoryProofUploads].Deleted)
}

func TestRetentionKeepsRowWhenObjectDeleteFails(t *testing.T) {
	e := newTestEnv(t)
	storage := &fakeStorage{}
	seedRetentionData(t, e, storage)
	storage.deleteErr = errors.New("access denied")

	svc := NewRetentionService(e.store, storage, testPolicy)
	svc.now = e.clock.Now

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	res := report.Results[CategoryProofUploads]
	assert.Zero(t, res.Deleted)
	assert.Contains(t, res.Error, "1 proof uploads not removed")

	stale, err := e.store.StaleProofUploads(context.Background(), e.clock.Now(), 10)
	require.NoError(t, err)
	assert.Len(t, stale, 1)
}
