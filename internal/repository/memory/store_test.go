package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repcirAPI/internal/repository"
	"repcirAPI/internal/types/challenge"
	"repcirAPI/internal/types/circle"
)

func TestWithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	ch := &challenge.Challenge{Name: "c", DurationDays: 3, IsActive: true}
	s.SeedChallenge(ch)
	userID := uuid.New()

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(tx repository.ChallengeTx) error {
		require.NoError(t, tx.InsertParticipant(ctx, &challenge.Participant{ChallengeID: ch.ID, UserID: userID, Status: challenge.StatusActive, CurrentDay: 1}))
		require.NoError(t, tx.AdjustParticipantCount(ctx, ch.ID, 1))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetParticipant(ctx, ch.ID, userID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	got, err := s.GetChallenge(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ParticipantCount)
}

func TestProgressUniquePerDate(t *testing.T) {
	ctx := context.Background()
	s := New()
	participantID := uuid.New()
	day := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	err := s.WithinTx(ctx, func(tx repository.ChallengeTx) error {
		require.NoError(t, tx.InsertProgress(ctx, &challenge.Progress{ParticipantID: participantID, Date: day, Day: 1}))
		return tx.InsertProgress(ctx, &challenge.Progress{ParticipantID: participantID, Date: day, Day: 2})
	})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	rows, err := s.ListProgress(ctx, participantID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestParticipantCountFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	s := New()
	ch := &challenge.Challenge{Name: "c", DurationDays: 3, IsActive: true}
	s.SeedChallenge(ch)

	require.NoError(t, s.WithinTx(ctx, func(tx repository.ChallengeTx) error {
		return tx.AdjustParticipantCount(ctx, ch.ID, -1)
	}))
	got, err := s.GetChallenge(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ParticipantCount)
}

func TestReserveInvitationUseIsGuarded(t *testing.T) {
	ctx := context.Background()
	s := New()
	maxUses := 3
	inv := &circle.Invitation{CircleID: uuid.New(), Code: "ABCDEFGH", MaxUses: &maxUses}
	require.NoError(t, s.CreateInvitation(ctx, inv))

	var wg sync.WaitGroup
	var reserved atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.ReserveInvitationUse(ctx, inv.ID)
			if err == nil && ok {
				reserved.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(3), reserved.Load())

	require.NoError(t, s.ReleaseInvitationUse(ctx, inv.ID))
	got, err := s.GetInvitationByCode(ctx, "ABCDEFGH")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Uses)
}

func TestClaimCronRun(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	ok, err := s.ClaimCronRun(ctx, "data-retention", now, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ClaimCronRun(ctx, "data-retention", now.Add(59*time.Minute), time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.ClaimCronRun(ctx, "data-retention", now.Add(time.Hour), time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestShareCircle(t *testing.T) {
	ctx := context.Background()
	s := New()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	cir := &circle.Circle{Name: "Family", OwnerID: a}
	require.NoError(t, s.CreateCircle(ctx, cir))
	require.NoError(t, s.AddMember(ctx, &circle.Member{CircleID: cir.ID, UserID: b, Role: circle.RoleMember}))

	shared, err := s.ShareCircle(ctx, a, b)
	require.NoError(t, err)
	assert.True(t, shared)

	shared, err = s.ShareCircle(ctx, a, c)
	require.NoError(t, err)
	assert.False(t, shared)

	assert.ErrorIs(t, s.AddMember(ctx, &circle.Member{CircleID: cir.ID, UserID: b}), repository.ErrDuplicate)
}
