package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repcirAPI/internal/queue"
	"repcirAPI/internal/types/badge"
	"repcirAPI/internal/types/circle"
)

func TestBadgeTriggerAwardsThroughBus(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	userID := e.addUser(t, "user_1")
	e.store.SeedBadge(&badge.Badge{Name: "Better Together", CriteriaType: badge.CriteriaCirclesJoined, CriteriaValue: 1})
	e.store.SeedBadge(&badge.Badge{Name: "Hat Trick", CriteriaType: badge.CriteriaChallengesCompleted, CriteriaValue: 3})

	bus := queue.NewLocalBus(1, 8)
	t.Cleanup(func() { bus.Close() })

	svc := NewBadgeService(e.store, e.store, bus, e.feed, e.notes)
	require.NoError(t, svc.Subscribe())

	require.NoError(t, e.store.CreateCircle(ctx, &circle.Circle{Name: "Crew", OwnerID: userID}))
	svc.Trigger(ctx, userID, "circle_created")

	require.Eventually(t, func() bool { return e.notes.Count("badge_earned") == 1 }, 2*time.Second, 10*time.Millisecond)

	list, err := svc.ListBadges(ctx, "user_1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	earned := map[string]bool{}
	for _, b := range list {
		earned[b.Name] = b.Earned
		if b.Earned {
			assert.NotNil(t, b.AwardedAt)
		}
	}
	assert.True(t, earned["Better Together"])
	assert.False(t, earned["Hat Trick"])
}

func TestEvaluateAwardsOnce(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	userID := e.addUser(t, "user_1")
	e.store.SeedBadge(&badge.Badge{Name: "Better Together", CriteriaType: badge.CriteriaCirclesJoined, CriteriaValue: 1})
	require.NoError(t, e.store.CreateCircle(ctx, &circle.Circle{Name: "Crew", OwnerID: userID}))

	svc := NewBadgeService(e.store, e.store, &fakeBus{}, e.feed, e.notes)

	awarded, err := svc.Evaluate(ctx, userID)
	require.NoError(t, err)
	require.Len(t, awarded, 1)
	assert.Equal(t, "Better Together", awarded[0].Name)

	awarded, err = svc.Evaluate(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, awarded)
	assert.Equal(t, 1, e.notes.Count("badge_earned"))
}

func TestBadgeTriggerSwallowsPublishErrors(t *testing.T) {
	e := newTestEnv(t)
	userID := e.addUser(t, "user_1")
	bus := queue.NewLocalBus(1, 1)
	require.NoError(t, bus.Close())

	svc := NewBadgeService(e.store, e.store, bus, e.feed, e.notes)
	assert.NotPanics(t, func() { svc.Trigger(context.Background(), userID, "challenge_completed") })
}
