package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repcirAPI/internal/apperrors"
	"repcirAPI/internal/types/circle"
	"repcirAPI/internal/types/feed"
	"repcirAPI/internal/types/user"
)

func TestFeedShowsCircleMatesOnly(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	aliceID := e.addUser(t, "alice")
	bobID := e.addUser(t, "bob")
	carolID := e.addUser(t, "carol")

	c := &circle.Circle{Name: "Crew", OwnerID: aliceID}
	require.NoError(t, e.store.CreateCircle(ctx, c))
	require.NoError(t, e.store.AddMember(ctx, &circle.Member{CircleID: c.ID, UserID: bobID, Role: circle.RoleMember}))

	e.feed.Record(ctx, &feed.Activity{UserID: bobID, Kind: feed.KindChallengeJoined})
	e.clock.Advance(time.Minute)
	e.feed.Record(ctx, &feed.Activity{UserID: aliceID, Kind: feed.KindBadgeEarned})
	e.feed.Record(ctx, &feed.Activity{UserID: carolID, Kind: feed.KindCircleJoined})

	items, err := e.feed.List(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, feed.KindBadgeEarned, items[0].Kind)
	assert.Equal(t, "bob", items[1].Username)

	items, err = e.feed.List(ctx, "carol", 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, carolID, items[0].UserID)

	_, err = e.feed.List(ctx, "", 10)
	assert.True(t, apperrors.IsKind(err, apperrors.KindUnauthenticated))
}

func TestUserSyncAndDelete(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	svc := NewUserService(e.store)

	require.NoError(t, svc.SyncUser(ctx, &user.User{ClerkID: "user_1", Email: "a@example.com", Username: "a"}))
	require.NoError(t, svc.SyncUser(ctx, &user.User{ClerkID: "user_1", Email: "b@example.com", Username: "b"}))

	u, err := svc.GetProfile(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", u.Email)

	err = svc.SyncUser(ctx, &user.User{Email: "x@example.com"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	require.NoError(t, svc.DeleteUser(ctx, "user_1"))
	require.NoError(t, svc.DeleteUser(ctx, "user_1"))

	_, err = svc.GetProfile(ctx, "user_1")
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}
