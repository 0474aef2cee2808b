package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repcirAPI/internal/apperrors"
	"repcirAPI/internal/types/circle"
	"repcirAPI/internal/types/message"
)

func TestSendMessageRequiresSharedCircle(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	aliceID := e.addUser(t, "alice")
	bobID := e.addUser(t, "bob")
	hub := &hubRecorder{}
	svc := NewMessageService(e.store, e.store, e.store, hub, e.notes)
	svc.now = e.clock.Now

	_, err := svc.Send(ctx, "alice", message.SendMessageRequest{RecipientID: bobID, Body: "hi"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	_, err = svc.Send(ctx, "alice", message.SendMessageRequest{RecipientID: aliceID, Body: "hi"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindBusinessRule))

	_, err = svc.Send(ctx, "alice", message.SendMessageRequest{RecipientID: uuid.New(), Body: "hi"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))

	_, err = svc.Send(ctx, "alice", message.SendMessageRequest{RecipientID: bobID, Body: "   "})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	assert.Empty(t, hub.For(bobID))
}

func TestSendAndReadThread(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	aliceID := e.addUser(t, "alice")
	bobID := e.addUser(t, "bob")

	c := &circle.Circle{Name: "Crew", OwnerID: aliceID}
	require.NoError(t, e.store.CreateCircle(ctx, c))
	require.NoError(t, e.store.AddMember(ctx, &circle.Member{CircleID: c.ID, UserID: bobID, Role: circle.RoleMember}))

	hub := &hubRecorder{}
	svc := NewMessageService(e.store, e.store, e.store, hub, e.notes)
	svc.now = e.clock.Now

	m, err := svc.Send(ctx, "alice", message.SendMessageRequest{RecipientID: bobID, Body: " morning run? "})
	require.NoError(t, err)
	assert.Equal(t, "morning run?", m.Body)
	assert.Nil(t, m.ReadAt)

	require.Len(t, hub.For(bobID), 1)
	require.Len(t, hub.For(aliceID), 1)
	assert.Equal(t, "message", hub.For(bobID)[0].Type)
	assert.Equal(t, m.ID, hub.For(bobID)[0].Message.ID)
	assert.Equal(t, 1, e.notes.Count("new_message"))

	convs, err := svc.ListConversations(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, 1, convs[0].UnreadCount)

	e.clock.Advance(time.Minute)
	thread, err := svc.Thread(ctx, "bob", message.ThreadQuery{With: aliceID})
	require.NoError(t, err)
	require.Len(t, thread, 1)

	convs, err = svc.ListConversations(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, 0, convs[0].UnreadCount)

	_, err = svc.Thread(ctx, "bob", message.ThreadQuery{With: uuid.New()})
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestPreviewTruncatesLongBodies(t *testing.T) {
	short := "see you at 6"
	assert.Equal(t, short, preview(short))

	long := strings.Repeat("é", 200)
	got := preview(long)
	assert.Equal(t, pushPreviewLength, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "…"))
}
