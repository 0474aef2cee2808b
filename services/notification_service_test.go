package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repcirAPI/internal/logger"
	"repcirAPI/internal/types/notification"
)

type pushCall struct {
	tokens []notification.DeviceToken
	title  string
	data   map[string]any
}

type fakePush struct {
	mu    sync.Mutex
	calls []pushCall
	err   error
}

func (p *fakePush) SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, pushCall{tokens: tokens, title: title, data: data})
	return p.err
}

func (p *fakePush) Calls() []pushCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pushCall(nil), p.calls...)
}

func TestNotifyStoresAndPushes(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	userID := e.addUser(t, "user_1")

	push := &fakePush{}
	dispatcher := NewNotificationDispatcher(2, 10)
	dispatcher.SetPushProvider(push)
	t.Cleanup(dispatcher.Stop)

	svc := NewNotificationService(e.store, e.store, dispatcher)
	svc.now = e.clock.Now

	require.NoError(t, svc.RegisterDevice(ctx, "user_1", notification.RegisterDeviceRequest{Token: "tok-1", Platform: "ios"}))

	svc.Notify(ctx, userID, notification.NotificationBadgeEarned, "New badge", "You earned Finisher", map[string]any{"badge_id": "b1"})

	require.Eventually(t, func() bool { return len(push.Calls()) == 1 }, time.Second, 10*time.Millisecond)
	call := push.Calls()[0]
	assert.Equal(t, "New badge", call.title)
	require.Len(t, call.tokens, 1)
	assert.Equal(t, "tok-1", call.tokens[0].Token)
	assert.Equal(t, "b1", call.data["badge_id"])
	assert.Equal(t, "badge_earned", call.data["type"])
	assert.NotEmpty(t, call.data["notification_id"])

	list, err := svc.List(ctx, "user_1", 0)
	require.NoError(t, err)
	require.Len(t, list.Notifications, 1)
	assert.Equal(t, 1, list.UnreadCount)

	n, err := svc.MarkAllRead(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	list, err = svc.List(ctx, "user_1", 0)
	require.NoError(t, err)
	assert.Zero(t, list.UnreadCount)
}

func TestNotifyWithoutDevicesSkipsPush(t *testing.T) {
	e := newTestEnv(t)
	userID := e.addUser(t, "user_1")

	push := &fakePush{}
	dispatcher := NewNotificationDispatcher(1, 1)
	dispatcher.SetPushProvider(push)
	t.Cleanup(dispatcher.Stop)

	svc := NewNotificationService(e.store, e.store, dispatcher)
	svc.Notify(context.Background(), userID, notification.NotificationNewMessage, "Bob", "hi", nil)

	list, err := svc.List(context.Background(), "user_1", 0)
	require.NoError(t, err)
	assert.Len(t, list.Notifications, 1)
	assert.Empty(t, push.Calls())
}

func TestDispatcherStop(t *testing.T) {
	d := NewNotificationDispatcher(1, 1)
	d.SetPushProvider(&fakePush{err: errors.New("fcm unavailable")})

	n := &notification.Notification{Title: "t"}
	require.NoError(t, d.DispatchNotification(context.Background(), n, []notification.DeviceToken{{Token: "a"}}))

	d.Stop()
	d.Stop()

	err := d.DispatchNotification(context.Background(), n, []notification.DeviceToken{{Token: "a"}})
	assert.EqualError(t, err, "dispatcher stopped")
}

func TestDispatcherQueueFull(t *testing.T) {
	d := &NotificationDispatcher{
		jobQueue:       make(chan *DispatchJob, 1),
		stopChan:       make(chan struct{}),
		enqueueTimeout: 20 * time.Millisecond,
		log:            logger.With("test"),
	}
	n := &notification.Notification{Title: "t"}

	require.NoError(t, d.DispatchNotification(context.Background(), n, nil))
	err := d.DispatchNotification(context.Background(), n, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue full")
}
