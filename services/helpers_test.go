package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"repcirAPI/internal/repository/memory"
	"repcirAPI/internal/types/challenge"
	"repcirAPI/internal/types/message"
	"repcirAPI/internal/types/notification"
	"repcirAPI/internal/types/user"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type badgeRecorder struct {
	mu      sync.Mutex
	reasons []string
}

func (b *badgeRecorder) Trigger(ctx context.Context, userID uuid.UUID, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reasons = append(b.reasons, reason)
}

func (b *badgeRecorder) Count(reason string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.reasons {
		if r == reason {
			n++
		}
	}
	return n
}

type sentNotification struct {
	userID uuid.UUID
	typ    notification.NotificationType
}

type notifyRecorder struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *notifyRecorder) Notify(ctx context.Context, userID uuid.UUID, typ notification.NotificationType, title, body string, data map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{userID: userID, typ: typ})
}

func (n *notifyRecorder) Count(typ notification.NotificationType) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if s.typ == typ {
			c++
		}
	}
	return c
}

type hubRecorder struct {
	mu     sync.Mutex
	events map[uuid.UUID][]message.Event
}

func (h *hubRecorder) SendToUser(userID uuid.UUID, event message.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.events == nil {
		h.events = make(map[uuid.UUID][]message.Event)
	}
	h.events[userID] = append(h.events[userID], event)
}

func (h *hubRecorder) For(userID uuid.UUID) []message.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.events[userID]
}

type testEnv struct {
	store  *memory.Store
	clock  *testClock
	feed   *FeedService
	badges *badgeRecorder
	notes  *notifyRecorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.New()
	clock := newTestClock()
	feed := NewFeedService(store, store)
	feed.now = clock.Now
	return &testEnv{
		store:  store,
		clock:  clock,
		feed:   feed,
		badges: &badgeRecorder{},
		notes:  &notifyRecorder{},
	}
}

func (e *testEnv) addUser(t *testing.T, clerkID string) uuid.UUID {
	t.Helper()
	u := &user.User{
		ClerkID:   clerkID,
		Email:     clerkID + "@example.com",
		Username:  clerkID,
		FirstName: clerkID,
	}
	require.NoError(t, e.store.UpsertUser(context.Background(), u))
	return u.ID
}

func (e *testEnv) addChallenge(days int, restartOnFail bool) *challenge.Challenge {
	ch := &challenge.Challenge{
		Name:          "Run streak",
		DurationDays:  days,
		DailyTasks:    []challenge.DailyTask{{Name: "run", IsRequired: true}, {Name: "stretch"}},
		RestartOnFail: restartOnFail,
		IsActive:      true,
	}
	e.store.SeedChallenge(ch)
	return ch
}
