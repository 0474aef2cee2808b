package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repcirAPI/internal/types/message"
)

func startHub(t *testing.T) (*MessageHub, *httptest.Server, uuid.UUID) {
	t.Helper()
	hub := NewMessageHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	userID := uuid.New()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(conn, userID)
	}))
	t.Cleanup(srv.Close)
	return hub, srv, userID
}

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestHubDeliversToEveryConnection(t *testing.T) {
	hub, srv, userID := startHub(t)

	first := dialHub(t, srv)
	defer first.Close()
	second := dialHub(t, srv)
	defer second.Close()

	require.Eventually(t, func() bool { return hub.Connected(userID) == 2 }, time.Second, 10*time.Millisecond)

	msg := &message.Message{ID: uuid.New(), SenderID: uuid.New(), RecipientID: userID, Body: "hello"}
	hub.SendToUser(userID, message.Event{Type: "message", Message: msg})
	hub.SendToUser(uuid.New(), message.Event{Type: "message"})

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var ev message.Event
		require.NoError(t, json.Unmarshal(data, &ev))
		assert.Equal(t, "message", ev.Type)
		require.NotNil(t, ev.Message)
		assert.Equal(t, msg.ID, ev.Message.ID)
		assert.Equal(t, "hello", ev.Message.Body)
	}
}

func TestHubUnregistersClosedConnections(t *testing.T) {
	hub, srv, userID := startHub(t)

	conn := dialHub(t, srv)
	require.Eventually(t, func() bool { return hub.Connected(userID) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Connected(userID) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubStopsCleanly(t *testing.T) {
	hub := NewMessageHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	assert.Zero(t, hub.Connected(uuid.New()))
	assert.NotPanics(t, func() { hub.SendToUser(uuid.New(), message.Event{Type: "message"}) })
}
