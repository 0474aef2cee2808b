package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"repcirAPI/internal/logger"
	"repcirAPI/internal/types/message"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames and keepalives.
	maxMessageSize = 512

	clientSendBuffer = 16
)

// HubClient is one websocket connection of a user.
type HubClient struct {
	hub    *MessageHub
	conn   *websocket.Conn
	send   chan []byte
	userID uuid.UUID
}

type delivery struct {
	userID uuid.UUID
	data   []byte
}

type countQuery struct {
	userID uuid.UUID
	reply  chan int
}

// MessageHub fans direct messages out to every open connection of the
// recipient. All client bookkeeping happens on the Run goroutine.
type MessageHub struct {
	clients    map[uuid.UUID]map[*HubClient]struct{}
	register   chan *HubClient
	unregister chan *HubClient
	deliver    chan delivery
	query      chan countQuery
	done       chan struct{}
	log        zerolog.Logger
}

func NewMessageHub() *MessageHub {
	return &MessageHub{
		clients:    make(map[uuid.UUID]map[*HubClient]struct{}),
		register:   make(chan *HubClient),
		unregister: make(chan *HubClient),
		deliver:    make(chan delivery, 64),
		query:      make(chan countQuery),
		done:       make(chan struct{}),
		log:        logger.With("message_hub"),
	}
}

// Run processes hub events until ctx is cancelled, then closes every client.
func (h *MessageHub) Run(ctx context.Context) {
	defer func() {
		for _, set := range h.clients {
			for c := range set {
				close(c.send)
			}
		}
		h.clients = nil
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			set, ok := h.clients[c.userID]
			if !ok {
				set = make(map[*HubClient]struct{})
				h.clients[c.userID] = set
			}
			set[c] = struct{}{}
			h.log.Debug().Str("user_id", c.userID.String()).Int("connections", len(set)).Msg("Client connected")

		case c := <-h.unregister:
			h.remove(c)

		case d := <-h.deliver:
			for c := range h.clients[d.userID] {
				select {
				case c.send <- d.data:
				default:
					h.remove(c)
				}
			}

		case q := <-h.query:
			q.reply <- len(h.clients[q.userID])
		}
	}
}

func (h *MessageHub) remove(c *HubClient) {
	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
}

// SendToUser queues event for the user's open connections. It drops the
// event when the hub is stopped.
func (h *MessageHub) SendToUser(userID uuid.UUID, event message.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal hub event")
		return
	}
	select {
	case h.deliver <- delivery{userID: userID, data: data}:
	case <-h.done:
	}
}

// Connected returns the number of open connections for the user.
func (h *MessageHub) Connected(userID uuid.UUID) int {
	reply := make(chan int, 1)
	select {
	case h.query <- countQuery{userID: userID, reply: reply}:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Serve attaches conn to the hub and blocks until the connection closes.
func (h *MessageHub) Serve(conn *websocket.Conn, userID uuid.UUID) {
	c := &HubClient{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, clientSendBuffer),
		userID: userID,
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	c.readPump()
}

func (c *HubClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug().Err(err).Msg("Websocket closed unexpectedly")
			}
			return
		}
	}
}

func (c *HubClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
