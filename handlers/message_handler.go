package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"repcirAPI/internal/apperrors"
	"repcirAPI/internal/logger"
	"repcirAPI/internal/types/message"
	"repcirAPI/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Connections are authenticated by token, so any origin may connect.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type MessageHandler struct {
	messageService *services.MessageService
	hub            *services.MessageHub
}

func NewMessageHandler(messageService *services.MessageService, hub *services.MessageHub) *MessageHandler {
	return &MessageHandler{messageService: messageService, hub: hub}
}

// List returns conversation summaries, or one thread when ?with= is given.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := clerkIDFrom(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	if q.Get("with") == "" {
		convs, err := h.messageService.ListConversations(ctx, clerkID)
		if err != nil {
			respondWithAppError(w, r, err)
			return
		}
		if convs == nil {
			convs = []*message.Conversation{}
		}
		respondWithJSON(w, http.StatusOK, convs)
		return
	}

	query, err := parseThreadQuery(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	msgs, err := h.messageService.Thread(ctx, clerkID, query)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []*message.Message{}
	}
	respondWithJSON(w, http.StatusOK, msgs)
}

func parseThreadQuery(r *http.Request) (message.ThreadQuery, error) {
	q := r.URL.Query()
	var out message.ThreadQuery

	with, err := uuid.Parse(q.Get("with"))
	if err != nil {
		return out, apperrors.Validation("Invalid with", map[string]string{"with": "uuid"})
	}
	out.With = with

	if raw := q.Get("before"); raw != "" {
		before, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return out, apperrors.Validation("Invalid before", map[string]string{"before": "rfc3339"})
		}
		out.Before = &before
	}

	out.Limit, err = queryLimit(r)
	return out, err
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := clerkIDFrom(w, r)
	if !ok {
		return
	}

	var req message.SendMessageRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	m, err := h.messageService.Send(ctx, clerkID, req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, m)
}

// Connect upgrades to a websocket that receives the caller's new messages.
func (h *MessageHandler) Connect(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := clerkIDFrom(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	userID, err := h.messageService.ResolveUser(ctx, clerkID)
	cancel()
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	h.hub.Serve(conn, userID)
}
