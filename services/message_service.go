package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"repcirAPI/internal/apperrors"
	"repcirAPI/internal/logger"
	"repcirAPI/internal/repository"
	"repcirAPI/internal/types/message"
	"repcirAPI/internal/types/notification"
)

const (
	defaultThreadLimit = 50
	maxThreadLimit     = 100
	pushPreviewLength  = 120
)

// Broadcaster pushes realtime events to a user's open connections.
type Broadcaster interface {
	SendToUser(userID uuid.UUID, event message.Event)
}

type MessageService struct {
	users    repository.UserStore
	circles  repository.CircleStore
	messages repository.MessageStore
	hub      Broadcaster
	notifier Notifier
	now      func() time.Time
	log      zerolog.Logger
}

func NewMessageService(users repository.UserStore, circles repository.CircleStore, messages repository.MessageStore, hub Broadcaster, notifier Notifier) *MessageService {
	return &MessageService{
		users:    users,
		circles:  circles,
		messages: messages,
		hub:      hub,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
		log:      logger.With("messages"),
	}
}

// ResolveUser maps a Clerk subject to the internal user id.
func (s *MessageService) ResolveUser(ctx context.Context, clerkID string) (uuid.UUID, error) {
	return resolveUserID(ctx, s.users, clerkID)
}

func (s *MessageService) ListConversations(ctx context.Context, clerkID string) ([]*message.Conversation, error) {
	userID, err := resolveUserID(ctx, s.users, clerkID)
	if err != nil {
		return nil, err
	}
	convs, err := s.messages.ListConversations(ctx, userID)
	if err != nil {
		return nil, wrap("list conversations", err)
	}
	return convs, nil
}

// Thread returns the conversation with q.With, newest first, and marks the
// other user's messages as read.
func (s *MessageService) Thread(ctx context.Context, clerkID string, q message.ThreadQuery) ([]*message.Message, error) {
	userID, err := resolveUserID(ctx, s.users, clerkID)
	if err != nil {
		return nil, err
	}

	if _, err := s.users.GetUser(ctx, q.With); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, wrap("get user", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultThreadLimit
	}
	if limit > maxThreadLimit {
		limit = maxThreadLimit
	}

	msgs, err := s.messages.ListThread(ctx, userID, q.With, q.Before, limit)
	if err != nil {
		return nil, wrap("list thread", err)
	}

	if _, err := s.messages.MarkThreadRead(ctx, userID, q.With, s.now()); err != nil {
		s.log.Warn().Err(err).Msg("Failed to mark thread read")
	}
	return msgs, nil
}

func (s *MessageService) Send(ctx context.Context, clerkID string, req message.SendMessageRequest) (*message.Message, error) {
	senderID, err := resolveUserID(ctx, s.users, clerkID)
	if err != nil {
		return nil, err
	}
	if senderID == req.RecipientID {
		return nil, apperrors.BusinessRule("cannot message yourself")
	}

	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, apperrors.Validation("message body is empty", map[string]string{"body": "required"})
	}

	sender, err := s.users.GetUser(ctx, senderID)
	if err != nil {
		return nil, wrap("get sender", err)
	}
	if _, err := s.users.GetUser(ctx, req.RecipientID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("recipient not found")
		}
		return nil, wrap("get recipient", err)
	}

	shared, err := s.circles.ShareCircle(ctx, senderID, req.RecipientID)
	if err != nil {
		return nil, wrap("check shared circle", err)
	}
	if !shared {
		return nil, apperrors.Forbidden("you can only message members of your circles")
	}

	m := &message.Message{
		SenderID:    senderID,
		RecipientID: req.RecipientID,
		Body:        body,
		CreatedAt:   s.now(),
	}
	if err := s.messages.InsertMessage(ctx, m); err != nil {
		return nil, wrap("insert message", err)
	}

	event := message.Event{Type: "message", Message: m}
	s.hub.SendToUser(req.RecipientID, event)
	s.hub.SendToUser(senderID, event)

	s.notifier.Notify(ctx, req.RecipientID, notification.NotificationNewMessage,
		sender.DisplayName(),
		preview(body),
		map[string]any{"message_id": m.ID.String(), "sender_id": senderID.String()},
	)

	return m, nil
}

func preview(body string) string {
	r := []rune(body)
	if len(r) <= pushPreviewLength {
		return body
	}
	return string(r[:pushPreviewLength-1]) + "…"
}
