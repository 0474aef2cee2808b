package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"repcirAPI/internal/apperrors"
	"repcirAPI/internal/logger"
	"repcirAPI/internal/repository"
	"repcirAPI/internal/types/notification"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

type NotificationService struct {
	users         repository.UserStore
	notifications repository.NotificationStore
	dispatcher    *NotificationDispatcher
	now           func() time.Time
	log           zerolog.Logger
}

func NewNotificationService(users repository.UserStore, notifications repository.NotificationStore, dispatcher *NotificationDispatcher) *NotificationService {
	return &NotificationService{
		users:         users,
		notifications: notifications,
		dispatcher:    dispatcher,
		now:           func() time.Time { return time.Now().UTC() },
		log:           logger.With("notifications"),
	}
}

// Notify stores an in-app notification and queues a push. Failures are
// logged and never returned.
func (s *NotificationService) Notify(ctx context.Context, userID uuid.UUID, typ notification.NotificationType, title, body string, data map[string]any) {
	n := &notification.Notification{
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Body:      body,
		Data:      data,
		CreatedAt: s.now(),
	}
	if err := s.notifications.InsertNotification(ctx, n); err != nil {
		s.log.Error().Err(err).Str("user_id", userID.String()).Str("type", string(typ)).Msg("Failed to store notification")
		return
	}

	if s.dispatcher == nil {
		return
	}

	tokens, err := s.notifications.DeviceTokens(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("Failed to load device tokens")
		return
	}
	if len(tokens) == 0 {
		return
	}

	if err := s.dispatcher.DispatchNotification(ctx, n, tokens); err != nil {
		s.log.Warn().Err(err).Str("notification_id", n.ID.String()).Msg("Failed to queue push")
	}
}

func (s *NotificationService) List(ctx context.Context, clerkID string, limit int) (*notification.ListResponse, error) {
	userID, err := resolveUserID(ctx, s.users, clerkID)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}

	items, err := s.notifications.ListNotifications(ctx, userID, limit)
	if err != nil {
		return nil, wrap("list notifications", err)
	}
	unread, err := s.notifications.UnreadCount(ctx, userID)
	if err != nil {
		return nil, wrap("count unread notifications", err)
	}
	return &notification.ListResponse{Notifications: items, UnreadCount: unread}, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, clerkID string) (int64, error) {
	userID, err := resolveUserID(ctx, s.users, clerkID)
	if err != nil {
		return 0, err
	}
	n, err := s.notifications.MarkAllRead(ctx, userID, s.now())
	if err != nil {
		return 0, wrap("mark notifications read", err)
	}
	return n, nil
}

func (s *NotificationService) RegisterDevice(ctx context.Context, clerkID string, req notification.RegisterDeviceRequest) error {
	userID, err := resolveUserID(ctx, s.users, clerkID)
	if err != nil {
		return err
	}
	err = s.notifications.RegisterDevice(ctx, userID, notification.DeviceToken{
		Token:    req.Token,
		Platform: req.Platform,
	})
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("user not found")
	}
	return wrap("register device", err)
}
