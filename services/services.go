package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"repcirAPI/internal/apperrors"
	"repcirAPI/internal/repository"
	"repcirAPI/internal/types/feed"
	"repcirAPI/internal/types/notification"
	"repcirAPI/internal/types/workout"
)

// sideEffectTimeout bounds best-effort work started after a request commits.
const sideEffectTimeout = 10 * time.Second

// BadgeTrigger asks for a badge evaluation. It never fails the caller.
type BadgeTrigger interface {
	Trigger(ctx context.Context, userID uuid.UUID, reason string)
}

type ActivityRecorder interface {
	Record(ctx context.Context, a *feed.Activity)
}

type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, typ notification.NotificationType, title, body string, data map[string]any)
}

type ObjectStorage interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, key string) error
}

type WorkoutGenerator interface {
	Generate(ctx context.Context, req workout.GenerateRequest) (*workout.Plan, error)
}

type InvitationMailer interface {
	SendInvitation(ctx context.Context, to, circleName, inviterName, code, link string) error
}

type PushNotificationProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error
}

func resolveUserID(ctx context.Context, users repository.UserStore, clerkID string) (uuid.UUID, error) {
	if clerkID == "" {
		return uuid.Nil, apperrors.Unauthenticated("unauthorized")
	}
	id, err := users.UserIDByClerkID(ctx, clerkID)
	if errors.Is(err, repository.ErrNotFound) {
		return uuid.Nil, apperrors.Unauthenticated("user not found")
	}
	if err != nil {
		return uuid.Nil, apperrors.Internal(fmt.Errorf("resolve user: %w", err))
	}
	return id, nil
}

// wrap passes application errors through and marks everything else internal.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Internal(fmt.Errorf("%s: %w", op, err))
}

// detached runs fn in the background with a fresh bounded context.
func detached(fn func(ctx context.Context)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func subjectID(id uuid.UUID) *uuid.UUID {
	return &id
}
