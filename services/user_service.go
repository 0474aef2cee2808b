package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"repcirAPI/internal/apperrors"
	"repcirAPI/internal/logger"
	"repcirAPI/internal/repository"
	"repcirAPI/internal/types/user"
)

type UserService struct {
	users repository.UserStore
	log   zerolog.Logger
}

func NewUserService(users repository.UserStore) *UserService {
	return &UserService{users: users, log: logger.With("users")}
}

func (s *UserService) GetProfile(ctx context.Context, clerkID string) (*user.User, error) {
	u, err := s.users.GetUserByClerkID(ctx, clerkID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("user not found")
	}
	if err != nil {
		return nil, wrap("get user", err)
	}
	return u, nil
}

// SyncUser creates or updates the local copy of a Clerk user.
func (s *UserService) SyncUser(ctx context.Context, u *user.User) error {
	if u.ClerkID == "" {
		return apperrors.Validation("missing clerk id", map[string]string{"id": "required"})
	}
	if err := s.users.UpsertUser(ctx, u); err != nil {
		return wrap("upsert user", err)
	}
	s.log.Info().Str("clerk_id", u.ClerkID).Msg("User synced")
	return nil
}

// DeleteUser removes the user. Deleting an unknown user is not an error.
func (s *UserService) DeleteUser(ctx context.Context, clerkID string) error {
	err := s.users.DeleteUserByClerkID(ctx, clerkID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return wrap("delete user", err)
	}
	s.log.Info().Str("clerk_id", clerkID).Msg("User deleted")
	return nil
}
