package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"repcirAPI/internal/repository"
	"repcirAPI/internal/types/user"
)

func (s *Store) findUserByClerkID(clerkID string) *user.User {
	for _, u := range s.users {
		if u.ClerkID == clerkID {
			return u
		}
	}
	return nil
}

func (s *Store) UserIDByClerkID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u := s.findUserByClerkID(clerkID); u != nil {
		return u.ID, nil
	}
	return uuid.Nil, repository.ErrNotFound
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.findUserByClerkID(clerkID)
	if u == nil {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// UpsertUser matches on clerk ID and keeps the existing internal ID.
func (s *Store) UpsertUser(ctx context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if existing := s.findUserByClerkID(u.ClerkID); existing != nil {
		u.ID = existing.ID
		u.CreatedAt = existing.CreatedAt
		u.StripeCustomerID = existing.StripeCustomerID
	} else {
		if u.ID == uuid.Nil {
			u.ID = uuid.New()
		}
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) DeleteUserByClerkID(ctx context.Context, clerkID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.findUserByClerkID(clerkID)
	if u == nil {
		return repository.ErrNotFound
	}
	delete(s.users, u.ID)
	return nil
}

func (s *Store) SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.StripeCustomerID = customerID
	return nil
}

func (s *Store) UserIDByStripeCustomer(ctx context.Context, customerID string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if customerID != "" && u.StripeCustomerID == customerID {
			return u.ID, nil
		}
	}
	return uuid.Nil, repository.ErrNotFound
}
