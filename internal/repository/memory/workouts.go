package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"repcirAPI/internal/repository"
	"repcirAPI/internal/types/notification"
	"repcirAPI/internal/types/subscription"
	"repcirAPI/internal/types/workout"
)

func (s *Store) CreateJob(ctx context.Context, j *workout.GenerationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	s.jobs[j.ID] = cloneJob(j)
	return nil
}

func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*workout.GenerationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneJob(j), nil
}

func (s *Store) UpdateJob(ctx context.Context, j *workout.GenerationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; !ok {
		return repository.ErrNotFound
	}
	s.jobs[j.ID] = cloneJob(j)
	return nil
}

func (s *Store) CreateJobWithinQuota(ctx context.Context, j *workout.GenerationJob, since time.Time, limit int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, existing := range s.jobs {
		if existing.UserID == j.UserID && existing.Status != workout.JobError && !existing.CreatedAt.Before(since) {
			n++
		}
	}
	if n >= limit {
		return false, nil
	}
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	s.jobs[j.ID] = cloneJob(j)
	return true, nil
}

func (s *Store) GetSubscription(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *Store) UpsertSubscription(ctx context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := s.subscriptions[sub.UserID]; ok {
		sub.CreatedAt = existing.CreatedAt
	} else {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	cp := *sub
	s.subscriptions[sub.UserID] = &cp
	return nil
}

func (s *Store) InsertNotification(ctx context.Context, n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	cp := *n
	s.notifications[n.ID] = &cp
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]*notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*notification.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, notif := range s.notifications {
		if notif.UserID == userID && notif.ReadAt == nil {
			n++
		}
	}
	return n, nil
}

func (s *Store) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, notif := range s.notifications {
		if notif.UserID == userID && notif.ReadAt == nil {
			t := at
			notif.ReadAt = &t
			n++
		}
	}
	return n, nil
}

func (s *Store) DeviceTokens(ctx context.Context, userID uuid.UUID) ([]notification.DeviceToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []notification.DeviceToken
	for _, d := range s.devices {
		if d.userID == userID {
			out = append(out, d.token)
		}
	}
	return out, nil
}

// RegisterDevice moves an existing token to the new owner.
func (s *Store) RegisterDevice(ctx context.Context, userID uuid.UUID, token notification.DeviceToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[token.Token] = device{userID: userID, token: token}
	return nil
}
