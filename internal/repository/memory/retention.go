package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"repcirAPI/internal/repository"
	"repcirAPI/internal/types/challenge"
)

func (s *Store) ClaimCronRun(ctx context.Context, name string, now time.Time, interval time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.cronRuns[name]; ok && now.Sub(last) < interval {
		return false, nil
	}
	s.cronRuns[name] = now
	return true, nil
}

func (s *Store) DeleteExpiredInvitations(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, inv := range s.invitations {
		expired := inv.ExpiresAt != nil && inv.ExpiresAt.Before(cutoff)
		exhausted := inv.MaxUses != nil && inv.Uses >= *inv.MaxUses && inv.CreatedAt.Before(cutoff)
		if expired || exhausted {
			delete(s.invitations, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteFinishedJobs(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, j := range s.jobs {
		if j.Finished() && j.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteReadNotifications(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, notif := range s.notifications {
		if notif.ReadAt != nil && notif.ReadAt.Before(cutoff) {
			delete(s.notifications, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) StaleProofUploads(ctx context.Context, cutoff time.Time, limit int) ([]*challenge.ProofUpload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*challenge.ProofUpload
	for _, u := range s.proofs {
		p, ok := s.participants[u.ParticipantID]
		if !ok || p.Status != challenge.StatusQuit || !p.UpdatedAt.Before(cutoff) {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) DeleteProofUpload(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.proofs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.proofs, id)
	return nil
}
