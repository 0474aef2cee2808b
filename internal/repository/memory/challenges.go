package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"repcirAPI/internal/repository"
	"repcirAPI/internal/types/challenge"
)

func (s *Store) ListChallenges(ctx context.Context) ([]*challenge.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*challenge.Challenge, 0, len(s.challenges))
	for _, c := range s.challenges {
		if c.IsActive {
			out = append(out, cloneChallenge(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) GetChallenge(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getChallenge(id)
}

func (s *Store) getChallenge(id uuid.UUID) (*challenge.Challenge, error) {
	c, ok := s.challenges[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneChallenge(c), nil
}

func (s *Store) findParticipant(challengeID, userID uuid.UUID) *challenge.Participant {
	for _, p := range s.participants {
		if p.ChallengeID == challengeID && p.UserID == userID {
			return p
		}
	}
	return nil
}

func (s *Store) GetParticipant(ctx context.Context, challengeID, userID uuid.UUID) (*challenge.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.findParticipant(challengeID, userID)
	if p == nil {
		return nil, repository.ErrNotFound
	}
	return cloneParticipant(p), nil
}

func (s *Store) ListParticipations(ctx context.Context, userID uuid.UUID) ([]*challenge.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*challenge.Participant
	for _, p := range s.participants {
		if p.UserID == userID {
			out = append(out, cloneParticipant(p))
		}
	}
	return out, nil
}

func (s *Store) ListProgress(ctx context.Context, participantID uuid.UUID) ([]*challenge.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*challenge.Progress
	for _, p := range s.progress {
		if p.ParticipantID == participantID {
			out = append(out, cloneProgress(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) InsertProofUpload(ctx context.Context, u *challenge.ProofUpload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[u.ParticipantID]; !ok {
		return repository.ErrNotFound
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	cp := *u
	s.proofs[u.ID] = &cp
	return nil
}

// WithinTx serializes fn against every other store call and undoes its
// writes when it fails.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.ChallengeTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &challengeTx{s: s}
	if err := fn(tx); err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		return err
	}
	return nil
}

type challengeTx struct {
	s    *Store
	undo []func()
}

func (t *challengeTx) GetChallenge(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error) {
	return t.s.getChallenge(id)
}

func (t *challengeTx) LockParticipant(ctx context.Context, challengeID, userID uuid.UUID) (*challenge.Participant, error) {
	p := t.s.findParticipant(challengeID, userID)
	if p == nil {
		return nil, repository.ErrNotFound
	}
	return cloneParticipant(p), nil
}

func (t *challengeTx) InsertParticipant(ctx context.Context, p *challenge.Participant) error {
	if t.s.findParticipant(p.ChallengeID, p.UserID) != nil {
		return repository.ErrDuplicate
	}
	if _, ok := t.s.challenges[p.ChallengeID]; !ok {
		return repository.ErrNotFound
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	id := p.ID
	t.s.participants[id] = cloneParticipant(p)
	t.undo = append(t.undo, func() { delete(t.s.participants, id) })
	return nil
}

func (t *challengeTx) UpdateParticipant(ctx context.Context, p *challenge.Participant) error {
	prev, ok := t.s.participants[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	t.s.participants[p.ID] = cloneParticipant(p)
	t.undo = append(t.undo, func() { t.s.participants[prev.ID] = prev })
	return nil
}

func (t *challengeTx) AdjustParticipantCount(ctx context.Context, challengeID uuid.UUID, delta int) error {
	c, ok := t.s.challenges[challengeID]
	if !ok {
		return repository.ErrNotFound
	}
	prev := c.ParticipantCount
	c.ParticipantCount = max(prev+delta, 0)
	t.undo = append(t.undo, func() { c.ParticipantCount = prev })
	return nil
}

func (t *challengeTx) IncrementCompletionCount(ctx context.Context, challengeID uuid.UUID) error {
	c, ok := t.s.challenges[challengeID]
	if !ok {
		return repository.ErrNotFound
	}
	prev := c.CompletionCount
	c.CompletionCount++
	t.undo = append(t.undo, func() { c.CompletionCount = prev })
	return nil
}

func (t *challengeTx) ProgressExists(ctx context.Context, participantID uuid.UUID, date time.Time) (bool, error) {
	for _, p := range t.s.progress {
		if p.ParticipantID == participantID && p.Date.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}

func (t *challengeTx) InsertProgress(ctx context.Context, p *challenge.Progress) error {
	exists, _ := t.ProgressExists(ctx, p.ParticipantID, p.Date)
	if exists {
		return repository.ErrDuplicate
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	id := p.ID
	t.s.progress[id] = cloneProgress(p)
	t.undo = append(t.undo, func() { delete(t.s.progress, id) })
	return nil
}
