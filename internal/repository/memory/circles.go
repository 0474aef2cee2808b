package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"repcirAPI/internal/repository"
	"repcirAPI/internal/types/circle"
)

func (s *Store) memberCount(circleID uuid.UUID) int {
	n := 0
	for k := range s.members {
		if k.a == circleID {
			n++
		}
	}
	return n
}

func (s *Store) CreateCircle(ctx context.Context, c *circle.Circle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	cp := *c
	s.circles[c.ID] = &cp
	s.members[pairKey{c.ID, c.OwnerID}] = &circle.Member{
		CircleID: c.ID,
		UserID:   c.OwnerID,
		Role:     circle.RoleOwner,
		JoinedAt: c.CreatedAt,
	}
	c.MemberCount = 1
	return nil
}

func (s *Store) ListCirclesForUser(ctx context.Context, userID uuid.UUID) ([]*circle.Circle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*circle.Circle
	for k := range s.members {
		if k.b != userID {
			continue
		}
		if c, ok := s.circles[k.a]; ok {
			cp := *c
			cp.MemberCount = s.memberCount(c.ID)
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) GetCircle(ctx context.Context, id uuid.UUID) (*circle.Circle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.circles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	cp.MemberCount = s.memberCount(id)
	return &cp, nil
}

func (s *Store) IsMember(ctx context.Context, circleID, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.members[pairKey{circleID, userID}]
	return ok, nil
}

func (s *Store) ListMembers(ctx context.Context, circleID uuid.UUID) ([]*circle.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*circle.Member
	for k, m := range s.members {
		if k.a != circleID {
			continue
		}
		cp := *m
		if u, ok := s.users[m.UserID]; ok {
			cp.Username = u.Username
			cp.ImageURL = u.ImageURL
		}
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (s *Store) AddMember(ctx context.Context, m *circle.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.circles[m.CircleID]; !ok {
		return repository.ErrNotFound
	}
	key := pairKey{m.CircleID, m.UserID}
	if _, ok := s.members[key]; ok {
		return repository.ErrDuplicate
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	cp := *m
	s.members[key] = &cp
	return nil
}

func (s *Store) CreateInvitation(ctx context.Context, inv *circle.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.invitations {
		if existing.Code == inv.Code {
			return repository.ErrDuplicate
		}
	}
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	s.invitations[inv.ID] = cloneInvitation(inv)
	return nil
}

func (s *Store) GetInvitationByCode(ctx context.Context, code string) (*circle.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invitations {
		if inv.Code == code {
			return cloneInvitation(inv), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) ReserveInvitationUse(ctx context.Context, invitationID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[invitationID]
	if !ok {
		return false, nil
	}
	if inv.MaxUses != nil && inv.Uses >= *inv.MaxUses {
		return false, nil
	}
	inv.Uses++
	return true, nil
}

func (s *Store) ReleaseInvitationUse(ctx context.Context, invitationID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv, ok := s.invitations[invitationID]; ok {
		inv.Uses = max(inv.Uses-1, 0)
	}
	return nil
}

func (s *Store) ShareCircle(ctx context.Context, a, b uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.members {
		if k.b != a {
			continue
		}
		if _, ok := s.members[pairKey{k.a, b}]; ok {
			return true, nil
		}
	}
	return false, nil
}

// circleMates returns the user and everyone sharing a circle with them.
func (s *Store) circleMates(userID uuid.UUID) map[uuid.UUID]struct{} {
	mates := map[uuid.UUID]struct{}{userID: {}}
	for k := range s.members {
		if k.b != userID {
			continue
		}
		for other := range s.members {
			if other.a == k.a {
				mates[other.b] = struct{}{}
			}
		}
	}
	return mates
}
