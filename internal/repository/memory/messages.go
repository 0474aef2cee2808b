package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"repcirAPI/internal/types/message"
)

func (s *Store) InsertMessage(ctx context.Context, m *message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	cp := *m
	s.messages = append(s.messages, &cp)
	return nil
}

func between(m *message.Message, a, b uuid.UUID) bool {
	return (m.SenderID == a && m.RecipientID == b) || (m.SenderID == b && m.RecipientID == a)
}

func (s *Store) ListThread(ctx context.Context, userID, otherID uuid.UUID, before *time.Time, limit int) ([]*message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*message.Message
	for _, m := range s.messages {
		if !between(m, userID, otherID) {
			continue
		}
		if before != nil && !m.CreatedAt.Before(*before) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkThreadRead(ctx context.Context, readerID, senderID uuid.UUID, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.messages {
		if m.RecipientID == readerID && m.SenderID == senderID && m.ReadAt == nil {
			t := at
			m.ReadAt = &t
			n++
		}
	}
	return n, nil
}

func (s *Store) ListConversations(ctx context.Context, userID uuid.UUID) ([]*message.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byOther := make(map[uuid.UUID]*message.Conversation)
	for _, m := range s.messages {
		var other uuid.UUID
		switch userID {
		case m.SenderID:
			other = m.RecipientID
		case m.RecipientID:
			other = m.SenderID
		default:
			continue
		}
		conv, ok := byOther[other]
		if !ok {
			conv = &message.Conversation{}
			conv.With.ID = other
			if u, found := s.users[other]; found {
				conv.With = u.Summary()
			}
			byOther[other] = conv
		}
		if !m.CreatedAt.Before(conv.LastMessage.CreatedAt) {
			conv.LastMessage = *m
		}
		if m.RecipientID == userID && m.ReadAt == nil {
			conv.UnreadCount++
		}
	}
	out := make([]*message.Conversation, 0, len(byOther))
	for _, c := range byOther {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessage.CreatedAt.After(out[j].LastMessage.CreatedAt)
	})
	return out, nil
}
