package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"repcirAPI/internal/types/message"
)

func (s *Store) InsertMessage(ctx context.Context, m *message.Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO messages (id, sender_id, recipient_id, body)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, m.ID, m.SenderID, m.RecipientID, m.Body).Scan(&m.CreatedAt)
	return translate(err)
}

func (s *Store) ListThread(ctx context.Context, userID, otherID uuid.UUID, before *time.Time, limit int) ([]*message.Message, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, sender_id, recipient_id, body, read_at, created_at
		FROM messages
		WHERE ((sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1))
		  AND ($3::timestamptz IS NULL OR created_at < $3)
		ORDER BY created_at DESC
		LIMIT $4
	`, userID, otherID, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*message.Message
	for rows.Next() {
		m := &message.Message{}
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Body, &m.ReadAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) MarkThreadRead(ctx context.Context, readerID, senderID uuid.UUID, at time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE messages SET read_at = $3
		WHERE recipient_id = $1 AND sender_id = $2 AND read_at IS NULL
	`, readerID, senderID, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) ListConversations(ctx context.Context, userID uuid.UUID) ([]*message.Conversation, error) {
	query := `
		WITH threads AS (
			SELECT DISTINCT ON (other_id)
				CASE WHEN sender_id = $1 THEN recipient_id ELSE sender_id END AS other_id,
				id, sender_id, recipient_id, body, read_at, created_at
			FROM messages
			WHERE sender_id = $1 OR recipient_id = $1
			ORDER BY other_id, created_at DESC
		)
		SELECT t.other_id, u.username, u.image_url,
			t.id, t.sender_id, t.recipient_id, t.body, t.read_at, t.created_at,
			(SELECT COUNT(*) FROM messages m
			 WHERE m.recipient_id = $1 AND m.sender_id = t.other_id AND m.read_at IS NULL) AS unread
		FROM threads t
		JOIN users u ON u.id = t.other_id
		ORDER BY t.created_at DESC
	`
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*message.Conversation
	for rows.Next() {
		c := &message.Conversation{}
		m := &c.LastMessage
		if err := rows.Scan(&c.With.ID, &c.With.Username, &c.With.ImageURL,
			&m.ID, &m.SenderID, &m.RecipientID, &m.Body, &m.ReadAt, &m.CreatedAt, &c.UnreadCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
