package message

import (
	"time"

	"github.com/google/uuid"

	"repcirAPI/internal/types/user"
)

type Message struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	SenderID    uuid.UUID  `json:"sender_id" db:"sender_id"`
	RecipientID uuid.UUID  `json:"recipient_id" db:"recipient_id"`
	Body        string     `json:"body" db:"body"`
	ReadAt      *time.Time `json:"read_at,omitempty" db:"read_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

type Conversation struct {
	With        user.Summary `json:"with"`
	LastMessage Message      `json:"last_message"`
	UnreadCount int          `json:"unread_count"`
}
