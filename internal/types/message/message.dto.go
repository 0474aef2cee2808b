package message

import (
	"time"

	"github.com/google/uuid"
)

type SendMessageRequest struct {
	RecipientID uuid.UUID `json:"recipient_id" validate:"required"`
	Body        string    `json:"body" validate:"required,min=1,max=2000"`
}

type ThreadQuery struct {
	With   uuid.UUID
	Before *time.Time
	Limit  int
}

// Event is the frame pushed to websocket clients.
type Event struct {
	Type    string   `json:"type"`
	Message *Message `json:"message,omitempty"`
}
