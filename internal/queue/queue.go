// Package queue carries background events between services. AMQPBus talks to
// RabbitMQ; LocalBus runs handlers on an in-process worker pool when no broker
// is configured.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	TopicBadgeEvaluate   = "badge.evaluate"
	TopicWorkoutGenerate = "workout.generate"
)

var ErrClosed = errors.New("queue closed")

// Handler processes one message body. Errors are logged and the message is
// dropped; delivery is at most once.
type Handler func(ctx context.Context, body []byte) error

type Bus interface {
	Publish(ctx context.Context, topic string, payload any) error
	Subscribe(topic string, h Handler) error
	Close() error
}

func encode(payload any) ([]byte, error) {
	if b, ok := payload.([]byte); ok {
		return b, nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return body, nil
}
