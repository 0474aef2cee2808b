package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/streadway/amqp"

	"repcirAPI/internal/logger"
)

// AMQPBus publishes each topic to a durable queue of the same name on the
// default exchange.
type AMQPBus struct {
	conn *amqp.Connection

	pubMu    sync.Mutex
	pubCh    *amqp.Channel
	declared map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	prefetch int
}

func DialAMQP(url string, prefetch int) (*AMQPBus, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("error connecting to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("error opening channel: %w", err)
	}

	notifyClose := make(chan *amqp.Error, 1)
	conn.NotifyClose(notifyClose)
	go func() {
		if err := <-notifyClose; err != nil {
			logger.Error().Err(err).Msg("RabbitMQ connection closed")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	return &AMQPBus{
		conn:     conn,
		pubCh:    ch,
		declared: make(map[string]bool),
		ctx:      ctx,
		cancel:   cancel,
		prefetch: prefetch,
	}, nil
}

func declare(ch *amqp.Channel, topic string) error {
	_, err := ch.QueueDeclare(
		topic,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("error declaring queue %s: %w", topic, err)
	}
	return nil
}

func (b *AMQPBus) Publish(ctx context.Context, topic string, payload any) error {
	body, err := encode(payload)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// amqp channels are not safe for concurrent publishing.
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	if !b.declared[topic] {
		if err := declare(b.pubCh, topic); err != nil {
			return err
		}
		b.declared[topic] = true
	}

	err = b.pubCh.Publish(
		"",    // exchange
		topic, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish a message: %w", err)
	}
	return nil
}

// Subscribe opens a dedicated channel and consumes topic until Close.
func (b *AMQPBus) Subscribe(topic string, h Handler) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("error opening channel: %w", err)
	}
	if err := ch.Qos(b.prefetch, 0, false); err != nil {
		ch.Close()
		return fmt.Errorf("error setting qos: %w", err)
	}
	if err := declare(ch, topic); err != nil {
		ch.Close()
		return err
	}

	msgs, err := ch.Consume(
		topic,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return fmt.Errorf("error starting consumer: %w", err)
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer ch.Close()
		for {
			select {
			case d, ok := <-msgs:
				if !ok {
					return
				}
				if err := h(b.ctx, d.Body); err != nil {
					logger.Error().Err(err).Str("topic", topic).Msg("Message handler failed")
					d.Nack(false, false)
					continue
				}
				d.Ack(false)
			case <-b.ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (b *AMQPBus) Close() error {
	b.cancel()
	b.wg.Wait()

	b.pubMu.Lock()
	defer b.pubMu.Unlock()
	if err := b.pubCh.Close(); err != nil && err != amqp.ErrClosed {
		logger.Warn().Err(err).Msg("Error closing publish channel")
	}
	return b.conn.Close()
}
