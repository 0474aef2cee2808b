package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"repcirAPI/internal/logger"
)

type job struct {
	topic string
	body  []byte
}

// LocalBus dispatches published messages to subscribed handlers on a fixed
// pool of workers.
type LocalBus struct {
	mu       sync.RWMutex
	handlers map[string]Handler

	jobQueue       chan job
	stopChan       chan struct{}
	wg             sync.WaitGroup
	enqueueTimeout time.Duration
	handlerTimeout time.Duration
	closeOnce      sync.Once
}

func NewLocalBus(workers, queueSize int) *LocalBus {
	b := &LocalBus{
		handlers:       make(map[string]Handler),
		jobQueue:       make(chan job, queueSize),
		stopChan:       make(chan struct{}),
		enqueueTimeout: 5 * time.Second,
		handlerTimeout: 2 * time.Minute,
	}
	for i := 0; i < workers; i++ {
		b.wg.Add(1)
		go b.worker()
	}
	return b
}

func (b *LocalBus) worker() {
	defer b.wg.Done()
	for {
		select {
		case j := <-b.jobQueue:
			b.process(j)
		case <-b.stopChan:
			return
		}
	}
}

func (b *LocalBus) process(j job) {
	b.mu.RLock()
	h, ok := b.handlers[j.topic]
	b.mu.RUnlock()
	if !ok {
		logger.Warn().Str("topic", j.topic).Msg("No handler for topic, dropping message")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.handlerTimeout)
	defer cancel()

	if err := h(ctx, j.body); err != nil {
		logger.Error().Err(err).Str("topic", j.topic).Msg("Message handler failed")
	}
}

func (b *LocalBus) Publish(ctx context.Context, topic string, payload any) error {
	body, err := encode(payload)
	if err != nil {
		return err
	}

	select {
	case <-b.stopChan:
		return ErrClosed
	default:
	}

	timer := time.NewTimer(b.enqueueTimeout)
	defer timer.Stop()

	select {
	case b.jobQueue <- job{topic: topic, body: body}:
		return nil
	case <-b.stopChan:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("failed to queue %s message: queue full", topic)
	}
}

func (b *LocalBus) Subscribe(topic string, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.handlers[topic]; exists {
		return fmt.Errorf("topic %s already has a handler", topic)
	}
	b.handlers[topic] = h
	return nil
}

// Close stops the workers. Messages still queued are dropped.
func (b *LocalBus) Close() error {
	b.closeOnce.Do(func() {
		close(b.stopChan)
		b.wg.Wait()
	})
	return nil
}
