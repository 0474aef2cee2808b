package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLocalBusDeliversToSubscriber(t *testing.T) {
	bus := NewLocalBus(2, 10)
	defer bus.Close()

	type payload struct {
		N int `json:"n"`
	}

	var mu sync.Mutex
	var got []int
	done := make(chan struct{}, 3)
	require.NoError(t, bus.Subscribe("numbers", func(ctx context.Context, body []byte) error {
		var p payload
		if err := json.Unmarshal(body, &p); err != nil {
			return err
		}
		mu.Lock()
		got = append(got, p.N)
		mu.Unlock()
		done <- struct{}{}
		return nil
	}))

	for i := 1; i <= 3; i++ {
		require.NoError(t, bus.Publish(context.Background(), "numbers", payload{N: i}))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("handler was not called")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []int{1, 2, 3}, got)
}

func TestLocalBusHandlerErrorDoesNotStopWorkers(t *testing.T) {
	bus := NewLocalBus(1, 10)
	defer bus.Close()

	calls := make(chan struct{}, 2)
	require.NoError(t, bus.Subscribe("flaky", func(ctx context.Context, body []byte) error {
		calls <- struct{}{}
		return errors.New("boom")
	}))

	require.NoError(t, bus.Publish(context.Background(), "flaky", "a"))
	require.NoError(t, bus.Publish(context.Background(), "flaky", "b"))

	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(2 * time.Second):
			t.Fatal("handler was not called")
		}
	}
}

func TestLocalBusRejectsDuplicateSubscription(t *testing.T) {
	bus := NewLocalBus(1, 1)
	defer bus.Close()

	noop := func(ctx context.Context, body []byte) error { return nil }
	require.NoError(t, bus.Subscribe("t", noop))
	assert.Error(t, bus.Subscribe("t", noop))
}

func TestLocalBusPublishAfterClose(t *testing.T) {
	bus := NewLocalBus(1, 1)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(context.Background(), "t", "x"), ErrClosed)
}

func TestLocalBusFullQueueTimesOut(t *testing.T) {
	bus := NewLocalBus(0, 1)
	bus.enqueueTimeout = 20 * time.Millisecond
	defer bus.Close()

	require.NoError(t, bus.Publish(context.Background(), "t", "first"))
	err := bus.Publish(context.Background(), "t", "second")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue full")
}
