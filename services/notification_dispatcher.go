package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"repcirAPI/internal/logger"
	"repcirAPI/internal/types/notification"
)

const (
	defaultDispatchWorkers = 5
	defaultDispatchQueue   = 100
	dispatchEnqueueTimeout = 5 * time.Second
	dispatchSendTimeout    = 10 * time.Second
)

// NotificationDispatcher delivers push notifications on a fixed worker pool.
type NotificationDispatcher struct {
	pushProvider   PushNotificationProvider
	workers        int
	jobQueue       chan *DispatchJob
	stopChan       chan struct{}
	stopOnce       sync.Once
	wg             sync.WaitGroup
	enqueueTimeout time.Duration
	log            zerolog.Logger
}

type DispatchJob struct {
	Notification *notification.Notification
	Tokens       []notification.DeviceToken
}

func NewNotificationDispatcher(workers, queueSize int) *NotificationDispatcher {
	if workers <= 0 {
		workers = defaultDispatchWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultDispatchQueue
	}

	d := &NotificationDispatcher{
		workers:        workers,
		jobQueue:       make(chan *DispatchJob, queueSize),
		stopChan:       make(chan struct{}),
		enqueueTimeout: dispatchEnqueueTimeout,
		log:            logger.With("notification_dispatcher"),
	}
	d.startWorkers()
	return d
}

// SetPushProvider installs the push backend. Without one, jobs are logged and skipped.
func (d *NotificationDispatcher) SetPushProvider(provider PushNotificationProvider) {
	d.pushProvider = provider
}

func (d *NotificationDispatcher) startWorkers() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

func (d *NotificationDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.jobQueue:
			d.processJob(job)
		case <-d.stopChan:
			return
		}
	}
}

func (d *NotificationDispatcher) processJob(job *DispatchJob) {
	notif := job.Notification

	if d.pushProvider == nil || len(job.Tokens) == 0 {
		d.log.Debug().
			Str("notification_id", notif.ID.String()).
			Int("tokens", len(job.Tokens)).
			Bool("provider_set", d.pushProvider != nil).
			Msg("Skipping push")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), dispatchSendTimeout)
	defer cancel()

	data := make(map[string]any, len(notif.Data)+2)
	for k, v := range notif.Data {
		data[k] = v
	}
	data["notification_id"] = notif.ID.String()
	data["type"] = string(notif.Type)

	if err := d.pushProvider.SendPush(ctx, job.Tokens, notif.Title, notif.Body, data); err != nil {
		d.log.Warn().Err(err).Str("user_id", notif.UserID.String()).Msg("Push failed")
	}
}

// DispatchNotification queues a push job, waiting at most the enqueue timeout.
func (d *NotificationDispatcher) DispatchNotification(ctx context.Context, notif *notification.Notification, tokens []notification.DeviceToken) error {
	job := &DispatchJob{Notification: notif, Tokens: tokens}

	select {
	case <-d.stopChan:
		return fmt.Errorf("dispatcher stopped")
	default:
	}

	timer := time.NewTimer(d.enqueueTimeout)
	defer timer.Stop()

	select {
	case d.jobQueue <- job:
		return nil
	case <-d.stopChan:
		return fmt.Errorf("dispatcher stopped")
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("failed to queue notification %s: queue full", notif.ID)
	}
}

// Stop waits for in-flight jobs. Queued jobs that have not started are dropped.
func (d *NotificationDispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.log.Info().Msg("Stopping notification dispatcher...")
		close(d.stopChan)
		d.wg.Wait()
		d.log.Info().Msg("Notification dispatcher stopped")
	})
}
