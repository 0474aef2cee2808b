package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"repcirAPI/internal/logger"
	"repcirAPI/internal/metrics"
	"repcirAPI/internal/repository"
)

const (
	CronDataRetention = "data-retention"
	RetentionBudget   = 5 * time.Minute

	CategoryExpiredInvitations = "expired_invitations"
	CategoryGenerationJobs     = "generation_jobs"
	CategoryReadNotifications  = "read_notifications"
	CategoryProofUploads       = "proof_uploads"
)

// ErrRetentionTooSoon is returned when the previous run is newer than the interval.
var ErrRetentionTooSoon = errors.New("data retention already ran within the last hour")

type RetentionPolicy struct {
	Interval        time.Duration
	InvitationAge   time.Duration
	JobAge          time.Duration
	NotificationAge time.Duration
	ProofUploadAge  time.Duration
	ProofBatch      int
}

type CategoryResult struct {
	Deleted int64  `json:"deleted"`
	Error   string `json:"error,omitempty"`
}

type RetentionReport struct {
	Results    map[string]CategoryResult `json:"results"`
	StartedAt  time.Time                 `json:"started_at"`
	FinishedAt time.Time                 `json:"finished_at"`
}

// Failed reports whether any category failed.
func (r *RetentionReport) Failed() bool {
	for _, res := range r.Results {
		if res.Error != "" {
			return true
		}
	}
	return false
}

type RetentionService struct {
	store   repository.RetentionStore
	storage ObjectStorage
	policy  RetentionPolicy
	now     func() time.Time
	log     zerolog.Logger
}

func NewRetentionService(store repository.RetentionStore, storage ObjectStorage, policy RetentionPolicy) *RetentionService {
	if policy.ProofBatch <= 0 {
		policy.ProofBatch = 500
	}
	return &RetentionService{
		store:   store,
		storage: storage,
		policy:  policy,
		now:     func() time.Time { return time.Now().UTC() },
		log:     logger.With("retention"),
	}
}

// Run claims the cron slot and purges every category concurrently. A failing
// category is reported in the result and does not stop the others.
func (s *RetentionService) Run(ctx context.Context) (*RetentionReport, error) {
	started := s.now()

	claimed, err := s.store.ClaimCronRun(ctx, CronDataRetention, started, s.policy.Interval)
	if err != nil {
		return nil, wrap("claim cron run", err)
	}
	if !claimed {
		return nil, ErrRetentionTooSoon
	}

	ctx, cancel := context.WithTimeout(ctx, RetentionBudget)
	defer cancel()

	jobs := map[string]func(context.Context) (int64, error){
		CategoryExpiredInvitations: func(ctx context.Context) (int64, error) {
			return s.store.DeleteExpiredInvitations(ctx, started.Add(-s.policy.InvitationAge))
		},
		CategoryGenerationJobs: func(ctx context.Context) (int64, error) {
			return s.store.DeleteFinishedJobs(ctx, started.Add(-s.policy.JobAge))
		},
		CategoryReadNotifications: func(ctx context.Context) (int64, error) {
			return s.store.DeleteReadNotifications(ctx, started.Add(-s.policy.NotificationAge))
		},
		CategoryProofUploads: func(ctx context.Context) (int64, error) {
			return s.purgeProofUploads(ctx, started.Add(-s.policy.ProofUploadAge))
		},
	}

	report := &RetentionReport{
		Results:   make(map[string]CategoryResult, len(jobs)),
		StartedAt: started,
	}
	var mu sync.Mutex
	var g errgroup.Group

	for name, fn := range jobs {
		g.Go(func() error {
			n, err := fn(ctx)
			res := CategoryResult{Deleted: n}
			if err != nil {
				res.Error = err.Error()
				s.log.Error().Err(err).Str("category", name).Msg("Retention category failed")
			}
			if n > 0 {
				metrics.RetentionDeleted.WithLabelValues(name).Add(float64(n))
			}

			mu.Lock()
			report.Results[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = s.now()
	s.log.Info().Interface("results", report.Results).Dur("took", report.FinishedAt.Sub(started)).Msg("Data retention finished")
	return report, nil
}

// purgeProofUploads deletes each stored object before its row. Rows whose
// object could not be removed stay for the next run.
func (s *RetentionService) purgeProofUploads(ctx context.Context, cutoff time.Time) (int64, error) {
	uploads, err := s.store.StaleProofUploads(ctx, cutoff, s.policy.ProofBatch)
	if err != nil {
		return 0, err
	}

	var deleted int64
	var failed int
	var firstErr error
	for _, u := range uploads {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		if s.storage != nil && u.ObjectKey != "" {
			if err := s.storage.Delete(ctx, u.ObjectKey); err != nil {
				failed++
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
		}
		if err := s.store.DeleteProofUpload(ctx, u.ID); err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		deleted++
	}

	if firstErr != nil {
		return deleted, fmt.Errorf("%d proof uploads not removed: %w", failed, firstErr)
	}
	return deleted, nil
}
