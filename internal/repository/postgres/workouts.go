package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"repcirAPI/internal/types/subscription"
	"repcirAPI/internal/types/workout"
)

func (s *Store) CreateJob(ctx context.Context, j *workout.GenerationJob) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO workout_generation_jobs (id, user_id, status, prompt)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, j.ID, j.UserID, j.Status, j.Prompt).Scan(&j.CreatedAt, &j.UpdatedAt)
	return translate(err)
}

func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*workout.GenerationJob, error) {
	j := &workout.GenerationJob{}
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, status, prompt, result, error, created_at, updated_at
		FROM workout_generation_jobs
		WHERE id = $1
	`, id).Scan(&j.ID, &j.UserID, &j.Status, &j.Prompt, &j.Result, &j.Error, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return j, nil
}

func (s *Store) UpdateJob(ctx context.Context, j *workout.GenerationJob) error {
	err := s.db.QueryRow(ctx, `
		UPDATE workout_generation_jobs
		SET status = $2, result = $3, error = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, j.ID, j.Status, j.Result, j.Error).Scan(&j.UpdatedAt)
	return translate(err)
}

// CreateJobWithinQuota locks the user row so the count and the insert cannot
// interleave with another request from the same user.
func (s *Store) CreateJobWithinQuota(ctx context.Context, j *workout.GenerationJob, since time.Time, limit int) (bool, error) {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	created := false
	err := s.withTransaction(ctx, func(tx pgx.Tx) error {
		var locked uuid.UUID
		if err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, j.UserID).Scan(&locked); err != nil {
			return translate(err)
		}

		var used int
		err := tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM workout_generation_jobs
			WHERE user_id = $1 AND created_at >= $2 AND status <> 'error'
		`, j.UserID, since).Scan(&used)
		if err != nil {
			return err
		}
		if used >= limit {
			return nil
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO workout_generation_jobs (id, user_id, status, prompt)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at, updated_at
		`, j.ID, j.UserID, j.Status, j.Prompt).Scan(&j.CreatedAt, &j.UpdatedAt)
		if err != nil {
			return translate(err)
		}
		created = true
		return nil
	})
	return created, err
}

func (s *Store) GetSubscription(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error) {
	sub := &subscription.Subscription{}
	var periodEnd *time.Time
	err := s.db.QueryRow(ctx, `
		SELECT user_id, stripe_customer_id, COALESCE(stripe_subscription_id, ''), stripe_price_id,
			status, current_period_end, created_at, updated_at
		FROM subscriptions
		WHERE user_id = $1
	`, userID).Scan(&sub.UserID, &sub.StripeCustomerID, &sub.StripeSubscriptionID, &sub.StripePriceID,
		&sub.Status, &periodEnd, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	if periodEnd != nil {
		sub.CurrentPeriodEnd = *periodEnd
	}
	return sub, nil
}

func (s *Store) UpsertSubscription(ctx context.Context, sub *subscription.Subscription) error {
	var periodEnd *time.Time
	if !sub.CurrentPeriodEnd.IsZero() {
		periodEnd = &sub.CurrentPeriodEnd
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO subscriptions
			(user_id, stripe_customer_id, stripe_subscription_id, stripe_price_id, status, current_period_end)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			stripe_subscription_id = COALESCE(EXCLUDED.stripe_subscription_id, subscriptions.stripe_subscription_id),
			stripe_price_id = CASE WHEN EXCLUDED.stripe_price_id = '' THEN subscriptions.stripe_price_id ELSE EXCLUDED.stripe_price_id END,
			status = EXCLUDED.status,
			current_period_end = COALESCE(EXCLUDED.current_period_end, subscriptions.current_period_end),
			updated_at = NOW()
		RETURNING created_at, updated_at
	`, sub.UserID, sub.StripeCustomerID, sub.StripeSubscriptionID, sub.StripePriceID, sub.Status, periodEnd).
		Scan(&sub.CreatedAt, &sub.UpdatedAt)
	return translate(err)
}
