package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"repcirAPI/internal/types/challenge"
)

// ClaimCronRun inserts or advances the run marker in one statement. The
// conditional update leaves the row alone when the last run is too recent,
// in which case nothing is returned.
func (s *Store) ClaimCronRun(ctx context.Context, name string, now time.Time, interval time.Duration) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO cron_runs (name, last_run_at)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET last_run_at = EXCLUDED.last_run_at
		WHERE cron_runs.last_run_at <= EXCLUDED.last_run_at - make_interval(secs => $3)
	`, name, now, interval.Seconds())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) DeleteExpiredInvitations(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM circle_invitations
		WHERE (expires_at IS NOT NULL AND expires_at < $1)
		   OR (max_uses IS NOT NULL AND uses >= max_uses AND created_at < $1)
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) DeleteFinishedJobs(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM workout_generation_jobs
		WHERE status IN ('completed', 'error') AND updated_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) DeleteReadNotifications(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM notifications WHERE read_at IS NOT NULL AND read_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) StaleProofUploads(ctx context.Context, cutoff time.Time, limit int) ([]*challenge.ProofUpload, error) {
	rows, err := s.db.Query(ctx, `
		SELECT pu.id, pu.participant_id, pu.day, pu.object_key, pu.url, pu.content_type, pu.created_at
		FROM challenge_proof_uploads pu
		JOIN challenge_participants cp ON cp.id = pu.participant_id
		WHERE cp.status = 'quit' AND cp.updated_at < $1
		ORDER BY pu.created_at ASC
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*challenge.ProofUpload
	for rows.Next() {
		u := &challenge.ProofUpload{}
		if err := rows.Scan(&u.ID, &u.ParticipantID, &u.Day, &u.ObjectKey, &u.URL, &u.ContentType, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) DeleteProofUpload(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM challenge_proof_uploads WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(tag)
}
