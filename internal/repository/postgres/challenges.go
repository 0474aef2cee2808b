package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"repcirAPI/internal/repository"
	"repcirAPI/internal/types/challenge"
)

const challengeColumns = `id, name, description, duration_days, daily_tasks, restart_on_fail,
	participant_count, completion_count, is_active, created_at`

const participantColumns = `id, challenge_id, user_id, status, current_day, current_streak,
	longest_streak, days_completed, start_date, completed_date, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChallenge(row rowScanner) (*challenge.Challenge, error) {
	c := &challenge.Challenge{}
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.DurationDays, &c.DailyTasks, &c.RestartOnFail,
		&c.ParticipantCount, &c.CompletionCount, &c.IsActive, &c.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return c, nil
}

func scanParticipant(row rowScanner) (*challenge.Participant, error) {
	p := &challenge.Participant{}
	err := row.Scan(&p.ID, &p.ChallengeID, &p.UserID, &p.Status, &p.CurrentDay, &p.CurrentStreak,
		&p.LongestStreak, &p.DaysCompleted, &p.StartDate, &p.CompletedDate, &p.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

func (s *Store) ListChallenges(ctx context.Context) ([]*challenge.Challenge, error) {
	rows, err := s.db.Query(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE is_active ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*challenge.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetChallenge(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error) {
	return scanChallenge(s.db.QueryRow(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE id = $1`, id))
}

func (s *Store) GetParticipant(ctx context.Context, challengeID, userID uuid.UUID) (*challenge.Participant, error) {
	return scanParticipant(s.db.QueryRow(ctx,
		`SELECT `+participantColumns+` FROM challenge_participants WHERE challenge_id = $1 AND user_id = $2`,
		challengeID, userID))
}

func (s *Store) ListParticipations(ctx context.Context, userID uuid.UUID) ([]*challenge.Participant, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+participantColumns+` FROM challenge_participants WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*challenge.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ListProgress(ctx context.Context, participantID uuid.UUID) ([]*challenge.Progress, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, participant_id, date, day, completed, tasks_completed, notes, created_at
		FROM challenge_progress
		WHERE participant_id = $1
		ORDER BY date ASC
	`, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*challenge.Progress
	for rows.Next() {
		p := &challenge.Progress{}
		if err := rows.Scan(&p.ID, &p.ParticipantID, &p.Date, &p.Day, &p.Completed,
			&p.TasksCompleted, &p.Notes, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) InsertProofUpload(ctx context.Context, u *challenge.ProofUpload) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO challenge_proof_uploads (id, participant_id, day, object_key, url, content_type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, u.ID, u.ParticipantID, u.Day, u.ObjectKey, u.URL, u.ContentType).Scan(&u.CreatedAt)
	return translate(err)
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.ChallengeTx) error) error {
	return s.withTransaction(ctx, func(tx pgx.Tx) error {
		return fn(&challengeTx{tx: tx})
	})
}

type challengeTx struct {
	tx pgx.Tx
}

func (t *challengeTx) GetChallenge(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error) {
	return scanChallenge(t.tx.QueryRow(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE id = $1`, id))
}

func (t *challengeTx) LockParticipant(ctx context.Context, challengeID, userID uuid.UUID) (*challenge.Participant, error) {
	return scanParticipant(t.tx.QueryRow(ctx,
		`SELECT `+participantColumns+` FROM challenge_participants
		 WHERE challenge_id = $1 AND user_id = $2
		 FOR UPDATE`,
		challengeID, userID))
}

func (t *challengeTx) InsertParticipant(ctx context.Context, p *challenge.Participant) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO challenge_participants
			(id, challenge_id, user_id, status, current_day, current_streak, longest_streak,
			 days_completed, start_date, completed_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING updated_at
	`, p.ID, p.ChallengeID, p.UserID, p.Status, p.CurrentDay, p.CurrentStreak, p.LongestStreak,
		p.DaysCompleted, p.StartDate, p.CompletedDate).Scan(&p.UpdatedAt)
	return translate(err)
}

func (t *challengeTx) UpdateParticipant(ctx context.Context, p *challenge.Participant) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE challenge_participants SET
			status = $2,
			current_day = $3,
			current_streak = $4,
			longest_streak = $5,
			days_completed = $6,
			start_date = $7,
			completed_date = $8,
			updated_at = NOW()
		WHERE id = $1
	`, p.ID, p.Status, p.CurrentDay, p.CurrentStreak, p.LongestStreak, p.DaysCompleted,
		p.StartDate, p.CompletedDate)
	if err != nil {
		return translate(err)
	}
	return requireRow(tag)
}

func (t *challengeTx) AdjustParticipantCount(ctx context.Context, challengeID uuid.UUID, delta int) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE challenges SET participant_count = GREATEST(participant_count + $2, 0)
		WHERE id = $1
	`, challengeID, delta)
	if err != nil {
		return err
	}
	return requireRow(tag)
}

func (t *challengeTx) IncrementCompletionCount(ctx context.Context, challengeID uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `UPDATE challenges SET completion_count = completion_count + 1 WHERE id = $1`, challengeID)
	if err != nil {
		return err
	}
	return requireRow(tag)
}

func (t *challengeTx) ProgressExists(ctx context.Context, participantID uuid.UUID, date time.Time) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM challenge_progress WHERE participant_id = $1 AND date = $2)`,
		participantID, date).Scan(&exists)
	return exists, err
}

func (t *challengeTx) InsertProgress(ctx context.Context, p *challenge.Progress) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO challenge_progress (id, participant_id, date, day, completed, tasks_completed, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, p.ID, p.ParticipantID, p.Date, p.Day, p.Completed, p.TasksCompleted, p.Notes).Scan(&p.CreatedAt)
	return translate(err)
}
