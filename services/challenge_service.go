package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"repcirAPI/internal/apperrors"
	"repcirAPI/internal/checkin"
	"repcirAPI/internal/logger"
	"repcirAPI/internal/metrics"
	"repcirAPI/internal/repository"
	"repcirAPI/internal/types/challenge"
	"repcirAPI/internal/types/feed"
	"repcirAPI/internal/types/notification"
)

const MaxProofSize = 10 << 20

var proofExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"video/mp4":  ".mp4",
}

// ProofFile is an uploaded check-in photo or video.
type ProofFile struct {
	Body        io.Reader
	Size        int64
	ContentType string
}

type ChallengeService struct {
	users      repository.UserStore
	challenges repository.ChallengeStore
	badges     BadgeTrigger
	activities ActivityRecorder
	notifier   Notifier
	storage    ObjectStorage
	now        func() time.Time
	log        zerolog.Logger
}

func NewChallengeService(users repository.UserStore, challenges repository.ChallengeStore, badges BadgeTrigger, activities ActivityRecorder, notifier Notifier) *ChallengeService {
	return &ChallengeService{
		users:      users,
		challenges: challenges,
		badges:     badges,
		activities: activities,
		notifier:   notifier,
		now:        func() time.Time { return time.Now().UTC() },
		log:        logger.With("challenges"),
	}
}

// SetStorage enables proof uploads.
func (s *ChallengeService) SetStorage(storage ObjectStorage) {
	s.storage = storage
}

func (s *ChallengeService) ListChallenges(ctx context.Context, clerkID string) ([]*challenge.ChallengeWithParticipation, error) {
	userID, err := resolveUserID(ctx, s.users, clerkID)
	if err != nil {
		return nil, err
	}

	challenges, err := s.challenges.ListChallenges(ctx)
	if err != nil {
		return nil, wrap("list challenges", err)
	}
	participations, err := s.challenges.ListParticipations(ctx, userID)
	if err != nil {
		return nil, wrap("list participations", err)
	}

	byChallenge := make(map[uuid.UUID]*challenge.Participant, len(participations))
	for _, p := range participations {
		byChallenge[p.ChallengeID] = p
	}

	out := make([]*challenge.ChallengeWithParticipation, 0, len(challenges))
	for _, ch := range challenges {
		out = append(out, &challenge.ChallengeWithParticipation{
			Challenge:     ch,
			Participation: byChallenge[ch.ID],
		})
	}
	return out, nil
}

func (s *ChallengeService) GetChallenge(ctx context.Context, clerkID string, challengeID uuid.UUID) (*challenge.ChallengeWithParticipation, error) {
	userID, err := resolveUserID(ctx, s.users, clerkID)
	if err != nil {
		return nil, err
	}

	ch, err := s.challenges.GetChallenge(ctx, challengeID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !ch.IsActive) {
		return nil, apperrors.NotFound("challenge not found")
	}
	if err != nil {
		return nil, wrap("get challenge", err)
	}

	p, err := s.challenges.GetParticipant(ctx, challengeID, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, wrap("get participant", err)
	}
	return &challenge.ChallengeWithParticipation{Challenge: ch, Participation: p}, nil
}

// Join enrolls the caller. A quit enrollment is reactivated in place and
// does not count as a new participant.
func (s *ChallengeService) Join(ctx context.Context, clerkID string, challengeID uuid.UUID) (*challenge.JoinResponse, error) {
	userID, err := resolveUserID(ctx, s.users, clerkID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	resp := &challenge.JoinResponse{}

	err = s.challenges.WithinTx(ctx, func(tx repository.ChallengeTx) error {
		ch, err := tx.GetChallenge(ctx, challengeID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("challenge not found")
		}
		if err != nil {
			return err
		}
		if !ch.IsActive {
			return apperrors.BusinessRule("challenge is not active")
		}

		p, err := tx.LockParticipant(ctx, challengeID, userID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			p = &challenge.Participant{
				ChallengeID: challengeID,
				UserID:      userID,
				Status:      challenge.StatusActive,
				CurrentDay:  1,
				StartDate:   checkin.Today(now),
				UpdatedAt:   now,
			}
			if err := tx.InsertParticipant(ctx, p); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					return apperrors.Conflict("already joined")
				}
				return err
			}
			if err := tx.AdjustParticipantCount(ctx, challengeID, 1); err != nil {
				return err
			}

		case err != nil:
			return err

		case p.Status == challenge.StatusQuit:
			p.Status = challenge.StatusActive
			p.CurrentDay = 1
			p.CurrentStreak = 0
			p.LongestStreak = 0
			p.StartDate = checkin.Today(now)
			p.CompletedDate = nil
			p.UpdatedAt = now
			if err := tx.UpdateParticipant(ctx, p); err != nil {
				return err
			}
			resp.Rejoined = true

		default:
			return apperrors.Conflict("already joined")
		}

		resp.Participant = p
		return nil
	})
	if err != nil {
		return nil, wrap("join challenge", err)
	}

	s.activities.Record(ctx, &feed.Activity{
		UserID:    userID,
		Kind:      feed.KindChallengeJoined,
		SubjectID: subjectID(challengeID),
		Data:      map[string]any{"rejoined": resp.Rejoined},
	})

	return resp, nil
}

// Leave marks the caller's enrollment as quit. History is kept.
func (s *ChallengeService) Leave(ctx context.Context, clerkID string, challengeID uuid.UUID) (*challenge.Participant, error) {
	userID, err := resolveUserID(ctx, s.users, clerkID)
	if err != nil {
		return nil, err
	}

	var left *challenge.Participant
	err = s.challenges.WithinTx(ctx, func(tx repository.ChallengeTx) error {
		p, err := tx.LockParticipant(ctx, challengeID, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("not enrolled")
		}
		if err != nil {
			return err
		}

		switch p.Status {
		case challenge.StatusQuit:
			return apperrors.NotFound("not enrolled")
		case challenge.StatusCompleted:
			return apperrors.Precondition("challenge already completed")
		}

		p.Status = challenge.StatusQuit
		p.UpdatedAt = s.now()
		if err := tx.UpdateParticipant(ctx, p); err != nil {
			return err
		}
		if err := tx.AdjustParticipantCount(ctx, challengeID, -1); err != nil {
			return err
		}
		left = p
		return nil
	})
	if err != nil {
		return nil, wrap("leave challenge", err)
	}
	return left, nil
}

// CheckIn records today's result for the caller. The progress row, the
// participant update and the completion counter commit together.
func (s *ChallengeService) CheckIn(ctx context.Context, clerkID string, challengeID uuid.UUID, req challenge.CheckInRequest) (*challenge.CheckInResponse, error) {
	userID, err := resolveUserID(ctx, s.users, clerkID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var (
		ch      *challenge.Challenge
		outcome checkin.Outcome
	)

	err = s.challenges.WithinTx(ctx, func(tx repository.ChallengeTx) error {
		var err error
		ch, err = tx.GetChallenge(ctx, challengeID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("challenge not found")
		}
		if err != nil {
			return err
		}

		p, err := tx.LockParticipant(ctx, challengeID, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("not enrolled")
		}
		if err != nil {
			return err
		}
		if p.Status != challenge.StatusActive {
			return apperrors.Precondition("not an active participant")
		}

		exists, err := tx.ProgressExists(ctx, p.ID, checkin.Today(now))
		if err != nil {
			return err
		}
		if exists {
			return apperrors.Conflict("already checked in today")
		}

		outcome, err = checkin.Evaluate(ch, *p, checkin.Input{
			CompletedTasks: req.CompletedTasks,
			Notes:          req.Notes,
			Now:            now,
		})
		if err != nil {
			return err
		}

		if outcome.Progress != nil {
			if err := tx.InsertProgress(ctx, outcome.Progress); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					return apperrors.Conflict("already checked in today")
				}
				return err
			}
		}
		if err := tx.UpdateParticipant(ctx, &outcome.Participant); err != nil {
			return err
		}
		if outcome.Completed {
			return tx.IncrementCompletionCount(ctx, challengeID)
		}
		return nil
	})
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindConflict) {
			metrics.CheckIns.WithLabelValues("duplicate").Inc()
		}
		return nil, wrap("check in", err)
	}

	metrics.CheckIns.WithLabelValues(checkInResult(outcome)).Inc()

	if outcome.Completed {
		s.onCompleted(ctx, userID, ch)
	}

	return &challenge.CheckInResponse{
		Participant: &outcome.Participant,
		Progress:    outcome.Progress,
		Reset:       outcome.Reset,
		Completed:   outcome.Completed,
	}, nil
}

func checkInResult(o checkin.Outcome) string {
	switch {
	case o.Completed:
		return "completed_challenge"
	case o.Reset:
		return "reset"
	case o.Progress != nil && o.Progress.Completed:
		return "completed_day"
	default:
		return "missed_day"
	}
}

// onCompleted fires the completion side effects. None of them can fail the check-in.
func (s *ChallengeService) onCompleted(ctx context.Context, userID uuid.UUID, ch *challenge.Challenge) {
	s.activities.Record(ctx, &feed.Activity{
		UserID:    userID,
		Kind:      feed.KindChallengeCompleted,
		SubjectID: subjectID(ch.ID),
		Data:      map[string]any{"challenge_name": ch.Name, "duration_days": ch.DurationDays},
	})

	s.notifier.Notify(ctx, userID, notification.NotificationChallengeCompleted,
		"Challenge complete!",
		fmt.Sprintf("You finished %s. Nice work.", ch.Name),
		map[string]any{"challenge_id": ch.ID.String()},
	)

	detached(func(ctx context.Context) {
		s.badges.Trigger(ctx, userID, "challenge_completed")
	})
}

func (s *ChallengeService) Progress(ctx context.Context, clerkID string, challengeID uuid.UUID) ([]*challenge.Progress, error) {
	userID, err := resolveUserID(ctx, s.users, clerkID)
	if err != nil {
		return nil, err
	}

	p, err := s.challenges.GetParticipant(ctx, challengeID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("not enrolled")
	}
	if err != nil {
		return nil, wrap("get participant", err)
	}

	rows, err := s.challenges.ListProgress(ctx, p.ID)
	if err != nil {
		return nil, wrap("list progress", err)
	}
	return rows, nil
}

// UploadProof stores a photo or video for the caller's current day.
func (s *ChallengeService) UploadProof(ctx context.Context, clerkID string, challengeID uuid.UUID, file ProofFile) (*challenge.ProofUpload, error) {
	if s.storage == nil {
		return nil, apperrors.Precondition("proof uploads are not enabled")
	}

	ext, ok := proofExtensions[file.ContentType]
	if !ok {
		return nil, apperrors.Validation("unsupported file type", map[string]string{"file": "content_type"})
	}
	if file.Size <= 0 || file.Size > MaxProofSize {
		return nil, apperrors.Validation("file must be between 1 byte and 10 MiB", map[string]string{"file": "size"})
	}

	userID, err := resolveUserID(ctx, s.users, clerkID)
	if err != nil {
		return nil, err
	}

	p, err := s.challenges.GetParticipant(ctx, challengeID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("not enrolled")
	}
	if err != nil {
		return nil, wrap("get participant", err)
	}
	if p.Status != challenge.StatusActive {
		return nil, apperrors.Precondition("not an active participant")
	}

	key := fmt.Sprintf("challenges/%s/%s/%d-%s%s", challengeID, p.ID, p.CurrentDay, uuid.New(), ext)
	url, err := s.storage.Put(ctx, key, file.ContentType, file.Body, file.Size)
	if err != nil {
		return nil, wrap("store proof", err)
	}

	upload := &challenge.ProofUpload{
		ParticipantID: p.ID,
		Day:           p.CurrentDay,
		ObjectKey:     key,
		URL:           url,
		ContentType:   file.ContentType,
		CreatedAt:     s.now(),
	}
	if err := s.challenges.InsertProofUpload(ctx, upload); err != nil {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			s.log.Warn().Err(delErr).Str("key", key).Msg("Failed to remove orphaned proof object")
		}
		return nil, wrap("record proof", err)
	}
	return upload, nil
}
