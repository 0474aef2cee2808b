package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	qrcode "github.com/skip2/go-qrcode"

	"repcirAPI/internal/apperrors"
	"repcirAPI/internal/logger"
	"repcirAPI/internal/metrics"
	"repcirAPI/internal/repository"
	"repcirAPI/internal/types/circle"
	"repcirAPI/internal/types/feed"
	"repcirAPI/internal/types/notification"
)

const (
	inviteCodeLength   = 8
	inviteCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	inviteLinkBase     = "repcir://circles/join"
	inviteQRSize       = 256
	inviteCodeAttempts = 5
)

type CircleService struct {
	users      repository.UserStore
	circles    repository.CircleStore
	badges     BadgeTrigger
	activities ActivityRecorder
	notifier   Notifier
	mailer     InvitationMailer
	now        func() time.Time
	log        zerolog.Logger
}

func NewCircleService(users repository.UserStore, circles repository.CircleStore, badges BadgeTrigger, activities ActivityRecorder, notifier Notifier, mailer InvitationMailer) *CircleService {
	return &CircleService{
		users:      users,
		circles:    circles,
		badges:     badges,
		activities: activities,
		notifier:   notifier,
		mailer:     mailer,
		now:        func() time.Time { return time.Now().UTC() },
		log:        logger.With("circles"),
	}
}

func (s *CircleService) CreateCircle(ctx context.Context, clerkID string, req circle.CreateCircleRequest) (*circle.Circle, error) {
	userID, err := resolveUserID(ctx, s.users, clerkID)
	if err != nil {
		return nil, err
	}

	c := &circle.Circle{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		OwnerID:     userID,
		MemberCount: 1,
		CreatedAt:   s.now(),
	}
	if err := s.circles.CreateCircle(ctx, c); err != nil {
		return nil, wrap("create circle", err)
	}

	detached(func(ctx context.Context) {
		s.badges.Trigger(ctx, userID, "circle_created")
	})
	return c, nil
}

func (s *CircleService) ListCircles(ctx context.Context, clerkID string) ([]*circle.Circle, error) {
	userID, err := resolveUserID(ctx, s.users, clerkID)
	if err != nil {
		return nil, err
	}
	circles, err := s.circles.ListCirclesForUser(ctx, userID)
	if err != nil {
		return nil, wrap("list circles", err)
	}
	return circles, nil
}

func (s *CircleService) ListMembers(ctx context.Context, clerkID string, circleID uuid.UUID) ([]*circle.Member, error) {
	userID, err := resolveUserID(ctx, s.users, clerkID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireMember(ctx, circleID, userID); err != nil {
		return nil, err
	}

	members, err := s.circles.ListMembers(ctx, circleID)
	if err != nil {
		return nil, wrap("list members", err)
	}
	return members, nil
}

func (s *CircleService) requireMember(ctx context.Context, circleID, userID uuid.UUID) (*circle.Circle, error) {
	c, err := s.circles.GetCircle(ctx, circleID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("circle not found")
	}
	if err != nil {
		return nil, wrap("get circle", err)
	}

	ok, err := s.circles.IsMember(ctx, circleID, userID)
	if err != nil {
		return nil, wrap("check membership", err)
	}
	if !ok {
		return nil, apperrors.Forbidden("not a member of this circle")
	}
	return c, nil
}

// CreateInvitation issues a share code with its deep link and QR image.
func (s *CircleService) CreateInvitation(ctx context.Context, clerkID string, circleID uuid.UUID, req circle.CreateInvitationRequest) (*circle.InvitationResponse, error) {
	userID, err := resolveUserID(ctx, s.users, clerkID)
	if err != nil {
		return nil, err
	}
	c, err := s.requireMember(ctx, circleID, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	inv := &circle.Invitation{
		CircleID:  circleID,
		CreatedBy: userID,
		MaxUses:   req.MaxUses,
		CreatedAt: now,
	}
	if req.ExpiresInHours != nil {
		expires := now.Add(time.Duration(*req.ExpiresInHours) * time.Hour)
		inv.ExpiresAt = &expires
	}

	for attempt := 1; ; attempt++ {
		code, err := generateInviteCode()
		if err != nil {
			return nil, wrap("generate invite code", err)
		}
		inv.Code = code

		err = s.circles.CreateInvitation(ctx, inv)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicate) || attempt == inviteCodeAttempts {
			return nil, wrap("create invitation", err)
		}
	}

	link := InviteLink(inv.Code)
	png, err := qrcode.Encode(link, qrcode.Medium, inviteQRSize)
	if err != nil {
		return nil, wrap("encode qr code", err)
	}

	if req.Email != "" && s.mailer != nil {
		to := req.Email
		detached(func(ctx context.Context) {
			inviter := "A friend"
			if u, err := s.users.GetUser(ctx, userID); err == nil {
				inviter = u.DisplayName()
			}
			if err := s.mailer.SendInvitation(ctx, to, c.Name, inviter, inv.Code, link); err != nil {
				s.log.Warn().Err(err).Str("circle_id", circleID.String()).Msg("Failed to send invitation email")
			}
		})
	}

	return &circle.InvitationResponse{
		Invitation: inv,
		ShareLink:  link,
		QRCode:     base64.StdEncoding.EncodeToString(png),
	}, nil
}

func InviteLink(code string) string {
	return inviteLinkBase + "?code=" + url.QueryEscape(code)
}

func generateInviteCode() (string, error) {
	buf := make([]byte, inviteCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	// 256 is a multiple of the alphabet size, so the modulo is unbiased.
	for i, b := range buf {
		buf[i] = inviteCodeAlphabet[int(b)%len(inviteCodeAlphabet)]
	}
	return string(buf), nil
}

// Redeem joins the caller to the circle behind code. The use counter is
// reserved with one guarded increment and released if the membership insert fails.
func (s *CircleService) Redeem(ctx context.Context, clerkID, code string) (*circle.RedeemResponse, error) {
	userID, err := resolveUserID(ctx, s.users, clerkID)
	if err != nil {
		return nil, err
	}

	inv, err := s.circles.GetInvitationByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if errors.Is(err, repository.ErrNotFound) || (err == nil && inv.Expired(s.now())) {
		metrics.InviteRedemptions.WithLabelValues("invalid").Inc()
		return nil, apperrors.NotFound("invalid or expired invite code")
	}
	if err != nil {
		return nil, wrap("get invitation", err)
	}

	// Loaded before any write so a failure here leaves nothing committed.
	c, err := s.circles.GetCircle(ctx, inv.CircleID)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.InviteRedemptions.WithLabelValues("invalid").Inc()
		return nil, apperrors.NotFound("invalid or expired invite code")
	}
	if err != nil {
		return nil, wrap("get circle", err)
	}

	member, err := s.circles.IsMember(ctx, inv.CircleID, userID)
	if err != nil {
		return nil, wrap("check membership", err)
	}
	if member {
		metrics.InviteRedemptions.WithLabelValues("already_member").Inc()
		return nil, apperrors.Conflict("already a member")
	}

	reserved, err := s.circles.ReserveInvitationUse(ctx, inv.ID)
	if err != nil {
		return nil, wrap("reserve invitation use", err)
	}
	if !reserved {
		metrics.InviteRedemptions.WithLabelValues("exhausted").Inc()
		return nil, apperrors.BusinessRule("invite code has reached its maximum uses")
	}

	m := &circle.Member{
		CircleID: inv.CircleID,
		UserID:   userID,
		Role:     circle.RoleMember,
		JoinedAt: s.now(),
	}
	if err := s.circles.AddMember(ctx, m); err != nil {
		if relErr := s.circles.ReleaseInvitationUse(ctx, inv.ID); relErr != nil {
			s.log.Error().Err(relErr).Str("invitation_id", inv.ID.String()).Msg("Failed to release invitation use")
		}
		metrics.InviteRedemptions.WithLabelValues("failed").Inc()
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("already a member")
		}
		return nil, wrap("add member", err)
	}
	metrics.InviteRedemptions.WithLabelValues("success").Inc()
	c.MemberCount++

	s.activities.Record(ctx, &feed.Activity{
		UserID:    userID,
		Kind:      feed.KindCircleJoined,
		SubjectID: subjectID(c.ID),
		Data:      map[string]any{"circle_name": c.Name},
	})
	if c.OwnerID != userID {
		s.notifier.Notify(ctx, c.OwnerID, notification.NotificationCircleJoined,
			"New circle member",
			fmt.Sprintf("Someone joined %s with your invite.", c.Name),
			map[string]any{"circle_id": c.ID.String(), "user_id": userID.String()},
		)
	}
	detached(func(ctx context.Context) {
		s.badges.Trigger(ctx, userID, "circle_joined")
	})

	return &circle.RedeemResponse{Circle: c, Member: m}, nil
}
