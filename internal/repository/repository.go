// Package repository declares the persistence contracts used by services.
// The postgres package is the production implementation; memory backs tests
// and local runs without a database.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"repcirAPI/internal/types/badge"
	"repcirAPI/internal/types/challenge"
	"repcirAPI/internal/types/circle"
	"repcirAPI/internal/types/feed"
	"repcirAPI/internal/types/message"
	"repcirAPI/internal/types/notification"
	"repcirAPI/internal/types/subscription"
	"repcirAPI/internal/types/user"
	"repcirAPI/internal/types/workout"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

type UserStore interface {
	UserIDByClerkID(ctx context.Context, clerkID string) (uuid.UUID, error)
	GetUser(ctx context.Context, id uuid.UUID) (*user.User, error)
	GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error)
	UpsertUser(ctx context.Context, u *user.User) error
	DeleteUserByClerkID(ctx context.Context, clerkID string) error
	SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error
	UserIDByStripeCustomer(ctx context.Context, customerID string) (uuid.UUID, error)
}

type ChallengeStore interface {
	// ListChallenges returns visible challenges only.
	ListChallenges(ctx context.Context) ([]*challenge.Challenge, error)
	GetChallenge(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error)
	GetParticipant(ctx context.Context, challengeID, userID uuid.UUID) (*challenge.Participant, error)
	ListParticipations(ctx context.Context, userID uuid.UUID) ([]*challenge.Participant, error)
	ListProgress(ctx context.Context, participantID uuid.UUID) ([]*challenge.Progress, error)
	InsertProofUpload(ctx context.Context, u *challenge.ProofUpload) error
	// WithinTx runs fn in one transaction. Returning an error rolls back.
	WithinTx(ctx context.Context, fn func(tx ChallengeTx) error) error
}

// ChallengeTx is the set of operations that must commit together.
type ChallengeTx interface {
	GetChallenge(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error)
	// LockParticipant loads the row and holds it until the transaction ends.
	LockParticipant(ctx context.Context, challengeID, userID uuid.UUID) (*challenge.Participant, error)
	InsertParticipant(ctx context.Context, p *challenge.Participant) error
	UpdateParticipant(ctx context.Context, p *challenge.Participant) error
	// AdjustParticipantCount adds delta to the counter, never going below zero.
	AdjustParticipantCount(ctx context.Context, challengeID uuid.UUID, delta int) error
	IncrementCompletionCount(ctx context.Context, challengeID uuid.UUID) error
	ProgressExists(ctx context.Context, participantID uuid.UUID, date time.Time) (bool, error)
	// InsertProgress returns ErrDuplicate when the participant already has a row for the date.
	InsertProgress(ctx context.Context, p *challenge.Progress) error
}

type CircleStore interface {
	// CreateCircle inserts the circle and its owner membership.
	CreateCircle(ctx context.Context, c *circle.Circle) error
	ListCirclesForUser(ctx context.Context, userID uuid.UUID) ([]*circle.Circle, error)
	GetCircle(ctx context.Context, id uuid.UUID) (*circle.Circle, error)
	IsMember(ctx context.Context, circleID, userID uuid.UUID) (bool, error)
	ListMembers(ctx context.Context, circleID uuid.UUID) ([]*circle.Member, error)
	AddMember(ctx context.Context, m *circle.Member) error
	CreateInvitation(ctx context.Context, inv *circle.Invitation) error
	GetInvitationByCode(ctx context.Context, code string) (*circle.Invitation, error)
	// ReserveInvitationUse increments uses only while capacity remains and
	// reports whether a slot was taken.
	ReserveInvitationUse(ctx context.Context, invitationID uuid.UUID) (bool, error)
	ReleaseInvitationUse(ctx context.Context, invitationID uuid.UUID) error
	ShareCircle(ctx context.Context, a, b uuid.UUID) (bool, error)
}

type MessageStore interface {
	InsertMessage(ctx context.Context, m *message.Message) error
	// ListThread returns messages between the two users, newest first.
	ListThread(ctx context.Context, userID, otherID uuid.UUID, before *time.Time, limit int) ([]*message.Message, error)
	MarkThreadRead(ctx context.Context, readerID, senderID uuid.UUID, at time.Time) (int64, error)
	ListConversations(ctx context.Context, userID uuid.UUID) ([]*message.Conversation, error)
}

type BadgeStore interface {
	ListBadges(ctx context.Context) ([]*badge.Badge, error)
	ListUserBadges(ctx context.Context, userID uuid.UUID) ([]*badge.UserBadge, error)
	// AwardBadge reports false when the user already holds the badge.
	AwardBadge(ctx context.Context, userID, badgeID uuid.UUID, at time.Time) (bool, error)
	BadgeStats(ctx context.Context, userID uuid.UUID) (badge.Stats, error)
}

type FeedStore interface {
	InsertActivity(ctx context.Context, a *feed.Activity) error
	// ListFeed returns activities of the user and everyone sharing a circle with them.
	ListFeed(ctx context.Context, userID uuid.UUID, limit int) ([]*feed.Item, error)
}

type WorkoutStore interface {
	CreateJob(ctx context.Context, j *workout.GenerationJob) error
	GetJob(ctx context.Context, id uuid.UUID) (*workout.GenerationJob, error)
	UpdateJob(ctx context.Context, j *workout.GenerationJob) error
	// CreateJobWithinQuota inserts j only while the user has fewer than limit
	// jobs created at or after since, excluding failed ones. Concurrent calls
	// for the same user are serialized.
	CreateJobWithinQuota(ctx context.Context, j *workout.GenerationJob, since time.Time, limit int) (bool, error)
}

type SubscriptionStore interface {
	GetSubscription(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error)
	UpsertSubscription(ctx context.Context, s *subscription.Subscription) error
}

type NotificationStore interface {
	InsertNotification(ctx context.Context, n *notification.Notification) error
	ListNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]*notification.Notification, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
	DeviceTokens(ctx context.Context, userID uuid.UUID) ([]notification.DeviceToken, error)
	RegisterDevice(ctx context.Context, userID uuid.UUID, token notification.DeviceToken) error
}

type RetentionStore interface {
	// ClaimCronRun records a run of name at now unless one was recorded less
	// than interval ago. It reports whether the claim succeeded.
	ClaimCronRun(ctx context.Context, name string, now time.Time, interval time.Duration) (bool, error)
	DeleteExpiredInvitations(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteFinishedJobs(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteReadNotifications(ctx context.Context, cutoff time.Time) (int64, error)
	// StaleProofUploads lists uploads of participants who quit before cutoff.
	StaleProofUploads(ctx context.Context, cutoff time.Time, limit int) ([]*challenge.ProofUpload, error)
	DeleteProofUpload(ctx context.Context, id uuid.UUID) error
}

// Store is everything the application persists.
type Store interface {
	UserStore
	ChallengeStore
	CircleStore
	MessageStore
	BadgeStore
	FeedStore
	WorkoutStore
	SubscriptionStore
	NotificationStore
	RetentionStore
	Ping(ctx context.Context) error
}
