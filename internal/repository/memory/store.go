// Package memory is an in-process implementation of repository.Store. It
// enforces the same uniqueness and guarded-update rules as the database schema.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"repcirAPI/internal/repository"
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

var _ repository.Store = (*Store)(nil)

type pairKey struct {
	a, b uuid.UUID
}

type device struct {
	userID uuid.UUID
	token  notification.DeviceToken
}

type Store struct {
	mu sync.Mutex

	users         map[uuid.UUID]*user.User
	challenges    map[uuid.UUID]*challenge.Challenge
	participants  map[uuid.UUID]*challenge.Participant
	progress      map[uuid.UUID]*challenge.Progress
	proofs        map[uuid.UUID]*challenge.ProofUpload
	circles       map[uuid.UUID]*circle.Circle
	members       map[pairKey]*circle.Member
	invitations   map[uuid.UUID]*circle.Invitation
	messages      []*message.Message
	badges        map[uuid.UUID]*badge.Badge
	userBadges    map[pairKey]*badge.UserBadge
	activities    []*feed.Activity
	jobs          map[uuid.UUID]*workout.GenerationJob
	subscriptions map[uuid.UUID]*subscription.Subscription
	notifications map[uuid.UUID]*notification.Notification
	devices       map[string]device
	cronRuns      map[string]time.Time
}

func New() *Store {
	return &Store{
		users:         make(map[uuid.UUID]*user.User),
		challenges:    make(map[uuid.UUID]*challenge.Challenge),
		participants:  make(map[uuid.UUID]*challenge.Participant),
		progress:      make(map[uuid.UUID]*challenge.Progress),
		proofs:        make(map[uuid.UUID]*challenge.ProofUpload),
		circles:       make(map[uuid.UUID]*circle.Circle),
		members:       make(map[pairKey]*circle.Member),
		invitations:   make(map[uuid.UUID]*circle.Invitation),
		badges:        make(map[uuid.UUID]*badge.Badge),
		userBadges:    make(map[pairKey]*badge.UserBadge),
		jobs:          make(map[uuid.UUID]*workout.GenerationJob),
		subscriptions: make(map[uuid.UUID]*subscription.Subscription),
		notifications: make(map[uuid.UUID]*notification.Notification),
		devices:       make(map[string]device),
		cronRuns:      make(map[string]time.Time),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// SeedChallenge adds or replaces a challenge definition.
func (s *Store) SeedChallenge(c *challenge.Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.challenges[c.ID] = cloneChallenge(c)
}

// SeedBadge adds or replaces a badge definition.
func (s *Store) SeedBadge(b *badge.Badge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	cp := *b
	s.badges[b.ID] = &cp
}

// SeedDefaults loads the starter catalogue used for local runs.
func (s *Store) SeedDefaults() {
	s.SeedChallenge(&challenge.Challenge{
		Name:         "7-Day Kickstart",
		Description:  "Move every day for a week.",
		DurationDays: 7,
		DailyTasks: []challenge.DailyTask{
			{Name: "workout", IsRequired: true},
			{Name: "stretch", IsRequired: false},
		},
		IsActive: true,
	})
	s.SeedChallenge(&challenge.Challenge{
		Name:          "30-Day Plank",
		Description:   "A plank every day. Miss one and start over.",
		DurationDays:  30,
		DailyTasks:    []challenge.DailyTask{{Name: "plank", IsRequired: true}},
		RestartOnFail: true,
		IsActive:      true,
	})
	for _, b := range defaultBadges() {
		s.SeedBadge(b)
	}
}

func defaultBadges() []*badge.Badge {
	return []*badge.Badge{
		{Name: "Finisher", Description: "Complete your first challenge", Icon: "flag", CriteriaType: badge.CriteriaChallengesCompleted, CriteriaValue: 1},
		{Name: "Hat Trick", Description: "Complete three challenges", Icon: "trophy", CriteriaType: badge.CriteriaChallengesCompleted, CriteriaValue: 3},
		{Name: "On Fire", Description: "Reach a 7 day streak", Icon: "flame", CriteriaType: badge.CriteriaLongestStreak, CriteriaValue: 7},
		{Name: "Unstoppable", Description: "Reach a 30 day streak", Icon: "bolt", CriteriaType: badge.CriteriaLongestStreak, CriteriaValue: 30},
		{Name: "Better Together", Description: "Join a circle", Icon: "people", CriteriaType: badge.CriteriaCirclesJoined, CriteriaValue: 1},
		{Name: "Planner", Description: "Generate your first AI workout", Icon: "sparkles", CriteriaType: badge.CriteriaWorkoutsGenerated, CriteriaValue: 1},
	}
}

func cloneChallenge(c *challenge.Challenge) *challenge.Challenge {
	cp := *c
	cp.DailyTasks = append([]challenge.DailyTask(nil), c.DailyTasks...)
	return &cp
}

func cloneParticipant(p *challenge.Participant) *challenge.Participant {
	cp := *p
	if p.CompletedDate != nil {
		d := *p.CompletedDate
		cp.CompletedDate = &d
	}
	return &cp
}

func cloneProgress(p *challenge.Progress) *challenge.Progress {
	cp := *p
	cp.TasksCompleted = append([]challenge.TaskResult(nil), p.TasksCompleted...)
	return &cp
}

func cloneInvitation(i *circle.Invitation) *circle.Invitation {
	cp := *i
	if i.MaxUses != nil {
		n := *i.MaxUses
		cp.MaxUses = &n
	}
	if i.ExpiresAt != nil {
		t := *i.ExpiresAt
		cp.ExpiresAt = &t
	}
	return &cp
}

func cloneJob(j *workout.GenerationJob) *workout.GenerationJob {
	cp := *j
	cp.Prompt.Equipment = append([]string(nil), j.Prompt.Equipment...)
	if j.Result != nil {
		plan := *j.Result
		plan.Exercises = append([]workout.Exercise(nil), j.Result.Exercises...)
		cp.Result = &plan
	}
	return &cp
}
