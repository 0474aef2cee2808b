package circle

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

type Circle struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	OwnerID     uuid.UUID `json:"owner_id" db:"owner_id"`
	MemberCount int       `json:"member_count" db:"member_count"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type Member struct {
	CircleID uuid.UUID `json:"circle_id" db:"circle_id"`
	UserID   uuid.UUID `json:"user_id" db:"user_id"`
	Role     Role      `json:"role" db:"role"`
	Username string    `json:"username" db:"username"`
	ImageURL string    `json:"image_url" db:"image_url"`
	JoinedAt time.Time `json:"joined_at" db:"joined_at"`
}

type Invitation struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	CircleID  uuid.UUID  `json:"circle_id" db:"circle_id"`
	Code      string     `json:"code" db:"code"`
	CreatedBy uuid.UUID  `json:"created_by" db:"created_by"`
	MaxUses   *int       `json:"max_uses,omitempty" db:"max_uses"`
	Uses      int        `json:"uses" db:"uses"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

func (i *Invitation) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && !now.Before(*i.ExpiresAt)
}
