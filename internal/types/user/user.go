package user

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID               uuid.UUID `json:"id" db:"id"`
	ClerkID          string    `json:"clerk_id" db:"clerk_id"`
	Email            string    `json:"email" db:"email"`
	Username         string    `json:"username" db:"username"`
	FirstName        string    `json:"first_name" db:"first_name"`
	LastName         string    `json:"last_name" db:"last_name"`
	ImageURL         string    `json:"image_url" db:"image_url"`
	StripeCustomerID string    `json:"-" db:"stripe_customer_id"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// Summary is the public view of another user.
type Summary struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	ImageURL string    `json:"image_url"`
}

func (u *User) Summary() Summary {
	return Summary{ID: u.ID, Username: u.Username, ImageURL: u.ImageURL}
}

func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return u.Username
	default:
		return u.Email
	}
}
