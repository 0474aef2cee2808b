package user

import "encoding/json"

// ClerkWebhookEvent is the envelope Clerk posts to the user webhook.
type ClerkWebhookEvent struct {
	Type   string          `json:"type"`
	Object string          `json:"object"`
	Data   json.RawMessage `json:"data"`
}

type ClerkEmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
	Verification struct {
		Status string `json:"status"`
	} `json:"verification"`
}

type ClerkUserData struct {
	ID                    string              `json:"id"`
	Username              string              `json:"username"`
	FirstName             string              `json:"first_name"`
	LastName              string              `json:"last_name"`
	ImageURL              string              `json:"image_url"`
	ProfileImageURL       string              `json:"profile_image_url"`
	PrimaryEmailAddressID string              `json:"primary_email_address_id"`
	EmailAddresses        []ClerkEmailAddress `json:"email_addresses"`
}

// User converts the payload into the local user record.
func (d *ClerkUserData) User() *User {
	email := ""
	for _, e := range d.EmailAddresses {
		if e.ID == d.PrimaryEmailAddressID {
			email = e.EmailAddress
			break
		}
	}
	if email == "" && len(d.EmailAddresses) > 0 {
		email = d.EmailAddresses[0].EmailAddress
	}

	username := d.Username
	if username == "" {
		username = d.FirstName + d.LastName
	}

	imageURL := d.ImageURL
	if imageURL == "" {
		imageURL = d.ProfileImageURL
	}

	return &User{
		ClerkID:   d.ID,
		Email:     email,
		Username:  username,
		FirstName: d.FirstName,
		LastName:  d.LastName,
		ImageURL:  imageURL,
	}
}
