package postgres

import (
	"context"

	"github.com/google/uuid"

	"repcirAPI/internal/types/user"
)

const userColumns = `id, clerk_id, email, username, first_name, last_name, image_url,
	COALESCE(stripe_customer_id, ''), created_at, updated_at`

func scanUser(row rowScanner) (*user.User, error) {
	u := &user.User{}
	err := row.Scan(&u.ID, &u.ClerkID, &u.Email, &u.Username, &u.FirstName, &u.LastName,
		&u.ImageURL, &u.StripeCustomerID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return u, nil
}

func (s *Store) UserIDByClerkID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&id)
	return id, translate(err)
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *Store) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE clerk_id = $1`, clerkID))
}

func (s *Store) UpsertUser(ctx context.Context, u *user.User) error {
	query := `
		INSERT INTO users (clerk_id, email, username, first_name, last_name, image_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (clerk_id) DO UPDATE SET
			email = EXCLUDED.email,
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			image_url = EXCLUDED.image_url,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRow(ctx, query, u.ClerkID, u.Email, u.Username, u.FirstName, u.LastName, u.ImageURL).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	return translate(err)
}

func (s *Store) DeleteUserByClerkID(ctx context.Context, clerkID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM users WHERE clerk_id = $1`, clerkID)
	if err != nil {
		return err
	}
	return requireRow(tag)
}

func (s *Store) SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error {
	tag, err := s.db.Exec(ctx, `UPDATE users SET stripe_customer_id = $2, updated_at = NOW() WHERE id = $1`, userID, customerID)
	if err != nil {
		return translate(err)
	}
	return requireRow(tag)
}

func (s *Store) UserIDByStripeCustomer(ctx context.Context, customerID string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE stripe_customer_id = $1`, customerID).Scan(&id)
	return id, translate(err)
}
