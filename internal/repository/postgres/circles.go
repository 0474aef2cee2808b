package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"repcirAPI/internal/types/circle"
)

func (s *Store) CreateCircle(ctx context.Context, c *circle.Circle) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return s.withTransaction(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO circles (id, name, description, owner_id)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at
		`, c.ID, c.Name, c.Description, c.OwnerID).Scan(&c.CreatedAt)
		if err != nil {
			return translate(err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO circle_members (circle_id, user_id, role, joined_at)
			VALUES ($1, $2, 'owner', $3)
		`, c.ID, c.OwnerID, c.CreatedAt)
		if err != nil {
			return translate(err)
		}
		c.MemberCount = 1
		return nil
	})
}

const circleSelect = `
	SELECT c.id, c.name, c.description, c.owner_id, c.created_at,
		(SELECT COUNT(*) FROM circle_members cm2 WHERE cm2.circle_id = c.id) AS member_count
	FROM circles c
`

func scanCircle(row rowScanner) (*circle.Circle, error) {
	c := &circle.Circle{}
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.OwnerID, &c.CreatedAt, &c.MemberCount); err != nil {
		return nil, translate(err)
	}
	return c, nil
}

func (s *Store) ListCirclesForUser(ctx context.Context, userID uuid.UUID) ([]*circle.Circle, error) {
	rows, err := s.db.Query(ctx, circleSelect+`
		JOIN circle_members cm ON cm.circle_id = c.id
		WHERE cm.user_id = $1
		ORDER BY c.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*circle.Circle
	for rows.Next() {
		c, err := scanCircle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetCircle(ctx context.Context, id uuid.UUID) (*circle.Circle, error) {
	return scanCircle(s.db.QueryRow(ctx, circleSelect+` WHERE c.id = $1`, id))
}

func (s *Store) IsMember(ctx context.Context, circleID, userID uuid.UUID) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM circle_members WHERE circle_id = $1 AND user_id = $2)`,
		circleID, userID).Scan(&ok)
	return ok, err
}

func (s *Store) ListMembers(ctx context.Context, circleID uuid.UUID) ([]*circle.Member, error) {
	rows, err := s.db.Query(ctx, `
		SELECT cm.circle_id, cm.user_id, cm.role, u.username, u.image_url, cm.joined_at
		FROM circle_members cm
		JOIN users u ON u.id = cm.user_id
		WHERE cm.circle_id = $1
		ORDER BY cm.joined_at ASC
	`, circleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*circle.Member
	for rows.Next() {
		m := &circle.Member{}
		if err := rows.Scan(&m.CircleID, &m.UserID, &m.Role, &m.Username, &m.ImageURL, &m.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) AddMember(ctx context.Context, m *circle.Member) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO circle_members (circle_id, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING joined_at
	`, m.CircleID, m.UserID, m.Role).Scan(&m.JoinedAt)
	return translate(err)
}

func (s *Store) CreateInvitation(ctx context.Context, inv *circle.Invitation) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO circle_invitations (id, circle_id, code, created_by, max_uses, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING uses, created_at
	`, inv.ID, inv.CircleID, inv.Code, inv.CreatedBy, inv.MaxUses, inv.ExpiresAt).Scan(&inv.Uses, &inv.CreatedAt)
	return translate(err)
}

func (s *Store) GetInvitationByCode(ctx context.Context, code string) (*circle.Invitation, error) {
	inv := &circle.Invitation{}
	err := s.db.QueryRow(ctx, `
		SELECT id, circle_id, code, created_by, max_uses, uses, expires_at, created_at
		FROM circle_invitations
		WHERE code = $1
	`, code).Scan(&inv.ID, &inv.CircleID, &inv.Code, &inv.CreatedBy, &inv.MaxUses, &inv.Uses, &inv.ExpiresAt, &inv.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return inv, nil
}

// ReserveInvitationUse is a single guarded statement, so two requests racing
// for the last slot cannot both succeed.
func (s *Store) ReserveInvitationUse(ctx context.Context, invitationID uuid.UUID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE circle_invitations
		SET uses = uses + 1
		WHERE id = $1 AND (max_uses IS NULL OR uses < max_uses)
	`, invitationID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ReleaseInvitationUse(ctx context.Context, invitationID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `UPDATE circle_invitations SET uses = GREATEST(uses - 1, 0) WHERE id = $1`, invitationID)
	return err
}

func (s *Store) ShareCircle(ctx context.Context, a, b uuid.UUID) (bool, error) {
	var shared bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1
			FROM circle_members m1
			JOIN circle_members m2 ON m2.circle_id = m1.circle_id
			WHERE m1.user_id = $1 AND m2.user_id = $2
		)
	`, a, b).Scan(&shared)
	return shared, err
}
