package orgs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const membershipColumns = `id, organization_id, user_id, user_email, role, status, invited_by_email, created_at, updated_at`

// ListMemberships returns every membership held by a user, pending ones included
func (s *SQLStore) ListMemberships(ctx context.Context, userID string) ([]*Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM organization_members
		WHERE user_id = $1
		ORDER BY organization_id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []*Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memberships: %w", err)
	}

	return memberships, nil
}

// GetMembership retrieves a specific membership
func (s *SQLStore) GetMembership(ctx context.Context, orgID, userID string) (*Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM organization_members
		WHERE organization_id = $1 AND user_id = $2
	`
	m, err := scanMembership(s.db.QueryRowContext(ctx, query, orgID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMembershipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	return m, nil
}

// CreateMembership inserts a membership. It returns ErrMembershipExists when
// the user already belongs to the organization, in any status.
func (s *SQLStore) CreateMembership(ctx context.Context, m *Membership) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := s.now()
	m.CreatedAt = now
	m.UpdatedAt = now

	query := `
		INSERT INTO organization_members (` + membershipColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (organization_id, user_id) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query, m.ID, m.OrganizationID, m.UserID, m.UserEmail,
		string(m.Role), string(m.Status), m.InvitedByEmail, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrMembershipExists
		}
		return fmt.Errorf("failed to create membership: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrMembershipExists
	}

	return nil
}

// ConfirmMembership moves a pending membership to confirmed
func (s *SQLStore) ConfirmMembership(ctx context.Context, orgID, userID string) error {
	query := `
		UPDATE organization_members
		SET status = $1, updated_at = $2
		WHERE organization_id = $3 AND user_id = $4
	`
	result, err := s.db.ExecContext(ctx, query, string(StatusConfirmed), s.now(), orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to confirm membership: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrMembershipNotFound
	}

	return nil
}

// RemoveMembership deletes a membership
func (s *SQLStore) RemoveMembership(ctx context.Context, orgID, userID string) error {
	query := `DELETE FROM organization_members WHERE organization_id = $1 AND user_id = $2`
	result, err := s.db.ExecContext(ctx, query, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove membership: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrMembershipNotFound
	}

	return nil
}

func scanMembership(row rowScanner) (*Membership, error) {
	m := &Membership{}
	var role, status string
	if err := row.Scan(&m.ID, &m.OrganizationID, &m.UserID, &m.UserEmail, &role, &status,
		&m.InvitedByEmail, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Role = MemberRole(role)
	m.Status = MembershipStatus(status)
	return m, nil
}
