package orgs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// SQLStore implements Store on top of database/sql. Queries use $n
// placeholders and run against PostgreSQL or SQLite.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLStore creates a new SQLStore
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrganization creates a new organization
func (s *SQLStore) CreateOrganization(ctx context.Context, org *Organization) error {
	if org.ID == "" {
		org.ID = uuid.NewString()
	}
	if org.Policies == nil {
		org.Policies = []Policy{}
	}

	policiesJSON, err := json.Marshal(org.Policies)
	if err != nil {
		return fmt.Errorf("failed to marshal policies: %w", err)
	}

	now := s.now()
	org.CreatedAt = now
	org.UpdatedAt = now

	query := `
		INSERT INTO organizations (id, name, notification_email, policies, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.db.ExecContext(ctx, query, org.ID, org.Name, org.NotificationEmail,
		string(policiesJSON), org.CreatedAt, org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}

	return nil
}

// GetOrganization retrieves an organization by ID
func (s *SQLStore) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	query := `
		SELECT id, name, notification_email, policies, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`
	org, err := scanOrganization(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrganizationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return org, nil
}

// ListOrganizations returns every organization ordered by name
func (s *SQLStore) ListOrganizations(ctx context.Context) ([]*Organization, error) {
	query := `
		SELECT id, name, notification_email, policies, created_at, updated_at
		FROM organizations
		ORDER BY name ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var result []*Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		result = append(result, org)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate organizations: %w", err)
	}

	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrganization(row rowScanner) (*Organization, error) {
	org := &Organization{}
	var policiesJSON string
	if err := row.Scan(&org.ID, &org.Name, &org.NotificationEmail, &policiesJSON,
		&org.CreatedAt, &org.UpdatedAt); err != nil {
		return nil, err
	}

	if policiesJSON != "" {
		if err := json.Unmarshal([]byte(policiesJSON), &org.Policies); err != nil {
			return nil, fmt.Errorf("failed to unmarshal policies: %w", err)
		}
	}

	return org, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
