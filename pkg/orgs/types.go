package orgs

import (
	"context"
	"errors"
	"time"
)

// MemberRole represents a member's role inside an organization
type MemberRole string

const (
	RoleOwner   MemberRole = "owner"
	RoleAdmin   MemberRole = "admin"
	RoleManager MemberRole = "manager"
	RoleUser    MemberRole = "user"
)

// MembershipStatus represents where a membership is in its lifecycle
type MembershipStatus string

const (
	StatusInvited   MembershipStatus = "invited"   // Pending, invite email sent
	StatusAdded     MembershipStatus = "added"     // Pending, added without email
	StatusConfirmed MembershipStatus = "confirmed" // Confirmed by an organization admin
)

// IsPending reports whether the membership still awaits admin confirmation
func (s MembershipStatus) IsPending() bool {
	return s == StatusInvited || s == StatusAdded
}

// PolicyType identifies an organization policy
type PolicyType string

const (
	PolicyMasterPassword PolicyType = "master_password"
)

// PasswordPolicy holds master password requirements
type PasswordPolicy struct {
	MinComplexity  int  `json:"min_complexity"`
	MinLength      int  `json:"min_length"`
	RequireUpper   bool `json:"require_upper"`
	RequireLower   bool `json:"require_lower"`
	RequireNumbers bool `json:"require_numbers"`
	RequireSpecial bool `json:"require_special"`
	EnforceOnLogin bool `json:"enforce_on_login"`
}

// Policy is a single organization policy rule
type Policy struct {
	Type           PolicyType      `json:"type"`
	Enabled        bool            `json:"enabled"`
	MasterPassword *PasswordPolicy `json:"master_password,omitempty"`
}

// Organization represents an existing organization users can be enrolled into
type Organization struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"` // Matched case-sensitively against SSO claims
	NotificationEmail string    `json:"notification_email,omitempty"`
	Policies          []Policy  `json:"policies,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ActivePasswordPolicy returns the enabled master password policy, or nil
func (o *Organization) ActivePasswordPolicy() *PasswordPolicy {
	for i := range o.Policies {
		p := o.Policies[i]
		if p.Type == PolicyMasterPassword && p.Enabled && p.MasterPassword != nil {
			return p.MasterPassword
		}
	}
	return nil
}

// Membership links a user to an organization
type Membership struct {
	ID             string           `json:"id"`
	OrganizationID string           `json:"organization_id"`
	UserID         string           `json:"user_id"`
	UserEmail      string           `json:"user_email,omitempty"`
	Role           MemberRole       `json:"role"`
	Status         MembershipStatus `json:"status"`
	InvitedByEmail string           `json:"invited_by_email,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// IsPending reports whether the membership awaits admin confirmation
func (m *Membership) IsPending() bool {
	return m.Status.IsPending()
}

// User identifies the person logging in
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

var (
	// ErrOrganizationNotFound is returned when an organization does not exist
	ErrOrganizationNotFound = errors.New("organization not found")
	// ErrMembershipNotFound is returned when a membership does not exist
	ErrMembershipNotFound = errors.New("membership not found")
	// ErrMembershipExists is returned when the user already has a membership
	// in the organization. Enrollment treats it as a no-op.
	ErrMembershipExists = errors.New("membership already exists")
)

// Directory lists the organizations users can be matched against
type Directory interface {
	ListOrganizations(ctx context.Context) ([]*Organization, error)
}

// Store defines organization and membership persistence
type Store interface {
	Directory

	// Organizations
	CreateOrganization(ctx context.Context, org *Organization) error
	GetOrganization(ctx context.Context, id string) (*Organization, error)

	// Memberships
	ListMemberships(ctx context.Context, userID string) ([]*Membership, error)
	GetMembership(ctx context.Context, orgID, userID string) (*Membership, error)
	CreateMembership(ctx context.Context, m *Membership) error
	ConfirmMembership(ctx context.Context, orgID, userID string) error
	RemoveMembership(ctx context.Context, orgID, userID string) error
}
