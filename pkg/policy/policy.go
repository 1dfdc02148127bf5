// Package policy picks the organization master-password policy that governs
// a user holding memberships in several organizations.
package policy

import (
	"context"
	"fmt"

	"github.com/platinummonkey/ssomap/pkg/orgs"
)

// roleRank orders membership roles. Unknown roles rank 0.
var roleRank = map[orgs.MemberRole]int{
	orgs.RoleOwner:   4,
	orgs.RoleAdmin:   3,
	orgs.RoleManager: 2,
	orgs.RoleUser:    1,
}

// Rank returns the precedence of role, higher wins
func Rank(role orgs.MemberRole) int {
	return roleRank[role]
}

// Selection is the policy that applies to a user and where it came from
type Selection struct {
	Organization *orgs.Organization   `json:"organization"`
	Membership   *orgs.Membership     `json:"membership"`
	Policy       *orgs.PasswordPolicy `json:"policy"`
}

// Select returns the active password policy of the organization in which the
// user holds the highest-ranked membership. Pending memberships count.
// Memberships whose organization is unknown or has no active policy are
// skipped. Equal ranks are broken by the lower organization ID. Select
// returns nil when no membership carries a policy.
func Select(memberships []*orgs.Membership, orgsByID map[string]*orgs.Organization) *Selection {
	var best *Selection
	for _, m := range memberships {
		if m == nil {
			continue
		}
		org, ok := orgsByID[m.OrganizationID]
		if !ok || org == nil {
			continue
		}
		p := org.ActivePasswordPolicy()
		if p == nil {
			continue
		}

		if best == nil || outranks(m, best.Membership) {
			best = &Selection{Organization: org, Membership: m, Policy: p}
		}
	}
	return best
}

func outranks(a, b *orgs.Membership) bool {
	ra, rb := Rank(a.Role), Rank(b.Role)
	if ra != rb {
		return ra > rb
	}
	return a.OrganizationID < b.OrganizationID
}

// MembershipLister reads a user's memberships
type MembershipLister interface {
	ListMemberships(ctx context.Context, userID string) ([]*orgs.Membership, error)
}

// Selector resolves policies from stored memberships
type Selector struct {
	memberships MembershipLister
	directory   orgs.Directory
}

// NewSelector creates a new Selector
func NewSelector(memberships MembershipLister, directory orgs.Directory) *Selector {
	return &Selector{memberships: memberships, directory: directory}
}

// ForUser returns the policy that currently governs userID, or nil
func (s *Selector) ForUser(ctx context.Context, userID string) (*Selection, error) {
	memberships, err := s.memberships.ListMemberships(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	if len(memberships) == 0 {
		return nil, nil
	}

	all, err := s.directory.ListOrganizations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}

	byID := make(map[string]*orgs.Organization, len(all))
	for _, org := range all {
		byID[org.ID] = org
	}

	return Select(memberships, byID), nil
}
