package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/platinummonkey/ssomap/pkg/orgs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withPolicy(id string, minLength int) *orgs.Organization {
	return &orgs.Organization{
		ID:   id,
		Name: "org-" + id,
		Policies: []orgs.Policy{
			{Type: orgs.PolicyMasterPassword, Enabled: true, MasterPassword: &orgs.PasswordPolicy{MinLength: minLength}},
		},
	}
}

func index(list ...*orgs.Organization) map[string]*orgs.Organization {
	m := make(map[string]*orgs.Organization, len(list))
	for _, o := range list {
		m[o.ID] = o
	}
	return m
}

func TestRank(t *testing.T) {
	assert.Greater(t, Rank(orgs.RoleOwner), Rank(orgs.RoleAdmin))
	assert.Greater(t, Rank(orgs.RoleAdmin), Rank(orgs.RoleManager))
	assert.Greater(t, Rank(orgs.RoleManager), Rank(orgs.RoleUser))
	assert.Greater(t, Rank(orgs.RoleUser), Rank(orgs.MemberRole("custom")))
}

func TestSelect_OwnerBeatsUserRegardlessOfOrder(t *testing.T) {
	ownerOrg := withPolicy("z-owner", 20)
	userOrg := withPolicy("a-user", 8)
	byID := index(ownerOrg, userOrg)

	owner := &orgs.Membership{OrganizationID: "z-owner", Role: orgs.RoleOwner, Status: orgs.StatusConfirmed}
	user := &orgs.Membership{OrganizationID: "a-user", Role: orgs.RoleUser, Status: orgs.StatusConfirmed}

	for _, ms := range [][]*orgs.Membership{{owner, user}, {user, owner}} {
		got := Select(ms, byID)
		require.NotNil(t, got)
		assert.Equal(t, "z-owner", got.Organization.ID)
		assert.Equal(t, 20, got.Policy.MinLength)
	}
}

func TestSelect(t *testing.T) {
	noPolicy := &orgs.Organization{ID: "none"}
	disabled := &orgs.Organization{ID: "disabled", Policies: []orgs.Policy{
		{Type: orgs.PolicyMasterPassword, Enabled: false, MasterPassword: &orgs.PasswordPolicy{MinLength: 30}},
	}}
	a := withPolicy("a", 10)
	b := withPolicy("b", 12)
	byID := index(noPolicy, disabled, a, b)

	tests := []struct {
		name        string
		memberships []*orgs.Membership
		wantOrg     string
	}{
		{
			name: "pending membership counts",
			memberships: []*orgs.Membership{
				{OrganizationID: "a", Role: orgs.RoleUser, Status: orgs.StatusInvited},
			},
			wantOrg: "a",
		},
		{
			name: "higher role without policy is skipped",
			memberships: []*orgs.Membership{
				{OrganizationID: "none", Role: orgs.RoleOwner, Status: orgs.StatusConfirmed},
				{OrganizationID: "b", Role: orgs.RoleUser, Status: orgs.StatusConfirmed},
			},
			wantOrg: "b",
		},
		{
			name: "disabled policy is skipped",
			memberships: []*orgs.Membership{
				{OrganizationID: "disabled", Role: orgs.RoleAdmin},
				{OrganizationID: "a", Role: orgs.RoleManager},
			},
			wantOrg: "a",
		},
		{
			name: "tie broken by organization id",
			memberships: []*orgs.Membership{
				{OrganizationID: "b", Role: orgs.RoleAdmin},
				{OrganizationID: "a", Role: orgs.RoleAdmin},
			},
			wantOrg: "a",
		},
		{
			name: "unknown organization ignored",
			memberships: []*orgs.Membership{
				{OrganizationID: "ghost", Role: orgs.RoleOwner},
				{OrganizationID: "b", Role: orgs.RoleManager},
			},
			wantOrg: "b",
		},
		{
			name: "no applicable policy",
			memberships: []*orgs.Membership{
				{OrganizationID: "none", Role: orgs.RoleOwner},
			},
		},
		{
			name: "no memberships",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Select(tt.memberships, byID)
			if tt.wantOrg == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantOrg, got.Organization.ID)
			assert.Same(t, got.Organization.ActivePasswordPolicy(), got.Policy)
		})
	}
}

type fakeStore struct {
	memberships []*orgs.Membership
	orgs        []*orgs.Organization
	err         error
}

func (f *fakeStore) ListMemberships(ctx context.Context, userID string) ([]*orgs.Membership, error) {
	return f.memberships, f.err
}

func (f *fakeStore) ListOrganizations(ctx context.Context) ([]*orgs.Organization, error) {
	return f.orgs, nil
}

func TestSelector_ForUser(t *testing.T) {
	store := &fakeStore{
		memberships: []*orgs.Membership{
			{OrganizationID: "a", Role: orgs.RoleUser},
			{OrganizationID: "b", Role: orgs.RoleOwner, Status: orgs.StatusAdded},
		},
		orgs: []*orgs.Organization{withPolicy("a", 10), withPolicy("b", 16)},
	}

	got, err := NewSelector(store, store).ForUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "b", got.Organization.ID)
	assert.Equal(t, 16, got.Policy.MinLength)
}

func TestSelector_ForUser_NoMemberships(t *testing.T) {
	got, err := NewSelector(&fakeStore{}, &fakeStore{}).ForUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSelector_ForUser_StoreError(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	_, err := NewSelector(store, store).ForUser(context.Background(), "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list memberships")
}
