package orgs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func orgNames(list []*Organization) []string {
	names := make([]string, 0, len(list))
	for _, o := range list {
		names = append(names, o.Name)
	}
	return names
}

func TestMatchOrganizations(t *testing.T) {
	eng := &Organization{ID: "b", Name: "Engineering"}
	design := &Organization{ID: "a", Name: "Design"}
	ops := &Organization{ID: "c", Name: "Ops"}
	all := []*Organization{eng, design, ops}

	tests := []struct {
		name        string
		names       []string
		memberships []*Membership
		want        []string
	}{
		{
			name:  "matches exact names sorted",
			names: []string{"Ops", "Engineering", "Design"},
			want:  []string{"Design", "Engineering", "Ops"},
		},
		{
			name:  "unknown names ignored",
			names: []string{"Engineering", "Marketing"},
			want:  []string{"Engineering"},
		},
		{
			name:  "case sensitive",
			names: []string{"engineering", "DESIGN"},
			want:  []string{},
		},
		{
			name:  "duplicate names yield one match",
			names: []string{"Ops", "Ops"},
			want:  []string{"Ops"},
		},
		{
			name:        "existing confirmed membership excluded",
			names:       []string{"Engineering", "Ops"},
			memberships: []*Membership{{OrganizationID: "b", Status: StatusConfirmed}},
			want:        []string{"Ops"},
		},
		{
			name:        "pending membership excluded",
			names:       []string{"Engineering"},
			memberships: []*Membership{{OrganizationID: "b", Status: StatusInvited}},
			want:        []string{},
		},
		{
			name: "no names",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchOrganizations(tt.names, all, tt.memberships)
			assert.Equal(t, tt.want, orgNames(got))
		})
	}
}

func TestMatchOrganizations_SameNameOrderedByID(t *testing.T) {
	first := &Organization{ID: "1", Name: "Shared"}
	second := &Organization{ID: "2", Name: "Shared"}

	got := MatchOrganizations([]string{"Shared"}, []*Organization{second, first}, nil)
	assert.Equal(t, []*Organization{first, second}, got)
}

func TestMatchOrganizations_NeverCreates(t *testing.T) {
	got := MatchOrganizations([]string{"Brand New Org"}, nil, nil)
	assert.Empty(t, got)
}
