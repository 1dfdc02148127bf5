package orgs

import "sort"

// MatchOrganizations returns the organizations whose exact name appears in
// names and that the user holds no membership in, pending or confirmed.
// Names that match no organization are ignored. The result is ordered by
// name then ID, with no duplicates.
func MatchOrganizations(names []string, organizations []*Organization, memberships []*Membership) []*Organization {
	if len(names) == 0 || len(organizations) == 0 {
		return nil
	}

	wanted := make(map[string]struct{}, len(names))
	for _, name := range names {
		wanted[name] = struct{}{}
	}

	joined := make(map[string]struct{}, len(memberships))
	for _, m := range memberships {
		joined[m.OrganizationID] = struct{}{}
	}

	seen := make(map[string]struct{})
	var matched []*Organization
	for _, org := range organizations {
		if org == nil {
			continue
		}
		if _, ok := wanted[org.Name]; !ok {
			continue
		}
		if _, ok := joined[org.ID]; ok {
			continue
		}
		if _, ok := seen[org.ID]; ok {
			continue
		}
		seen[org.ID] = struct{}{}
		matched = append(matched, org)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Name != matched[j].Name {
			return matched[i].Name < matched[j].Name
		}
		return matched[i].ID < matched[j].ID
	})

	return matched
}
