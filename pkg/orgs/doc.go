// Package orgs stores organizations and memberships and matches SSO group
// claims to organizations a user should be enrolled in.
//
// # Overview
//
// Organizations are created by administrators; this package never creates
// one from a claim. A user holds at most one membership per organization,
// enforced by a unique (organization_id, user_id) constraint. Memberships
// start pending ("invited" or "added") and become "confirmed" once an
// organization admin confirms them.
//
// # Storage
//
// SQLStore runs the same queries against PostgreSQL (lib/pq) and SQLite
// (go-sqlite3). Apply the schema with Migrate before use:
//
//	db, _ := sql.Open("postgres", dsn)
//	if err := orgs.Migrate(ctx, db); err != nil {
//		return err
//	}
//	store := orgs.NewSQLStore(db)
//
// CreateMembership returns ErrMembershipExists instead of a driver error
// when the user already belongs to the organization.
//
// # Matching
//
// MatchOrganizations compares claim values to organization names exactly,
// case included, and drops organizations the user already belongs to:
//
//	dir := orgs.NewCachedDirectory(store, time.Minute)
//	all, _ := dir.ListOrganizations(ctx)
//	existing, _ := store.ListMemberships(ctx, user.ID)
//	toJoin := orgs.MatchOrganizations(groupNames, all, existing)
package orgs
