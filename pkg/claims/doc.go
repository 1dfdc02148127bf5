// Package claims navigates the decoded claim set of a verified access token.
//
// # Overview
//
// Identity providers disagree on where they put roles and groups. Keycloak nests
// client roles under resource_access, Azure AD emits a flat groups array, Okta
// uses whatever the admin configured. A Path locates a claim inside the token and
// Extract walks it without ever failing: anything missing or of the wrong shape
// is reported as absent.
//
// # Usage Example
//
//	tc, err := claims.FromJSON(verifiedPayload)
//	if err != nil {
//		return err
//	}
//	path := claims.ParsePath("/resource_access/{client_id}/roles", clientID)
//	if values, ok := claims.Extract(tc, path); ok {
//		roles := values.Strings()
//	}
//
// # Related Packages
//
//   - pkg/roles: maps extracted role values to an internal role
//   - pkg/orgs: matches extracted group values against organizations
package claims
