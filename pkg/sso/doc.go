// Package sso maps a verified OpenID Connect login to an internal role and
// to organization invitations.
//
// # Overview
//
// A login arrives with an authorization code and the tokens the provider
// returned for it. The access token is verified against the provider keys,
// the identity claims are read through an AttributeMap and the role claim is
// resolved by the roles package. When organization invites are enabled the
// group claim is matched against existing organizations and the user is
// enrolled in each match.
//
// Credential failures wrap ErrInvalidToken and map to 401. Role mapping
// denials wrap roles.ErrAuthorizationDenied and map to 403 with
// DeniedMessage. Organization lookups and enrollment never fail a login.
//
// # Usage Example
//
//	verifier, err := sso.NewOIDCVerifier(ctx, settings)
//	if err != nil {
//		return err
//	}
//	service := sso.NewService(settings, sso.ServiceDeps{
//		Verifier:    verifier,
//		Directory:   orgs.NewCachedDirectory(store, time.Minute),
//		Memberships: store,
//		Enroller:    enrollment.NewOrchestrator(store, enrollment.WithSender(sender)),
//		Cache:       sso.NewRedisLoginCache(redisClient, 10*time.Minute),
//	})
//	auth := middleware.NewAuthMiddleware(verifier, roles.NewResolver(settings.Roles), "sub", logger)
//	sso.NewHandlers(service, store, policy.NewSelector(store, store)).
//		WithAdminMiddleware(auth.Admin()...).
//		WithInvites(inviteTokens).
//		RegisterRoutes(router)
//
// # Login Cache
//
// The result of a login is cached per authorization code until the client
// calls Redeem, so a retried callback does not enroll twice. The token is
// still verified on every call and a cached result is only returned to the
// subject it was produced for. Codes are hashed before they are used as keys.
//
// # Related Packages
//
//   - pkg/claims: Token claim paths and extraction
//   - pkg/roles: Role claim resolution
//   - pkg/orgs: Organizations, memberships and matching
//   - pkg/enrollment: Membership creation and invitation email
//   - pkg/policy: Master password policy selection
package sso
