// Package enrollment turns matched organizations into pending memberships.
//
// Each (user, organization) pair moves NotMember -> Pending -> Confirmed.
// Enroll only performs the first step: it stores an "invited" membership
// when a notification sender is configured, or an "added" one otherwise.
// Confirmation is an administrator action on the organization store.
//
// Invitations carry an HS256 token so the acceptance page can check that
// the link was issued by this service:
//
//	tokens, _ := enrollment.NewInviteTokens(secret, "ssomap", 0)
//	orch := enrollment.NewOrchestrator(store,
//		enrollment.WithSender(sender),
//		enrollment.WithRunner(runner),
//		enrollment.WithInvites(tokens, "https://vault.example.com/accept"),
//	)
//	results := orch.Enroll(ctx, user, matched)
//
// Emails are sent on the async runner after the membership is stored. A
// failed email leaves the membership in place.
package enrollment
