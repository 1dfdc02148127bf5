package enrollment

import (
	"context"

	"github.com/platinummonkey/ssomap/pkg/orgs"
)

// Outcome describes what Enroll did for one organization
type Outcome string

const (
	OutcomeInvited       Outcome = "invited"        // Pending membership created, emails queued
	OutcomeAdded         Outcome = "added"          // Pending membership created without email
	OutcomeAlreadyMember Outcome = "already_member" // Membership already existed, nothing done
	OutcomeFailed        Outcome = "failed"         // Membership could not be stored
)

// Result is the outcome for one candidate organization
type Result struct {
	Organization *orgs.Organization `json:"organization"`
	Membership   *orgs.Membership   `json:"membership,omitempty"`
	Outcome      Outcome            `json:"outcome"`
	Err          error              `json:"-"`
}

// Notification kinds reported to Metrics
const (
	KindInvite        = "invite"
	KindPendingNotice = "pending_notice"
)

// Notification statuses reported to Metrics
const (
	StatusQueued  = "queued"
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// MembershipCreator stores new memberships
type MembershipCreator interface {
	CreateMembership(ctx context.Context, m *orgs.Membership) error
}

// Metrics records enrollment activity
type Metrics interface {
	RecordEnrollment(outcome string)
	RecordNotification(kind, status string)
}

type noopMetrics struct{}

func (noopMetrics) RecordEnrollment(string)           {}
func (noopMetrics) RecordNotification(string, string) {}
