package enrollment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/platinummonkey/ssomap/pkg/async"
	"github.com/platinummonkey/ssomap/pkg/notify"
	"github.com/platinummonkey/ssomap/pkg/observability"
	"github.com/platinummonkey/ssomap/pkg/orgs"
)

// Orchestrator creates pending memberships for matched organizations and
// dispatches the related notifications
type Orchestrator struct {
	store     MembershipCreator
	sender    notify.Sender
	runner    *async.Runner
	tokens    *InviteTokens
	inviteURL string
	role      orgs.MemberRole
	logger    *observability.Logger
	metrics   Metrics
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithSender enables the invitation flow. Without a sender memberships are
// created in the added state and no email is sent.
func WithSender(sender notify.Sender) Option {
	return func(o *Orchestrator) { o.sender = sender }
}

// WithRunner sets the runner notifications are dispatched on
func WithRunner(runner *async.Runner) Option {
	return func(o *Orchestrator) { o.runner = runner }
}

// WithInvites sets the token issuer and the base URL of the acceptance
// page. The token and membership identifiers are appended as query
// parameters.
func WithInvites(tokens *InviteTokens, baseURL string) Option {
	return func(o *Orchestrator) {
		o.tokens = tokens
		o.inviteURL = baseURL
	}
}

// WithLogger sets the fallback logger
func WithLogger(logger *observability.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithMetrics sets the metrics recorder
func WithMetrics(m Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(store MembershipCreator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:   store,
		role:    orgs.RoleUser,
		logger:  observability.NewLogger(observability.InfoLevel, io.Discard),
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.runner == nil {
		o.runner = async.NewRunner(async.WithLogger(o.logger))
	}
	return o
}

// InvitesEnabled reports whether memberships are created as invitations
func (o *Orchestrator) InvitesEnabled() bool {
	return o.sender != nil
}

// Enroll creates one pending membership per candidate organization. A
// membership that already exists is left untouched. A storage failure for
// one organization does not stop the others and triggers no email.
// Notification failures are logged and never change the result.
func (o *Orchestrator) Enroll(ctx context.Context, user orgs.User, candidates []*orgs.Organization) []Result {
	logger := observability.FromContextOr(ctx, o.logger).WithField("user_id", user.ID)

	seen := make(map[string]struct{}, len(candidates))
	results := make([]Result, 0, len(candidates))
	for _, org := range candidates {
		if org == nil {
			continue
		}
		if _, dup := seen[org.ID]; dup {
			continue
		}
		seen[org.ID] = struct{}{}

		res := o.enrollOne(ctx, user, org)
		o.metrics.RecordEnrollment(string(res.Outcome))

		orgLogger := logger.WithFields(map[string]interface{}{
			"organization_id": org.ID,
			"outcome":         string(res.Outcome),
		})
		if res.Err != nil {
			orgLogger.WithError(res.Err).Error("failed to enroll user")
		} else {
			orgLogger.Info("sso enrollment")
		}

		if res.Outcome == OutcomeInvited {
			o.dispatch(ctx, user, org, res.Membership)
		}
		results = append(results, res)
	}

	return results
}

func (o *Orchestrator) enrollOne(ctx context.Context, user orgs.User, org *orgs.Organization) Result {
	m := &orgs.Membership{
		OrganizationID: org.ID,
		UserID:         user.ID,
		UserEmail:      user.Email,
		Role:           o.role,
		Status:         orgs.StatusAdded,
	}
	outcome := OutcomeAdded
	if o.InvitesEnabled() {
		m.Status = orgs.StatusInvited
		m.InvitedByEmail = org.NotificationEmail
		outcome = OutcomeInvited
	}

	err := o.store.CreateMembership(ctx, m)
	switch {
	case errors.Is(err, orgs.ErrMembershipExists):
		return Result{Organization: org, Outcome: OutcomeAlreadyMember}
	case err != nil:
		return Result{Organization: org, Outcome: OutcomeFailed, Err: err}
	}

	return Result{Organization: org, Membership: m, Outcome: outcome}
}

// dispatch queues the invitation and the pending notice
func (o *Orchestrator) dispatch(ctx context.Context, user orgs.User, org *orgs.Organization, m *orgs.Membership) {
	logger := observability.FromContextOr(ctx, o.logger).WithFields(map[string]interface{}{
		"user_id":         user.ID,
		"organization_id": org.ID,
	})

	o.queue(ctx, logger, KindInvite, func(ctx context.Context) error {
		link, err := o.inviteLink(m)
		if err != nil {
			return err
		}
		msg, err := notify.InviteMessage(user.Email, notify.InviteVars{
			UserEmail:        user.Email,
			OrganizationName: org.Name,
			Link:             link,
		})
		if err != nil {
			return err
		}
		return o.sender.Send(ctx, msg)
	})

	if org.NotificationEmail == "" {
		logger.Warn("organization has no notification email, pending notice skipped")
		o.metrics.RecordNotification(KindPendingNotice, StatusSkipped)
		return
	}

	o.queue(ctx, logger, KindPendingNotice, func(ctx context.Context) error {
		msg, err := notify.PendingMessage(org.NotificationEmail, notify.PendingVars{
			UserEmail:        user.Email,
			UserName:         user.Name,
			OrganizationName: org.Name,
		})
		if err != nil {
			return err
		}
		return o.sender.Send(ctx, msg)
	})
}

func (o *Orchestrator) queue(ctx context.Context, logger *observability.Logger, kind string, fn func(context.Context) error) {
	err := o.runner.Go(ctx, kind, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			o.metrics.RecordNotification(kind, StatusFailed)
			return fmt.Errorf("%s notification: %w", kind, err)
		}
		o.metrics.RecordNotification(kind, StatusSent)
		return nil
	})
	if err != nil {
		logger.WithError(err).WithField("kind", kind).Error("failed to queue notification")
		o.metrics.RecordNotification(kind, StatusFailed)
		return
	}
	o.metrics.RecordNotification(kind, StatusQueued)
}

func (o *Orchestrator) inviteLink(m *orgs.Membership) (string, error) {
	u, err := url.Parse(o.inviteURL)
	if err != nil {
		return "", fmt.Errorf("invalid invite url: %w", err)
	}

	q := u.Query()
	q.Set("organization_id", m.OrganizationID)
	q.Set("membership_id", m.ID)
	q.Set("email", m.UserEmail)
	if o.tokens != nil {
		token, err := o.tokens.Issue(m)
		if err != nil {
			return "", err
		}
		q.Set("token", token)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
