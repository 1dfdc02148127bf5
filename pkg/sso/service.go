package sso

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/platinummonkey/ssomap/pkg/claims"
	"github.com/platinummonkey/ssomap/pkg/enrollment"
	"github.com/platinummonkey/ssomap/pkg/observability"
	"github.com/platinummonkey/ssomap/pkg/orgs"
	"github.com/platinummonkey/ssomap/pkg/roles"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/oauth2"
)

var ssoTracer = otel.Tracer("ssomap/sso/service")

// Login outcomes reported to Metrics
const (
	OutcomeSuccess      = "success"
	OutcomeCached       = "cached"
	OutcomeInvalidToken = "invalid_token"
	OutcomeDenied       = "denied"
	OutcomeError        = "error"
)

// Enroller creates memberships for matched organizations
type Enroller interface {
	Enroll(ctx context.Context, user orgs.User, candidates []*orgs.Organization) []enrollment.Result
}

// MembershipLister reads a user's memberships
type MembershipLister interface {
	ListMemberships(ctx context.Context, userID string) ([]*orgs.Membership, error)
}

// Metrics records login activity
type Metrics interface {
	RecordLogin(outcome string)
	RecordRoleResolution(role string)
}

type noopMetrics struct{}

func (noopMetrics) RecordLogin(string)          {}
func (noopMetrics) RecordRoleResolution(string) {}

// ServiceDeps are the collaborators of a Service. Verifier is required by
// Login; Directory, Memberships and Enroller are required when organization
// invites are enabled.
type ServiceDeps struct {
	Verifier    TokenVerifier
	Directory   orgs.Directory
	Memberships MembershipLister
	Enroller    Enroller
	Cache       LoginCache
	Metrics     Metrics
	Logger      *observability.Logger
}

// Service runs the claim mapping pipeline for a verified login
type Service struct {
	settings Settings
	roles    *roles.Resolver
	deps     ServiceDeps
}

// NewService creates a new Service
func NewService(settings Settings, deps ServiceDeps) *Service {
	if settings.Attributes == (AttributeMap{}) {
		settings.Attributes = DefaultAttributeMap
	}
	if deps.Cache == nil {
		deps.Cache = NewMemoryLoginCache(DefaultLoginCacheSize, settings.LoginCacheTTL)
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = observability.NewLogger(observability.InfoLevel, io.Discard)
	}

	return &Service{
		settings: settings,
		roles:    roles.NewResolver(settings.Roles),
		deps:     deps,
	}
}

// Settings returns the service settings
func (s *Service) Settings() Settings {
	return s.settings
}

// Login handles the provider callback for an authorization code. The token
// is verified on every call. A result already produced for the same code is
// returned from the cache with Cached set, but only to the subject it was
// produced for; otherwise HandleLogin runs.
func (s *Service) Login(ctx context.Context, code string, token *oauth2.Token) (*LoginResult, error) {
	logger := observability.FromContextOr(ctx, s.deps.Logger)

	if s.deps.Verifier == nil {
		return nil, fmt.Errorf("no token verifier configured")
	}

	tc, err := s.verify(ctx, token)
	if err != nil {
		return nil, err
	}

	if code != "" {
		cached, ok, err := s.deps.Cache.Get(ctx, code)
		if err != nil {
			logger.WithError(err).Warn("login cache lookup failed")
		} else if ok {
			user, err := s.settings.Attributes.User(tc)
			if err != nil {
				s.deps.Metrics.RecordLogin(OutcomeInvalidToken)
				return nil, err
			}
			if user.ID != cached.User.ID {
				s.deps.Metrics.RecordLogin(OutcomeInvalidToken)
				logger.WithField("user_id", user.ID).Warn("login code presented by a different subject")
				return nil, fmt.Errorf("%w: code was issued to another subject", ErrInvalidToken)
			}
			s.deps.Metrics.RecordLogin(OutcomeCached)
			cached.Cached = true
			return cached, nil
		}
	}

	result, err := s.HandleLogin(ctx, tc)
	if err != nil {
		return nil, err
	}

	if code != "" {
		if err := s.deps.Cache.Put(ctx, code, result); err != nil {
			logger.WithError(err).Warn("failed to cache login result")
		}
	}

	return result, nil
}

func (s *Service) verify(ctx context.Context, token *oauth2.Token) (claims.TokenClaims, error) {
	if token == nil || token.AccessToken == "" {
		s.deps.Metrics.RecordLogin(OutcomeInvalidToken)
		return claims.TokenClaims{}, fmt.Errorf("%w: missing access token", ErrInvalidToken)
	}

	tc, err := s.deps.Verifier.Verify(ctx, token)
	if err != nil {
		s.deps.Metrics.RecordLogin(OutcomeInvalidToken)
		if !errors.Is(err, ErrInvalidToken) {
			err = fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		return claims.TokenClaims{}, err
	}
	return tc, nil
}

// Redeem drops the cached result for code once the login flow completes
func (s *Service) Redeem(ctx context.Context, code string) error {
	return s.deps.Cache.Redeem(ctx, code)
}

// HandleLogin maps verified claims to a role and enrolls the user into the
// organizations named by the group claim. It returns an error wrapping
// ErrInvalidToken when identity claims are missing, and one wrapping
// roles.ErrAuthorizationDenied when role mapping rejects the user.
// Organization lookups and enrollment never fail the login.
func (s *Service) HandleLogin(ctx context.Context, tc claims.TokenClaims) (*LoginResult, error) {
	ctx, span := ssoTracer.Start(ctx, "HandleLogin")
	defer span.End()

	user, err := s.settings.Attributes.User(tc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "missing identity claims")
		s.deps.Metrics.RecordLogin(OutcomeInvalidToken)
		return nil, err
	}
	span.SetAttributes(attribute.String("user_id", user.ID))

	logger := observability.FromContextOr(ctx, s.deps.Logger).WithField("user_id", user.ID)

	role, err := s.roles.Resolve(tc)
	if err != nil {
		span.RecordError(err)
		if roles.IsDenied(err) {
			span.SetStatus(codes.Error, "role mapping denied access")
			logger.WithError(err).Warn("sso login denied by role mapping")
			s.deps.Metrics.RecordLogin(OutcomeDenied)
		} else {
			span.SetStatus(codes.Error, "role resolution failed")
			s.deps.Metrics.RecordLogin(OutcomeError)
		}
		return nil, err
	}
	s.deps.Metrics.RecordRoleResolution(string(role))
	span.SetAttributes(attribute.String("role", string(role)))

	result := &LoginResult{User: user, Role: role}
	if s.settings.Organizations.InviteEnabled {
		result.Enrollments = s.enroll(ctx, logger, user, tc)
	}

	span.SetAttributes(attribute.Int("enrollment_count", len(result.Enrollments)))
	span.SetStatus(codes.Ok, "login mapped")
	s.deps.Metrics.RecordLogin(OutcomeSuccess)
	logger.WithField("role", string(role)).Info("sso login mapped")

	return result, nil
}

// enroll matches the group claim against organizations. Failures are logged
// and treated as no match.
func (s *Service) enroll(ctx context.Context, logger *observability.Logger, user orgs.User, tc claims.TokenClaims) []enrollment.Result {
	ctx, span := ssoTracer.Start(ctx, "MatchOrganizations")
	defer span.End()

	values, ok := claims.Extract(tc, s.settings.Organizations.TokenPath)
	if !ok {
		span.AddEvent("organization claim absent")
		return nil
	}
	names := values.Strings()
	if len(names) == 0 {
		return nil
	}

	if s.deps.Directory == nil || s.deps.Memberships == nil || s.deps.Enroller == nil {
		err := errors.New("organization enrollment is not wired")
		span.RecordError(err)
		logger.WithError(err).Error("skipping organization enrollment")
		return nil
	}

	all, err := s.deps.Directory.ListOrganizations(ctx)
	if err != nil {
		span.RecordError(err)
		logger.WithError(err).Error("failed to list organizations, skipping enrollment")
		return nil
	}

	existing, err := s.deps.Memberships.ListMemberships(ctx, user.ID)
	if err != nil {
		span.RecordError(err)
		logger.WithError(err).Error("failed to list memberships, skipping enrollment")
		return nil
	}

	matched := orgs.MatchOrganizations(names, all, existing)
	span.SetAttributes(
		attribute.Int("claim_count", len(names)),
		attribute.Int("match_count", len(matched)),
	)
	if len(matched) == 0 {
		return nil
	}

	return s.deps.Enroller.Enroll(ctx, user, matched)
}
