package sso

import (
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/ssomap/pkg/claims"
	"github.com/platinummonkey/ssomap/pkg/enrollment"
	"github.com/platinummonkey/ssomap/pkg/orgs"
	"github.com/platinummonkey/ssomap/pkg/roles"
)

// ErrInvalidToken is returned when the token cannot be verified or lacks the
// identity claims. It maps to 401, unlike roles.ErrAuthorizationDenied.
var ErrInvalidToken = errors.New("invalid sso token")

// AttributeMap names the claims carrying the user's identity
type AttributeMap struct {
	UserID string `json:"user_id" yaml:"user_id"`
	Email  string `json:"email" yaml:"email"`
	Name   string `json:"name" yaml:"name"`
}

// DefaultAttributeMap reads the standard OIDC claims
var DefaultAttributeMap = AttributeMap{
	UserID: "sub",
	Email:  "email",
	Name:   "name",
}

// User extracts the user identity from tc. The user ID and email claims are
// required; the name is optional.
func (a AttributeMap) User(tc claims.TokenClaims) (orgs.User, error) {
	id, ok := tc.String(a.UserID)
	if !ok || id == "" {
		return orgs.User{}, fmt.Errorf("%w: missing %q claim", ErrInvalidToken, a.UserID)
	}
	email, ok := tc.String(a.Email)
	if !ok || email == "" {
		return orgs.User{}, fmt.Errorf("%w: missing %q claim", ErrInvalidToken, a.Email)
	}
	name, _ := tc.String(a.Name)

	return orgs.User{ID: id, Email: email, Name: name}, nil
}

// OrganizationSettings controls enrollment from group claims
type OrganizationSettings struct {
	InviteEnabled bool
	TokenPath     claims.Path
}

// Settings holds the SSO configuration. It is built once at startup.
type Settings struct {
	ClientID      string
	ClientSecret  string
	Authority     string
	CallbackURL   string
	Scopes        []string
	Attributes    AttributeMap
	Roles         roles.Config
	Organizations OrganizationSettings
	LoginCacheTTL time.Duration
}

// LoginResult is what a successful SSO login produces
type LoginResult struct {
	User        orgs.User           `json:"user"`
	Role        roles.Role          `json:"role"`
	Enrollments []enrollment.Result `json:"enrollments,omitempty"`
	Cached      bool                `json:"cached,omitempty"`
}
