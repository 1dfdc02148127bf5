// Package roles maps role claims from an SSO access token to the internal
// administrative role.
package roles

import (
	"errors"
	"fmt"

	"github.com/platinummonkey/ssomap/pkg/claims"
)

// Role is the internal role granted to an SSO user
type Role string

const (
	RoleNone  Role = "none"  // Role mapping disabled
	RoleUser  Role = "user"  // Regular user
	RoleAdmin Role = "admin" // Access to the admin surface
)

// Claim values recognized in the token. Matching is case-sensitive.
const (
	claimAdmin = "admin"
	claimUser  = "user"
)

// ErrAuthorizationDenied is returned when the token carries no usable role and
// the resolver is configured to deny in that case. It is distinct from a
// credential failure: the token was valid, the user is just not allowed in.
var ErrAuthorizationDenied = errors.New("authorization denied")

// DeniedError carries the reason a login was denied
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("authorization denied: %s", e.Reason)
}

// Unwrap lets errors.Is match ErrAuthorizationDenied
func (e *DeniedError) Unwrap() error {
	return ErrAuthorizationDenied
}

// IsDenied reports whether err is an authorization denial
func IsDenied(err error) bool {
	return errors.Is(err, ErrAuthorizationDenied)
}

// Config holds the role mapping settings. It is read once at startup.
type Config struct {
	Enabled       bool
	DefaultToUser bool
	TokenPath     claims.Path
}

// Resolver resolves the internal role for a login
type Resolver struct {
	config Config
}

// NewResolver creates a new role resolver
func NewResolver(config Config) *Resolver {
	return &Resolver{config: config}
}

// Config returns the resolver configuration
func (r *Resolver) Config() Config {
	return r.config
}

// Resolve extracts the role claim from tc and resolves it. When role mapping is
// disabled the claims are not inspected and RoleNone is returned.
func (r *Resolver) Resolve(tc claims.TokenClaims) (Role, error) {
	if !r.config.Enabled {
		return RoleNone, nil
	}

	values, present := claims.Extract(tc, r.config.TokenPath)
	return ResolveValues(values, present, r.config.DefaultToUser)
}

// ResolveValues maps extracted role values to a Role.
//
// Only the exact strings "admin" and "user" are recognized; everything else is
// ignored. If both appear, admin wins. When nothing is recognized (including an
// absent claim) the result is RoleUser if defaultToUser is set and a
// *DeniedError otherwise. Unrecognized input never yields RoleAdmin.
func ResolveValues(values claims.Values, present bool, defaultToUser bool) (Role, error) {
	var hasAdmin, hasUser bool
	if present {
		hasAdmin = values.Contains(claimAdmin)
		hasUser = values.Contains(claimUser)
	}

	switch {
	case hasAdmin:
		return RoleAdmin, nil
	case hasUser:
		return RoleUser, nil
	case defaultToUser:
		return RoleUser, nil
	}

	if !present {
		return "", &DeniedError{Reason: "role claim is missing"}
	}
	return "", &DeniedError{Reason: "no recognized role in token"}
}
