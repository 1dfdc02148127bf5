package sso

import (
	"fmt"
	"strings"

	"golang.org/x/oauth2"
)

// BaseScopes are always requested
var BaseScopes = []string{"openid", "email", "profile"}

// MergeScopes returns BaseScopes followed by extra, without duplicates or
// blanks, preserving order
func MergeScopes(extra []string) []string {
	seen := make(map[string]struct{}, len(BaseScopes)+len(extra))
	merged := make([]string, 0, len(BaseScopes)+len(extra))
	for _, list := range [][]string{BaseScopes, extra} {
		for _, scope := range list {
			scope = strings.TrimSpace(scope)
			if scope == "" {
				continue
			}
			if _, ok := seen[scope]; ok {
				continue
			}
			seen[scope] = struct{}{}
			merged = append(merged, scope)
		}
	}
	return merged
}

// OAuth2Config builds the authorization code flow configuration for the
// provider endpoint
func (s Settings) OAuth2Config(endpoint oauth2.Endpoint) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.ClientID,
		ClientSecret: s.ClientSecret,
		Endpoint:     endpoint,
		RedirectURL:  s.CallbackURL,
		Scopes:       MergeScopes(s.Scopes),
	}
}

// Validate validates the settings needed to talk to the provider
func (s Settings) Validate() error {
	if s.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if s.ClientSecret == "" {
		return fmt.Errorf("client_secret is required")
	}
	if s.Authority == "" {
		return fmt.Errorf("authority is required")
	}
	if s.CallbackURL == "" {
		return fmt.Errorf("callback_url is required")
	}
	if s.Roles.Enabled && s.Roles.TokenPath.IsZero() {
		return fmt.Errorf("roles token path is required when role mapping is enabled")
	}
	if s.Organizations.InviteEnabled && s.Organizations.TokenPath.IsZero() {
		return fmt.Errorf("organizations token path is required when organization invites are enabled")
	}
	return nil
}
