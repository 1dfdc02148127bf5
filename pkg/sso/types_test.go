package sso

import (
	"errors"
	"testing"

	"github.com/platinummonkey/ssomap/pkg/claims"
	"github.com/platinummonkey/ssomap/pkg/roles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestAttributeMap_User(t *testing.T) {
	tests := []struct {
		name      string
		claims    map[string]any
		wantID    string
		wantEmail string
		wantName  string
		wantErr   bool
	}{
		{
			name:      "all claims",
			claims:    map[string]any{"sub": "abc", "email": "alice@example.com", "name": "Alice"},
			wantID:    "abc",
			wantEmail: "alice@example.com",
			wantName:  "Alice",
		},
		{
			name:      "name optional",
			claims:    map[string]any{"sub": "abc", "email": "alice@example.com"},
			wantID:    "abc",
			wantEmail: "alice@example.com",
		},
		{
			name:    "missing sub",
			claims:  map[string]any{"email": "alice@example.com"},
			wantErr: true,
		},
		{
			name:    "missing email",
			claims:  map[string]any{"sub": "abc"},
			wantErr: true,
		},
		{
			name:    "non string sub",
			claims:  map[string]any{"sub": 42.0, "email": "alice@example.com"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := DefaultAttributeMap.User(claims.FromMap(tt.claims))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidToken))
				assert.False(t, roles.IsDenied(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, user.ID)
			assert.Equal(t, tt.wantEmail, user.Email)
			assert.Equal(t, tt.wantName, user.Name)
		})
	}
}

func TestAttributeMap_Custom(t *testing.T) {
	attrs := AttributeMap{UserID: "oid", Email: "upn", Name: "display_name"}
	user, err := attrs.User(claims.FromMap(map[string]any{"oid": "1", "upn": "bob@example.com"}))
	require.NoError(t, err)
	assert.Equal(t, "1", user.ID)
	assert.Equal(t, "bob@example.com", user.Email)
}

func TestMergeScopes(t *testing.T) {
	assert.Equal(t, []string{"openid", "email", "profile"}, MergeScopes(nil))
	assert.Equal(t,
		[]string{"openid", "email", "profile", "groups", "offline_access"},
		MergeScopes([]string{"groups", "email", " ", "offline_access", "groups"}),
	)
}

func TestSettings_OAuth2Config(t *testing.T) {
	s := Settings{
		ClientID:     "vault",
		ClientSecret: "secret",
		CallbackURL:  "https://vault.example.com/identity/connect/oidc-signin",
		Scopes:       []string{"groups"},
	}
	endpoint := oauth2.Endpoint{AuthURL: "https://idp.example.com/auth", TokenURL: "https://idp.example.com/token"}

	cfg := s.OAuth2Config(endpoint)
	assert.Equal(t, "vault", cfg.ClientID)
	assert.Equal(t, "secret", cfg.ClientSecret)
	assert.Equal(t, endpoint, cfg.Endpoint)
	assert.Equal(t, "https://vault.example.com/identity/connect/oidc-signin", cfg.RedirectURL)
	assert.Equal(t, []string{"openid", "email", "profile", "groups"}, cfg.Scopes)
}

func TestSettings_Validate(t *testing.T) {
	valid := Settings{
		ClientID:     "vault",
		ClientSecret: "secret",
		Authority:    "https://idp.example.com/realms/main",
		CallbackURL:  "https://vault.example.com/callback",
		Roles:        roles.Config{Enabled: true, TokenPath: claims.ParsePath("/roles", "")},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name     string
		mutate   func(*Settings)
		errorMsg string
	}{
		{name: "missing client id", mutate: func(s *Settings) { s.ClientID = "" }, errorMsg: "client_id is required"},
		{name: "missing secret", mutate: func(s *Settings) { s.ClientSecret = "" }, errorMsg: "client_secret is required"},
		{name: "missing authority", mutate: func(s *Settings) { s.Authority = "" }, errorMsg: "authority is required"},
		{name: "missing callback", mutate: func(s *Settings) { s.CallbackURL = "" }, errorMsg: "callback_url is required"},
		{name: "roles without path", mutate: func(s *Settings) { s.Roles.TokenPath = claims.Path{} }, errorMsg: "roles token path"},
		{
			name:     "invites without path",
			mutate:   func(s *Settings) { s.Organizations.InviteEnabled = true },
			errorMsg: "organizations token path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			err := s.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}
