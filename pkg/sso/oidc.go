package sso

import (
	"context"
	"crypto"
	"encoding/json"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/platinummonkey/ssomap/pkg/claims"
	"golang.org/x/oauth2"
)

// TokenVerifier turns the tokens returned by the provider into verified claims
type TokenVerifier interface {
	Verify(ctx context.Context, token *oauth2.Token) (claims.TokenClaims, error)
}

// OIDCVerifier verifies provider tokens with go-oidc. Role and group claims
// are read from the access token; when an id_token accompanies it, that is
// verified too and its claims fill in identity fields the access token lacks.
type OIDCVerifier struct {
	access   *oidc.IDTokenVerifier
	id       *oidc.IDTokenVerifier
	endpoint oauth2.Endpoint
}

// NewOIDCVerifier discovers the provider at settings.Authority
func NewOIDCVerifier(ctx context.Context, settings Settings) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, settings.Authority)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	return &OIDCVerifier{
		access:   provider.Verifier(accessConfig(settings.ClientID)),
		id:       provider.Verifier(&oidc.Config{ClientID: settings.ClientID}),
		endpoint: provider.Endpoint(),
	}, nil
}

// NewStaticOIDCVerifier verifies tokens against fixed public keys instead of
// discovery
func NewStaticOIDCVerifier(issuer, clientID string, keys ...crypto.PublicKey) *OIDCVerifier {
	keySet := &oidc.StaticKeySet{PublicKeys: keys}
	return &OIDCVerifier{
		access: oidc.NewVerifier(issuer, keySet, accessConfig(clientID)),
		id:     oidc.NewVerifier(issuer, keySet, &oidc.Config{ClientID: clientID}),
	}
}

// Access tokens are usually issued for the resource server, not the client,
// so the audience is not checked.
func accessConfig(clientID string) *oidc.Config {
	return &oidc.Config{ClientID: clientID, SkipClientIDCheck: true}
}

// Endpoint returns the discovered authorization endpoints
func (v *OIDCVerifier) Endpoint() oauth2.Endpoint {
	return v.endpoint
}

// Verify checks the token signatures and returns the merged claims
func (v *OIDCVerifier) Verify(ctx context.Context, token *oauth2.Token) (claims.TokenClaims, error) {
	if token == nil || token.AccessToken == "" {
		return claims.TokenClaims{}, fmt.Errorf("%w: missing access token", ErrInvalidToken)
	}

	accessToken, err := v.access.Verify(ctx, token.AccessToken)
	if err != nil {
		return claims.TokenClaims{}, fmt.Errorf("%w: access token: %v", ErrInvalidToken, err)
	}

	accessClaims, err := tokenClaims(accessToken)
	if err != nil {
		return claims.TokenClaims{}, fmt.Errorf("%w: failed to parse access token claims: %v", ErrInvalidToken, err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return accessClaims, nil
	}

	idToken, err := v.id.Verify(ctx, rawIDToken)
	if err != nil {
		return claims.TokenClaims{}, fmt.Errorf("%w: id token: %v", ErrInvalidToken, err)
	}
	if idToken.Subject != accessToken.Subject {
		return claims.TokenClaims{}, fmt.Errorf("%w: id token subject does not match access token", ErrInvalidToken)
	}

	idClaims, err := tokenClaims(idToken)
	if err != nil {
		return claims.TokenClaims{}, fmt.Errorf("%w: failed to parse id token claims: %v", ErrInvalidToken, err)
	}

	merged := accessClaims.Map()
	for k, val := range idClaims.Map() {
		if _, exists := merged[k]; !exists {
			merged[k] = val
		}
	}
	return claims.FromMap(merged), nil
}

// tokenClaims decodes the verified payload, keeping numeric claims as
// json.Number
func tokenClaims(t *oidc.IDToken) (claims.TokenClaims, error) {
	var raw json.RawMessage
	if err := t.Claims(&raw); err != nil {
		return claims.TokenClaims{}, err
	}
	return claims.FromJSON(raw)
}
