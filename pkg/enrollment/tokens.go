package enrollment

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/platinummonkey/ssomap/pkg/orgs"
)

// DefaultInviteTTL is how long an invitation link stays valid
const DefaultInviteTTL = 5 * 24 * time.Hour

const minInviteSecretLen = 32

// ErrInvalidInvite is returned for tokens that fail verification
var ErrInvalidInvite = errors.New("invalid invite token")

// InviteClaims are carried by the token embedded in an invitation link
type InviteClaims struct {
	jwt.RegisteredClaims

	OrganizationID string `json:"org_id"`
	MembershipID   string `json:"membership_id"`
	Email          string `json:"email"`
}

// InviteTokens issues and verifies HS256 invitation tokens
type InviteTokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewInviteTokens creates a token issuer. The secret must be at least 32
// bytes; a non-positive ttl uses DefaultInviteTTL.
func NewInviteTokens(secret []byte, issuer string, ttl time.Duration) (*InviteTokens, error) {
	if len(secret) < minInviteSecretLen {
		return nil, fmt.Errorf("invite token secret must be at least %d bytes", minInviteSecretLen)
	}
	if ttl <= 0 {
		ttl = DefaultInviteTTL
	}
	return &InviteTokens{
		secret: secret,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue signs a token for a freshly created membership
func (t *InviteTokens) Issue(m *orgs.Membership) (string, error) {
	now := t.now()
	claims := InviteClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   m.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		OrganizationID: m.OrganizationID,
		MembershipID:   m.ID,
		Email:          m.UserEmail,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign invite token: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and returns its claims
func (t *InviteTokens) Parse(token string) (*InviteClaims, error) {
	claims := &InviteClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInvite, err)
	}
	if !parsed.Valid || claims.OrganizationID == "" || claims.Subject == "" {
		return nil, ErrInvalidInvite
	}
	return claims, nil
}
