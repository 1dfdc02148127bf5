package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/platinummonkey/ssomap/pkg/claims"
	"github.com/platinummonkey/ssomap/pkg/httputil"
	"github.com/platinummonkey/ssomap/pkg/observability"
	"github.com/platinummonkey/ssomap/pkg/roles"
	"golang.org/x/oauth2"
)

type principalKey struct{}

// TokenVerifier verifies a bearer token issued by the identity provider
type TokenVerifier interface {
	Verify(ctx context.Context, token *oauth2.Token) (claims.TokenClaims, error)
}

// Principal is the authenticated caller of a request
type Principal struct {
	Subject string
	Role    roles.Role
}

// AuthMiddleware authenticates provider access tokens and resolves the
// caller's role with the same mapping used at login
type AuthMiddleware struct {
	verifier     TokenVerifier
	resolver     *roles.Resolver
	subjectClaim string
	logger       *observability.Logger
}

// NewAuthMiddleware creates a new authentication middleware. subjectClaim
// names the claim holding the user id, "sub" when empty.
func NewAuthMiddleware(verifier TokenVerifier, resolver *roles.Resolver, subjectClaim string, logger *observability.Logger) *AuthMiddleware {
	if subjectClaim == "" {
		subjectClaim = "sub"
	}
	return &AuthMiddleware{
		verifier:     verifier,
		resolver:     resolver,
		subjectClaim: subjectClaim,
		logger:       logger,
	}
}

// Handler wraps an HTTP handler with authentication. A caller whose role
// mapping is denied is still authenticated, with RoleNone.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		logger := observability.FromContextOr(r.Context(), m.logger)

		tc, err := m.verifier.Verify(r.Context(), &oauth2.Token{AccessToken: parts[1], TokenType: "Bearer"})
		if err != nil {
			logger.WithError(err).Debug("bearer token rejected")
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		subject, ok := tc.String(m.subjectClaim)
		if !ok || subject == "" {
			httputil.WriteUnauthorized(w, "token has no subject")
			return
		}

		role, err := m.resolver.Resolve(tc)
		if err != nil {
			if !roles.IsDenied(err) {
				logger.WithError(err).Error("role resolution failed")
				httputil.WriteErrorMessage(w, http.StatusInternalServerError, "role resolution failed")
				return
			}
			role = roles.RoleNone
		}

		ctx := context.WithValue(r.Context(), principalKey{}, &Principal{Subject: subject, Role: role})
		ctx = observability.WithUserID(ctx, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetPrincipal extracts the authenticated caller from the request
func GetPrincipal(r *http.Request) *Principal {
	p, _ := r.Context().Value(principalKey{}).(*Principal)
	return p
}

// RequireRole creates middleware that only admits callers with the given
// role. It must run after AuthMiddleware.Handler.
func RequireRole(role roles.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := GetPrincipal(r)
			if p == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			if p.Role != role {
				httputil.WriteForbidden(w, "insufficient role permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Admin returns the chain guarding the organization admin surface
func (m *AuthMiddleware) Admin() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{m.Handler, RequireRole(roles.RoleAdmin)}
}
