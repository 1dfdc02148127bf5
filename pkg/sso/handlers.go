package sso

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/ssomap/pkg/enrollment"
	"github.com/platinummonkey/ssomap/pkg/httputil"
	"github.com/platinummonkey/ssomap/pkg/observability"
	"github.com/platinummonkey/ssomap/pkg/orgs"
	"github.com/platinummonkey/ssomap/pkg/policy"
	"github.com/platinummonkey/ssomap/pkg/roles"
	"golang.org/x/oauth2"
)

// DeniedMessage is returned to the client when role mapping rejects a login.
// It differs from the credential failure message on purpose.
const DeniedMessage = "SSO role mapping denied access"

// Handlers handles SSO-related HTTP requests
type Handlers struct {
	service  *Service
	store    orgs.Store
	selector *policy.Selector
	invites  *enrollment.InviteTokens
	loginMW  []func(http.Handler) http.Handler
	adminMW  []func(http.Handler) http.Handler
}

// NewHandlers creates a new SSO handlers instance
func NewHandlers(service *Service, store orgs.Store, selector *policy.Selector) *Handlers {
	return &Handlers{
		service:  service,
		store:    store,
		selector: selector,
	}
}

// WithLoginMiddleware wraps only the login callback, e.g. with a rate
// limiter. It must be called before RegisterRoutes.
func (h *Handlers) WithLoginMiddleware(mw ...func(http.Handler) http.Handler) *Handlers {
	h.loginMW = append(h.loginMW, mw...)
	return h
}

// WithAdminMiddleware guards the membership confirmation surface, e.g. with
// bearer authentication and an admin role check. Without it those routes
// are not registered. It must be called before RegisterRoutes.
func (h *Handlers) WithAdminMiddleware(mw ...func(http.Handler) http.Handler) *Handlers {
	h.adminMW = append(h.adminMW, mw...)
	return h
}

// WithInvites enables POST /invites/accept. It must be called before
// RegisterRoutes.
func (h *Handlers) WithInvites(tokens *enrollment.InviteTokens) *Handlers {
	h.invites = tokens
	return h
}

// RegisterRoutes registers SSO routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	// Login flow
	router.Handle("/sso/login", httputil.Chain(h.loginMW...)(http.HandlerFunc(h.login))).Methods("POST")
	router.HandleFunc("/sso/redeem", h.redeem).Methods("POST")

	// Policy lookup at password change
	router.HandleFunc("/users/{userID}/password-policy", h.passwordPolicy).Methods("GET")

	if h.invites != nil {
		router.HandleFunc("/invites/accept", h.acceptInvite).Methods("POST")
	}

	// Admin confirmation surface
	if len(h.adminMW) == 0 {
		return
	}
	admin := httputil.Chain(h.adminMW...)
	router.Handle("/organizations/{orgID}/members/{userID}", admin(http.HandlerFunc(h.getMembership))).Methods("GET")
	router.Handle("/organizations/{orgID}/members/{userID}/confirm", admin(http.HandlerFunc(h.confirmMembership))).Methods("POST")
	router.Handle("/organizations/{orgID}/members/{userID}", admin(http.HandlerFunc(h.removeMembership))).Methods("DELETE")
}

// LoginRequest is the body of POST /sso/login
type LoginRequest struct {
	Code        string `json:"code"`
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token,omitempty"`
	TokenType   string `json:"token_type,omitempty"`
}

// RedeemRequest is the body of POST /sso/redeem
type RedeemRequest struct {
	Code string `json:"code"`
}

// AcceptInviteRequest is the body of POST /invites/accept
type AcceptInviteRequest struct {
	Token string `json:"token"`
}

// MembershipResponse is a membership as shown to organization admins
type MembershipResponse struct {
	*orgs.Membership
	Pending bool `json:"pending"`
}

// login handles POST /sso/login
func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.AccessToken, "access_token") {
		return
	}

	token := &oauth2.Token{AccessToken: req.AccessToken, TokenType: req.TokenType}
	if token.TokenType == "" {
		token.TokenType = "Bearer"
	}
	if req.IDToken != "" {
		token = token.WithExtra(map[string]any{"id_token": req.IDToken})
	}

	result, err := h.service.Login(r.Context(), req.Code, token)
	switch {
	case err == nil:
		httputil.WriteSuccess(w, result)
	case roles.IsDenied(err):
		httputil.WriteForbidden(w, DeniedMessage)
	case errors.Is(err, ErrInvalidToken):
		httputil.WriteUnauthorized(w, "invalid sso token")
	default:
		observability.FromContext(r.Context()).WithError(err).Error("sso login failed")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "sso login failed")
	}
}

// redeem handles POST /sso/redeem
func (h *Handlers) redeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Code, "code") {
		return
	}

	if err := h.service.Redeem(r.Context(), req.Code); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// passwordPolicy handles GET /users/{userID}/password-policy
func (h *Handlers) passwordPolicy(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathStringOrError(w, r, "userID")
	if !ok {
		return
	}

	selection, err := h.selector.ForUser(r.Context(), userID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if selection == nil {
		httputil.WriteNoContent(w)
		return
	}
	httputil.WriteSuccess(w, selection)
}

// getMembership handles GET /organizations/{orgID}/members/{userID}
func (h *Handlers) getMembership(w http.ResponseWriter, r *http.Request) {
	orgID, userID, ok := membershipPath(w, r)
	if !ok {
		return
	}

	m, err := h.store.GetMembership(r.Context(), orgID, userID)
	if errors.Is(err, orgs.ErrMembershipNotFound) {
		httputil.WriteNotFoundError(w, "membership not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, MembershipResponse{Membership: m, Pending: m.IsPending()})
}

// confirmMembership handles POST /organizations/{orgID}/members/{userID}/confirm
func (h *Handlers) confirmMembership(w http.ResponseWriter, r *http.Request) {
	orgID, userID, ok := membershipPath(w, r)
	if !ok {
		return
	}

	err := h.store.ConfirmMembership(r.Context(), orgID, userID)
	if errors.Is(err, orgs.ErrMembershipNotFound) {
		httputil.WriteNotFoundError(w, "membership not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// removeMembership handles DELETE /organizations/{orgID}/members/{userID}
func (h *Handlers) removeMembership(w http.ResponseWriter, r *http.Request) {
	orgID, userID, ok := membershipPath(w, r)
	if !ok {
		return
	}

	err := h.store.RemoveMembership(r.Context(), orgID, userID)
	if errors.Is(err, orgs.ErrMembershipNotFound) {
		httputil.WriteNotFoundError(w, "membership not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// acceptInvite handles POST /invites/accept. It checks that the invitation
// link still refers to a pending membership; confirmation stays with the
// organization admins.
func (h *Handlers) acceptInvite(w http.ResponseWriter, r *http.Request) {
	var req AcceptInviteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Token, "token") {
		return
	}

	invite, err := h.invites.Parse(req.Token)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid invite token")
		return
	}

	m, err := h.store.GetMembership(r.Context(), invite.OrganizationID, invite.Subject)
	if errors.Is(err, orgs.ErrMembershipNotFound) || (err == nil && m.ID != invite.MembershipID) {
		httputil.WriteNotFoundError(w, "invitation no longer exists")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if !m.IsPending() {
		httputil.WriteErrorMessage(w, http.StatusConflict, "membership is already confirmed")
		return
	}

	httputil.WriteSuccess(w, MembershipResponse{Membership: m, Pending: true})
}

func membershipPath(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	orgID, ok := httputil.ParsePathStringOrError(w, r, "orgID")
	if !ok {
		return "", "", false
	}
	userID, ok := httputil.ParsePathStringOrError(w, r, "userID")
	if !ok {
		return "", "", false
	}
	return orgID, userID, true
}
