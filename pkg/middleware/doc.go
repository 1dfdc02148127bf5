// Package middleware provides rate limiting for the SSO login endpoint and
// bearer authentication for the organization admin surface.
//
// Requests are keyed by the peer address. Forwarding headers
// (X-Forwarded-For, X-Real-IP) are only read when the peer is listed in
// SetTrustedProxies. Two Limiter implementations exist:
//
//	// single instance
//	limiter := middleware.NewRateLimiter(middleware.DefaultLoginRateLimitConfig())
//	limiter.StartCleanup(ctx)
//
//	// shared across instances
//	limiter := middleware.NewDistributedRateLimiter(redisClient, cfg, "ssomap:ratelimit")
//
//	mw := middleware.NewRateLimitMiddleware(limiter, cfg, logger)
//	if err := mw.SetTrustedProxies([]string{"10.0.0.0/8"}); err != nil {
//		return err
//	}
//	router.Handle("/sso/login", mw.Handler(loginHandler))
//
// Limiter errors are logged and the request is let through unless
// SetFailOpen(false) was called, in which case the client gets a 503.
//
// AuthMiddleware verifies a provider access token from the Authorization
// header and resolves the caller's role with the login role mapping.
// RequireRole then rejects unauthenticated callers with 401 and other roles
// with 403:
//
//	auth := middleware.NewAuthMiddleware(verifier, roles.NewResolver(cfg), "sub", logger)
//	admin := httputil.Chain(auth.Admin()...)
package middleware
