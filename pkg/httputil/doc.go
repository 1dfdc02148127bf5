// Package httputil provides HTTP handler utilities for consistent JSON
// responses, request parsing and the common middleware stack.
//
// # Responses
//
// Every error body has the shape {"error": "<message>"}:
//
//	httputil.WriteJSON(w, http.StatusOK, result)
//	httputil.WriteForbidden(w, "access denied")
//	httputil.WriteUnauthorized(w, "invalid token")
//
// # Request Parsing
//
//	var req loginRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // 400 already written
//	}
//	userID, ok := httputil.ParsePathStringOrError(w, r, "user_id")
//
// # Middleware
//
// RequestIDMiddleware should run first so later middleware and handlers can
// pick the request-scoped logger out of the context:
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.MaxBytesMiddleware(1<<20),
//	)(router)
package httputil
