// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteCreated(w, resource)
//
// Service errors are mapped to status codes in one place:
//
//	if err != nil {
//		httputil.WriteServiceError(w, r, err)
//		return
//	}
//
// *auth.ValidationError becomes 400, auth.ErrUnauthenticated 401,
// auth.ErrForbidden 403, auth.ErrNotFound 404. Anything else is logged with
// the request logger and reported as a 500 "internal error".
//
// # Request Parsing
//
//	var req overrideRequest
//	if err := httputil.ParseJSON(r, &req); err != nil {
//		httputil.WriteServiceError(w, r, err)
//		return
//	}
//	id, err := httputil.ParsePathInt64(r, "id")
//	limit, err := httputil.ParseQueryInt(r, "limit", 100)
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware,
//		httputil.MaxBytesMiddleware(1<<20),
//	)
package httputil
