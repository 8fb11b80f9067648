package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/platinummonkey/alertdesk/pkg/auth"
	"github.com/platinummonkey/alertdesk/pkg/httputil"
	"github.com/platinummonkey/alertdesk/pkg/observability"
)

// PrincipalResolver turns request headers into a principal; *auth.Resolver implements it
type PrincipalResolver interface {
	Resolve(ctx context.Context, header http.Header) (*auth.Principal, error)
}

// AuthMiddleware resolves the caller before any handler runs
type AuthMiddleware struct {
	resolver PrincipalResolver
	optional bool // If true, requests without credentials pass through unauthenticated
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(resolver PrincipalResolver, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		resolver: resolver,
		optional: optional,
	}
}

// Handler wraps an HTTP handler with authentication. On success the
// principal is stored on the request context and added to the request logger.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := m.resolver.Resolve(r.Context(), r.Header)
		if err != nil {
			if m.optional && errors.Is(err, auth.ErrMissingCredentials) {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteServiceError(w, r, err)
			return
		}

		logger := observability.FromContext(r.Context()).WithFields(map[string]interface{}{
			"user_id":   principal.UserID,
			"role":      principal.Role,
			"auth_kind": principal.Kind,
		})
		ctx := observability.WithLogger(auth.WithPrincipal(r.Context(), principal), logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetPrincipal extracts the principal from request
func GetPrincipal(r *http.Request) *auth.Principal {
	return auth.PrincipalFromContext(r.Context())
}

// RequireWriteScope rejects state-changing requests made with an API key
// that lacks the write scope. Safe methods and session principals pass.
func RequireWriteScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		principal := GetPrincipal(r)
		if principal != nil && !principal.HasScope(auth.ScopeWrite) {
			httputil.WriteErrorMessage(w, http.StatusForbidden, "api key lacks write scope")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AuthObserver returns a resolver observer that counts outcomes per scheme
func AuthObserver(metrics *observability.Metrics) auth.ResolveObserver {
	return func(scheme auth.PrincipalKind, err error) {
		outcome := "success"
		switch {
		case err == nil:
		case errors.Is(err, auth.ErrSessionExpired):
			outcome = "expired"
		case errors.Is(err, auth.ErrInactiveUser):
			outcome = "inactive"
		default:
			outcome = "invalid"
		}
		metrics.RecordAuth(string(scheme), outcome)
	}
}
