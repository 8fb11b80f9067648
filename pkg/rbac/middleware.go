package rbac

import (
	"net/http"

	"github.com/platinummonkey/alertdesk/pkg/auth"
	"github.com/platinummonkey/alertdesk/pkg/httputil"
)

// RequireCapability rejects requests whose principal lacks capability.
// It must run after the authentication middleware.
func RequireCapability(capability Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := Require(auth.PrincipalFromContext(r.Context()), capability); err != nil {
				httputil.WriteServiceError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
