package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/alertdesk/pkg/auth"
	"github.com/platinummonkey/alertdesk/pkg/httputil"
	"github.com/platinummonkey/alertdesk/pkg/observability"
	"github.com/platinummonkey/alertdesk/pkg/rbac"
)

// LoginRequest is the body of POST /login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the session token. It is the only place the
// plaintext token ever appears.
type LoginResponse struct {
	SessionToken string     `json:"session_token"`
	ExpiresAt    time.Time  `json:"expires_at"`
	User         *auth.User `json:"user"`
}

// CurrentUserResponse describes the caller and what it may do
type CurrentUserResponse struct {
	*auth.Principal
	Permissions []rbac.Capability `json:"permissions"`
}

// AuthHandlers handles authentication-related HTTP requests
type AuthHandlers struct {
	sessions *auth.SessionManager
	strategy *auth.SessionStrategy
	metrics  *observability.Metrics
}

// NewAuthHandlers creates a new auth handlers instance
func NewAuthHandlers(sessions *auth.SessionManager, strategy *auth.SessionStrategy, metrics *observability.Metrics) *AuthHandlers {
	return &AuthHandlers{
		sessions: sessions,
		strategy: strategy,
		metrics:  metrics,
	}
}

// RegisterPublicRoutes registers routes that do not require a principal
func (h *AuthHandlers) RegisterPublicRoutes(router *mux.Router) {
	router.HandleFunc("/login", h.login).Methods(http.MethodPost)
}

// RegisterRoutes registers authenticated session routes
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/logout", h.logout).Methods(http.MethodPost)
	router.HandleFunc("/user/current", h.currentUser).Methods(http.MethodGet)
}

// login handles POST /login
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	token, expiresAt, user, err := h.sessions.Login(r.Context(), req.Username, req.Password)
	h.metrics.RecordLogin(loginOutcome(err))
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	observability.FromContext(r.Context()).
		WithField("user_id", user.ID).
		Info("user logged in")

	_ = httputil.WriteSuccess(w, LoginResponse{
		SessionToken: token,
		ExpiresAt:    expiresAt,
		User:         user,
	})
}

// logout handles POST /logout
func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil || principal.Kind != auth.KindSession {
		httputil.WriteServiceError(w, r, auth.NewValidationError("session_token", "logout requires a session token"))
		return
	}

	if err := h.sessions.Invalidate(r.Context(), h.strategy.Token(r.Header)); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	_ = httputil.WriteSuccess(w, map[string]string{"status": "logged out"})
}

// currentUser handles GET /user/current
func (h *AuthHandlers) currentUser(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		httputil.WriteServiceError(w, r, auth.ErrMissingCredentials)
		return
	}

	_ = httputil.WriteSuccess(w, CurrentUserResponse{
		Principal:   principal,
		Permissions: rbac.Capabilities(principal.Role),
	})
}

func loginOutcome(err error) string {
	if _, ok := auth.AsValidationError(err); ok {
		return "invalid_request"
	}
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, auth.ErrUnauthenticated):
		return "invalid_credentials"
	default:
		return "error"
	}
}
