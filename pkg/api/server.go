package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/alertdesk/pkg/audit"
	"github.com/platinummonkey/alertdesk/pkg/auth"
	"github.com/platinummonkey/alertdesk/pkg/httputil"
	"github.com/platinummonkey/alertdesk/pkg/middleware"
	"github.com/platinummonkey/alertdesk/pkg/observability"
	"github.com/platinummonkey/alertdesk/pkg/override"
	"github.com/platinummonkey/alertdesk/pkg/roles"
	"github.com/platinummonkey/alertdesk/pkg/store"
)

// DefaultMaxBodyBytes caps request bodies when Deps.MaxBodyBytes is unset
const DefaultMaxBodyBytes int64 = 1 << 20

// Deps are the collaborators the API server is assembled from
type Deps struct {
	Store    *store.Store
	Audit    AuditLog
	Sessions *auth.SessionManager
	APIKeys  *auth.APIKeyManager
	Resolver middleware.PrincipalResolver

	// SessionStrategy extracts the token to invalidate on logout
	SessionStrategy *auth.SessionStrategy

	// Limiter is optional; nil disables rate limiting
	Limiter    middleware.Limiter
	RateLimits middleware.TierPolicy

	Metrics      *observability.Metrics
	Logger       *observability.Logger
	MaxBodyBytes int64
}

// AuditLog is the append-only audit trail as seen by the API
type AuditLog interface {
	audit.Recorder
	audit.Reader
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	handler http.Handler
	deps    Deps

	authHandlers   *AuthHandlers
	apiKeyHandlers *APIKeyHandlers
}

// NewServer creates a new API server
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = DefaultMaxBodyBytes
	}

	s := &Server{
		router: mux.NewRouter(),
		deps:   deps,
	}
	s.authHandlers = NewAuthHandlers(deps.Sessions, deps.SessionStrategy, deps.Metrics)
	s.apiKeyHandlers = NewAPIKeyHandlers(deps.APIKeys, deps.Metrics)

	s.setupRoutes()
	s.handler = otelhttp.NewHandler(s.router, "alertdesk.http")
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.Use(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.deps.Logger),
		httputil.RecoveryMiddleware,
		observability.HTTPMetricsMiddleware(s.deps.Metrics),
		httputil.ContentTypeMiddleware,
		httputil.MaxBytesMiddleware(s.deps.MaxBodyBytes),
	)

	var limit mux.MiddlewareFunc
	if s.deps.Limiter != nil {
		limit = middleware.NewRateLimitMiddleware(s.deps.Limiter, s.deps.RateLimits, s.deps.Metrics).Handler
	}

	// Public routes, limited per client IP
	public := s.router.NewRoute().Subrouter()
	if limit != nil {
		public.Use(limit)
	}
	s.authHandlers.RegisterPublicRoutes(public)

	// Everything else requires a principal
	authn := middleware.NewAuthMiddleware(s.deps.Resolver, false)
	private := s.router.NewRoute().Subrouter()
	private.Use(authn.Handler, middleware.RequireWriteScope)
	if limit != nil {
		private.Use(limit)
	}

	s.authHandlers.RegisterRoutes(private)
	s.apiKeyHandlers.RegisterRoutes(private)

	override.NewHandlers(override.NewService(s.deps.Store, s.deps.Audit, s.deps.Metrics)).RegisterRoutes(private)
	roles.NewHandlers(roles.NewService(s.deps.Store, s.deps.Audit, s.deps.Audit, s.deps.Metrics)).RegisterRoutes(private)
	audit.NewHandlers(s.deps.Audit).RegisterRoutes(private)
}

// Router exposes the underlying router, mainly for tests and route listing
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
