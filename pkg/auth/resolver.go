package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Default credential header names
const (
	HeaderSessionToken = "X-Session-Token"
	HeaderAPIKey       = "X-API-Key"
	HeaderDemoUserID   = "X-User-Id"
)

// Strategy resolves one credential scheme from request headers.
//
// Resolve returns ErrNoCredentials when its header is absent; the Resolver
// then tries the next strategy. Any other error, including an invalid or
// expired credential, ends resolution.
type Strategy interface {
	Name() PrincipalKind
	Resolve(ctx context.Context, header http.Header) (*Principal, error)
}

// ResolveObserver is notified of every resolution attempt that reached a strategy
type ResolveObserver func(scheme PrincipalKind, err error)

// Resolver tries its strategies in order and returns the first Principal.
// Strategies are tried session, API key, demo; a present-but-invalid
// credential never falls through to a weaker scheme.
type Resolver struct {
	strategies []Strategy
	observer   ResolveObserver
}

// NewResolver creates a resolver over strategies in precedence order
func NewResolver(strategies ...Strategy) *Resolver {
	return &Resolver{strategies: strategies}
}

// WithObserver sets a callback used for metrics
func (r *Resolver) WithObserver(observer ResolveObserver) *Resolver {
	r.observer = observer
	return r
}

// Resolve turns request headers into a Principal
func (r *Resolver) Resolve(ctx context.Context, header http.Header) (*Principal, error) {
	for _, strategy := range r.strategies {
		principal, err := strategy.Resolve(ctx, header)
		if errors.Is(err, ErrNoCredentials) {
			continue
		}
		if r.observer != nil {
			r.observer(strategy.Name(), err)
		}
		if err != nil {
			return nil, err
		}
		return principal, nil
	}
	return nil, ErrMissingCredentials
}

// headerValue returns the trimmed value of name; empty means absent
func headerValue(header http.Header, name string) string {
	return strings.TrimSpace(header.Get(name))
}

// SessionStrategy reads the session header, or an Authorization bearer token
type SessionStrategy struct {
	sessions *SessionManager
	header   string
}

// NewSessionStrategy creates the session strategy; header defaults to X-Session-Token
func NewSessionStrategy(sessions *SessionManager, header string) *SessionStrategy {
	if header == "" {
		header = HeaderSessionToken
	}
	return &SessionStrategy{sessions: sessions, header: header}
}

func (s *SessionStrategy) Name() PrincipalKind { return KindSession }

func (s *SessionStrategy) Resolve(ctx context.Context, header http.Header) (*Principal, error) {
	token := s.Token(header)
	if token == "" {
		return nil, ErrNoCredentials
	}
	return s.sessions.Validate(ctx, token)
}

// Token returns the session token presented in header, or "" if there is none
func (s *SessionStrategy) Token(header http.Header) string {
	if token := headerValue(header, s.header); token != "" {
		return token
	}
	return bearerToken(header)
}

// bearerToken extracts a session token from "Authorization: Bearer ads_..."
func bearerToken(header http.Header) string {
	authz := headerValue(header, "Authorization")
	if authz == "" {
		return ""
	}
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	token := strings.TrimSpace(parts[1])
	if !strings.HasPrefix(token, SessionTokenPrefix) {
		return ""
	}
	return token
}

// APIKeyStrategy reads the API key header
type APIKeyStrategy struct {
	keys   *APIKeyManager
	header string
}

// NewAPIKeyStrategy creates the API key strategy; header defaults to X-API-Key
func NewAPIKeyStrategy(keys *APIKeyManager, header string) *APIKeyStrategy {
	if header == "" {
		header = HeaderAPIKey
	}
	return &APIKeyStrategy{keys: keys, header: header}
}

func (s *APIKeyStrategy) Name() PrincipalKind { return KindAPIKey }

func (s *APIKeyStrategy) Resolve(ctx context.Context, header http.Header) (*Principal, error) {
	raw := headerValue(header, s.header)
	if raw == "" {
		return nil, ErrNoCredentials
	}
	return s.keys.Authenticate(ctx, raw)
}

// DemoStrategy maps a user id header straight to a user without any secret.
// It must only be installed when the deployment runs in test mode.
type DemoStrategy struct {
	users  UserStore
	header string
}

// NewDemoStrategy creates the test-mode strategy; header defaults to X-User-Id
func NewDemoStrategy(users UserStore, header string) *DemoStrategy {
	if header == "" {
		header = HeaderDemoUserID
	}
	return &DemoStrategy{users: users, header: header}
}

func (s *DemoStrategy) Name() PrincipalKind { return KindDemo }

func (s *DemoStrategy) Resolve(ctx context.Context, header http.Header) (*Principal, error) {
	raw := headerValue(header, s.header)
	if raw == "" {
		return nil, ErrNoCredentials
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%w: malformed %s header", ErrUnauthenticated, s.header)
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown demo user", ErrUnauthenticated)
		}
		return nil, fmt.Errorf("failed to load demo user: %w", err)
	}
	if !user.Active {
		return nil, ErrInactiveUser
	}

	return &Principal{
		Kind:     KindDemo,
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	}, nil
}
