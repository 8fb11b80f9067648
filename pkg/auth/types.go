package auth

import (
	"fmt"
	"strings"
	"time"
)

// Role is one of the four fixed dashboard roles
type Role string

const (
	RoleViewer  Role = "viewer"  // Read-only access to alerts
	RoleAnalyst Role = "analyst" // Can override risk scores
	RoleAuditor Role = "auditor" // Can read the audit trail
	RoleAdmin   Role = "admin"   // Full control including role management
)

// AllRoles lists every valid role in privilege order
var AllRoles = []Role{RoleViewer, RoleAnalyst, RoleAuditor, RoleAdmin}

// Valid reports whether r is one of the four roles
func (r Role) Valid() bool {
	switch r {
	case RoleViewer, RoleAnalyst, RoleAuditor, RoleAdmin:
		return true
	}
	return false
}

// ParseRole validates a role string
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", NewValidationError("role", "role is required")
	}
	role := Role(s)
	if !role.Valid() {
		return "", NewValidationError("role", fmt.Sprintf("invalid role %q: must be one of viewer, analyst, auditor, admin", s))
	}
	return role, nil
}

// Scope is an API key access scope
type Scope string

const (
	ScopeRead  Scope = "read"
	ScopeWrite Scope = "write"
)

// ParseScopes validates and de-duplicates scope strings. An empty list means read-only.
func ParseScopes(raw []string) ([]Scope, error) {
	if len(raw) == 0 {
		return []Scope{ScopeRead}, nil
	}
	seen := make(map[Scope]bool, len(raw))
	scopes := make([]Scope, 0, len(raw))
	for _, s := range raw {
		scope := Scope(strings.ToLower(strings.TrimSpace(s)))
		if scope != ScopeRead && scope != ScopeWrite {
			return nil, NewValidationError("access_scope", fmt.Sprintf("invalid scope %q: must be read or write", s))
		}
		if !seen[scope] {
			seen[scope] = true
			scopes = append(scopes, scope)
		}
	}
	return scopes, nil
}

// JoinScopes encodes scopes for storage
func JoinScopes(scopes []Scope) string {
	parts := make([]string, len(scopes))
	for i, s := range scopes {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}

// SplitScopes decodes scopes from storage
func SplitScopes(s string) []Scope {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	scopes := make([]Scope, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			scopes = append(scopes, Scope(p))
		}
	}
	return scopes
}

// RateLimitTier selects the request budget of an API key
type RateLimitTier string

const (
	TierStandard  RateLimitTier = "standard"
	TierElevated  RateLimitTier = "elevated"
	TierUnlimited RateLimitTier = "unlimited"
)

// ParseTier validates a tier string; empty selects the standard tier
func ParseTier(s string) (RateLimitTier, error) {
	switch RateLimitTier(s) {
	case "":
		return TierStandard, nil
	case TierStandard, TierElevated, TierUnlimited:
		return RateLimitTier(s), nil
	}
	return "", NewValidationError("rate_limit_tier", fmt.Sprintf("invalid rate_limit_tier %q: must be standard, elevated, or unlimited", s))
}

// User is a dashboard account. Users are deactivated, never deleted.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Session is a browser login. Only the SHA-256 of the bearer token is stored.
type Session struct {
	ID           int64
	TokenHash    string
	UserID       int64
	CreatedAt    time.Time
	ExpiresAt    time.Time
	LastActivity time.Time
}

// Expired reports whether the session is past its expiry at now
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// APIKey is a programmatic credential. KeyHash is never serialized.
type APIKey struct {
	ID            int64         `json:"id"`
	UserID        int64         `json:"user_id"`
	Name          string        `json:"name"`
	Description   string        `json:"description,omitempty"`
	KeyHash       string        `json:"-"`
	Preview       string        `json:"key_preview"`
	Scopes        []Scope       `json:"access_scope"`
	RateLimitTier RateLimitTier `json:"rate_limit_tier"`
	CreatedAt     time.Time     `json:"created_at"`
	LastUsed      *time.Time    `json:"last_used,omitempty"`
	ExpiresAt     *time.Time    `json:"expires_at,omitempty"`
	Active        bool          `json:"active"`
}

// Expired reports whether the key has an expiry that has passed at now
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

// KeyAction is an API key lifecycle event recorded in the audit trail
type KeyAction string

const (
	KeyActionCreate KeyAction = "create"
	KeyActionRotate KeyAction = "rotate"
	KeyActionRevoke KeyAction = "revoke"
)

// PrincipalKind identifies which credential scheme produced a Principal
type PrincipalKind string

const (
	KindSession PrincipalKind = "session"
	KindAPIKey  PrincipalKind = "api_key"
	KindDemo    PrincipalKind = "demo"
)

// Principal is the normalized caller identity. Authorization decisions only
// ever look at Role; the remaining fields support scope checks, rate
// limiting, and attribution.
type Principal struct {
	Kind     PrincipalKind `json:"kind"`
	UserID   int64         `json:"user_id"`
	Username string        `json:"username"`
	Role     Role          `json:"role"`

	// Set only for KindAPIKey
	APIKeyID      int64         `json:"api_key_id,omitempty"`
	Scopes        []Scope       `json:"access_scope,omitempty"`
	RateLimitTier RateLimitTier `json:"rate_limit_tier,omitempty"`
}

// HasScope checks an API key scope. Session and demo principals are unscoped.
func (p *Principal) HasScope(scope Scope) bool {
	if p.Kind != KindAPIKey {
		return true
	}
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
