package rbac

import (
	"fmt"

	"github.com/platinummonkey/alertdesk/pkg/auth"
)

// Authorize reports whether role holds capability. It is pure and total:
// unknown roles and unknown capabilities are denied, and storage is never
// consulted.
func Authorize(role auth.Role, capability Capability) bool {
	return matrix[role][capability]
}

// Capabilities returns the capabilities granted to role, in AllCapabilities order
func Capabilities(role auth.Role) []Capability {
	caps := make([]Capability, 0, len(AllCapabilities))
	for _, c := range AllCapabilities {
		if Authorize(role, c) {
			caps = append(caps, c)
		}
	}
	return caps
}

// Require returns auth.ErrForbidden unless p holds capability.
// A nil principal is unauthenticated.
func Require(p *auth.Principal, capability Capability) error {
	if p == nil {
		return auth.ErrMissingCredentials
	}
	if !Authorize(p.Role, capability) {
		return fmt.Errorf("role %s lacks %s: %w", p.Role, capability, auth.ErrForbidden)
	}
	return nil
}
