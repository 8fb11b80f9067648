package rbac

import "github.com/platinummonkey/alertdesk/pkg/auth"

// Capability is a named permission checked by the RBAC engine
type Capability string

const (
	CapOverrideRiskScore Capability = "override_risk_score"
	CapViewAuditTrail    Capability = "view_audit_trail"
	CapManageRoles       Capability = "manage_roles"
	CapManageOwnAPIKeys  Capability = "manage_own_api_keys"
)

// AllCapabilities lists every capability in display order
var AllCapabilities = []Capability{
	CapOverrideRiskScore,
	CapViewAuditTrail,
	CapManageRoles,
	CapManageOwnAPIKeys,
}

// matrix is the static role to capability grant table
var matrix = map[auth.Role]map[Capability]bool{
	auth.RoleViewer: {
		CapManageOwnAPIKeys: true,
	},
	auth.RoleAnalyst: {
		CapOverrideRiskScore: true,
		CapManageOwnAPIKeys:  true,
	},
	auth.RoleAuditor: {
		CapViewAuditTrail:   true,
		CapManageOwnAPIKeys: true,
	},
	auth.RoleAdmin: {
		CapOverrideRiskScore: true,
		CapViewAuditTrail:    true,
		CapManageRoles:       true,
		CapManageOwnAPIKeys:  true,
	},
}
