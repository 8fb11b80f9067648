// Package rbac is the role-based access control engine.
//
// Authorization is decided solely by the caller's role against a static
// matrix:
//
//	capability            viewer analyst auditor admin
//	override_risk_score     -      x       -       x
//	view_audit_trail        -      -       x       x
//	manage_roles            -      -       -       x
//	manage_own_api_keys     x      x       x       x
//
// Authorize is a pure function and never touches storage. Services call
// Require before any read or write; RequireCapability wraps the same check
// as HTTP middleware.
package rbac
