// Package roles implements admin role management: listing users, changing a
// user's role, and reading the role change audit trail. Every route requires
// the manage_roles capability.
//
// A role update locks the target row, writes the new role, and appends a
// role_audit_log entry in one transaction. An admin cannot change their own
// role; that request fails with a validation error before anything is written.
package roles
