// Package cli implements alertdesk-admin, the provisioning CLI.
//
// # Commands
//
// migrate: apply pending database migrations
//
//	alertdesk-admin migrate
//
// seed: create or update users from a YAML file. Passwords are bcrypt hashed
// at ALERTDESK_BCRYPT_COST before they reach the database.
//
//	alertdesk-admin seed -file users.yaml
//
// archive-audit: copy the override, role, and API key audit trails to S3 as
// one NDJSON object per trail. Audit rows are never deleted.
//
//	alertdesk-admin archive-audit -bucket alertdesk-audit -prefix prod
//
// Database, bcrypt, and S3 settings come from pkg/config, exactly as for the
// server binary.
package cli
