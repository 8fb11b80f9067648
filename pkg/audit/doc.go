// Package audit provides the append-only audit trail for privileged actions.
//
// # Overview
//
// Three trails are kept, one table each:
//
//   - overrides: risk-score overrides (alert, actor, original and new score, justification)
//   - roles: role changes made by admins, with a generated justification
//   - api_keys: API key create, rotate, and revoke events
//
// Entries are written through Recorder inside the same transaction as the
// mutation they describe, and read back through Reader newest first. Neither
// interface has an update or delete method.
//
// # Usage Example
//
// Record inside a transaction:
//
//	err := db.WithTx(ctx, func(tx *sql.Tx) error {
//		// ... mutate the alert ...
//		_, err := recorder.RecordOverride(ctx, tx, &audit.OverrideEntry{
//			AlertID:       alert.ID,
//			UserID:        principal.UserID,
//			OriginalScore: before,
//			OverrideScore: after,
//		})
//		return err
//	})
//
// Query:
//
//	page, err := reader.QueryOverrides(ctx, audit.Filter{AlertID: &alertID, Limit: 50})
//
// # Export and Archive
//
// GET /audit/export streams overrides as JSON, CSV, or NDJSON. Archiver copies
// every trail to S3 as NDJSON with a SHA-256 checksum in the object metadata;
// archived rows are never removed from the database.
//
// # Related Packages
//
//   - pkg/store: schema migrations for the audit tables
//   - pkg/rbac: view_audit_trail gates the handlers
package audit
