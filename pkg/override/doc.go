// Package override applies analyst risk score overrides to alerts.
//
// An override never touches the alert's original risk_score. It sets
// overridden_risk_score, which listings treat as authoritative, and appends
// an entry to the override audit trail in the same transaction:
//
//	service := override.NewService(st, auditLogger, metrics)
//	result, err := service.Override(ctx, principal, alertID, json.RawMessage("85"), "confirmed C2 beacon")
//
// The alert row is locked for the duration of the transaction, so two
// concurrent overrides of one alert serialize and each leaves its own audit
// entry. The later commit's score wins.
package override
