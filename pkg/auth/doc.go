// Package auth resolves callers into a normalized Principal and owns the
// credential lifecycles behind that resolution.
//
// # Credential schemes
//
// Three schemes are supported, tried in this order by Resolver:
//
//  1. Session token (X-Session-Token, or Authorization: Bearer ads_...),
//     validated by SessionManager.
//  2. API key (X-API-Key: adk_...), validated by APIKeyManager.
//  3. Demo user id (X-User-Id), only when the deployment runs in test mode.
//
// A scheme whose header is absent is skipped. A scheme whose header is
// present but invalid ends resolution with ErrUnauthenticated; a weaker
// scheme is never consulted in that case.
//
// # Secrets at rest
//
// Session tokens and API keys are 32 random bytes, base64url encoded behind a
// short prefix. Only the hex SHA-256 of a secret is stored. API keys also keep
// a non-secret preview (prefix plus eight characters) for display.
// Passwords are bcrypt hashed.
//
// # API key lifecycle
//
//	created, err := keys.Create(ctx, userID, auth.CreateAPIKeyRequest{Name: "ci", Scopes: []string{"read"}})
//	secret, preview, err := keys.Rotate(ctx, created.Key.ID, userID)
//	err = keys.Revoke(ctx, created.Key.ID, userID)
//
// Rotation replaces the stored hash in place inside one transaction, so the
// key id is stable and exactly one secret authenticates at any time.
// Revocation is terminal. Every lifecycle change writes an audit row in the
// same transaction.
//
// # Errors
//
// ErrUnauthenticated, ErrForbidden, ErrNotFound and *ValidationError form the
// error taxonomy used across the service; see httputil.WriteServiceError for
// the HTTP mapping.
package auth
