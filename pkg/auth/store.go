package auth

import (
	"context"
	"time"
)

// Storage interfaces consumed by the managers in this package. The SQL
// implementations live in pkg/store. Lookups return an error wrapping
// ErrNotFound when the row does not exist.

// UserStore reads user accounts
type UserStore interface {
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// SessionStore persists sessions keyed by token hash
type SessionStore interface {
	CreateSession(ctx context.Context, session *Session) (int64, error)
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	TouchSession(ctx context.Context, id int64, at time.Time) error
	DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error
	DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error)
}

// APIKeyTx is the set of key mutations that run inside one transaction
// together with the lifecycle audit row.
type APIKeyTx interface {
	InsertAPIKey(ctx context.Context, key *APIKey) (int64, error)
	// GetAPIKeyForUpdate loads a key and locks its row until the transaction ends
	GetAPIKeyForUpdate(ctx context.Context, id int64) (*APIKey, error)
	UpdateAPIKeySecret(ctx context.Context, id int64, keyHash, preview string) error
	DeactivateAPIKey(ctx context.Context, id int64) error
	RecordAPIKeyEvent(ctx context.Context, keyID, userID int64, action KeyAction, at time.Time) error
}

// APIKeyStore persists API keys
type APIKeyStore interface {
	// WithAPIKeyTx runs fn in a transaction, committing only if fn returns nil
	WithAPIKeyTx(ctx context.Context, fn func(tx APIKeyTx) error) error
	GetActiveAPIKeyByHash(ctx context.Context, keyHash string) (*APIKey, error)
	TouchAPIKey(ctx context.Context, id int64, at time.Time) error
	ListActiveAPIKeys(ctx context.Context, userID int64) ([]*APIKey, error)
}
