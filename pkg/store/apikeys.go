package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/alertdesk/pkg/audit"
	"github.com/platinummonkey/alertdesk/pkg/auth"
)

const apiKeyColumns = `id, user_id, name, description, key_hash, key_preview, access_scope,
	rate_limit_tier, created_at, last_used, expires_at, active`

func scanAPIKey(row rowScanner) (*auth.APIKey, error) {
	var (
		k         auth.APIKey
		scopes    string
		lastUsed  sql.NullTime
		expiresAt sql.NullTime
	)
	err := row.Scan(&k.ID, &k.UserID, &k.Name, &k.Description, &k.KeyHash, &k.Preview, &scopes,
		&k.RateLimitTier, &k.CreatedAt, &lastUsed, &expiresAt, &k.Active)
	if err != nil {
		return nil, err
	}

	k.Scopes = auth.SplitScopes(scopes)
	k.CreatedAt = k.CreatedAt.UTC()
	if lastUsed.Valid {
		t := lastUsed.Time.UTC()
		k.LastUsed = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		k.ExpiresAt = &t
	}
	return &k, nil
}

// GetActiveAPIKeyByHash retrieves an active key by the SHA-256 of its secret
func (s *Store) GetActiveAPIKeyByHash(ctx context.Context, keyHash string) (*auth.APIKey, error) {
	k, err := scanAPIKey(s.db.QueryRowContext(ctx,
		"SELECT "+apiKeyColumns+" FROM api_keys WHERE key_hash = $1 AND active = $2", keyHash, true))
	if err != nil {
		return nil, notFound(err, "api key", "by hash")
	}
	return k, nil
}

// TouchAPIKey records the last time a key authenticated
func (s *Store) TouchAPIKey(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, "UPDATE api_keys SET last_used = $1 WHERE id = $2", at, id)
	if err != nil {
		return fmt.Errorf("failed to touch api key: %w", err)
	}
	return nil
}

// ListActiveAPIKeys returns the active keys owned by userID, newest first
func (s *Store) ListActiveAPIKeys(ctx context.Context, userID int64) ([]*auth.APIKey, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+apiKeyColumns+" FROM api_keys WHERE user_id = $1 AND active = $2 ORDER BY created_at DESC, id DESC",
		userID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	keys := []*auth.APIKey{}
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// WithAPIKeyTx runs fn in a transaction whose key mutations and lifecycle
// audit rows commit or roll back together
func (s *Store) WithAPIKeyTx(ctx context.Context, fn func(tx auth.APIKeyTx) error) error {
	if s.recorder == nil {
		return errors.New("api key transactions require an audit recorder")
	}
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		return fn(&apiKeyTx{store: s, tx: tx})
	})
}

// apiKeyTx implements auth.APIKeyTx on one *sql.Tx
type apiKeyTx struct {
	store *Store
	tx    *sql.Tx
}

func (t *apiKeyTx) InsertAPIKey(ctx context.Context, key *auth.APIKey) (int64, error) {
	var expiresAt sql.NullTime
	if key.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *key.ExpiresAt, Valid: true}
	}

	var id int64
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO api_keys (user_id, name, description, key_hash, key_preview, access_scope,
			rate_limit_tier, created_at, expires_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, key.UserID, key.Name, key.Description, key.KeyHash, key.Preview, auth.JoinScopes(key.Scopes),
		string(key.RateLimitTier), key.CreatedAt, expiresAt, key.Active,
	).Scan(&id)
	if err != nil {
		if IsUniqueViolation(err) {
			return 0, fmt.Errorf("api key: %w", ErrDuplicate)
		}
		return 0, err
	}
	return id, nil
}

func (t *apiKeyTx) GetAPIKeyForUpdate(ctx context.Context, id int64) (*auth.APIKey, error) {
	k, err := scanAPIKey(t.tx.QueryRowContext(ctx,
		"SELECT "+apiKeyColumns+" FROM api_keys WHERE id = $1"+t.store.db.Dialect.ForUpdate, id))
	if err != nil {
		return nil, notFound(err, "api key", id)
	}
	return k, nil
}

func (t *apiKeyTx) UpdateAPIKeySecret(ctx context.Context, id int64, keyHash, preview string) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE api_keys SET key_hash = $1, key_preview = $2 WHERE id = $3", keyHash, preview, id)
	if err != nil {
		return err
	}
	return requireOneRow(res, "api key", id)
}

func (t *apiKeyTx) DeactivateAPIKey(ctx context.Context, id int64) error {
	res, err := t.tx.ExecContext(ctx, "UPDATE api_keys SET active = $1 WHERE id = $2", false, id)
	if err != nil {
		return err
	}
	return requireOneRow(res, "api key", id)
}

func (t *apiKeyTx) RecordAPIKeyEvent(ctx context.Context, keyID, userID int64, action auth.KeyAction, at time.Time) error {
	_, err := t.store.recorder.RecordAPIKeyEvent(ctx, t.tx, &audit.APIKeyEntry{
		KeyID:     keyID,
		UserID:    userID,
		Action:    action,
		Timestamp: at,
	})
	return err
}
