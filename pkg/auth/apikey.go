package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CreateAPIKeyRequest describes a new key
type CreateAPIKeyRequest struct {
	Name          string
	Description   string
	Scopes        []string
	RateLimitTier string
	ExpiresAt     *time.Time
}

// CreatedAPIKey is returned exactly once when a key is created
type CreatedAPIKey struct {
	Key     *APIKey
	Secret  string
	Preview string
}

// APIKeyManager owns the API key lifecycle: create, authenticate, rotate,
// revoke, list. Every mutation writes its lifecycle audit row in the same
// transaction.
type APIKeyManager struct {
	keys   APIKeyStore
	users  UserStore
	tokens *TokenGenerator
	now    func() time.Time
}

// NewAPIKeyManager creates an API key manager
func NewAPIKeyManager(keys APIKeyStore, users UserStore) *APIKeyManager {
	return &APIKeyManager{
		keys:   keys,
		users:  users,
		tokens: NewTokenGenerator(APIKeyPrefix),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create issues a new key for userID. The plaintext secret is only ever
// present in the return value.
func (m *APIKeyManager) Create(ctx context.Context, userID int64, req CreateAPIKeyRequest) (*CreatedAPIKey, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, NewValidationError("name", "name is required")
	}
	if len(name) > 100 {
		return nil, NewValidationError("name", "name must be at most 100 characters")
	}
	scopes, err := ParseScopes(req.Scopes)
	if err != nil {
		return nil, err
	}
	tier, err := ParseTier(req.RateLimitTier)
	if err != nil {
		return nil, err
	}

	now := m.now()
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return nil, NewValidationError("expires_at", "expires_at must be in the future")
	}

	secret, hash, preview, err := m.tokens.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate api key: %w", err)
	}

	key := &APIKey{
		UserID:        userID,
		Name:          name,
		Description:   req.Description,
		KeyHash:       hash,
		Preview:       preview,
		Scopes:        scopes,
		RateLimitTier: tier,
		CreatedAt:     now,
		ExpiresAt:     req.ExpiresAt,
		Active:        true,
	}

	err = m.keys.WithAPIKeyTx(ctx, func(tx APIKeyTx) error {
		id, err := tx.InsertAPIKey(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to insert api key: %w", err)
		}
		key.ID = id
		return tx.RecordAPIKeyEvent(ctx, id, userID, KeyActionCreate, now)
	})
	if err != nil {
		return nil, err
	}

	return &CreatedAPIKey{Key: key, Secret: secret, Preview: preview}, nil
}

// Authenticate resolves a raw key to a Principal and records last_used
func (m *APIKeyManager) Authenticate(ctx context.Context, rawKey string) (*Principal, error) {
	if err := m.tokens.ValidateFormat(rawKey); err != nil {
		return nil, ErrInvalidAPIKey
	}

	key, err := m.keys.GetActiveAPIKeyByHash(ctx, HashToken(rawKey))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidAPIKey
		}
		return nil, fmt.Errorf("failed to load api key: %w", err)
	}

	now := m.now()
	if !key.Active || key.Expired(now) {
		return nil, ErrInvalidAPIKey
	}

	user, err := m.users.GetUserByID(ctx, key.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidAPIKey
		}
		return nil, fmt.Errorf("failed to load api key owner: %w", err)
	}
	if !user.Active {
		return nil, ErrInactiveUser
	}

	if err := m.keys.TouchAPIKey(ctx, key.ID, now); err != nil {
		return nil, fmt.Errorf("failed to update api key last_used: %w", err)
	}

	return &Principal{
		Kind:          KindAPIKey,
		UserID:        user.ID,
		Username:      user.Username,
		Role:          user.Role,
		APIKeyID:      key.ID,
		Scopes:        key.Scopes,
		RateLimitTier: key.RateLimitTier,
	}, nil
}

// lockOwnedKey loads and locks an active key owned by requesterID
func lockOwnedKey(ctx context.Context, tx APIKeyTx, keyID, requesterID int64) (*APIKey, error) {
	key, err := tx.GetAPIKeyForUpdate(ctx, keyID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("api key %d: %w", keyID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load api key: %w", err)
	}
	if key.UserID != requesterID {
		return nil, fmt.Errorf("api key %d belongs to another user: %w", keyID, ErrForbidden)
	}
	if !key.Active {
		// revoked keys are terminal
		return nil, fmt.Errorf("api key %d: %w", keyID, ErrNotFound)
	}
	return key, nil
}

// Rotate replaces the secret of a key in place. The hash update and the
// audit row commit together, so exactly one secret is valid at any instant:
// the old one before commit, the new one after.
func (m *APIKeyManager) Rotate(ctx context.Context, keyID, requesterID int64) (string, string, error) {
	secret, hash, preview, err := m.tokens.GenerateToken()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate api key: %w", err)
	}

	err = m.keys.WithAPIKeyTx(ctx, func(tx APIKeyTx) error {
		if _, err := lockOwnedKey(ctx, tx, keyID, requesterID); err != nil {
			return err
		}
		if err := tx.UpdateAPIKeySecret(ctx, keyID, hash, preview); err != nil {
			return fmt.Errorf("failed to update api key secret: %w", err)
		}
		return tx.RecordAPIKeyEvent(ctx, keyID, requesterID, KeyActionRotate, m.now())
	})
	if err != nil {
		return "", "", err
	}

	return secret, preview, nil
}

// Revoke deactivates a key permanently
func (m *APIKeyManager) Revoke(ctx context.Context, keyID, requesterID int64) error {
	return m.keys.WithAPIKeyTx(ctx, func(tx APIKeyTx) error {
		if _, err := lockOwnedKey(ctx, tx, keyID, requesterID); err != nil {
			return err
		}
		if err := tx.DeactivateAPIKey(ctx, keyID); err != nil {
			return fmt.Errorf("failed to revoke api key: %w", err)
		}
		return tx.RecordAPIKeyEvent(ctx, keyID, requesterID, KeyActionRevoke, m.now())
	})
}

// List returns the active keys of userID. Hashes are never populated.
func (m *APIKeyManager) List(ctx context.Context, userID int64) ([]*APIKey, error) {
	keys, err := m.keys.ListActiveAPIKeys(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	for _, k := range keys {
		k.KeyHash = ""
	}
	return keys, nil
}
