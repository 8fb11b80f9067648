package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// APIKeyPrefix identifies alertdesk API keys
	APIKeyPrefix = "adk_"
	// SessionTokenPrefix identifies alertdesk session tokens
	SessionTokenPrefix = "ads_"
	// TokenLength is the number of random bytes (32 bytes = 256 bits)
	TokenLength = 32
	// PreviewLength is the number of encoded characters kept for display
	PreviewLength = 8
)

// TokenGenerator generates opaque bearer secrets
type TokenGenerator struct {
	prefix string
}

// NewTokenGenerator creates a generator for tokens starting with prefix
func NewTokenGenerator(prefix string) *TokenGenerator {
	return &TokenGenerator{prefix: prefix}
}

// Prefix returns the generator's token prefix
func (tg *TokenGenerator) Prefix() string {
	return tg.prefix
}

// GenerateToken creates a new secret.
// Format: <prefix><base64url(32 random bytes)>
// Example: adk_Zm9vYmFyYmF6...
//
// Only hash should be persisted; preview is the prefix plus the first
// PreviewLength encoded characters and is safe to show in a UI.
func (tg *TokenGenerator) GenerateToken() (token string, hash string, preview string, err error) {
	randomBytes := make([]byte, TokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(randomBytes)
	token = tg.prefix + encoded

	return token, HashToken(token), tg.prefix + encoded[:PreviewLength], nil
}

// HasPrefix reports whether token carries this generator's prefix
func (tg *TokenGenerator) HasPrefix(token string) bool {
	return strings.HasPrefix(token, tg.prefix)
}

// ValidateFormat checks prefix and encoding without touching storage
func (tg *TokenGenerator) ValidateFormat(token string) error {
	if !tg.HasPrefix(token) {
		return fmt.Errorf("token must start with %q", tg.prefix)
	}

	encoded := strings.TrimPrefix(token, tg.prefix)
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("invalid token encoding: %w", err)
	}
	if len(raw) != TokenLength {
		return fmt.Errorf("token has %d random bytes, want %d", len(raw), TokenLength)
	}

	return nil
}

// HashToken computes the hex SHA-256 of a token for storage and lookup
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
