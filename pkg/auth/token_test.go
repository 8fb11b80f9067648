package auth

import (
	"strings"
	"testing"
)

func TestTokenGenerator_GenerateToken(t *testing.T) {
	tg := NewTokenGenerator(APIKeyPrefix)

	token, hash, preview, err := tg.GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	if !strings.HasPrefix(token, APIKeyPrefix) {
		t.Errorf("Token should start with %q, got %q", APIKeyPrefix, token)
	}

	// SHA256 = 64 hex chars
	if len(hash) != 64 {
		t.Errorf("hash length = %d, want 64", len(hash))
	}
	if hash != HashToken(token) {
		t.Error("returned hash does not match HashToken(token)")
	}

	if len(preview) != len(APIKeyPrefix)+PreviewLength {
		t.Errorf("preview length = %d, want %d", len(preview), len(APIKeyPrefix)+PreviewLength)
	}
	if !strings.HasPrefix(token, preview) {
		t.Errorf("preview %q is not a prefix of the token", preview)
	}
	if strings.Contains(preview, hash) {
		t.Error("preview must not contain the hash")
	}
}

func TestTokenGenerator_Uniqueness(t *testing.T) {
	tg := NewTokenGenerator(SessionTokenPrefix)

	tokens := make(map[string]bool)
	hashes := make(map[string]bool)

	for i := 0; i < 100; i++ {
		token, hash, _, err := tg.GenerateToken()
		if err != nil {
			t.Fatalf("GenerateToken() error = %v", err)
		}
		if tokens[token] {
			t.Errorf("Duplicate token generated: %s", token)
		}
		if hashes[hash] {
			t.Errorf("Duplicate hash generated: %s", hash)
		}
		tokens[token] = true
		hashes[hash] = true
	}
}

func TestTokenGenerator_ValidateFormat(t *testing.T) {
	tg := NewTokenGenerator(APIKeyPrefix)
	valid, _, _, err := tg.GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid", valid, false},
		{"wrong prefix", "ads_" + strings.TrimPrefix(valid, APIKeyPrefix), true},
		{"no prefix", "abc", true},
		{"empty body", APIKeyPrefix, true},
		{"bad encoding", APIKeyPrefix + "!!!!", true},
		{"too short", APIKeyPrefix + "Zm9v", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tg.ValidateFormat(tt.token)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHashToken_Deterministic(t *testing.T) {
	if HashToken("adk_same") != HashToken("adk_same") {
		t.Error("HashToken is not deterministic")
	}
	if HashToken("adk_a") == HashToken("adk_b") {
		t.Error("different tokens produced the same hash")
	}
}
