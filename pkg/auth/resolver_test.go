package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resolverFixture struct {
	store    *memStore
	resolver *Resolver
	session  string
	apiKey   string
	alice    *User
	bob      *User
}

func newResolverFixture(t *testing.T, demo bool) *resolverFixture {
	t.Helper()
	ctx := context.Background()

	store := newMemStore()
	alice := store.addUser("alice", RoleAnalyst, true, "")
	bob := store.addUser("bob", RoleAuditor, true, "")

	sessions := NewSessionManager(store, store, 4)
	keys := NewAPIKeyManager(store, store)

	token, _, err := sessions.Create(ctx, alice.ID)
	require.NoError(t, err)
	created, err := keys.Create(ctx, bob.ID, CreateAPIKeyRequest{Name: "bot"})
	require.NoError(t, err)

	strategies := []Strategy{
		NewSessionStrategy(sessions, ""),
		NewAPIKeyStrategy(keys, ""),
	}
	if demo {
		strategies = append(strategies, NewDemoStrategy(store, ""))
	}

	return &resolverFixture{
		store:    store,
		resolver: NewResolver(strategies...),
		session:  token,
		apiKey:   created.Secret,
		alice:    alice,
		bob:      bob,
	}
}

func headers(kv ...string) http.Header {
	h := http.Header{}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

func TestResolver_Precedence(t *testing.T) {
	f := newResolverFixture(t, true)
	ctx := context.Background()

	t.Run("session wins over api key", func(t *testing.T) {
		p, err := f.resolver.Resolve(ctx, headers(HeaderSessionToken, f.session, HeaderAPIKey, f.apiKey))
		require.NoError(t, err)
		assert.Equal(t, KindSession, p.Kind)
		assert.Equal(t, f.alice.ID, p.UserID)
	})

	t.Run("api key when no session", func(t *testing.T) {
		p, err := f.resolver.Resolve(ctx, headers(HeaderAPIKey, f.apiKey, HeaderDemoUserID, "1"))
		require.NoError(t, err)
		assert.Equal(t, KindAPIKey, p.Kind)
		assert.Equal(t, f.bob.ID, p.UserID)
		assert.Equal(t, RoleAuditor, p.Role)
	})

	t.Run("bearer session token", func(t *testing.T) {
		p, err := f.resolver.Resolve(ctx, headers("Authorization", "Bearer "+f.session))
		require.NoError(t, err)
		assert.Equal(t, KindSession, p.Kind)
	})

	t.Run("demo header last", func(t *testing.T) {
		p, err := f.resolver.Resolve(ctx, headers(HeaderDemoUserID, "2"))
		require.NoError(t, err)
		assert.Equal(t, KindDemo, p.Kind)
		assert.Equal(t, f.bob.ID, p.UserID)
	})

	t.Run("nothing presented", func(t *testing.T) {
		_, err := f.resolver.Resolve(ctx, http.Header{})
		assert.ErrorIs(t, err, ErrMissingCredentials)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("blank header counts as absent", func(t *testing.T) {
		p, err := f.resolver.Resolve(ctx, headers(HeaderSessionToken, "  ", HeaderAPIKey, f.apiKey))
		require.NoError(t, err)
		assert.Equal(t, KindAPIKey, p.Kind)
	})
}

func TestResolver_InvalidCredentialDoesNotFallThrough(t *testing.T) {
	f := newResolverFixture(t, true)
	ctx := context.Background()

	tests := []struct {
		name string
		h    http.Header
	}{
		{"bad session with valid api key", headers(HeaderSessionToken, SessionTokenPrefix+"bogus", HeaderAPIKey, f.apiKey)},
		{"bad session with demo header", headers(HeaderSessionToken, "bogus", HeaderDemoUserID, "1")},
		{"bad api key with demo header", headers(HeaderAPIKey, APIKeyPrefix+"bogus", HeaderDemoUserID, "1")},
		{"malformed demo id", headers(HeaderDemoUserID, "abc")},
		{"unknown demo user", headers(HeaderDemoUserID, "999")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := f.resolver.Resolve(ctx, tt.h)
			assert.Nil(t, p)
			assert.ErrorIs(t, err, ErrUnauthenticated)
		})
	}
}

func TestResolver_DemoDisabled(t *testing.T) {
	f := newResolverFixture(t, false)

	_, err := f.resolver.Resolve(context.Background(), headers(HeaderDemoUserID, "1"))
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestResolver_RevokedKeyRejected(t *testing.T) {
	f := newResolverFixture(t, false)
	ctx := context.Background()

	keys := NewAPIKeyManager(f.store, f.store)
	list, err := keys.List(ctx, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NoError(t, keys.Revoke(ctx, list[0].ID, f.bob.ID))

	_, err = f.resolver.Resolve(ctx, headers(HeaderAPIKey, f.apiKey))
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestResolver_Observer(t *testing.T) {
	f := newResolverFixture(t, false)

	type call struct {
		scheme PrincipalKind
		ok     bool
	}
	var calls []call
	f.resolver.WithObserver(func(scheme PrincipalKind, err error) {
		calls = append(calls, call{scheme, err == nil})
	})

	_, _ = f.resolver.Resolve(context.Background(), headers(HeaderAPIKey, f.apiKey))
	_, _ = f.resolver.Resolve(context.Background(), headers(HeaderSessionToken, "bogus"))
	_, _ = f.resolver.Resolve(context.Background(), http.Header{})

	assert.Equal(t, []call{{KindAPIKey, true}, {KindSession, false}}, calls)
}

func TestPrincipal_HasScope(t *testing.T) {
	session := &Principal{Kind: KindSession}
	assert.True(t, session.HasScope(ScopeWrite))

	readOnly := &Principal{Kind: KindAPIKey, Scopes: []Scope{ScopeRead}}
	assert.True(t, readOnly.HasScope(ScopeRead))
	assert.False(t, readOnly.HasScope(ScopeWrite))
}

func TestParseRole(t *testing.T) {
	for _, r := range AllRoles {
		got, err := ParseRole(string(r))
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}

	for _, bad := range []string{"", "super_admin", "Admin", " admin"} {
		_, err := ParseRole(bad)
		var ve *ValidationError
		assert.True(t, errors.As(err, &ve), bad)
	}
}

func TestScopesRoundTrip(t *testing.T) {
	scopes, err := ParseScopes([]string{" Write ", "read"})
	require.NoError(t, err)
	assert.Equal(t, []Scope{ScopeWrite, ScopeRead}, scopes)
	assert.Equal(t, scopes, SplitScopes(JoinScopes(scopes)))

	defaults, err := ParseScopes(nil)
	require.NoError(t, err)
	assert.Equal(t, []Scope{ScopeRead}, defaults)
}
