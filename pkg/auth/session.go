package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// DefaultSessionTTL is the fixed lifetime of a session from creation
const DefaultSessionTTL = 24 * time.Hour

// SessionManager creates, validates, and invalidates browser sessions.
// Expiry is checked lazily when a token is presented; nothing sweeps
// sessions on a timer except the optional PurgeExpired housekeeping.
type SessionManager struct {
	sessions SessionStore
	users    UserStore
	tokens   *TokenGenerator
	now      func() time.Time

	// dummyHash is compared against when a login names an unknown user. It
	// shares the cost of stored hashes so both rejections take the same time.
	dummyHash []byte
}

// NewSessionManager creates a session manager. bcryptCost must match the cost
// passwords are hashed with; 0 selects bcrypt.DefaultCost.
func NewSessionManager(sessions SessionStore, users UserStore, bcryptCost int) *SessionManager {
	dummy, err := HashPassword("alertdesk-dummy-password", bcryptCost)
	if err != nil {
		dummy, _ = HashPassword("alertdesk-dummy-password", bcrypt.DefaultCost)
	}
	return &SessionManager{
		sessions:  sessions,
		users:     users,
		tokens:    NewTokenGenerator(SessionTokenPrefix),
		now:       func() time.Time { return time.Now().UTC() },
		dummyHash: []byte(dummy),
	}
}

// Login verifies a username and password and opens a session
func (m *SessionManager) Login(ctx context.Context, username, password string) (string, time.Time, *User, error) {
	if username == "" {
		return "", time.Time{}, nil, NewValidationError("username", "username is required")
	}
	if password == "" {
		return "", time.Time{}, nil, NewValidationError("password", "password is required")
	}

	user, err := m.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			bcrypt.CompareHashAndPassword(m.dummyHash, []byte(password))
			return "", time.Time{}, nil, ErrInvalidCredentials
		}
		return "", time.Time{}, nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !VerifyPassword(user.PasswordHash, password) || !user.Active {
		return "", time.Time{}, nil, ErrInvalidCredentials
	}

	token, expiresAt, err := m.Create(ctx, user.ID)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	return token, expiresAt, user, nil
}

// Create opens a session for userID and returns the bearer token once
func (m *SessionManager) Create(ctx context.Context, userID int64) (string, time.Time, error) {
	token, hash, _, err := m.tokens.GenerateToken()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := m.now()
	session := &Session{
		TokenHash:    hash,
		UserID:       userID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(DefaultSessionTTL),
		LastActivity: now,
	}

	if _, err := m.sessions.CreateSession(ctx, session); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to store session: %w", err)
	}

	return token, session.ExpiresAt, nil
}

// Validate resolves a session token to a Principal, refreshing last_activity.
// Expired sessions are deleted and rejected, never extended.
func (m *SessionManager) Validate(ctx context.Context, token string) (*Principal, error) {
	if !m.tokens.HasPrefix(token) {
		return nil, ErrSessionNotFound
	}
	hash := HashToken(token)

	session, err := m.sessions.GetSessionByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	now := m.now()
	if session.Expired(now) {
		// the token is rejected whether or not the cleanup succeeds
		_ = m.sessions.DeleteSessionByTokenHash(ctx, hash)
		return nil, ErrSessionExpired
	}

	user, err := m.users.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}
	if !user.Active {
		return nil, ErrInactiveUser
	}

	if err := m.sessions.TouchSession(ctx, session.ID, now); err != nil {
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}

	return &Principal{
		Kind:     KindSession,
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	}, nil
}

// Invalidate ends a session immediately. Unknown tokens are a no-op.
func (m *SessionManager) Invalidate(ctx context.Context, token string) error {
	if err := m.sessions.DeleteSessionByTokenHash(ctx, HashToken(token)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// PurgeExpired removes rows of sessions that have already expired
func (m *SessionManager) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := m.sessions.DeleteExpiredSessions(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	return n, nil
}
