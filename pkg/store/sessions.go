package store

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/alertdesk/pkg/auth"
)

// CreateSession stores a session keyed by its token hash
func (s *Store) CreateSession(ctx context.Context, session *auth.Session) (int64, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sessions (token_hash, user_id, created_at, expires_at, last_activity)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, session.TokenHash, session.UserID, session.CreatedAt, session.ExpiresAt, session.LastActivity,
	).Scan(&session.ID)
	if err != nil {
		if IsUniqueViolation(err) {
			return 0, fmt.Errorf("session: %w", ErrDuplicate)
		}
		return 0, fmt.Errorf("failed to create session: %w", err)
	}
	return session.ID, nil
}

// GetSessionByTokenHash retrieves a session by the SHA-256 of its token
func (s *Store) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	var session auth.Session
	err := s.db.QueryRowContext(ctx, `
		SELECT id, token_hash, user_id, created_at, expires_at, last_activity
		FROM sessions WHERE token_hash = $1
	`, tokenHash).Scan(&session.ID, &session.TokenHash, &session.UserID,
		&session.CreatedAt, &session.ExpiresAt, &session.LastActivity)
	if err != nil {
		return nil, notFound(err, "session", "by token")
	}
	session.CreatedAt = session.CreatedAt.UTC()
	session.ExpiresAt = session.ExpiresAt.UTC()
	session.LastActivity = session.LastActivity.UTC()
	return &session, nil
}

// TouchSession records activity on a session
func (s *Store) TouchSession(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, "UPDATE sessions SET last_activity = $1 WHERE id = $2", at, id)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// DeleteSessionByTokenHash removes a session; deleting an unknown session is not an error
func (s *Store) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE token_hash = $1", tokenHash)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions that expired before the given time
func (s *Store) DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at < $1", before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
