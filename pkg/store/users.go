package store

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/alertdesk/pkg/auth"
)

const userColumns = "id, username, password_hash, role, active, created_at, updated_at"

func scanUser(row rowScanner) (*auth.User, error) {
	var u auth.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id int64) (*auth.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return u, nil
}

// GetUserByUsername retrieves a user by username
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*auth.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = $1", username))
	if err != nil {
		return nil, notFound(err, "user", username)
	}
	return u, nil
}

// GetUserForUpdate loads a user inside q's transaction and locks the row
func (s *Store) GetUserForUpdate(ctx context.Context, q Querier, id int64) (*auth.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1"+s.db.Dialect.ForUpdate, id))
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return u, nil
}

// ListUsers returns every user ordered by ID
func (s *Store) ListUsers(ctx context.Context) ([]*auth.User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*auth.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CreateUser inserts a user and returns its ID. A taken username yields ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, user *auth.User) (int64, error) {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = user.CreatedAt

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, password_hash, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, user.Username, user.PasswordHash, string(user.Role), user.Active, user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		if IsUniqueViolation(err) {
			return 0, fmt.Errorf("user %q: %w", user.Username, ErrDuplicate)
		}
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return user.ID, nil
}

// UpsertUser creates user or, when the username exists, replaces its password
// hash, role, and active flag. It reports whether a new row was created.
func (s *Store) UpsertUser(ctx context.Context, user *auth.User) (bool, error) {
	existing, err := s.GetUserByUsername(ctx, user.Username)
	if err != nil {
		if !isNotFound(err) {
			return false, err
		}
		if _, err := s.CreateUser(ctx, user); err != nil {
			return false, err
		}
		return true, nil
	}

	user.ID = existing.ID
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $1, role = $2, active = $3, updated_at = $4 WHERE id = $5
	`, user.PasswordHash, string(user.Role), user.Active, user.UpdatedAt, user.ID)
	if err != nil {
		return false, fmt.Errorf("failed to update user: %w", err)
	}
	return false, nil
}

// UpdateUserRole sets the role of user id inside q's transaction
func (s *Store) UpdateUserRole(ctx context.Context, q Querier, id int64, role auth.Role, at time.Time) error {
	res, err := q.ExecContext(ctx,
		"UPDATE users SET role = $1, updated_at = $2 WHERE id = $3", string(role), at, id)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	return requireOneRow(res, "user", id)
}
