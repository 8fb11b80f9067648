package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/platinummonkey/alertdesk/pkg/audit"
	"github.com/platinummonkey/alertdesk/pkg/auth"
)

// Store is the credential store: users, sessions, API keys, and alerts on
// one connection pool. Mutations that need an audit row take a Querier so
// they can run inside the caller's transaction.
type Store struct {
	db       *DB
	recorder audit.Recorder
}

// New creates a store. recorder writes the API key lifecycle rows inside
// WithAPIKeyTx.
func New(db *DB, recorder audit.Recorder) *Store {
	return &Store{db: db, recorder: recorder}
}

// DB returns the underlying pool
func (s *Store) DB() *DB {
	return s.db
}

// WithTx runs fn in a transaction on the store's pool
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return s.db.WithTx(ctx, fn)
}

// Ping verifies the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// notFound converts sql.ErrNoRows into an error wrapping auth.ErrNotFound
func notFound(err error, what string, key interface{}) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", what, key, auth.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

// requireOneRow maps an UPDATE that matched nothing to auth.ErrNotFound
func requireOneRow(res sql.Result, what string, key interface{}) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %v: %w", what, key, auth.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func isNotFound(err error) bool {
	return errors.Is(err, auth.ErrNotFound)
}
