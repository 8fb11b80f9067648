package store

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/alertdesk/pkg/audit"
	"github.com/platinummonkey/alertdesk/pkg/auth"
	"github.com/platinummonkey/alertdesk/pkg/observability"
)

var memCounter int64

func quietLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

// newTestStore opens a private in-memory SQLite database with every migration applied
func newTestStore(t *testing.T) (*Store, *audit.DBLogger) {
	t.Helper()

	name := fmt.Sprintf("file:store_test_%d?mode=memory&cache=shared&_foreign_keys=1", atomic.AddInt64(&memCounter, 1))
	db, err := Open(context.Background(), Config{Driver: "sqlite", DSN: name})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Migrate(context.Background(), quietLogger())
	require.NoError(t, err)

	logger, err := audit.NewDBLogger(db, nil)
	require.NoError(t, err)
	return New(db, logger), logger
}

func createUser(t *testing.T, s *Store, username string, role auth.Role) *auth.User {
	t.Helper()
	u := &auth.User{Username: username, PasswordHash: "x", Role: role, Active: true}
	_, err := s.CreateUser(context.Background(), u)
	require.NoError(t, err)
	return u
}

func intPtr(v int) *int { return &v }
