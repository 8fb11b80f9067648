// Package storetest provides a migrated in-memory SQLite store for tests of
// packages that build on pkg/store.
package storetest

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
	"github.com/platinummonkey/alertdesk/pkg/store"
)

var counter int64

// New opens a private in-memory database with every migration applied. It
// is closed when the test ends.
func New(t testing.TB) (*store.Store, *audit.DBLogger) {
	t.Helper()

	dsn := fmt.Sprintf("file:storetest_%d?mode=memory&cache=shared&_foreign_keys=1", atomic.AddInt64(&counter, 1))
	db, err := store.Open(context.Background(), store.Config{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Migrate(context.Background(), Logger())
	require.NoError(t, err)

	logger, err := audit.NewDBLogger(db, nil)
	require.NoError(t, err)
	return store.New(db, logger), logger
}

// Logger returns a logger that drops everything below error level
func Logger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

// CreateUser inserts an active user with the given password
func CreateUser(t testing.TB, s *store.Store, username, password string, role auth.Role) *auth.User {
	t.Helper()

	hash := ""
	if password != "" {
		var err error
		hash, err = auth.HashPassword(password, 4)
		require.NoError(t, err)
	}

	u := &auth.User{Username: username, PasswordHash: hash, Role: role, Active: true}
	_, err := s.CreateUser(context.Background(), u)
	require.NoError(t, err)
	return u
}

// CreateAlert inserts an alert with the given original score
func CreateAlert(t testing.TB, s *store.Store, title string, score int) *store.Alert {
	t.Helper()

	a := &store.Alert{Title: title, RiskScore: score}
	_, err := s.CreateAlert(context.Background(), a)
	require.NoError(t, err)
	return a
}

// Principal builds a session principal for u
func Principal(u *auth.User) *auth.Principal {
	return &auth.Principal{Kind: auth.KindSession, UserID: u.ID, Username: u.Username, Role: u.Role}
}
