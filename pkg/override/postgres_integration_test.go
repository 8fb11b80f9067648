//go:build integration

package override

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/platinummonkey/alertdesk/pkg/audit"
	"github.com/platinummonkey/alertdesk/pkg/auth"
	"github.com/platinummonkey/alertdesk/pkg/store"
	"github.com/platinummonkey/alertdesk/pkg/store/storetest"
)

// setupPostgresStore starts a PostgreSQL container and returns a migrated store
func setupPostgresStore(t *testing.T) (*store.Store, *audit.DBLogger) {
	t.Helper()

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("alertdesk_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := postgresContainer.Terminate(cleanupCtx); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := store.Open(ctx, store.Config{Driver: "postgres", DSN: connStr, MaxConns: 10})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Migrate(ctx, storetest.Logger())
	require.NoError(t, err)

	logger, err := audit.NewDBLogger(db, nil)
	require.NoError(t, err)
	return store.New(db, logger), logger
}

func TestPostgres_ConcurrentOverridesSerialize(t *testing.T) {
	s, logger := setupPostgresStore(t)
	service := NewService(s, logger, nil)

	first := storetest.Principal(storetest.CreateUser(t, s, "ana", "", auth.RoleAnalyst))
	second := storetest.Principal(storetest.CreateUser(t, s, "ada", "", auth.RoleAdmin))
	alert := storetest.CreateAlert(t, s, "lateral movement", 40)

	const perPrincipal = 10
	var wg sync.WaitGroup
	errs := make(chan error, 2*perPrincipal)
	for i := 0; i < perPrincipal; i++ {
		for j, p := range []*auth.Principal{first, second} {
			wg.Add(1)
			score := 50 + i*2 + j
			go func(p *auth.Principal, score int) {
				defer wg.Done()
				_, err := service.Override(context.Background(), p, alert.ID, json.RawMessage(strconv.Itoa(score)), "concurrent")
				errs <- err
			}(p, score)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	page, err := logger.QueryOverrides(context.Background(), audit.Filter{AlertID: &alert.ID, Limit: audit.MaxLimit})
	require.NoError(t, err)
	require.Equal(t, int64(2*perPrincipal), page.Total)

	// Entries come newest first. Row locking means each override saw the
	// score written by the one before it.
	entries := page.Entries
	oldest := entries[len(entries)-1]
	assert.Equal(t, 40, oldest.OriginalScore)
	for i := len(entries) - 2; i >= 0; i-- {
		assert.Equal(t, entries[i+1].OverrideScore, entries[i].OriginalScore, "entry %d", entries[i].ID)
	}

	got, err := s.GetAlert(context.Background(), alert.ID)
	require.NoError(t, err)
	require.NotNil(t, got.OverriddenRiskScore)
	assert.Equal(t, entries[0].OverrideScore, *got.OverriddenRiskScore)
	assert.Equal(t, 40, got.RiskScore)
}

func TestPostgres_RotationLeavesOneValidSecret(t *testing.T) {
	s, _ := setupPostgresStore(t)
	keys := auth.NewAPIKeyManager(s, s)
	user := storetest.CreateUser(t, s, "ana", "", auth.RoleAnalyst)
	ctx := context.Background()

	created, err := keys.Create(ctx, user.ID, auth.CreateAPIKeyRequest{Name: "ci", Scopes: []string{"read"}, RateLimitTier: "standard"})
	require.NoError(t, err)

	secret, _, err := keys.Rotate(ctx, created.Key.ID, user.ID)
	require.NoError(t, err)

	_, err = keys.Authenticate(ctx, created.Secret)
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)

	p, err := keys.Authenticate(ctx, secret)
	require.NoError(t, err)
	assert.Equal(t, created.Key.ID, p.APIKeyID)
}
