package main

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/alertdesk/pkg/auth"
	"github.com/platinummonkey/alertdesk/pkg/config"
	"github.com/platinummonkey/alertdesk/pkg/middleware"
	"github.com/platinummonkey/alertdesk/pkg/observability"
	"github.com/platinummonkey/alertdesk/pkg/store/storetest"
)

func TestPurgeSessions(t *testing.T) {
	st, _ := storetest.New(t)
	user := storetest.CreateUser(t, st, "analyst", "pw", auth.RoleAnalyst)
	sessions := auth.NewSessionManager(st, st, 4)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	ctx := context.Background()

	now := time.Now().UTC()
	_, err := st.CreateSession(ctx, &auth.Session{
		TokenHash:    auth.HashToken("ads_expired"),
		UserID:       user.ID,
		CreatedAt:    now.Add(-48 * time.Hour),
		ExpiresAt:    now.Add(-24 * time.Hour),
		LastActivity: now.Add(-24 * time.Hour),
	})
	require.NoError(t, err)

	live, _, err := sessions.Create(ctx, user.ID)
	require.NoError(t, err)

	purgeSessions(ctx, sessions, metrics, logger)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SessionsPurgedTotal))
	_, err = sessions.Validate(ctx, live)
	assert.NoError(t, err)
}

func TestNewHousekeeping(t *testing.T) {
	st, _ := storetest.New(t)
	sessions := auth.NewSessionManager(st, st, 4)
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	h, err := newHousekeeping("@hourly", sessions, st.DB(), metrics, logger)
	require.NoError(t, err)
	assert.Len(t, h.cron.Entries(), 2)

	h.Start()
	assert.NoError(t, h.Stop(context.Background()))

	h, err = newHousekeeping("", sessions, st.DB(), nil, logger)
	require.NoError(t, err)
	assert.Empty(t, h.cron.Entries())

	_, err = newHousekeeping("not a schedule", sessions, st.DB(), nil, logger)
	assert.Error(t, err)
}

func TestNewLimiter(t *testing.T) {
	limiter, err := newLimiter(config.RateLimitConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.Nil(t, limiter)

	limiter, err = newLimiter(config.RateLimitConfig{Enabled: true, Backend: config.RateLimitMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &middleware.RateLimiter{}, limiter)

	_, err = newLimiter(config.RateLimitConfig{Enabled: true, Backend: config.RateLimitRedis}, nil)
	assert.Error(t, err)
}
