package main

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/alertdesk/pkg/auth"
	"github.com/platinummonkey/alertdesk/pkg/observability"
	"github.com/platinummonkey/alertdesk/pkg/store"
)

const dbStatsSchedule = "@every 15s"

// housekeeping runs background jobs that never affect request semantics:
// expired session rows are deleted, but validation still checks expiry itself.
type housekeeping struct {
	cron *cron.Cron
}

func newHousekeeping(purgeSchedule string, sessions *auth.SessionManager, db *store.DB, metrics *observability.Metrics, logger *observability.Logger) (*housekeeping, error) {
	c := cron.New()

	if purgeSchedule != "" {
		_, err := c.AddFunc(purgeSchedule, func() {
			defer observability.RecoverPanic(logger, "session purge")
			purgeSessions(context.Background(), sessions, metrics, logger)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to schedule session purge: %w", err)
		}
		logger.WithField("schedule", purgeSchedule).Info("Session purge scheduled")
	}

	if metrics != nil {
		_, err := c.AddFunc(dbStatsSchedule, func() {
			defer observability.RecoverPanic(logger, "db stats")
			metrics.UpdateDBStats(db.Stats())
		})
		if err != nil {
			return nil, fmt.Errorf("failed to schedule db stats: %w", err)
		}
	}

	return &housekeeping{cron: c}, nil
}

func (h *housekeeping) Start() {
	h.cron.Start()
}

// Stop waits for running jobs to finish or ctx to expire
func (h *housekeeping) Stop(ctx context.Context) error {
	done := h.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func purgeSessions(ctx context.Context, sessions *auth.SessionManager, metrics *observability.Metrics, logger *observability.Logger) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	n, err := sessions.PurgeExpired(ctx)
	if err != nil {
		logger.WithError(err).Error("Session purge failed")
		return
	}
	metrics.RecordSessionsPurged(n)
	logger.WithField("purged", n).Debug("Expired sessions purged")
}
