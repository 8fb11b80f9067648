package audit

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

// Querier is satisfied by *sql.DB and *sql.Tx. Recorders take one so the
// audit row is written in the caller's transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Recorder appends audit entries; the audit trail has no update or delete
// surface. Each Record method fills in the entry's ID and Timestamp.
type Recorder interface {
	RecordOverride(ctx context.Context, q Querier, entry *OverrideEntry) (int64, error)
	RecordRoleChange(ctx context.Context, q Querier, entry *RoleChangeEntry) (int64, error)
	RecordAPIKeyEvent(ctx context.Context, q Querier, entry *APIKeyEntry) (int64, error)
}

// Reader queries audit entries newest first
type Reader interface {
	QueryOverrides(ctx context.Context, filter Filter) (*OverridePage, error)
	QueryRoleChanges(ctx context.Context, filter Filter) (*RoleChangePage, error)
	QueryAPIKeyEvents(ctx context.Context, filter Filter) (*APIKeyPage, error)
}

// Clock issues non-decreasing audit timestamps at microsecond precision
type Clock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewClock creates a clock reading from now; nil means time.Now
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Stamp returns t (or the current time when t is zero) in UTC, raised to the
// last issued timestamp if it would otherwise go backwards
func (c *Clock) Stamp(t time.Time) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t.IsZero() {
		t = c.now()
	}
	t = t.UTC().Truncate(time.Microsecond)
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t
}
