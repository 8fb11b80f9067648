package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// DBLogger implements Recorder and Reader on the SQL audit tables
type DBLogger struct {
	db    Querier
	clock *Clock
}

// NewDBLogger creates a database-backed audit logger. db is used for reads;
// writes go through the Querier handed to each Record call.
func NewDBLogger(db Querier, clock *Clock) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if clock == nil {
		clock = NewClock(nil)
	}
	return &DBLogger{db: db, clock: clock}, nil
}

// RecordOverride appends an override entry
func (l *DBLogger) RecordOverride(ctx context.Context, q Querier, entry *OverrideEntry) (int64, error) {
	entry.Timestamp = l.clock.Stamp(entry.Timestamp)

	err := q.QueryRowContext(ctx, `
		INSERT INTO audit_log (alert_id, user_id, original_score, override_score, justification, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, entry.AlertID, entry.UserID, entry.OriginalScore, entry.OverrideScore, entry.Justification, entry.Timestamp,
	).Scan(&entry.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert override audit entry: %w", err)
	}
	return entry.ID, nil
}

// RecordRoleChange appends a role change entry
func (l *DBLogger) RecordRoleChange(ctx context.Context, q Querier, entry *RoleChangeEntry) (int64, error) {
	entry.Timestamp = l.clock.Stamp(entry.Timestamp)

	err := q.QueryRowContext(ctx, `
		INSERT INTO role_audit_log (admin_id, target_user_id, old_role, new_role, justification, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, entry.AdminID, entry.TargetUserID, string(entry.OldRole), string(entry.NewRole), entry.Justification, entry.Timestamp,
	).Scan(&entry.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert role audit entry: %w", err)
	}
	return entry.ID, nil
}

// RecordAPIKeyEvent appends an API key lifecycle entry
func (l *DBLogger) RecordAPIKeyEvent(ctx context.Context, q Querier, entry *APIKeyEntry) (int64, error) {
	entry.Timestamp = l.clock.Stamp(entry.Timestamp)

	err := q.QueryRowContext(ctx, `
		INSERT INTO api_key_audit_log (key_id, user_id, action, recorded_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, entry.KeyID, entry.UserID, string(entry.Action), entry.Timestamp,
	).Scan(&entry.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert api key audit entry: %w", err)
	}
	return entry.ID, nil
}

// whereBuilder accumulates filter clauses with sequential placeholders
type whereBuilder struct {
	clauses []string
	args    []interface{}
}

func (b *whereBuilder) add(clause string, arg interface{}) {
	b.args = append(b.args, arg)
	b.clauses = append(b.clauses, strings.ReplaceAll(clause, "?", fmt.Sprintf("$%d", len(b.args))))
}

func (b *whereBuilder) String() string {
	if len(b.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.clauses, " AND ")
}

// page runs the count and page queries for table and hands each row to scan
func (l *DBLogger) page(ctx context.Context, table, columns string, where *whereBuilder, f Filter, scan func(*sql.Rows) error) (int64, error) {
	var total int64
	if err := l.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s%s", table, where.String()), where.args...,
	).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}

	n := len(where.args)
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY recorded_at DESC, id DESC LIMIT $%d OFFSET $%d",
		columns, table, where.String(), n+1, n+2)
	args := append(append([]interface{}{}, where.args...), f.Limit, f.Offset)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return 0, fmt.Errorf("failed to scan %s: %w", table, err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating %s: %w", table, err)
	}
	return total, nil
}

// QueryOverrides returns override entries, newest first
func (l *DBLogger) QueryOverrides(ctx context.Context, filter Filter) (*OverridePage, error) {
	f, err := filter.Normalize()
	if err != nil {
		return nil, err
	}

	where := &whereBuilder{}
	if f.AlertID != nil {
		where.add("alert_id = ?", *f.AlertID)
	}
	if f.UserID != nil {
		where.add("user_id = ?", *f.UserID)
	}

	result := &OverridePage{Entries: []OverrideEntry{}, Limit: f.Limit, Offset: f.Offset}
	result.Total, err = l.page(ctx, "audit_log",
		"id, alert_id, user_id, original_score, override_score, justification, recorded_at",
		where, f, func(rows *sql.Rows) error {
			var e OverrideEntry
			if err := rows.Scan(&e.ID, &e.AlertID, &e.UserID, &e.OriginalScore, &e.OverrideScore, &e.Justification, &e.Timestamp); err != nil {
				return err
			}
			e.Timestamp = e.Timestamp.UTC()
			result.Entries = append(result.Entries, e)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// QueryRoleChanges returns role change entries, newest first
func (l *DBLogger) QueryRoleChanges(ctx context.Context, filter Filter) (*RoleChangePage, error) {
	f, err := filter.Normalize()
	if err != nil {
		return nil, err
	}

	where := &whereBuilder{}
	if f.UserID != nil {
		where.add("(admin_id = ? OR target_user_id = ?)", *f.UserID)
	}

	result := &RoleChangePage{Entries: []RoleChangeEntry{}, Limit: f.Limit, Offset: f.Offset}
	result.Total, err = l.page(ctx, "role_audit_log",
		"id, admin_id, target_user_id, old_role, new_role, justification, recorded_at",
		where, f, func(rows *sql.Rows) error {
			var e RoleChangeEntry
			if err := rows.Scan(&e.ID, &e.AdminID, &e.TargetUserID, &e.OldRole, &e.NewRole, &e.Justification, &e.Timestamp); err != nil {
				return err
			}
			e.Timestamp = e.Timestamp.UTC()
			result.Entries = append(result.Entries, e)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// QueryAPIKeyEvents returns API key lifecycle entries, newest first
func (l *DBLogger) QueryAPIKeyEvents(ctx context.Context, filter Filter) (*APIKeyPage, error) {
	f, err := filter.Normalize()
	if err != nil {
		return nil, err
	}

	where := &whereBuilder{}
	if f.UserID != nil {
		where.add("user_id = ?", *f.UserID)
	}

	result := &APIKeyPage{Entries: []APIKeyEntry{}, Limit: f.Limit, Offset: f.Offset}
	result.Total, err = l.page(ctx, "api_key_audit_log",
		"id, key_id, user_id, action, recorded_at",
		where, f, func(rows *sql.Rows) error {
			var e APIKeyEntry
			if err := rows.Scan(&e.ID, &e.KeyID, &e.UserID, &e.Action, &e.Timestamp); err != nil {
				return err
			}
			e.Timestamp = e.Timestamp.UTC()
			result.Entries = append(result.Entries, e)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return result, nil
}
