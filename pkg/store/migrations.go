package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/alertdesk/pkg/observability"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the schema migrations rendered for dialect d
func Migrations(d Dialect) []Migration {
	r := strings.NewReplacer("{{id}}", d.IDColumn, "{{ts}}", d.Timestamp)
	render := func(m Migration) Migration {
		m.SQL = r.Replace(m.SQL)
		return m
	}

	return []Migration{
		render(Migration{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id {{id}},
					username VARCHAR(255) NOT NULL UNIQUE,
					password_hash TEXT NOT NULL DEFAULT '',
					role VARCHAR(20) NOT NULL CHECK (role IN ('viewer', 'analyst', 'auditor', 'admin')),
					active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at {{ts}} NOT NULL,
					updated_at {{ts}} NOT NULL
				);
			`,
		}),
		render(Migration{
			Version:     2,
			Description: "Create sessions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS sessions (
					id {{id}},
					token_hash CHAR(64) NOT NULL UNIQUE,
					user_id BIGINT NOT NULL REFERENCES users(id),
					created_at {{ts}} NOT NULL,
					expires_at {{ts}} NOT NULL,
					last_activity {{ts}} NOT NULL,
					CHECK (expires_at > created_at)
				);

				CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);
				CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
			`,
		}),
		render(Migration{
			Version:     3,
			Description: "Create api_keys table",
			SQL: `
				CREATE TABLE IF NOT EXISTS api_keys (
					id {{id}},
					user_id BIGINT NOT NULL REFERENCES users(id),
					name VARCHAR(100) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					key_hash CHAR(64) NOT NULL UNIQUE,
					key_preview VARCHAR(32) NOT NULL,
					access_scope VARCHAR(64) NOT NULL,
					rate_limit_tier VARCHAR(20) NOT NULL CHECK (rate_limit_tier IN ('standard', 'elevated', 'unlimited')),
					created_at {{ts}} NOT NULL,
					last_used {{ts}},
					expires_at {{ts}},
					active BOOLEAN NOT NULL DEFAULT TRUE
				);

				CREATE INDEX IF NOT EXISTS idx_api_keys_user_id ON api_keys(user_id);
			`,
		}),
		render(Migration{
			Version:     4,
			Description: "Create alerts table",
			SQL: `
				CREATE TABLE IF NOT EXISTS alerts (
					id {{id}},
					title TEXT NOT NULL,
					risk_score INTEGER NOT NULL CHECK (risk_score BETWEEN 0 AND 100),
					overridden_risk_score INTEGER CHECK (overridden_risk_score IS NULL OR overridden_risk_score BETWEEN 0 AND 100),
					updated_at {{ts}} NOT NULL
				);
			`,
		}),
		render(Migration{
			Version:     5,
			Description: "Create audit tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_log (
					id {{id}},
					alert_id BIGINT NOT NULL REFERENCES alerts(id),
					user_id BIGINT NOT NULL REFERENCES users(id),
					original_score INTEGER NOT NULL,
					override_score INTEGER NOT NULL CHECK (override_score BETWEEN 0 AND 100),
					justification TEXT NOT NULL DEFAULT '',
					recorded_at {{ts}} NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_audit_log_recorded_at ON audit_log(recorded_at DESC, id DESC);
				CREATE INDEX IF NOT EXISTS idx_audit_log_alert_id ON audit_log(alert_id);
				CREATE INDEX IF NOT EXISTS idx_audit_log_user_id ON audit_log(user_id);

				CREATE TABLE IF NOT EXISTS role_audit_log (
					id {{id}},
					admin_id BIGINT NOT NULL REFERENCES users(id),
					target_user_id BIGINT NOT NULL REFERENCES users(id),
					old_role VARCHAR(20) NOT NULL,
					new_role VARCHAR(20) NOT NULL,
					justification TEXT NOT NULL,
					recorded_at {{ts}} NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_role_audit_log_recorded_at ON role_audit_log(recorded_at DESC, id DESC);

				CREATE TABLE IF NOT EXISTS api_key_audit_log (
					id {{id}},
					key_id BIGINT NOT NULL REFERENCES api_keys(id),
					user_id BIGINT NOT NULL REFERENCES users(id),
					action VARCHAR(10) NOT NULL CHECK (action IN ('create', 'rotate', 'revoke')),
					recorded_at {{ts}} NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_api_key_audit_log_recorded_at ON api_key_audit_log(recorded_at DESC, id DESC);
			`,
		}),
	}
}

// Migrate executes all pending migrations and returns how many were applied
func (db *DB) Migrate(ctx context.Context, logger *observability.Logger) (int, error) {
	if logger == nil {
		logger = observability.GetLogger(ctx)
	}

	_, err := db.ExecContext(ctx, strings.ReplaceAll(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at {{ts}} NOT NULL
		)
	`, "{{ts}}", db.Dialect.Timestamp))
	if err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return 0, fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to read migrations: %w", err)
	}

	applied := 0
	for _, migration := range Migrations(db.Dialect) {
		if appliedVersions[migration.Version] {
			continue
		}

		log := logger.WithFields(map[string]interface{}{
			"version":     migration.Version,
			"description": migration.Description,
		})
		log.Info("running migration")

		err := db.WithTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, description, applied_at) VALUES ($1, $2, $3)",
				migration.Version, migration.Description, time.Now().UTC(),
			); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
			}
			return nil
		})
		if err != nil {
			return applied, err
		}

		applied++
		log.Info("migration completed")
	}

	return applied, nil
}
