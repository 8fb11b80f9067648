package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Alert is the slice of an alert the dashboard core touches. RiskScore is
// never modified by an override; OverriddenRiskScore holds the latest one.
type Alert struct {
	ID                  int64     `json:"id"`
	Title               string    `json:"title"`
	RiskScore           int       `json:"risk_score"`
	OverriddenRiskScore *int      `json:"overridden_risk_score"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// EffectiveScore is the overridden score when present, else the original
func (a *Alert) EffectiveScore() int {
	if a.OverriddenRiskScore != nil {
		return *a.OverriddenRiskScore
	}
	return a.RiskScore
}

const alertColumns = "id, title, risk_score, overridden_risk_score, updated_at"

func scanAlert(row rowScanner) (*Alert, error) {
	var (
		a          Alert
		overridden sql.NullInt64
	)
	if err := row.Scan(&a.ID, &a.Title, &a.RiskScore, &overridden, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if overridden.Valid {
		v := int(overridden.Int64)
		a.OverriddenRiskScore = &v
	}
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

// CreateAlert inserts an alert and returns its ID
func (s *Store) CreateAlert(ctx context.Context, alert *Alert) (int64, error) {
	if alert.UpdatedAt.IsZero() {
		alert.UpdatedAt = time.Now().UTC()
	}
	var overridden sql.NullInt64
	if alert.OverriddenRiskScore != nil {
		overridden = sql.NullInt64{Int64: int64(*alert.OverriddenRiskScore), Valid: true}
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO alerts (title, risk_score, overridden_risk_score, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, alert.Title, alert.RiskScore, overridden, alert.UpdatedAt).Scan(&alert.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to create alert: %w", err)
	}
	return alert.ID, nil
}

// GetAlert retrieves an alert by ID
func (s *Store) GetAlert(ctx context.Context, id int64) (*Alert, error) {
	a, err := scanAlert(s.db.QueryRowContext(ctx, "SELECT "+alertColumns+" FROM alerts WHERE id = $1", id))
	if err != nil {
		return nil, notFound(err, "alert", id)
	}
	return a, nil
}

// GetAlertForUpdate loads an alert inside q's transaction and locks the row,
// so concurrent overrides of one alert serialize
func (s *Store) GetAlertForUpdate(ctx context.Context, q Querier, id int64) (*Alert, error) {
	a, err := scanAlert(q.QueryRowContext(ctx,
		"SELECT "+alertColumns+" FROM alerts WHERE id = $1"+s.db.Dialect.ForUpdate, id))
	if err != nil {
		return nil, notFound(err, "alert", id)
	}
	return a, nil
}

// SetAlertOverride stores score as the overridden risk score
func (s *Store) SetAlertOverride(ctx context.Context, q Querier, id int64, score int, at time.Time) error {
	res, err := q.ExecContext(ctx,
		"UPDATE alerts SET overridden_risk_score = $1, updated_at = $2 WHERE id = $3", score, at, id)
	if err != nil {
		return fmt.Errorf("failed to set override: %w", err)
	}
	return requireOneRow(res, "alert", id)
}

// ListAlerts returns alerts by effective score, highest first, ties by ID
func (s *Store) ListAlerts(ctx context.Context, limit, offset int) ([]*Alert, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+alertColumns+` FROM alerts
		ORDER BY COALESCE(overridden_risk_score, risk_score) DESC, id ASC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	alerts := []*Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
