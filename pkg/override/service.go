package override

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/platinummonkey/alertdesk/pkg/audit"
	"github.com/platinummonkey/alertdesk/pkg/auth"
	"github.com/platinummonkey/alertdesk/pkg/observability"
	"github.com/platinummonkey/alertdesk/pkg/rbac"
	"github.com/platinummonkey/alertdesk/pkg/store"
)

const (
	MinScore = 0
	MaxScore = 100
	// MaxJustificationLength bounds the free-text justification
	MaxJustificationLength = 4000
)

// Result is the alert view returned after an override
type Result struct {
	ID                  int64 `json:"id"`
	RiskScore           int   `json:"risk_score"`
	OverriddenRiskScore int   `json:"overridden_risk_score"`
}

// Service applies risk score overrides. The alert update and its audit row
// commit in one transaction.
type Service struct {
	store    *store.Store
	recorder audit.Recorder
	metrics  *observability.Metrics
	now      func() time.Time
}

// NewService creates an override service. metrics may be nil.
func NewService(s *store.Store, recorder audit.Recorder, metrics *observability.Metrics) *Service {
	return &Service{
		store:    s,
		recorder: recorder,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ParseScore validates a raw JSON risk score. Only integral JSON numbers in
// [0, 100] are accepted; 42.0 counts as integral, 42.5 and "42" do not.
func ParseScore(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, auth.NewValidationError("risk_score", "risk_score is required")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return 0, auth.NewValidationError("risk_score", "risk_score must be an integer")
	}
	num, ok := v.(json.Number)
	if !ok {
		return 0, auth.NewValidationError("risk_score", "risk_score must be an integer")
	}

	outOfRange := auth.NewValidationError("risk_score", fmt.Sprintf("risk_score must be between %d and %d", MinScore, MaxScore))

	// Float64 reports overflow as ±Inf with strconv.ErrRange
	f, err := num.Float64()
	if math.IsInf(f, 0) {
		return 0, outOfRange
	}
	if err != nil || f != math.Trunc(f) {
		return 0, auth.NewValidationError("risk_score", "risk_score must be an integer")
	}
	if f < MinScore || f > MaxScore {
		return 0, outOfRange
	}
	return int(f), nil
}

// Override sets the overridden risk score of alertID. Authorization is
// checked before the score is validated, and nothing is written unless both
// pass.
func (s *Service) Override(ctx context.Context, principal *auth.Principal, alertID int64, rawScore json.RawMessage, justification string) (result *Result, err error) {
	ctx, span := observability.StartSpan(ctx, "override.Override", attribute.Int64("alert.id", alertID))
	defer func() {
		observability.EndSpan(span, err)
		s.metrics.RecordOverride(outcome(err))
	}()

	if err := rbac.Require(principal, rbac.CapOverrideRiskScore); err != nil {
		return nil, err
	}

	score, err := ParseScore(rawScore)
	if err != nil {
		return nil, err
	}
	justification = strings.TrimSpace(justification)
	if len(justification) > MaxJustificationLength {
		return nil, auth.NewValidationError("justification",
			fmt.Sprintf("justification must be at most %d characters", MaxJustificationLength))
	}

	now := s.now()
	var entry *audit.OverrideEntry
	var alert *store.Alert

	err = s.store.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		alert, err = s.store.GetAlertForUpdate(ctx, tx, alertID)
		if err != nil {
			return err
		}

		if err := s.store.SetAlertOverride(ctx, tx, alertID, score, now); err != nil {
			return err
		}

		entry = &audit.OverrideEntry{
			AlertID:       alertID,
			UserID:        principal.UserID,
			OriginalScore: alert.EffectiveScore(),
			OverrideScore: score,
			Justification: justification,
			Timestamp:     now,
		}
		_, err = s.recorder.RecordOverride(ctx, tx, entry)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAudit(string(audit.TrailOverrides))
	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"alert_id":       alertID,
		"user_id":        principal.UserID,
		"original_score": entry.OriginalScore,
		"override_score": score,
		"audit_id":       entry.ID,
	}).Info("risk score overridden")

	return &Result{ID: alert.ID, RiskScore: alert.RiskScore, OverriddenRiskScore: score}, nil
}

// List returns alerts ordered by effective score
func (s *Service) List(ctx context.Context, limit, offset int) ([]*store.Alert, error) {
	if limit <= 0 || limit > audit.MaxLimit {
		return nil, auth.NewValidationError("limit", fmt.Sprintf("limit must be between 1 and %d", audit.MaxLimit))
	}
	if offset < 0 {
		return nil, auth.NewValidationError("offset", "offset must not be negative")
	}
	return s.store.ListAlerts(ctx, limit, offset)
}

func outcome(err error) string {
	if err == nil {
		return "accepted"
	}
	if _, ok := auth.AsValidationError(err); ok {
		return "invalid"
	}
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, auth.ErrForbidden):
		return "forbidden"
	case errors.Is(err, auth.ErrNotFound):
		return "not_found"
	}
	return "error"
}
