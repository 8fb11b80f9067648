package roles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/platinummonkey/alertdesk/pkg/audit"
	"github.com/platinummonkey/alertdesk/pkg/auth"
	"github.com/platinummonkey/alertdesk/pkg/observability"
	"github.com/platinummonkey/alertdesk/pkg/rbac"
	"github.com/platinummonkey/alertdesk/pkg/store"
)

// ErrSelfDemotion is returned when an admin tries to change their own role
var ErrSelfDemotion = auth.NewValidationError("role", "self-demotion not permitted")

// Change is the outcome of a role update
type Change struct {
	UserID  int64     `json:"user_id"`
	OldRole auth.Role `json:"old_role"`
	NewRole auth.Role `json:"new_role"`
	AuditID int64     `json:"audit_id"`
}

// Service lists users and changes their roles
type Service struct {
	store    *store.Store
	recorder audit.Recorder
	reader   audit.Reader
	metrics  *observability.Metrics
	now      func() time.Time
}

// NewService creates a role management service. metrics may be nil.
func NewService(s *store.Store, recorder audit.Recorder, reader audit.Reader, metrics *observability.Metrics) *Service {
	return &Service{
		store:    s,
		recorder: recorder,
		reader:   reader,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ListUsers returns every user. Password hashes never leave the store layer
// because auth.User does not serialize them.
func (s *Service) ListUsers(ctx context.Context, principal *auth.Principal) ([]*auth.User, error) {
	if err := rbac.Require(principal, rbac.CapManageRoles); err != nil {
		return nil, err
	}
	return s.store.ListUsers(ctx)
}

// UpdateRole changes the role of targetID. The guards run in a fixed order
// (capability, role value, target exists, self-demotion) and all of them
// run before anything is written.
func (s *Service) UpdateRole(ctx context.Context, principal *auth.Principal, targetID int64, newRole string, justification string) (change *Change, err error) {
	ctx, span := observability.StartSpan(ctx, "roles.UpdateRole", attribute.Int64("user.id", targetID))
	defer func() {
		observability.EndSpan(span, err)
		s.metrics.RecordRoleChange(outcome(err))
	}()

	if err := rbac.Require(principal, rbac.CapManageRoles); err != nil {
		return nil, err
	}

	role, err := auth.ParseRole(newRole)
	if err != nil {
		return nil, err
	}

	now := s.now()
	change = &Change{UserID: targetID, NewRole: role}

	err = s.store.WithTx(ctx, func(tx *sql.Tx) error {
		target, err := s.store.GetUserForUpdate(ctx, tx, targetID)
		if err != nil {
			return err
		}
		if target.ID == principal.UserID && role != principal.Role {
			return ErrSelfDemotion
		}
		change.OldRole = target.Role

		if err := s.store.UpdateUserRole(ctx, tx, targetID, role, now); err != nil {
			return err
		}

		change.AuditID, err = s.recorder.RecordRoleChange(ctx, tx, &audit.RoleChangeEntry{
			AdminID:       principal.UserID,
			TargetUserID:  targetID,
			OldRole:       target.Role,
			NewRole:       role,
			Justification: Justification(principal, target, role, justification),
			Timestamp:     now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAudit(string(audit.TrailRoles))
	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"admin_id":       principal.UserID,
		"target_user_id": targetID,
		"old_role":       change.OldRole,
		"new_role":       change.NewRole,
	}).Info("user role changed")

	return change, nil
}

// ListRoleAudit returns the role change trail
func (s *Service) ListRoleAudit(ctx context.Context, principal *auth.Principal, filter audit.Filter) (*audit.RoleChangePage, error) {
	if err := rbac.Require(principal, rbac.CapManageRoles); err != nil {
		return nil, err
	}
	return s.reader.QueryRoleChanges(ctx, filter)
}

// Justification builds the audit text for a role change. A reason supplied
// by the admin is appended to the generated description.
func Justification(actor *auth.Principal, target *auth.User, newRole auth.Role, reason string) string {
	text := fmt.Sprintf("Role changed from %s to %s by admin %s (id %d) for user %s (id %d)",
		target.Role, newRole, actor.Username, actor.UserID, target.Username, target.ID)
	if reason = strings.TrimSpace(reason); reason != "" {
		text += ": " + reason
	}
	return text
}

func outcome(err error) string {
	if err == nil {
		return "accepted"
	}
	if errors.Is(err, ErrSelfDemotion) {
		return "self_demotion"
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
