package audit

import (
	"fmt"
	"time"

	"github.com/platinummonkey/alertdesk/pkg/auth"
)

// Trail names one of the append-only audit tables
type Trail string

const (
	TrailOverrides Trail = "overrides"
	TrailRoles     Trail = "roles"
	TrailAPIKeys   Trail = "api_keys"
)

// OverrideEntry records one accepted risk-score override
type OverrideEntry struct {
	ID            int64     `json:"id"`
	AlertID       int64     `json:"alert_id"`
	UserID        int64     `json:"user_id"`
	OriginalScore int       `json:"original_score"`
	OverrideScore int       `json:"override_score"`
	Justification string    `json:"justification"`
	Timestamp     time.Time `json:"timestamp"`
}

// RoleChangeEntry records one role mutation performed by an admin
type RoleChangeEntry struct {
	ID            int64     `json:"id"`
	AdminID       int64     `json:"admin_id"`
	TargetUserID  int64     `json:"target_user_id"`
	OldRole       auth.Role `json:"old_role"`
	NewRole       auth.Role `json:"new_role"`
	Justification string    `json:"justification"`
	Timestamp     time.Time `json:"timestamp"`
}

// APIKeyEntry records one API key lifecycle event
type APIKeyEntry struct {
	ID        int64          `json:"id"`
	KeyID     int64          `json:"key_id"`
	UserID    int64          `json:"user_id"`
	Action    auth.KeyAction `json:"action"`
	Timestamp time.Time      `json:"timestamp"`
}

const (
	// DefaultLimit is used when a query does not set one
	DefaultLimit = 100
	// MaxLimit caps a single page
	MaxLimit = 1000
)

// Filter selects audit entries. AlertID only applies to the override trail;
// UserID matches the acting user (user_id, admin_id) or, for role changes,
// the target user as well.
type Filter struct {
	AlertID *int64
	UserID  *int64
	Limit   int
	Offset  int
}

// Normalize applies the default page size and validates bounds
func (f Filter) Normalize() (Filter, error) {
	if f.Limit == 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit < 0 || f.Limit > MaxLimit {
		return f, auth.NewValidationError("limit", fmt.Sprintf("limit must be between 1 and %d", MaxLimit))
	}
	if f.Offset < 0 {
		return f, auth.NewValidationError("offset", "offset must not be negative")
	}
	return f, nil
}

// OverridePage is one page of override entries plus the total match count
type OverridePage struct {
	Entries []OverrideEntry `json:"audit_logs"`
	Total   int64           `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// RoleChangePage is one page of role change entries
type RoleChangePage struct {
	Entries []RoleChangeEntry `json:"audit_logs"`
	Total   int64             `json:"total"`
	Limit   int               `json:"limit"`
	Offset  int               `json:"offset"`
}

// APIKeyPage is one page of API key lifecycle entries
type APIKeyPage struct {
	Entries []APIKeyEntry `json:"audit_logs"`
	Total   int64         `json:"total"`
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
}

// ExportFormat represents the format for exporting audit logs
type ExportFormat string

const (
	ExportFormatJSON   ExportFormat = "json"
	ExportFormatCSV    ExportFormat = "csv"
	ExportFormatNDJSON ExportFormat = "ndjson" // Newline-delimited JSON
)

// ParseExportFormat validates a format; empty selects JSON
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case "":
		return ExportFormatJSON, nil
	case ExportFormatJSON, ExportFormatCSV, ExportFormatNDJSON:
		return ExportFormat(s), nil
	}
	return "", auth.NewValidationError("format", fmt.Sprintf("unsupported export format %q", s))
}
