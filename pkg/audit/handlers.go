package audit

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/alertdesk/pkg/httputil"
	"github.com/platinummonkey/alertdesk/pkg/observability"
	"github.com/platinummonkey/alertdesk/pkg/rbac"
)

// Handlers provides HTTP handlers for audit log API
type Handlers struct {
	reader Reader
}

// NewHandlers creates new audit handlers
func NewHandlers(reader Reader) *Handlers {
	return &Handlers{
		reader: reader,
	}
}

// RegisterRoutes registers audit log routes on an authenticated router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	view := rbac.RequireCapability(rbac.CapViewAuditTrail)

	router.Handle("/audit", view(http.HandlerFunc(h.listOverrides))).Methods(http.MethodGet)
	router.Handle("/audit/api-keys", view(http.HandlerFunc(h.listAPIKeyEvents))).Methods(http.MethodGet)
	router.Handle("/audit/export", view(http.HandlerFunc(h.exportOverrides))).Methods(http.MethodGet)
}

// listOverrides handles GET /audit
func (h *Handlers) listOverrides(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseFilter(r)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	page, err := h.reader.QueryOverrides(r.Context(), filter)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	_ = httputil.WriteSuccess(w, page)
}

// listAPIKeyEvents handles GET /audit/api-keys
func (h *Handlers) listAPIKeyEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseFilter(r)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	page, err := h.reader.QueryAPIKeyEvents(r.Context(), filter)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	_ = httputil.WriteSuccess(w, page)
}

// exportOverrides handles GET /audit/export
func (h *Handlers) exportOverrides(w http.ResponseWriter, r *http.Request) {
	format, err := ParseExportFormat(httputil.ParseQueryString(r, "format", string(ExportFormatJSON)))
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	filter, err := ParseFilter(r)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	entries, err := CollectOverrides(r.Context(), h.reader, filter)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	contentType, ext := format.ContentType()
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=audit-%s.%s", time.Now().UTC().Format("20060102T150405Z"), ext))
	w.WriteHeader(http.StatusOK)

	if err := Export(w, entries, format); err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("audit export aborted")
	}
}

// ParseFilter reads alert_id, user_id, limit, and offset query parameters
func ParseFilter(r *http.Request) (Filter, error) {
	var filter Filter
	var err error

	if filter.AlertID, err = httputil.ParseQueryInt64(r, "alert_id"); err != nil {
		return filter, err
	}
	if filter.UserID, err = httputil.ParseQueryInt64(r, "user_id"); err != nil {
		return filter, err
	}
	if filter.Limit, err = httputil.ParseQueryInt(r, "limit", DefaultLimit); err != nil {
		return filter, err
	}
	if filter.Offset, err = httputil.ParseQueryInt(r, "offset", 0); err != nil {
		return filter, err
	}

	return filter.Normalize()
}
