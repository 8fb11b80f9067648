package override

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/alertdesk/pkg/audit"
	"github.com/platinummonkey/alertdesk/pkg/auth"
	"github.com/platinummonkey/alertdesk/pkg/httputil"
	"github.com/platinummonkey/alertdesk/pkg/rbac"
)

// Request is the body of PATCH /alert/{id}/override
type Request struct {
	RiskScore     json.RawMessage `json:"risk_score"`
	Justification string          `json:"justification"`
}

// Handlers exposes the override service over HTTP
type Handlers struct {
	service *Service
}

// NewHandlers creates override handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers alert routes on an authenticated router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/alert/{id}/override",
		rbac.RequireCapability(rbac.CapOverrideRiskScore)(http.HandlerFunc(h.override)),
	).Methods(http.MethodPatch)
	router.HandleFunc("/alerts", h.list).Methods(http.MethodGet)
}

// override handles PATCH /alert/{id}/override
func (h *Handlers) override(w http.ResponseWriter, r *http.Request) {
	alertID, err := httputil.ParsePathInt64(r, "id")
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	var req Request
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	result, err := h.service.Override(r.Context(), auth.PrincipalFromContext(r.Context()), alertID, req.RiskScore, req.Justification)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	_ = httputil.WriteSuccess(w, result)
}

// list handles GET /alerts
func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.ParseQueryInt(r, "limit", audit.DefaultLimit)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	alerts, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	_ = httputil.WriteSuccess(w, map[string]interface{}{"alerts": alerts})
}
