package roles

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/alertdesk/pkg/audit"
	"github.com/platinummonkey/alertdesk/pkg/auth"
	"github.com/platinummonkey/alertdesk/pkg/httputil"
	"github.com/platinummonkey/alertdesk/pkg/rbac"
)

// UpdateRoleRequest is the body of PATCH /user/{id}/role
type UpdateRoleRequest struct {
	Role          string `json:"role"`
	Justification string `json:"justification,omitempty"`
}

// UpdateRoleResponse reports the applied change
type UpdateRoleResponse struct {
	OldRole auth.Role `json:"old_role"`
	NewRole auth.Role `json:"new_role"`
}

// Handlers exposes role management over HTTP
type Handlers struct {
	service *Service
}

// NewHandlers creates role management handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers role routes on an authenticated router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	manage := rbac.RequireCapability(rbac.CapManageRoles)

	router.Handle("/users", manage(http.HandlerFunc(h.listUsers))).Methods(http.MethodGet)
	router.Handle("/user/{id}/role", manage(http.HandlerFunc(h.updateRole))).Methods(http.MethodPatch)
	router.Handle("/audit/roles", manage(http.HandlerFunc(h.listRoleAudit))).Methods(http.MethodGet)
}

// listUsers handles GET /users
func (h *Handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context(), auth.PrincipalFromContext(r.Context()))
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, map[string]interface{}{"users": users})
}

// updateRole handles PATCH /user/{id}/role
func (h *Handlers) updateRole(w http.ResponseWriter, r *http.Request) {
	userID, err := httputil.ParsePathInt64(r, "id")
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	var req UpdateRoleRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	change, err := h.service.UpdateRole(r.Context(), auth.PrincipalFromContext(r.Context()), userID, req.Role, req.Justification)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	_ = httputil.WriteSuccess(w, UpdateRoleResponse{OldRole: change.OldRole, NewRole: change.NewRole})
}

// listRoleAudit handles GET /audit/roles
func (h *Handlers) listRoleAudit(w http.ResponseWriter, r *http.Request) {
	filter, err := audit.ParseFilter(r)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	page, err := h.service.ListRoleAudit(r.Context(), auth.PrincipalFromContext(r.Context()), filter)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, page)
}
