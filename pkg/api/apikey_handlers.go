package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/alertdesk/pkg/audit"
	"github.com/platinummonkey/alertdesk/pkg/auth"
	"github.com/platinummonkey/alertdesk/pkg/httputil"
	"github.com/platinummonkey/alertdesk/pkg/observability"
	"github.com/platinummonkey/alertdesk/pkg/rbac"
)

// CreateAPIKeyRequest is the body of POST /user/api-keys
type CreateAPIKeyRequest struct {
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	AccessScope   []string   `json:"access_scope"`
	RateLimitTier string     `json:"rate_limit_tier"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// CreateAPIKeyResponse returns the plaintext key. It is shown exactly once.
type CreateAPIKeyResponse struct {
	APIKey     string `json:"api_key"`
	KeyID      int64  `json:"key_id"`
	KeyPreview string `json:"key_preview"`
}

// RotateAPIKeyResponse returns the replacement secret
type RotateAPIKeyResponse struct {
	APIKey     string `json:"api_key"`
	KeyPreview string `json:"key_preview"`
}

// ListAPIKeysResponse lists key metadata without secrets
type ListAPIKeysResponse struct {
	APIKeys []*auth.APIKey `json:"api_keys"`
}

// APIKeyHandlers manages the caller's own API keys
type APIKeyHandlers struct {
	keys    *auth.APIKeyManager
	metrics *observability.Metrics
}

// NewAPIKeyHandlers creates API key handlers
func NewAPIKeyHandlers(keys *auth.APIKeyManager, metrics *observability.Metrics) *APIKeyHandlers {
	return &APIKeyHandlers{
		keys:    keys,
		metrics: metrics,
	}
}

// RegisterRoutes registers API key routes on an authenticated router
func (h *APIKeyHandlers) RegisterRoutes(router *mux.Router) {
	own := rbac.RequireCapability(rbac.CapManageOwnAPIKeys)

	router.Handle("/user/api-keys", own(http.HandlerFunc(h.create))).Methods(http.MethodPost)
	router.Handle("/user/api-keys", own(http.HandlerFunc(h.list))).Methods(http.MethodGet)
	router.Handle("/user/api-keys/{id}/rotate", own(http.HandlerFunc(h.rotate))).Methods(http.MethodPost)
	router.Handle("/user/api-keys/{id}", own(http.HandlerFunc(h.revoke))).Methods(http.MethodDelete)
}

// create handles POST /user/api-keys
func (h *APIKeyHandlers) create(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	var req CreateAPIKeyRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	created, err := h.keys.Create(r.Context(), principal.UserID, auth.CreateAPIKeyRequest{
		Name:          req.Name,
		Description:   req.Description,
		Scopes:        req.AccessScope,
		RateLimitTier: req.RateLimitTier,
		ExpiresAt:     req.ExpiresAt,
	})
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	h.recordEvent(r, auth.KeyActionCreate, created.Key.ID)

	_ = httputil.WriteCreated(w, CreateAPIKeyResponse{
		APIKey:     created.Secret,
		KeyID:      created.Key.ID,
		KeyPreview: created.Preview,
	})
}

// list handles GET /user/api-keys
func (h *APIKeyHandlers) list(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	keys, err := h.keys.List(r.Context(), principal.UserID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	if keys == nil {
		keys = []*auth.APIKey{}
	}

	_ = httputil.WriteSuccess(w, ListAPIKeysResponse{APIKeys: keys})
}

// rotate handles POST /user/api-keys/{id}/rotate
func (h *APIKeyHandlers) rotate(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	keyID, err := httputil.ParsePathInt64(r, "id")
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	secret, preview, err := h.keys.Rotate(r.Context(), keyID, principal.UserID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	h.recordEvent(r, auth.KeyActionRotate, keyID)

	_ = httputil.WriteSuccess(w, RotateAPIKeyResponse{
		APIKey:     secret,
		KeyPreview: preview,
	})
}

// revoke handles DELETE /user/api-keys/{id}
func (h *APIKeyHandlers) revoke(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	keyID, err := httputil.ParsePathInt64(r, "id")
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	if err := h.keys.Revoke(r.Context(), keyID, principal.UserID); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	h.recordEvent(r, auth.KeyActionRevoke, keyID)

	_ = httputil.WriteSuccess(w, map[string]interface{}{
		"status": "revoked",
		"key_id": keyID,
	})
}

func (h *APIKeyHandlers) recordEvent(r *http.Request, action auth.KeyAction, keyID int64) {
	h.metrics.RecordAPIKeyEvent(string(action))
	h.metrics.RecordAudit(string(audit.TrailAPIKeys))

	observability.FromContext(r.Context()).
		WithFields(map[string]interface{}{
			"api_key_id": keyID,
			"action":     string(action),
		}).
		Info("api key lifecycle event")
}
