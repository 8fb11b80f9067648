package override

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/alertdesk/pkg/auth"
)

func (f *fixture) router() *mux.Router {
	router := mux.NewRouter()
	NewHandlers(f.service).RegisterRoutes(router)
	return router
}

func serve(router http.Handler, principal *auth.Principal, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if principal != nil {
		req = req.WithContext(auth.WithPrincipal(req.Context(), principal))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Override(t *testing.T) {
	f := newFixture(t)
	router := f.router()
	target := "/alert/" + strconv.FormatInt(f.alert.ID, 10) + "/override"

	rec := serve(router, f.analyst, http.MethodPatch, target, `{"risk_score": 85, "justification": "confirmed"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]interface{}{
		"id":                    float64(f.alert.ID),
		"risk_score":            float64(40),
		"overridden_risk_score": float64(85),
	}, body)
}

func TestHandler_OverrideStatusCodes(t *testing.T) {
	f := newFixture(t)
	router := f.router()
	target := "/alert/" + strconv.FormatInt(f.alert.ID, 10) + "/override"

	tests := []struct {
		name      string
		principal *auth.Principal
		target    string
		body      string
		status    int
		field     string
	}{
		{"unauthenticated", nil, target, `{"risk_score": 50}`, http.StatusUnauthorized, ""},
		{"viewer forbidden", f.viewer, target, `{"risk_score": 50}`, http.StatusForbidden, ""},
		{"viewer forbidden before validation", f.viewer, target, `{"risk_score": "abc"}`, http.StatusForbidden, ""},
		{"fractional score", f.analyst, target, `{"risk_score": 50.5}`, http.StatusBadRequest, "risk_score"},
		{"string score", f.analyst, target, `{"risk_score": "50"}`, http.StatusBadRequest, "risk_score"},
		{"out of range", f.analyst, target, `{"risk_score": -3}`, http.StatusBadRequest, "risk_score"},
		{"missing score", f.analyst, target, `{"justification": "x"}`, http.StatusBadRequest, "risk_score"},
		{"malformed body", f.analyst, target, `{`, http.StatusBadRequest, "body"},
		{"bad id", f.analyst, "/alert/abc/override", `{"risk_score": 50}`, http.StatusBadRequest, "id"},
		{"unknown alert", f.analyst, "/alert/424242/override", `{"risk_score": 50}`, http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(router, tt.principal, http.MethodPatch, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.field != "" {
				var body map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tt.field, body["field"])
			}
		})
	}

	assert.Equal(t, int64(0), f.auditCount(t))
}

func TestHandler_ListAlerts(t *testing.T) {
	f := newFixture(t)
	router := f.router()

	rec := serve(router, f.viewer, http.MethodGet, "/alerts?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Alerts []struct {
			ID        int64 `json:"id"`
			RiskScore int   `json:"risk_score"`
		} `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Alerts, 1)
	assert.Equal(t, 40, body.Alerts[0].RiskScore)

	rec = serve(router, f.viewer, http.MethodGet, "/alerts?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
