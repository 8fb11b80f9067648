package httputil

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/alertdesk/pkg/auth"
)

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		expectError bool
	}{
		{
			name:        "valid JSON",
			body:        `{"name": "test"}`,
			expectError: false,
		},
		{
			name:        "invalid JSON",
			body:        `{invalid}`,
			expectError: true,
		},
		{
			name:        "empty body",
			body:        ``,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/test", bytes.NewBufferString(tt.body))
			var dest map[string]string

			err := ParseJSON(req, &dest)

			if tt.expectError {
				_, ok := auth.AsValidationError(err)
				assert.True(t, ok)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, "test", dest["name"])
			}
		})
	}
}

func TestParsePathInt64(t *testing.T) {
	tests := []struct {
		name        string
		pathValue   string
		expectValue int64
		expectError bool
	}{
		{
			name:        "valid int64",
			pathValue:   "9223372036854775807",
			expectValue: 9223372036854775807,
		},
		{
			name:        "invalid integer",
			pathValue:   "abc",
			expectError: true,
		},
		{
			name:        "zero",
			pathValue:   "0",
			expectError: true,
		},
		{
			name:        "empty value",
			pathValue:   "",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test/"+tt.pathValue, nil)
			req = mux.SetURLVars(req, map[string]string{"id": tt.pathValue})

			val, err := ParsePathInt64(req, "id")

			if tt.expectError {
				ve, ok := auth.AsValidationError(err)
				require.True(t, ok)
				assert.Equal(t, "id", ve.Field)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectValue, val)
			}
		})
	}
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest("GET", "/test?limit=25&bad=x", nil)

	val, err := ParseQueryInt(req, "limit", 100)
	assert.NoError(t, err)
	assert.Equal(t, 25, val)

	val, err = ParseQueryInt(req, "offset", 7)
	assert.NoError(t, err)
	assert.Equal(t, 7, val)

	_, err = ParseQueryInt(req, "bad", 0)
	assert.Error(t, err)
}

func TestParseQueryInt64(t *testing.T) {
	req := httptest.NewRequest("GET", "/test?alert_id=42&user_id=nope", nil)

	val, err := ParseQueryInt64(req, "alert_id")
	require.NoError(t, err)
	require.NotNil(t, val)
	assert.Equal(t, int64(42), *val)

	val, err = ParseQueryInt64(req, "missing")
	assert.NoError(t, err)
	assert.Nil(t, val)

	_, err = ParseQueryInt64(req, "user_id")
	assert.Error(t, err)
}

func TestParseQueryString(t *testing.T) {
	req := httptest.NewRequest("GET", "/test?format=csv", nil)

	assert.Equal(t, "csv", ParseQueryString(req, "format", "json"))
	assert.Equal(t, "json", ParseQueryString(req, "other", "json"))
}
