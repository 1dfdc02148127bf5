package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteSuccess(w, map[string]string{"role": "admin"})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"role":"admin"}`, w.Body.String())
}

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name    string
		write   func(w http.ResponseWriter)
		code    int
		message string
	}{
		{"error", func(w http.ResponseWriter) { WriteError(w, http.StatusBadGateway, errors.New("upstream")) }, http.StatusBadGateway, "upstream"},
		{"validation", func(w http.ResponseWriter) { WriteValidationError(w, "code is required") }, http.StatusBadRequest, "code is required"},
		{"bad request", func(w http.ResponseWriter) { WriteBadRequest(w, "invalid JSON") }, http.StatusBadRequest, "invalid JSON"},
		{"not found", func(w http.ResponseWriter) { WriteNotFoundError(w, "membership not found") }, http.StatusNotFound, "membership not found"},
		{"internal", func(w http.ResponseWriter) { WriteInternalError(w, errors.New("db down")) }, http.StatusInternalServerError, "db down"},
		{"unauthorized", func(w http.ResponseWriter) { WriteUnauthorized(w, "invalid sso token") }, http.StatusUnauthorized, "invalid sso token"},
		{"forbidden", func(w http.ResponseWriter) { WriteForbidden(w, "SSO role mapping denied access") }, http.StatusForbidden, "SSO role mapping denied access"},
		{"too many requests", func(w http.ResponseWriter) { WriteTooManyRequests(w, "slow down") }, http.StatusTooManyRequests, "slow down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var body map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.message, body["error"])
		})
	}
}

func TestWriteNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	WriteNoContent(w)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}
