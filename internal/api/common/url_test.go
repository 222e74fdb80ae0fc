package common

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAndValidateURLParam(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		paramValue string
		wantValue  string
		wantErrMsg string
	}{
		{name: "plain name", paramValue: "pump_mode", wantValue: "pump_mode"},
		{name: "dotted path", paramValue: "main.temperature", wantValue: "main.temperature"},
		{name: "encoded dot", paramValue: "main%2Etemperature", wantValue: "main.temperature"},
		{name: "empty", paramValue: "", wantErrMsg: "cannot be empty"},
		{name: "whitespace only", paramValue: "%20%20", wantErrMsg: "cannot be empty"},
		{name: "embedded whitespace", paramValue: "main%20temperature", wantErrMsg: "cannot contain whitespace"},
		{name: "bad encoding", paramValue: "main%zz", wantErrMsg: "invalid URL encoding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := GetAndValidateURLParam(requestWithParam("name", tt.paramValue), "name")
			if tt.wantErrMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantValue, got)
		})
	}
}

func TestGetDottedPathParam(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{name: "nested path", value: "modules.ph.current"},
		{name: "single key", value: "present"},
		{name: "sequence index", value: "form.names.0.name"},
		{name: "leading dot", value: ".main", wantErr: true},
		{name: "double dot", value: "main..temperature", wantErr: true},
		{name: "trailing dot", value: "main.", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := GetDottedPathParam(requestWithParam("path", tt.value), "path")
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "empty segment")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.value, got)
		})
	}
}

func TestWriteErrorResponse(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	WriteErrorResponse(rr, "boom", http.StatusBadGateway)

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"boom"}`, rr.Body.String())
}

func requestWithParam(name, value string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(name, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
