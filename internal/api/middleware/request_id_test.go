package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/macroplan/macroplan/internal/api/middleware"
)

func TestRequestID_GeneratesID(t *testing.T) {
	var fromContext string
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromContext = middleware.GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/me/plans", nil))

	assert.Contains(t, fromContext, "req_")
	assert.Equal(t, fromContext, rec.Header().Get("X-Request-Id"), "header should echo the context ID")
}

func TestRequestID_KeepsCallerID(t *testing.T) {
	var fromContext string
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromContext = middleware.GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/me/plans", nil)
	req.Header.Set("X-Request-Id", "req_from_mobile_client")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "req_from_mobile_client", fromContext)
	assert.Equal(t, "req_from_mobile_client", rec.Header().Get("X-Request-Id"))
}

func TestGetRequestID_EmptyWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/me/plans", nil)
	assert.Empty(t, middleware.GetRequestID(req.Context()))
}

func TestRequestID_Unique(t *testing.T) {
	handler := middleware.RequestID(respond(http.StatusOK))

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/me/plans", nil))

		id := rec.Header().Get("X-Request-Id")
		assert.NotEmpty(t, id)
		assert.False(t, seen[id], "duplicate request ID %s", id)
		seen[id] = true
	}
}
