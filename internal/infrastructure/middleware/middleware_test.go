package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/damon-houk/ptax-enricher/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestRequestIDMiddleware(t *testing.T) {
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(GetRequestID(r.Context())))
	}))

	// generated when absent
	req := httptest.NewRequest(http.MethodGet, "/quotes", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	requestID := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, requestID)
	assert.Equal(t, requestID, w.Body.String())

	// kept when sent
	req = httptest.NewRequest(http.MethodGet, "/quotes", nil)
	req.Header.Set(RequestIDHeader, "test-id-123")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "test-id-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "test-id-123", w.Body.String())
}

func TestGetRequestID(t *testing.T) {
	assert.Equal(t, "test-id-123", GetRequestID(WithRequestID(context.Background(), "test-id-123")))
	assert.Equal(t, "unknown", GetRequestID(context.Background()))
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewJSONLogger(&buf, logger.InfoLevel)

	chain := RequestIDMiddleware(LoggingMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(GetRequestID(r.Context())))
	})))

	req := httptest.NewRequest(http.MethodGet, "/batches/1", nil)
	req.Header.Set(RequestIDHeader, "test-id-123")
	w := httptest.NewRecorder()
	chain.ServeHTTP(w, req)

	assert.Equal(t, "test-id-123", w.Body.String())

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Request served", entry["message"])
	assert.Equal(t, "test-id-123", entry["request_id"])
	assert.Equal(t, float64(http.StatusOK), entry["status"])

	buf.Reset()
	chain.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.True(t, strings.Contains(buf.String(), `"level":"WARN"`))
	assert.Contains(t, buf.String(), "Request rejected")
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := rate.NewLimiter(rate.Limit(0.001), 2)
	handler := RateLimitMiddleware(limiter, logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/quotes", nil))
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}
