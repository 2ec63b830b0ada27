package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/damon-houk/ptax-enricher/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
)

func TestWriteJSON(t *testing.T) {
	t.Run("Encodes the body", func(t *testing.T) {
		var logs bytes.Buffer
		rec := httptest.NewRecorder()

		writeJSON(rec, logger.NewJSONLogger(&logs, logger.DebugLevel), map[string]string{"id": "b1"}, "req-1")

		assert.JSONEq(t, `{"id":"b1"}`, rec.Body.String())
		assert.Empty(t, logs.String())
	})

	t.Run("Logs encode failures", func(t *testing.T) {
		var logs bytes.Buffer
		rec := httptest.NewRecorder()

		writeJSON(rec, logger.NewJSONLogger(&logs, logger.DebugLevel), map[string]interface{}{"c": make(chan int)}, "req-2")

		assert.Contains(t, logs.String(), "Failed to encode response")
		assert.Contains(t, logs.String(), "req-2")
	})

	t.Run("Error responses", func(t *testing.T) {
		rec := httptest.NewRecorder()

		sendErrorResponse(rec, logger.Nop(), "Batch not found", "missing", http.StatusNotFound, "req-3")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error":"Batch not found","status":404,"description":"missing","request_id":"req-3"}`, rec.Body.String())
	})
}
