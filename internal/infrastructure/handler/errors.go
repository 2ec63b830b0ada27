package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/damon-houk/ptax-enricher/internal/domain/entity"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/logger"
)

// sendErrorResponse sends a standardized error response
func sendErrorResponse(w http.ResponseWriter, log logger.Logger, message, description string, statusCode int, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{
		Error:       message,
		Status:      statusCode,
		Description: description,
		RequestID:   requestID,
	}

	log.Debug("Sending error response", map[string]interface{}{
		"request_id":  requestID,
		"status_code": statusCode,
		"message":     message,
	})

	writeJSON(w, log, resp, requestID)
}

// writeJSON encodes v as the response body. Headers are already sent, so a
// failure can only be logged.
func writeJSON(w http.ResponseWriter, log logger.Logger, v interface{}, requestID string) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("Failed to encode response", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
	}
}

// sendServiceError maps a service error onto a status code and writes it
func sendServiceError(w http.ResponseWriter, log logger.Logger, err error, requestID string) {
	var (
		validation  *entity.ValidationError
		unavailable *entity.RateUnavailableError
		sourceErr   *entity.RateSourceError
	)

	fields := map[string]interface{}{
		"request_id": requestID,
		"error":      err.Error(),
	}

	switch {
	case errors.As(err, &validation):
		log.Warn("Validation failed", fields)
		sendErrorResponse(w, log, "Invalid request", validation.Error(), http.StatusBadRequest, requestID)
	case errors.Is(err, entity.ErrBatchNotFound):
		log.Warn("Batch not found", fields)
		sendErrorResponse(w, log, "Batch not found",
			"The requested batch could not be found", http.StatusNotFound, requestID)
	case errors.As(err, &unavailable):
		log.Warn("No quote available", fields)
		sendErrorResponse(w, log, "No quote available", unavailable.Error(), http.StatusNotFound, requestID)
	case errors.Is(err, entity.ErrSourceUnreachable), errors.As(err, &sourceErr):
		log.Error("Rate service error", fields)
		sendErrorResponse(w, log, "Rate service unavailable",
			"Unable to retrieve PTAX data. Please try again later.", http.StatusServiceUnavailable, requestID)
	default:
		log.Error("Unexpected error", fields)
		sendErrorResponse(w, log, "Internal server error",
			"An unexpected error occurred. Please try again later.", http.StatusInternalServerError, requestID)
	}
}
