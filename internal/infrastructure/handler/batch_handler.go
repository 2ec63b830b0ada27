// Package handler exposes the enrichment services over HTTP
package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/damon-houk/ptax-enricher/internal/application/service"
	domain "github.com/damon-houk/ptax-enricher/internal/domain/service"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/export"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/logger"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/middleware"
	"github.com/gorilla/mux"
)

// maxDocumentSize bounds uploaded brokerage documents
const maxDocumentSize = 20 << 20

// BatchHandler handles HTTP requests for enrichment batches
type BatchHandler struct {
	service   *service.BatchService
	extractor domain.DocumentExtractor
	logger    logger.Logger
}

// NewBatchHandler creates a new batch handler. extractor may be nil, in which
// case document uploads are not served.
func NewBatchHandler(service *service.BatchService, extractor domain.DocumentExtractor, log logger.Logger) *BatchHandler {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &BatchHandler{
		service:   service,
		extractor: extractor,
		logger:    log,
	}
}

// SubmitBatch enriches the posted transactions and stores the result
func (h *BatchHandler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req SubmitBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		sendErrorResponse(w, h.logger, "Invalid request body",
			"The request body could not be parsed: "+err.Error(), http.StatusBadRequest, requestID)
		return
	}

	h.submit(w, r, req)
}

// ExtractBatch reads transactions from an uploaded document and enriches them
func (h *BatchHandler) ExtractBatch(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentSize)
	file, header, err := r.FormFile("document")
	if err != nil {
		h.logger.Warn("Missing document", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		sendErrorResponse(w, h.logger, "Missing document",
			"Upload the brokerage document in the 'document' form field", http.StatusBadRequest, requestID)
		return
	}
	defer file.Close()

	document, err := io.ReadAll(file)
	if err != nil {
		sendErrorResponse(w, h.logger, "Unreadable document", err.Error(), http.StatusBadRequest, requestID)
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(document)
	}

	txs, err := h.extractor.Extract(r.Context(), document, mimeType)
	if err != nil {
		h.logger.Error("Extraction failed", map[string]interface{}{
			"request_id": requestID,
			"filename":   header.Filename,
			"error":      err.Error(),
		})
		sendErrorResponse(w, h.logger, "Extraction failed", err.Error(), http.StatusUnprocessableEntity, requestID)
		return
	}

	h.submit(w, r, SubmitBatchRequest{Transactions: txs})
}

func (h *BatchHandler) submit(w http.ResponseWriter, r *http.Request, req SubmitBatchRequest) {
	requestID := middleware.GetRequestID(r.Context())

	h.logger.Info("Handling submit batch request", map[string]interface{}{
		"request_id":   requestID,
		"transactions": len(req.Transactions),
	})

	result, err := h.service.Submit(r.Context(), req.Transactions)
	if err != nil {
		sendServiceError(w, h.logger, err, requestID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Location", "/batches/"+result.ID)
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, h.logger, result, requestID)
}

// GetBatch handles retrieving a stored batch by ID
func (h *BatchHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	id := mux.Vars(r)["id"]

	result, err := h.service.Get(r.Context(), id)
	if err != nil {
		sendServiceError(w, h.logger, err, requestID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.logger, result, requestID)
}

// GetBatchRows writes the batch as a CSV spreadsheet
func (h *BatchHandler) GetBatchRows(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	id := mux.Vars(r)["id"]

	result, err := h.service.Get(r.Context(), id)
	if err != nil {
		sendServiceError(w, h.logger, err, requestID)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".csv"))
	if err := export.WriteCSV(w, export.Rows(result)); err != nil {
		h.logger.Error("Failed to write CSV", map[string]interface{}{
			"request_id": requestID,
			"batch_id":   id,
			"error":      err.Error(),
		})
	}
}

// GetBatchBastter writes the batch in the Bastter import layout
func (h *BatchHandler) GetBatchBastter(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	id := mux.Vars(r)["id"]

	year := 0
	if y := r.URL.Query().Get("year"); y != "" {
		parsed, err := strconv.Atoi(y)
		if err != nil || parsed < 1994 {
			sendErrorResponse(w, h.logger, "Invalid year",
				"The 'year' query parameter must be a four digit year", http.StatusBadRequest, requestID)
			return
		}
		year = parsed
	}

	result, err := h.service.Get(r.Context(), id)
	if err != nil {
		sendServiceError(w, h.logger, err, requestID)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	if err := export.WriteBastterCSV(w, export.BastterRows(result, year)); err != nil {
		h.logger.Error("Failed to write Bastter CSV", map[string]interface{}{
			"request_id": requestID,
			"batch_id":   id,
			"error":      err.Error(),
		})
	}
}

// RegisterRoutes registers the batch handler routes
func (h *BatchHandler) RegisterRoutes(router *mux.Router) {
	routes := []string{
		"POST /batches",
		"GET /batches/{id}",
		"GET /batches/{id}/rows.csv",
		"GET /batches/{id}/bastter.csv",
	}

	router.HandleFunc("/batches", h.SubmitBatch).Methods("POST")
	if h.extractor != nil {
		router.HandleFunc("/batches/extract", h.ExtractBatch).Methods("POST")
		routes = append(routes, "POST /batches/extract")
	}
	router.HandleFunc("/batches/{id}", h.GetBatch).Methods("GET")
	router.HandleFunc("/batches/{id}/rows.csv", h.GetBatchRows).Methods("GET")
	router.HandleFunc("/batches/{id}/bastter.csv", h.GetBatchBastter).Methods("GET")

	h.logger.Info("Batch routes registered", map[string]interface{}{
		"routes": routes,
	})
}
