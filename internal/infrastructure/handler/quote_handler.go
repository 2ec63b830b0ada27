package handler

import (
	"net/http"

	"github.com/damon-houk/ptax-enricher/internal/application/service"
	"github.com/damon-houk/ptax-enricher/internal/domain/entity"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/logger"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/middleware"
	"github.com/gorilla/mux"
)

// QuoteHandler handles HTTP requests for PTAX quotes
type QuoteHandler struct {
	service *service.QuoteService
	logger  logger.Logger
}

// NewQuoteHandler creates a new quote handler
func NewQuoteHandler(service *service.QuoteService, log logger.Logger) *QuoteHandler {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &QuoteHandler{
		service: service,
		logger:  log,
	}
}

// GetQuote resolves the rate for one date, falling back to earlier days
func (h *QuoteHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	raw := mux.Vars(r)["date"]

	date, err := entity.ParseDay(raw)
	if err != nil {
		h.logger.Warn("Invalid date format", map[string]interface{}{
			"request_id": requestID,
			"date":       raw,
		})
		sendErrorResponse(w, h.logger, "Invalid date format",
			"Date must be in YYYY-MM-DD format", http.StatusBadRequest, requestID)
		return
	}

	side := entity.SideSellRate
	if s := r.URL.Query().Get("side"); s != "" {
		side, err = entity.ParseSide(s)
		if err != nil {
			sendServiceError(w, h.logger, err, requestID)
			return
		}
	}

	quote, err := h.service.Quote(r.Context(), date, side)
	if err != nil {
		sendServiceError(w, h.logger, err, requestID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.logger, toQuoteResponse(quote), requestID)
}

// ListQuotes returns every quote published between start and end
func (h *QuoteHandler) ListQuotes(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	query := r.URL.Query()

	start, err := entity.ParseDay(query.Get("start"))
	if err != nil {
		sendErrorResponse(w, h.logger, "Invalid start date",
			"The 'start' query parameter must be in YYYY-MM-DD format", http.StatusBadRequest, requestID)
		return
	}
	end, err := entity.ParseDay(query.Get("end"))
	if err != nil {
		sendErrorResponse(w, h.logger, "Invalid end date",
			"The 'end' query parameter must be in YYYY-MM-DD format", http.StatusBadRequest, requestID)
		return
	}

	quotes, err := h.service.Period(r.Context(), start, end)
	if err != nil {
		sendServiceError(w, h.logger, err, requestID)
		return
	}

	resp := PeriodResponse{
		Start:  start.Format(entity.DateFormat),
		End:    end.Format(entity.DateFormat),
		Quotes: make([]DailyQuoteResponse, 0, len(quotes)),
	}
	for _, q := range quotes {
		resp.Quotes = append(resp.Quotes, DailyQuoteResponse{
			Date:     q.Date.Format(entity.DateFormat),
			BuyRate:  q.BuyRate,
			SellRate: q.SellRate,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.logger, resp, requestID)
}

// RegisterRoutes registers the quote handler routes
func (h *QuoteHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/quotes", h.ListQuotes).Methods("GET")
	router.HandleFunc("/quotes/{date}", h.GetQuote).Methods("GET")

	h.logger.Info("Quote routes registered", map[string]interface{}{
		"routes": []string{
			"GET /quotes",
			"GET /quotes/{date}",
		},
	})
}
