package handler

import (
	"github.com/damon-houk/ptax-enricher/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// SubmitBatchRequest represents the request body for enriching a batch
type SubmitBatchRequest struct {
	Transactions []entity.Transaction `json:"transactions"`
}

// QuoteResponse represents the response for a single resolved quote
type QuoteResponse struct {
	RequestedDate string          `json:"requested_date"`
	ResolvedDate  string          `json:"resolved_date"`
	Side          entity.Side     `json:"side"`
	Rate          decimal.Decimal `json:"rate"`
	Source        string          `json:"source"`
	FellBack      bool            `json:"fell_back"`
}

// DailyQuoteResponse is one day of a period listing
type DailyQuoteResponse struct {
	Date     string          `json:"date"`
	BuyRate  decimal.Decimal `json:"buy_rate"`
	SellRate decimal.Decimal `json:"sell_rate"`
}

// PeriodResponse represents the response for the period endpoint
type PeriodResponse struct {
	Start  string               `json:"start"`
	End    string               `json:"end"`
	Quotes []DailyQuoteResponse `json:"quotes"`
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error       string `json:"error"`
	Status      int    `json:"status"`
	Description string `json:"description,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
}

func toQuoteResponse(q *entity.RateQuote) QuoteResponse {
	return QuoteResponse{
		RequestedDate: q.RequestedDate.Format(entity.DateFormat),
		ResolvedDate:  q.ResolvedDate.Format(entity.DateFormat),
		Side:          q.Side,
		Rate:          q.Rate,
		Source:        string(q.Source),
		FellBack:      q.FellBack(),
	}
}
