package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// OutcomeStatus classifies the result of enriching one transaction
type OutcomeStatus string

const (
	StatusEnriched       OutcomeStatus = "ENRICHED"
	StatusManualOverride OutcomeStatus = "MANUAL_OVERRIDE"
	StatusFailed         OutcomeStatus = "FAILED"
)

// EnrichedTransaction is a transaction with its rates and BRL amounts attached
type EnrichedTransaction struct {
	Transaction     Transaction `json:"transaction"`
	TradeRate       RateQuote   `json:"trade_rate"`
	AcquisitionRate *RateQuote  `json:"acquisition_rate,omitempty"`

	GrossUSD    decimal.Decimal `json:"gross_usd"`
	NetUSD      decimal.Decimal `json:"net_usd"`
	LocalAmount decimal.Decimal `json:"local_amount"`

	AcquisitionCostUSD   *decimal.Decimal `json:"acquisition_cost_usd,omitempty"`
	AcquisitionCostLocal *decimal.Decimal `json:"acquisition_cost_local,omitempty"`
}

// ManuallyOverridden reports whether any attached rate was typed in by the operator
func (e *EnrichedTransaction) ManuallyOverridden() bool {
	if e.TradeRate.Source == SourceManual {
		return true
	}
	return e.AcquisitionRate != nil && e.AcquisitionRate.Source == SourceManual
}

// ManualOverrideRequest asks the operator for the rates automatic resolution
// did not produce
type ManualOverrideRequest struct {
	Transaction Transaction
	Resolved    []RateQuote
	Pending     []RateQuery
	Reason      string
}

// Outcome is the result for one input transaction
type Outcome struct {
	Index       int                  `json:"index"`
	Status      OutcomeStatus        `json:"status"`
	Transaction Transaction          `json:"transaction"`
	Enriched    *EnrichedTransaction `json:"enriched,omitempty"`
	Reason      string               `json:"reason,omitempty"`

	// Err is kept for in-process classification and is not persisted
	Err error `json:"-"`
}

// BatchCounts tallies outcomes by status
type BatchCounts struct {
	Enriched           int `json:"enriched"`
	ManuallyOverridden int `json:"manually_overridden"`
	Failed             int `json:"failed"`
}

// Total is the number of outcomes counted
func (c BatchCounts) Total() int {
	return c.Enriched + c.ManuallyOverridden + c.Failed
}

// BatchResult is the ordered set of outcomes of one run
type BatchResult struct {
	ID         string      `json:"id"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Outcomes   []Outcome   `json:"outcomes"`
	Counts     BatchCounts `json:"counts"`
}

// Tally recomputes Counts from Outcomes
func (b *BatchResult) Tally() {
	var counts BatchCounts
	for _, o := range b.Outcomes {
		switch o.Status {
		case StatusEnriched:
			counts.Enriched++
		case StatusManualOverride:
			counts.ManuallyOverridden++
		case StatusFailed:
			counts.Failed++
		}
	}
	b.Counts = counts
}
