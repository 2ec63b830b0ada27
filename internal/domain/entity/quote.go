package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side selects one of the two official daily PTAX quotes
type Side string

const (
	// SideBuyRate is the rate at which the reference buys USD (cotacaoCompra)
	SideBuyRate Side = "BUY_RATE"
	// SideSellRate is the rate at which the reference sells USD (cotacaoVenda)
	SideSellRate Side = "SELL_RATE"
)

// ParseSide accepts BUY_RATE/SELL_RATE, or the short forms BUY/SELL
func ParseSide(s string) (Side, error) {
	switch s {
	case string(SideBuyRate), "BUY", "buy", "buy_rate", "compra":
		return SideBuyRate, nil
	case string(SideSellRate), "SELL", "sell", "sell_rate", "venda":
		return SideSellRate, nil
	}
	return "", &ValidationError{Field: "side", Message: fmt.Sprintf("unknown rate side %q", s)}
}

// QuoteSource records where a rate came from
type QuoteSource string

const (
	// SourcePTAX marks a rate published by the central bank
	SourcePTAX QuoteSource = "PTAX"
	// SourceManual marks a rate typed in by the operator
	SourceManual QuoteSource = "MANUAL"
)

// RateQuery is a single (date, side) lookup
type RateQuery struct {
	Date time.Time
	Side Side
}

func (q RateQuery) String() string {
	return fmt.Sprintf("%s@%s", q.Side, q.Date.Format(DateFormat))
}

// DailyQuote is the pair of rates published for one calendar day
type DailyQuote struct {
	Date        time.Time       `json:"date"`
	BuyRate     decimal.Decimal `json:"buy_rate"`
	SellRate    decimal.Decimal `json:"sell_rate"`
	PublishedAt time.Time       `json:"published_at"`
}

// Rate returns the quote for the given side
func (q DailyQuote) Rate(side Side) decimal.Decimal {
	if side == SideSellRate {
		return q.SellRate
	}
	return q.BuyRate
}

// RateQuote is the rate applied to one required lookup of a transaction
type RateQuote struct {
	RequestedDate time.Time       `json:"requested_date"`
	ResolvedDate  time.Time       `json:"resolved_date"`
	Side          Side            `json:"side"`
	Rate          decimal.Decimal `json:"rate"`
	Source        QuoteSource     `json:"source"`
}

// FellBack reports whether an earlier day's quote was used
func (q RateQuote) FellBack() bool {
	return !q.ResolvedDate.Equal(q.RequestedDate)
}
