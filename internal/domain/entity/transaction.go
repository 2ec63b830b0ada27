package entity

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateFormat is the calendar date layout used in JSON payloads and logs
const DateFormat = "2006-01-02"

// Direction is the side of the brokerage trade
type Direction string

const (
	// DirectionBuy is a purchase paid in USD
	DirectionBuy Direction = "BUY"
	// DirectionSell is a sale with proceeds received in USD
	DirectionSell Direction = "SELL"
)

// ParseDirection accepts BUY/SELL in any case
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToUpper(strings.TrimSpace(s))) {
	case DirectionBuy:
		return DirectionBuy, nil
	case DirectionSell:
		return DirectionSell, nil
	}
	return "", &ValidationError{Field: "direction", Message: fmt.Sprintf("unknown direction %q", s)}
}

// RateSide returns the PTAX side that applies to a trade in this direction.
// Proceeds of a sale are converted at the buy rate, payments for a purchase
// at the sell rate.
func (d Direction) RateSide() Side {
	if d == DirectionSell {
		return SideBuyRate
	}
	return SideSellRate
}

// Transaction represents a brokerage trade confirmation
type Transaction struct {
	ID              string
	Ticker          string
	Direction       Direction
	TradeDate       time.Time
	AcquisitionDate *time.Time
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	Fees            decimal.Decimal
	// CostBasis is the original USD cost per share of the sold lot.
	CostBasis *decimal.Decimal

	// invalid holds the first field that could not be read from its source
	invalid *ValidationError
}

// MarkInvalid records a field that could not be read. Validate reports the
// first one recorded.
func (t *Transaction) MarkInvalid(field, message string) {
	if t.invalid == nil {
		t.invalid = &ValidationError{Field: field, Message: message}
	}
}

// Validate ensures the transaction meets all requirements
func (t *Transaction) Validate() error {
	if t.invalid != nil {
		return t.invalid
	}

	if strings.TrimSpace(t.Ticker) == "" {
		return &ValidationError{Field: "ticker", Message: "ticker is required"}
	}

	if t.Direction != DirectionBuy && t.Direction != DirectionSell {
		return &ValidationError{Field: "direction", Message: fmt.Sprintf("unknown direction %q", t.Direction)}
	}

	if t.TradeDate.IsZero() {
		return &ValidationError{Field: "trade_date", Message: "trade date is required"}
	}

	if !t.Quantity.IsPositive() {
		return &ValidationError{Field: "quantity", Message: "quantity must be a positive value"}
	}

	if t.UnitPrice.IsNegative() {
		return &ValidationError{Field: "unit_price", Message: "unit price must not be negative"}
	}

	if t.Fees.IsNegative() {
		return &ValidationError{Field: "fees", Message: "fees must not be negative"}
	}

	switch t.Direction {
	case DirectionSell:
		if t.AcquisitionDate == nil || t.AcquisitionDate.IsZero() {
			return &ValidationError{Field: "acquisition_date", Message: "acquisition date is required for a sale"}
		}
		if Day(*t.AcquisitionDate).After(Day(t.TradeDate)) {
			return &ValidationError{Field: "acquisition_date", Message: "acquisition date must not be after the trade date"}
		}
		if t.CostBasis != nil && t.CostBasis.IsNegative() {
			return &ValidationError{Field: "cost_basis", Message: "cost basis must not be negative"}
		}
	case DirectionBuy:
		if t.AcquisitionDate != nil {
			return &ValidationError{Field: "acquisition_date", Message: "acquisition date is only allowed on a sale"}
		}
		if t.CostBasis != nil {
			return &ValidationError{Field: "cost_basis", Message: "cost basis is only allowed on a sale"}
		}
	}

	return nil
}

// RequiredQueries lists the rate lookups needed to enrich the transaction, in
// resolution order. The acquisition leg of a sale was itself a purchase, so it
// takes the purchase side: the lot was bought with a USD payment, which the tax
// rules for capital gains convert at the PTAX sell rate of that day.
func (t *Transaction) RequiredQueries() []RateQuery {
	queries := []RateQuery{{Date: Day(t.TradeDate), Side: t.Direction.RateSide()}}
	if t.Direction == DirectionSell && t.AcquisitionDate != nil {
		queries = append(queries, RateQuery{Date: Day(*t.AcquisitionDate), Side: DirectionBuy.RateSide()})
	}
	return queries
}

// Day truncates t to midnight UTC of its calendar date
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD date
func ParseDay(s string) (time.Time, error) {
	return time.Parse(DateFormat, strings.TrimSpace(s))
}

type transactionJSON struct {
	ID              string           `json:"id,omitempty"`
	Ticker          string           `json:"ticker"`
	Direction       Direction        `json:"direction"`
	TradeDate       string           `json:"trade_date"`
	AcquisitionDate string           `json:"acquisition_date,omitempty"`
	Quantity        decimal.Decimal  `json:"quantity"`
	UnitPrice       decimal.Decimal  `json:"unit_price"`
	Fees            decimal.Decimal  `json:"fees"`
	CostBasis       *decimal.Decimal `json:"cost_basis,omitempty"`
}

// transactionInput reads numbers as raw JSON so a malformed value only
// invalidates its own transaction
type transactionInput struct {
	ID              string          `json:"id"`
	Ticker          string          `json:"ticker"`
	Direction       string          `json:"direction"`
	TradeDate       string          `json:"trade_date"`
	AcquisitionDate string          `json:"acquisition_date"`
	Quantity        json.RawMessage `json:"quantity"`
	UnitPrice       json.RawMessage `json:"unit_price"`
	Fees            json.RawMessage `json:"fees"`
	CostBasis       json.RawMessage `json:"cost_basis"`
}

// MarshalJSON writes dates as YYYY-MM-DD
func (t Transaction) MarshalJSON() ([]byte, error) {
	out := transactionJSON{
		ID:        t.ID,
		Ticker:    t.Ticker,
		Direction: t.Direction,
		Quantity:  t.Quantity,
		UnitPrice: t.UnitPrice,
		Fees:      t.Fees,
		CostBasis: t.CostBasis,
	}
	if !t.TradeDate.IsZero() {
		out.TradeDate = t.TradeDate.Format(DateFormat)
	}
	if t.AcquisitionDate != nil {
		out.AcquisitionDate = t.AcquisitionDate.Format(DateFormat)
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads dates as YYYY-MM-DD. Only a record that is not a JSON
// object fails; an unknown direction, a malformed date or number is kept on
// the transaction as a validation error.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var in transactionInput
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	out := Transaction{
		ID:        in.ID,
		Ticker:    in.Ticker,
		Direction: Direction(in.Direction),
	}

	if in.Direction != "" {
		if d, err := ParseDirection(in.Direction); err == nil {
			out.Direction = d
		} else {
			out.MarkInvalid("direction", fmt.Sprintf("unknown direction %q", in.Direction))
		}
	}

	if in.TradeDate != "" {
		if d, err := ParseDay(in.TradeDate); err == nil {
			out.TradeDate = d
		} else {
			out.MarkInvalid("trade_date", fmt.Sprintf("date must be in YYYY-MM-DD format: %q", in.TradeDate))
		}
	}

	if in.AcquisitionDate != "" {
		if d, err := ParseDay(in.AcquisitionDate); err == nil {
			out.AcquisitionDate = &d
		} else {
			out.MarkInvalid("acquisition_date", fmt.Sprintf("date must be in YYYY-MM-DD format: %q", in.AcquisitionDate))
		}
	}

	out.Quantity = out.decodeDecimal("quantity", in.Quantity)
	out.UnitPrice = out.decodeDecimal("unit_price", in.UnitPrice)
	out.Fees = out.decodeDecimal("fees", in.Fees)
	if len(in.CostBasis) > 0 && string(in.CostBasis) != "null" {
		basis := out.decodeDecimal("cost_basis", in.CostBasis)
		out.CostBasis = &basis
	}

	*t = out
	return nil
}

func (t *Transaction) decodeDecimal(field string, raw json.RawMessage) decimal.Decimal {
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.Zero
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(raw); err != nil {
		t.MarkInvalid(field, fmt.Sprintf("%s must be a number: %s", field, raw))
		return decimal.Zero
	}
	return d
}
