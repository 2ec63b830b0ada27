// Package export turns batch results into flat rows for spreadsheets and
// portfolio trackers
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/Rhymond/go-money"
	"github.com/damon-houk/ptax-enricher/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// Row is one outcome flattened for output. Rate and amount fields are zero
// for failed outcomes.
type Row struct {
	Index           int
	Status          entity.OutcomeStatus
	TransactionID   string
	Ticker          string
	Direction       entity.Direction
	TradeDate       string
	AcquisitionDate string
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	Fees            decimal.Decimal

	GrossUSD    decimal.Decimal
	NetUSD      decimal.Decimal
	LocalAmount decimal.Decimal

	TradeRate       *entity.RateQuote
	AcquisitionRate *entity.RateQuote

	AcquisitionCostUSD   *decimal.Decimal
	AcquisitionCostLocal *decimal.Decimal

	Reason string
}

// Rows flattens every outcome of the batch, failed ones included, in input order
func Rows(result *entity.BatchResult) []Row {
	rows := make([]Row, 0, len(result.Outcomes))
	for _, o := range result.Outcomes {
		tx := o.Transaction
		row := Row{
			Index:         o.Index,
			Status:        o.Status,
			TransactionID: tx.ID,
			Ticker:        tx.Ticker,
			Direction:     tx.Direction,
			Quantity:      tx.Quantity,
			UnitPrice:     tx.UnitPrice,
			Fees:          tx.Fees,
			Reason:        o.Reason,
		}
		if !tx.TradeDate.IsZero() {
			row.TradeDate = tx.TradeDate.Format(entity.DateFormat)
		}
		if tx.AcquisitionDate != nil {
			row.AcquisitionDate = tx.AcquisitionDate.Format(entity.DateFormat)
		}

		if e := o.Enriched; e != nil {
			trade := e.TradeRate
			row.TradeRate = &trade
			row.AcquisitionRate = e.AcquisitionRate
			row.GrossUSD = e.GrossUSD
			row.NetUSD = e.NetUSD
			row.LocalAmount = e.LocalAmount
			row.AcquisitionCostUSD = e.AcquisitionCostUSD
			row.AcquisitionCostLocal = e.AcquisitionCostLocal
		}

		rows = append(rows, row)
	}
	return rows
}

var csvHeader = []string{
	"index", "status", "transaction_id", "ticker", "direction", "trade_date", "acquisition_date",
	"quantity", "unit_price_usd", "fees_usd", "gross_usd", "net_usd",
	"trade_rate", "trade_rate_side", "trade_rate_date", "trade_rate_source",
	"acquisition_rate", "acquisition_rate_date", "acquisition_rate_source",
	"local_amount_brl", "local_amount", "acquisition_cost_usd", "acquisition_cost_brl", "reason",
}

// WriteCSV writes rows with a header line. Amount columns are plain decimals;
// local_amount repeats the BRL amount formatted for display.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, r := range rows {
		record := []string{
			fmt.Sprint(r.Index),
			string(r.Status),
			r.TransactionID,
			r.Ticker,
			string(r.Direction),
			r.TradeDate,
			r.AcquisitionDate,
			r.Quantity.String(),
			r.UnitPrice.String(),
			r.Fees.String(),
		}

		if r.TradeRate == nil {
			record = append(record, make([]string, 13)...)
		} else {
			record = append(record,
				r.GrossUSD.StringFixed(2),
				r.NetUSD.StringFixed(2),
				r.TradeRate.Rate.String(),
				string(r.TradeRate.Side),
				r.TradeRate.ResolvedDate.Format(entity.DateFormat),
				string(r.TradeRate.Source),
			)
			if r.AcquisitionRate != nil {
				record = append(record,
					r.AcquisitionRate.Rate.String(),
					r.AcquisitionRate.ResolvedDate.Format(entity.DateFormat),
					string(r.AcquisitionRate.Source),
				)
			} else {
				record = append(record, "", "", "")
			}
			record = append(record,
				r.LocalAmount.StringFixed(2),
				Display(r.LocalAmount, money.BRL),
				optionalFixed(r.AcquisitionCostUSD),
				optionalFixed(r.AcquisitionCostLocal),
			)
		}
		record = append(record, r.Reason)

		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r.Index, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Display formats amount in the conventions of the currency, e.g. R$5.487,07
func Display(amount decimal.Decimal, currency string) string {
	return money.New(minorUnits(amount, currency), currency).Display()
}

func minorUnits(amount decimal.Decimal, currency string) int64 {
	fraction := 2
	if cur := money.GetCurrency(currency); cur != nil {
		fraction = cur.Fraction
	}
	return amount.Shift(int32(fraction)).Round(0).IntPart()
}

func optionalFixed(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.StringFixed(2)
}
