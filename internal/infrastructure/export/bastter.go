package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/damon-houk/ptax-enricher/internal/domain/entity"
	"github.com/shopspring/decimal"
)

const bastterDateFormat = "02/01/2006"

// BastterRow is one line of a Bastter System import: ticker, date, quantity
// (negative for sales), total with costs and, for sales, the total before costs
type BastterRow struct {
	Ticker   string
	Date     time.Time
	Quantity decimal.Decimal
	Total    decimal.Decimal
	Gross    decimal.Decimal
}

// BastterRows converts the enriched outcomes of result, skipping failures.
// A non-zero year keeps only trades of that year. Rows are sorted by ticker,
// then date.
func BastterRows(result *entity.BatchResult, year int) []BastterRow {
	var rows []BastterRow
	for _, o := range result.Outcomes {
		e := o.Enriched
		if o.Status == entity.StatusFailed || e == nil {
			continue
		}

		tx := e.Transaction
		if year != 0 && tx.TradeDate.Year() != year {
			continue
		}

		row := BastterRow{
			Ticker:   tx.Ticker,
			Date:     entity.Day(tx.TradeDate),
			Quantity: tx.Quantity,
			Total:    e.LocalAmount,
			Gross:    decimal.Zero,
		}
		if tx.Direction == entity.DirectionSell {
			row.Quantity = tx.Quantity.Neg()
			row.Gross = e.GrossUSD.Mul(e.TradeRate.Rate).Round(2)
		}

		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Ticker != rows[j].Ticker {
			return rows[i].Ticker < rows[j].Ticker
		}
		return rows[i].Date.Before(rows[j].Date)
	})

	return rows
}

// plainBRL formats cents with a decimal comma and no currency symbol
var plainBRL = money.NewFormatter(2, ",", "", "", "1")

// WriteBastterCSV writes rows without a header, separated by semicolons and
// with decimal commas as the Bastter import expects
func WriteBastterCSV(w io.Writer, rows []BastterRow) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	for _, r := range rows {
		record := []string{
			r.Ticker,
			r.Date.Format(bastterDateFormat),
			strings.Replace(r.Quantity.String(), ".", ",", 1),
			plainBRL.Format(minorUnits(r.Total, money.BRL)),
			plainBRL.Format(minorUnits(r.Gross, money.BRL)),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write %s row: %w", r.Ticker, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
