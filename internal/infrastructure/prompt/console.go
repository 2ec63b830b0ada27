// Package prompt asks the operator for exchange rates on the console
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/damon-houk/ptax-enricher/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// DefaultMaxTries is how many invalid answers are accepted per rate
const DefaultMaxTries = 3

// ErrTooManyInvalid is returned when the operator keeps typing invalid rates
var ErrTooManyInvalid = errors.New("too many invalid rates entered")

// ConsolePrompter reads manual rates line by line from r, writing prompts to w
type ConsolePrompter struct {
	w        io.Writer
	r        *bufio.Reader
	maxTries int
}

// NewConsolePrompter creates a prompter over the given streams
func NewConsolePrompter(w io.Writer, r io.Reader) *ConsolePrompter {
	return &ConsolePrompter{
		w:        w,
		r:        bufio.NewReader(r),
		maxTries: DefaultMaxTries,
	}
}

// PromptRates asks for one rate per pending query, in order
func (p *ConsolePrompter) PromptRates(ctx context.Context, req entity.ManualOverrideRequest) ([]decimal.Decimal, error) {
	tx := req.Transaction
	fmt.Fprintf(p.w, "\nManual rate needed for %s %s of %s on %s",
		tx.Direction, tx.Quantity, tx.Ticker, tx.TradeDate.Format(entity.DateFormat))
	if req.Reason != "" {
		fmt.Fprintf(p.w, " (%s)", req.Reason)
	}
	fmt.Fprintln(p.w)

	for _, q := range req.Resolved {
		fmt.Fprintf(p.w, "  already resolved: %s = %s from %s\n",
			q.Side, q.Rate, q.ResolvedDate.Format(entity.DateFormat))
	}

	rates := make([]decimal.Decimal, 0, len(req.Pending))
	for _, q := range req.Pending {
		rate, err := p.readRate(ctx, q)
		if err != nil {
			return nil, err
		}
		rates = append(rates, rate)
	}
	return rates, nil
}

func (p *ConsolePrompter) readRate(ctx context.Context, q entity.RateQuery) (decimal.Decimal, error) {
	for try := 1; try <= p.maxTries; try++ {
		if err := ctx.Err(); err != nil {
			return decimal.Zero, err
		}

		fmt.Fprintf(p.w, "%s for %s (BRL per USD): ", q.Side, q.Date.Format(entity.DateFormat))

		line, err := p.r.ReadString('\n')
		if err != nil && (err != io.EOF || strings.TrimSpace(line) == "") {
			return decimal.Zero, fmt.Errorf("failed to read rate: %w", err)
		}

		rate, perr := ParseRate(line)
		if perr == nil {
			return rate, nil
		}
		fmt.Fprintf(p.w, "  %v\n", perr)

		if err == io.EOF {
			return decimal.Zero, fmt.Errorf("failed to read rate: %w", err)
		}
	}
	return decimal.Zero, ErrTooManyInvalid
}

// ParseRate reads a positive rate written with a dot or a comma as decimal separator
func ParseRate(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return decimal.Zero, &entity.ValidationError{Field: "rate", Message: "a rate is required"}
	}

	rate, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &entity.ValidationError{Field: "rate", Message: fmt.Sprintf("%q is not a number", s)}
	}
	if !rate.IsPositive() {
		return decimal.Zero, &entity.ValidationError{Field: "rate", Message: "rate must be positive"}
	}
	return rate, nil
}
