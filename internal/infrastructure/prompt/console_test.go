package prompt

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/damon-houk/ptax-enricher/internal/domain/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(pending ...entity.RateQuery) entity.ManualOverrideRequest {
	return entity.ManualOverrideRequest{
		Transaction: entity.Transaction{
			Ticker:    "AMZN",
			Direction: entity.DirectionSell,
			TradeDate: time.Date(2023, 5, 13, 0, 0, 0, 0, time.UTC),
			Quantity:  decimal.NewFromInt(10),
		},
		Resolved: []entity.RateQuote{{
			Side:         entity.SideBuyRate,
			Rate:         decimal.RequireFromString("4.9713"),
			ResolvedDate: time.Date(2023, 5, 12, 0, 0, 0, 0, time.UTC),
		}},
		Pending: pending,
		Reason:  "automatic resolution cancelled by operator",
	}
}

func TestPromptRates(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader("5,6561\nabc\n-1\n5.0\n")
	prompter := NewConsolePrompter(&out, in)

	rates, err := prompter.PromptRates(context.Background(), request(
		entity.RateQuery{Date: time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC), Side: entity.SideSellRate},
		entity.RateQuery{Date: time.Date(2022, 1, 4, 0, 0, 0, 0, time.UTC), Side: entity.SideSellRate},
	))

	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.Equal(t, "5.6561", rates[0].String())
	assert.Equal(t, "5", rates[1].String())

	text := out.String()
	assert.Contains(t, text, "Manual rate needed for SELL 10 of AMZN on 2023-05-13")
	assert.Contains(t, text, "already resolved: BUY_RATE = 4.9713 from 2023-05-12")
	assert.Contains(t, text, "SELL_RATE for 2022-01-03 (BRL per USD)")
	assert.Contains(t, text, "is not a number")
	assert.Contains(t, text, "rate must be positive")
}

func TestPromptRatesTooManyInvalid(t *testing.T) {
	prompter := NewConsolePrompter(io.Discard, strings.NewReader("x\ny\nz\n5\n"))

	_, err := prompter.PromptRates(context.Background(), request(
		entity.RateQuery{Date: time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC), Side: entity.SideSellRate},
	))

	assert.True(t, errors.Is(err, ErrTooManyInvalid))
}

func TestPromptRatesEndOfInput(t *testing.T) {
	t.Run("Empty input", func(t *testing.T) {
		prompter := NewConsolePrompter(io.Discard, strings.NewReader(""))

		_, err := prompter.PromptRates(context.Background(), request(
			entity.RateQuery{Date: time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC), Side: entity.SideSellRate},
		))

		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("Last line without newline", func(t *testing.T) {
		prompter := NewConsolePrompter(io.Discard, strings.NewReader("5.1"))

		rates, err := prompter.PromptRates(context.Background(), request(
			entity.RateQuery{Date: time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC), Side: entity.SideSellRate},
		))

		require.NoError(t, err)
		assert.Equal(t, "5.1", rates[0].String())
	})
}

func TestPromptRatesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewConsolePrompter(io.Discard, strings.NewReader("5\n")).PromptRates(ctx, request(
		entity.RateQuery{Date: time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC), Side: entity.SideSellRate},
	))

	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseRate(t *testing.T) {
	for _, in := range []string{"5.1234", "5,1234", " 5.1234 \n"} {
		rate, err := ParseRate(in)
		require.NoError(t, err, in)
		assert.Equal(t, "5.1234", rate.String())
	}

	for _, in := range []string{"", "0", "-4.9", "five"} {
		_, err := ParseRate(in)
		var verr *entity.ValidationError
		assert.True(t, errors.As(err, &verr), in)
	}
}
