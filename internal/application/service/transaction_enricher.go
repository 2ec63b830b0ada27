package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/damon-houk/ptax-enricher/internal/domain/entity"
	domain "github.com/damon-houk/ptax-enricher/internal/domain/service"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/interrupt"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/logger"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/trace"
	"go.opentelemetry.io/otel/attribute"
)

// EnricherConfig controls when the operator is asked for rates
type EnricherConfig struct {
	// ManualOnUnavailable sends queries without a quote in the lookback
	// window to the prompter instead of failing the transaction.
	ManualOnUnavailable bool
}

// TransactionEnricher attaches rates and BRL amounts to a transaction
type TransactionEnricher struct {
	resolver *RateResolver
	prompter domain.ManualRatePrompter
	cfg      EnricherConfig
	logger   logger.Logger
}

// NewTransactionEnricher creates an enricher; prompter may be nil
func NewTransactionEnricher(resolver *RateResolver, prompter domain.ManualRatePrompter, cfg EnricherConfig, log logger.Logger) *TransactionEnricher {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &TransactionEnricher{
		resolver: resolver,
		prompter: prompter,
		cfg:      cfg,
		logger:   log,
	}
}

// Enrich resolves every rate the transaction needs. When token is cancelled
// the queries still open are handed to the operator; quotes already resolved
// are kept.
func (e *TransactionEnricher) Enrich(ctx context.Context, tx entity.Transaction, token *interrupt.Token) (*entity.EnrichedTransaction, error) {
	if token == nil {
		token = interrupt.NewToken(ctx)
		defer token.Release()
	}

	ctx, span := trace.StartSpan(ctx, "enricher.enrich",
		attribute.String("ticker", tx.Ticker),
		attribute.String("direction", string(tx.Direction)))
	defer span.End()

	if err := tx.Validate(); err != nil {
		trace.RecordError(span, err)
		return nil, err
	}

	log := e.logger.WithFields(map[string]interface{}{
		"transaction_id": tx.ID,
		"ticker":         tx.Ticker,
	})

	queries := tx.RequiredQueries()
	quotes := make([]*entity.RateQuote, len(queries))

	var (
		pending   []int
		cancelled bool
		reason    string
	)

	for i, query := range queries {
		if cancelled {
			pending = append(pending, i)
			continue
		}

		quote, err := e.resolver.Resolve(token.Context(), query)
		if err == nil {
			quotes[i] = quote
			continue
		}

		var unavailable *entity.RateUnavailableError
		switch {
		case errors.Is(err, entity.ErrOperatorCancelled):
			log.Info("Automatic resolution cancelled", map[string]interface{}{
				"query": query.String(),
			})
			cancelled = true
			reason = "automatic resolution cancelled by operator"
			pending = append(pending, i)
		case errors.As(err, &unavailable) && e.cfg.ManualOnUnavailable && e.prompter != nil:
			if reason == "" {
				reason = err.Error()
			}
			pending = append(pending, i)
		default:
			trace.RecordError(span, err)
			return nil, err
		}
	}

	if len(pending) > 0 {
		if err := e.promptPending(ctx, tx, queries, quotes, pending, reason, log); err != nil {
			trace.RecordError(span, err)
			return nil, err
		}
	}

	enriched := computeAmounts(tx, quotes)

	log.Debug("Transaction enriched", map[string]interface{}{
		"trade_rate":   enriched.TradeRate.Rate.String(),
		"local_amount": enriched.LocalAmount.String(),
		"manual":       enriched.ManuallyOverridden(),
	})

	return enriched, nil
}

// promptPending fills quotes[pending] with operator rates. It runs under the
// caller's context, which the token does not cancel.
func (e *TransactionEnricher) promptPending(ctx context.Context, tx entity.Transaction, queries []entity.RateQuery,
	quotes []*entity.RateQuote, pending []int, reason string, log logger.Logger) error {
	if e.prompter == nil {
		return fmt.Errorf("no operator prompt available for %s: %w", queries[pending[0]], entity.ErrOperatorCancelled)
	}

	req := entity.ManualOverrideRequest{
		Transaction: tx,
		Reason:      reason,
	}
	for _, q := range quotes {
		if q != nil {
			req.Resolved = append(req.Resolved, *q)
		}
	}
	for _, i := range pending {
		req.Pending = append(req.Pending, queries[i])
	}

	rates, err := e.prompter.PromptRates(ctx, req)
	if err != nil {
		return fmt.Errorf("manual rate entry failed: %w", err)
	}
	if len(rates) != len(pending) {
		return fmt.Errorf("manual rate entry returned %d rates for %d queries", len(rates), len(pending))
	}

	for n, i := range pending {
		if !rates[n].IsPositive() {
			return &entity.ValidationError{Field: "rate", Message: fmt.Sprintf("manual rate for %s must be positive", queries[i])}
		}
		quotes[i] = &entity.RateQuote{
			RequestedDate: queries[i].Date,
			ResolvedDate:  queries[i].Date,
			Side:          queries[i].Side,
			Rate:          rates[n],
			Source:        entity.SourceManual,
		}
		log.Info("Manual rate applied", map[string]interface{}{
			"query": queries[i].String(),
			"rate":  rates[n].String(),
		})
	}

	return nil
}

// computeAmounts derives USD and BRL amounts once every quote is known.
// quotes follows the order of RequiredQueries.
func computeAmounts(tx entity.Transaction, quotes []*entity.RateQuote) *entity.EnrichedTransaction {
	gross := tx.Quantity.Mul(tx.UnitPrice)

	net := gross.Add(tx.Fees)
	if tx.Direction == entity.DirectionSell {
		net = gross.Sub(tx.Fees)
	}

	enriched := &entity.EnrichedTransaction{
		Transaction: tx,
		TradeRate:   *quotes[0],
		GrossUSD:    gross,
		NetUSD:      net,
		LocalAmount: net.Mul(quotes[0].Rate).Round(2),
	}

	if len(quotes) > 1 && quotes[1] != nil {
		enriched.AcquisitionRate = quotes[1]
		if tx.CostBasis != nil {
			costUSD := tx.Quantity.Mul(*tx.CostBasis)
			costLocal := costUSD.Mul(quotes[1].Rate).Round(2)
			enriched.AcquisitionCostUSD = &costUSD
			enriched.AcquisitionCostLocal = &costLocal
		}
	}

	return enriched
}
