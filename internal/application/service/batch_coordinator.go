package service

import (
	"context"
	"fmt"
	"time"

	"github.com/damon-houk/ptax-enricher/internal/domain/entity"
	domain "github.com/damon-houk/ptax-enricher/internal/domain/service"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/cache"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/interrupt"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/logger"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/trace"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// CoordinatorOptions configures a BatchCoordinator
type CoordinatorOptions struct {
	Resolver ResolverConfig
	Enricher EnricherConfig
	// Prompter receives manual override requests; nil disables the manual path
	Prompter domain.ManualRatePrompter
	// Router delivers operator interrupts; nil means transactions cannot be interrupted
	Router *interrupt.Router
	Logger logger.Logger
}

// BatchCoordinator enriches a batch of transactions in input order
type BatchCoordinator struct {
	source   domain.RateSource
	resolver ResolverConfig
	enricher EnricherConfig
	prompter domain.ManualRatePrompter
	router   *interrupt.Router
	logger   logger.Logger
	now      func() time.Time
}

// NewBatchCoordinator creates a new batch coordinator
func NewBatchCoordinator(source domain.RateSource, opts CoordinatorOptions) *BatchCoordinator {
	if opts.Logger == nil {
		opts.Logger = logger.GetDefaultLogger()
	}

	return &BatchCoordinator{
		source:   source,
		resolver: opts.Resolver,
		enricher: opts.Enricher,
		prompter: opts.Prompter,
		router:   opts.Router,
		logger:   opts.Logger,
		now:      time.Now,
	}
}

// Run enriches every transaction and returns one outcome per input. The only
// error is the connectivity precondition; failures of single transactions are
// reported in their outcomes.
func (c *BatchCoordinator) Run(ctx context.Context, txs []entity.Transaction) (*entity.BatchResult, error) {
	ctx, span := trace.StartSpan(ctx, "batch.run", attribute.Int("transactions", len(txs)))
	defer span.End()

	if err := c.source.Ping(ctx); err != nil {
		c.logger.Error("Rate source unreachable", map[string]interface{}{
			"error": err.Error(),
		})
		err = fmt.Errorf("%w: %w", entity.ErrSourceUnreachable, err)
		trace.RecordError(span, err)
		return nil, err
	}

	quoteCache := cache.NewQuoteCache()
	resolver := NewRateResolver(c.source, quoteCache, c.resolver, c.logger)
	enricher := NewTransactionEnricher(resolver, c.prompter, c.enricher, c.logger)

	result := &entity.BatchResult{
		ID:        uuid.New().String(),
		StartedAt: c.now().UTC(),
		Outcomes:  make([]entity.Outcome, 0, len(txs)),
	}

	log := c.logger.WithField("batch_id", result.ID)
	log.Info("Batch started", map[string]interface{}{
		"transactions": len(txs),
	})

	for i, tx := range txs {
		if tx.ID == "" {
			tx.ID = uuid.New().String()
		}

		token := c.begin(ctx)
		enriched, err := enricher.Enrich(ctx, tx, token)
		if token.Cancelled() {
			log.Info("Transaction interrupted by operator", map[string]interface{}{
				"index":  i,
				"ticker": tx.Ticker,
			})
		}
		c.end(token)

		outcome := entity.Outcome{
			Index:       i,
			Transaction: tx,
		}

		switch {
		case err != nil:
			outcome.Status = entity.StatusFailed
			outcome.Reason = err.Error()
			outcome.Err = err
			log.Warn("Transaction failed", map[string]interface{}{
				"index":  i,
				"ticker": tx.Ticker,
				"error":  err.Error(),
			})
		case enriched.ManuallyOverridden():
			outcome.Status = entity.StatusManualOverride
			outcome.Enriched = enriched
		default:
			outcome.Status = entity.StatusEnriched
			outcome.Enriched = enriched
		}

		result.Outcomes = append(result.Outcomes, outcome)
	}

	result.FinishedAt = c.now().UTC()
	result.Tally()

	log.Info("Batch finished", map[string]interface{}{
		"enriched":            result.Counts.Enriched,
		"manually_overridden": result.Counts.ManuallyOverridden,
		"failed":              result.Counts.Failed,
		"cached_dates":        quoteCache.Size(),
		"duration_ms":         result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
	})

	span.SetAttributes(
		attribute.Int("enriched", result.Counts.Enriched),
		attribute.Int("manually_overridden", result.Counts.ManuallyOverridden),
		attribute.Int("failed", result.Counts.Failed),
	)

	return result, nil
}

func (c *BatchCoordinator) begin(ctx context.Context) *interrupt.Token {
	if c.router != nil {
		return c.router.Begin(ctx)
	}
	return interrupt.NewToken(ctx)
}

func (c *BatchCoordinator) end(token *interrupt.Token) {
	if c.router != nil {
		c.router.End(token)
		return
	}
	token.Release()
}
