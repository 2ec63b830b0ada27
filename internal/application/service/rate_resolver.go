// Package service holds the enrichment use cases
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/damon-houk/ptax-enricher/internal/domain/entity"
	domain "github.com/damon-houk/ptax-enricher/internal/domain/service"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/cache"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/logger"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/trace"
	"go.opentelemetry.io/otel/attribute"
)

// ResolverConfig bounds the backward search and the retries of each fetch
type ResolverConfig struct {
	LookbackDays int
	MaxAttempts  int
	RetryBackoff time.Duration
}

// DefaultResolverConfig returns a 10 day lookback with 3 attempts per fetch
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		LookbackDays: 10,
		MaxAttempts:  3,
		RetryBackoff: time.Second,
	}
}

// RateResolver finds the quote that applies to a (date, side) query, stepping
// back one calendar day at a time until a published quote is found
type RateResolver struct {
	source domain.RateSource
	cache  *cache.QuoteCache
	cfg    ResolverConfig
	logger logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRateResolver creates a resolver reading through quoteCache
func NewRateResolver(source domain.RateSource, quoteCache *cache.QuoteCache, cfg ResolverConfig, log logger.Logger) *RateResolver {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	if quoteCache == nil {
		quoteCache = cache.NewQuoteCache()
	}

	defaults := DefaultResolverConfig()
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = defaults.LookbackDays
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.RetryBackoff < 0 {
		cfg.RetryBackoff = 0
	}

	return &RateResolver{
		source: source,
		cache:  quoteCache,
		cfg:    cfg,
		logger: log,
		sleep:  sleepContext,
	}
}

// Resolve returns the quote for the query date, or for the nearest earlier
// date with a published quote within the lookback window
func (r *RateResolver) Resolve(ctx context.Context, query entity.RateQuery) (*entity.RateQuote, error) {
	requested := entity.Day(query.Date)

	ctx, span := trace.StartSpan(ctx, "resolver.resolve",
		attribute.String("date", requested.Format(entity.DateFormat)),
		attribute.String("side", string(query.Side)))
	defer span.End()

	for offset := 0; offset <= r.cfg.LookbackDays; offset++ {
		if err := cancellation(ctx); err != nil {
			return nil, err
		}

		day := requested.AddDate(0, 0, -offset)

		quote, err := r.quoteFor(ctx, day)
		if errors.Is(err, entity.ErrNotPublished) {
			continue
		}
		if err != nil {
			trace.RecordError(span, err)
			return nil, err
		}

		rate := quote.Rate(query.Side)

		if offset > 0 {
			r.logger.Info("Using earlier published quote", map[string]interface{}{
				"date":          requested.Format(entity.DateFormat),
				"resolved_date": day.Format(entity.DateFormat),
				"side":          string(query.Side),
				"rate":          rate.String(),
			})
		}

		span.SetAttributes(attribute.String("resolved_date", day.Format(entity.DateFormat)))

		return &entity.RateQuote{
			RequestedDate: requested,
			ResolvedDate:  day,
			Side:          query.Side,
			Rate:          rate,
			Source:        entity.SourcePTAX,
		}, nil
	}

	err := &entity.RateUnavailableError{
		Date:         requested,
		Side:         query.Side,
		LookbackDays: r.cfg.LookbackDays,
	}
	r.logger.Warn("No quote within lookback window", map[string]interface{}{
		"date":          requested.Format(entity.DateFormat),
		"side":          string(query.Side),
		"lookback_days": r.cfg.LookbackDays,
	})
	trace.RecordError(span, err)
	return nil, err
}

// quoteFor answers from the cache or fetches the day with bounded retry.
// Only a published quote or a not-published answer is cached.
func (r *RateResolver) quoteFor(ctx context.Context, day time.Time) (*entity.DailyQuote, error) {
	if entry, ok := r.cache.Get(day); ok {
		r.logger.Debug("Quote cache hit", map[string]interface{}{
			"date":      day.Format(entity.DateFormat),
			"published": entry.Published,
		})
		if !entry.Published {
			return nil, entity.ErrNotPublished
		}
		return entry.Quote, nil
	}

	for attempt := 1; ; attempt++ {
		quote, err := r.source.FetchQuote(ctx, day)
		if err == nil {
			if !quote.BuyRate.IsPositive() || !quote.SellRate.IsPositive() {
				return nil, &entity.RateSourceError{
					Date:     day,
					Attempts: attempt,
					Err:      fmt.Errorf("non-positive rate in quote: buy %s, sell %s", quote.BuyRate, quote.SellRate),
				}
			}
			stored := *quote
			stored.Date = day
			r.cache.PutQuote(&stored)
			return &stored, nil
		}

		if errors.Is(err, entity.ErrNotPublished) {
			r.cache.MarkNotPublished(day)
			return nil, entity.ErrNotPublished
		}

		if cerr := cancellation(ctx); cerr != nil {
			return nil, cerr
		}

		cause := err
		retryable := false
		var srcErr *entity.RateSourceError
		if errors.As(err, &srcErr) {
			cause = srcErr.Err
			retryable = srcErr.Retryable
		}

		if !retryable || attempt >= r.cfg.MaxAttempts {
			r.logger.Error("Failed to fetch quote", map[string]interface{}{
				"date":     day.Format(entity.DateFormat),
				"attempts": attempt,
				"error":    err.Error(),
			})
			return nil, &entity.RateSourceError{
				Date:      day,
				Attempts:  attempt,
				Retryable: retryable,
				Err:       cause,
			}
		}

		backoff := r.cfg.RetryBackoff * time.Duration(attempt*attempt)
		r.logger.Warn("Quote fetch failed, retrying", map[string]interface{}{
			"date":         day.Format(entity.DateFormat),
			"attempt":      attempt,
			"max_attempts": r.cfg.MaxAttempts,
			"backoff":      backoff.String(),
			"error":        err.Error(),
		})

		if err := r.sleep(ctx, backoff); err != nil {
			if cerr := cancellation(ctx); cerr != nil {
				return nil, cerr
			}
			return nil, err
		}
	}
}

// cancellation reports operator cancellation as entity.ErrOperatorCancelled
// and any other cancellation as the context error
func cancellation(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	if errors.Is(context.Cause(ctx), entity.ErrOperatorCancelled) {
		return entity.ErrOperatorCancelled
	}
	return ctx.Err()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
