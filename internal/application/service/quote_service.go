package service

import (
	"context"
	"fmt"
	"time"

	"github.com/damon-houk/ptax-enricher/internal/domain/entity"
	domain "github.com/damon-houk/ptax-enricher/internal/domain/service"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/cache"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/logger"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/middleware"
)

// QuoteService answers standalone quote lookups
type QuoteService struct {
	source domain.RateSource
	cfg    ResolverConfig
	logger logger.Logger
}

// NewQuoteService creates a new quote service
func NewQuoteService(source domain.RateSource, cfg ResolverConfig, log logger.Logger) *QuoteService {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &QuoteService{
		source: source,
		cfg:    cfg,
		logger: log,
	}
}

// Quote resolves the rate for date, falling back to earlier days
func (s *QuoteService) Quote(ctx context.Context, date time.Time, side entity.Side) (*entity.RateQuote, error) {
	resolver := NewRateResolver(s.source, cache.NewQuoteCache(), s.cfg, s.logger)

	quote, err := resolver.Resolve(ctx, entity.RateQuery{Date: date, Side: side})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Quote resolved", map[string]interface{}{
		"request_id":    middleware.GetRequestID(ctx),
		"date":          quote.RequestedDate.Format(entity.DateFormat),
		"resolved_date": quote.ResolvedDate.Format(entity.DateFormat),
		"side":          string(side),
		"rate":          quote.Rate.String(),
	})

	return quote, nil
}

// Period returns every quote published between start and end, inclusive
func (s *QuoteService) Period(ctx context.Context, start, end time.Time) ([]entity.DailyQuote, error) {
	start, end = entity.Day(start), entity.Day(end)
	if end.Before(start) {
		return nil, &entity.ValidationError{Field: "end", Message: "end date must not be before start date"}
	}

	quotes, err := s.source.FetchQuotes(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quotes from %s to %s: %w",
			start.Format(entity.DateFormat), end.Format(entity.DateFormat), err)
	}

	return quotes, nil
}
