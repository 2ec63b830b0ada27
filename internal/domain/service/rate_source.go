package service

import (
	"context"
	"time"

	"github.com/damon-houk/ptax-enricher/internal/domain/entity"
)

// RateSource defines the interface for the official rate publishing service
type RateSource interface {
	// FetchQuote retrieves the quotes published for one day. It returns
	// entity.ErrNotPublished when the day has no quote, and an
	// *entity.RateSourceError when the service could not answer.
	FetchQuote(ctx context.Context, date time.Time) (*entity.DailyQuote, error)

	// FetchQuotes retrieves all quotes published between start and end, inclusive, ordered by date
	FetchQuotes(ctx context.Context, start, end time.Time) ([]entity.DailyQuote, error)

	// Ping checks that the service is reachable
	Ping(ctx context.Context) error
}
