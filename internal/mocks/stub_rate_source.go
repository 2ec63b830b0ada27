package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/damon-houk/ptax-enricher/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// StubRateSource is an in-memory rate source with per-date call counting.
// Dates without a quote answer entity.ErrNotPublished.
type StubRateSource struct {
	mu      sync.Mutex
	quotes  map[string]entity.DailyQuote
	errs    map[string][]error
	calls   map[string]int
	pingErr error

	// OnFetch runs before each FetchQuote answer; tests use it to interrupt
	// a transaction while a lookup is in flight
	OnFetch func(date time.Time)
}

// NewStubRateSource creates an empty stub
func NewStubRateSource() *StubRateSource {
	return &StubRateSource{
		quotes: make(map[string]entity.DailyQuote),
		errs:   make(map[string][]error),
		calls:  make(map[string]int),
	}
}

// WithQuote publishes buy/sell rates for date (YYYY-MM-DD)
func (s *StubRateSource) WithQuote(date, buy, sell string) *StubRateSource {
	d, err := entity.ParseDay(date)
	if err != nil {
		panic(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[date] = entity.DailyQuote{
		Date:     d,
		BuyRate:  decimal.RequireFromString(buy),
		SellRate: decimal.RequireFromString(sell),
	}
	return s
}

// FailWith queues errors returned by the next fetches of date, in order
func (s *StubRateSource) FailWith(date string, errs ...error) *StubRateSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[date] = append(s.errs[date], errs...)
	return s
}

// FailPing makes Ping return err
func (s *StubRateSource) FailPing(err error) *StubRateSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingErr = err
	return s
}

// Calls returns how many times date (YYYY-MM-DD) was fetched
func (s *StubRateSource) Calls(date string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[date]
}

// TotalCalls returns the number of FetchQuote calls
func (s *StubRateSource) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

func (s *StubRateSource) FetchQuote(ctx context.Context, date time.Time) (*entity.DailyQuote, error) {
	key := entity.Day(date).Format(entity.DateFormat)

	s.mu.Lock()
	s.calls[key]++
	hook := s.OnFetch
	s.mu.Unlock()

	if hook != nil {
		hook(date)
	}

	// behave like an HTTP request aborted by its context
	if err := ctx.Err(); err != nil {
		return nil, &entity.RateSourceError{Date: date, Attempts: 1, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if queued := s.errs[key]; len(queued) > 0 {
		s.errs[key] = queued[1:]
		return nil, queued[0]
	}

	quote, ok := s.quotes[key]
	if !ok {
		return nil, entity.ErrNotPublished
	}
	return &quote, nil
}

func (s *StubRateSource) FetchQuotes(ctx context.Context, start, end time.Time) ([]entity.DailyQuote, error) {
	var out []entity.DailyQuote
	for d := entity.Day(start); !d.After(entity.Day(end)); d = d.AddDate(0, 0, 1) {
		q, err := s.FetchQuote(ctx, d)
		if err == entity.ErrNotPublished {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, nil
}

func (s *StubRateSource) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pingErr
}
