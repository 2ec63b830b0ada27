package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/damon-houk/ptax-enricher/internal/domain/entity"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/logger"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/trace"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Olinda OData endpoint of the PTAX service
	DefaultBaseURL = "https://olinda.bcb.gov.br/olinda/servico/PTAX/versao/v1/odata"

	dayPath    = "/CotacaoDolarDia(dataCotacao=@dataCotacao)"
	periodPath = "/CotacaoDolarPeriodo(dataInicial=@dataInicial,dataFinalCotacao=@dataFinalCotacao)"

	// the service takes dates as MM-DD-YYYY
	apiDateFormat = "01-02-2006"

	quoteTimeFormat = "2006-01-02 15:04:05.999"
)

// brasilia is the timezone of dataHoraCotacao
var brasilia = time.FixedZone("BRT", -3*60*60)

// ClientOptions configures a PTAXClient
type ClientOptions struct {
	BaseURL           string
	HTTPClient        *http.Client
	RequestsPerSecond float64
	Burst             int
	Logger            logger.Logger
}

// PTAXClient implements the rate source against the central bank PTAX service.
// Every call makes a single HTTP attempt; retrying is left to the caller.
type PTAXClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     logger.Logger
	now        func() time.Time
}

// NewPTAXClient creates a new PTAX client
func NewPTAXClient(opts ClientOptions) *PTAXClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Timeout: 10 * time.Second,
		}
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetDefaultLogger()
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}

	return &PTAXClient{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: opts.HTTPClient,
		limiter:    rate.NewLimiter(limit, opts.Burst),
		logger:     opts.Logger,
		now:        time.Now,
	}
}

// ptaxResponse represents the response structure from the PTAX service
type ptaxResponse struct {
	Value []ptaxQuote `json:"value"`
}

type ptaxQuote struct {
	BuyRate  decimal.Decimal `json:"cotacaoCompra"`
	SellRate decimal.Decimal `json:"cotacaoVenda"`
	QuotedAt string          `json:"dataHoraCotacao"`
}

// FetchQuote retrieves the quotes published for one day
func (c *PTAXClient) FetchQuote(ctx context.Context, date time.Time) (*entity.DailyQuote, error) {
	date = entity.Day(date)

	ctx, span := trace.StartSpan(ctx, "ptax.fetch_quote", attribute.String("date", date.Format(entity.DateFormat)))
	defer span.End()

	reqURL := fmt.Sprintf("%s%s?@dataCotacao='%s'&$format=json",
		c.baseURL, dayPath, date.Format(apiDateFormat))

	var resp ptaxResponse
	if err := c.get(ctx, date, reqURL, &resp); err != nil {
		trace.RecordError(span, err)
		return nil, err
	}

	if len(resp.Value) == 0 {
		c.logger.Debug("No PTAX quote published", map[string]interface{}{
			"date": date.Format(entity.DateFormat),
		})
		return nil, entity.ErrNotPublished
	}

	// the day endpoint returns the closing quote as its last element
	quote, err := toDailyQuote(resp.Value[len(resp.Value)-1], date)
	if err != nil {
		err = &entity.RateSourceError{Date: date, Attempts: 1, Err: err}
		trace.RecordError(span, err)
		return nil, err
	}

	c.logger.Debug("PTAX quote found", map[string]interface{}{
		"date":      date.Format(entity.DateFormat),
		"buy_rate":  quote.BuyRate.String(),
		"sell_rate": quote.SellRate.String(),
	})

	return quote, nil
}

// FetchQuotes retrieves the quotes published between start and end, inclusive
func (c *PTAXClient) FetchQuotes(ctx context.Context, start, end time.Time) ([]entity.DailyQuote, error) {
	start, end = entity.Day(start), entity.Day(end)
	if end.Before(start) {
		return nil, &entity.ValidationError{Field: "end", Message: "end date must not be before start date"}
	}

	ctx, span := trace.StartSpan(ctx, "ptax.fetch_quotes",
		attribute.String("start", start.Format(entity.DateFormat)),
		attribute.String("end", end.Format(entity.DateFormat)))
	defer span.End()

	reqURL := fmt.Sprintf("%s%s?@dataInicial='%s'&@dataFinalCotacao='%s'&$format=json",
		c.baseURL, periodPath, start.Format(apiDateFormat), end.Format(apiDateFormat))

	var resp ptaxResponse
	if err := c.get(ctx, start, reqURL, &resp); err != nil {
		trace.RecordError(span, err)
		return nil, err
	}

	// keep the last quote of each day
	byDay := make(map[time.Time]*entity.DailyQuote, len(resp.Value))
	for _, raw := range resp.Value {
		quote, err := toDailyQuote(raw, time.Time{})
		if err != nil {
			err = &entity.RateSourceError{Date: start, Attempts: 1, Err: err}
			trace.RecordError(span, err)
			return nil, err
		}
		byDay[quote.Date] = quote
	}

	quotes := make([]entity.DailyQuote, 0, len(byDay))
	for _, q := range byDay {
		quotes = append(quotes, *q)
	}
	sort.Slice(quotes, func(i, j int) bool {
		return quotes[i].Date.Before(quotes[j].Date)
	})

	c.logger.Info("PTAX period fetched", map[string]interface{}{
		"start": start.Format(entity.DateFormat),
		"end":   end.Format(entity.DateFormat),
		"count": len(quotes),
	})

	return quotes, nil
}

// Ping checks that the service answers a day query
func (c *PTAXClient) Ping(ctx context.Context) error {
	_, err := c.FetchQuote(ctx, c.now())
	if err == nil || errors.Is(err, entity.ErrNotPublished) {
		return nil
	}
	return err
}

// get performs one throttled GET and decodes the JSON body into out
func (c *PTAXClient) get(ctx context.Context, date time.Time, reqURL string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &entity.RateSourceError{Date: date, Attempts: 1, Retryable: false, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &entity.RateSourceError{Date: date, Attempts: 1, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Add("Accept", "application/json")

	c.logger.Debug("PTAX request", map[string]interface{}{
		"url": reqURL,
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &entity.RateSourceError{
			Date:      date,
			Attempts:  1,
			Retryable: ctx.Err() == nil,
			Err:       fmt.Errorf("failed to execute request: %w", err),
		}
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("Error closing response body", map[string]interface{}{
				"error": closeErr.Error(),
			})
		}
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &entity.RateSourceError{
			Date:      date,
			Attempts:  1,
			Retryable: ctx.Err() == nil,
			Err:       fmt.Errorf("failed to read response body: %w", err),
		}
	}

	if resp.StatusCode != http.StatusOK {
		return &entity.RateSourceError{
			Date:      date,
			Attempts:  1,
			Retryable: resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
			Err:       fmt.Errorf("API returned error status: %d, body: %s", resp.StatusCode, truncate(string(bodyBytes), 200)),
		}
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return &entity.RateSourceError{Date: date, Attempts: 1, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	return nil
}

// toDailyQuote validates a raw quote; when day is zero the date is taken from dataHoraCotacao
func toDailyQuote(raw ptaxQuote, day time.Time) (*entity.DailyQuote, error) {
	if !raw.BuyRate.IsPositive() || !raw.SellRate.IsPositive() {
		return nil, fmt.Errorf("invalid exchange rate values: buy %s, sell %s", raw.BuyRate, raw.SellRate)
	}

	var quotedAt time.Time
	if raw.QuotedAt != "" {
		t, err := time.ParseInLocation(quoteTimeFormat, raw.QuotedAt, brasilia)
		if err != nil {
			return nil, fmt.Errorf("failed to parse quote time '%s': %w", raw.QuotedAt, err)
		}
		quotedAt = t
	}

	if day.IsZero() {
		if quotedAt.IsZero() {
			return nil, errors.New("quote without dataHoraCotacao")
		}
		day = entity.Day(quotedAt)
	}

	return &entity.DailyQuote{
		Date:        day,
		BuyRate:     raw.BuyRate,
		SellRate:    raw.SellRate,
		PublishedAt: quotedAt,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
