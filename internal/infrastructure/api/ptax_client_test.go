package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/damon-houk/ptax-enricher/internal/domain/entity"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(serverURL string) *PTAXClient {
	return NewPTAXClient(ClientOptions{
		BaseURL: serverURL,
		Logger:  logger.Nop(),
	})
}

func TestFetchQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/CotacaoDolarDia(dataCotacao=@dataCotacao)", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("$format"))

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("@dataCotacao") {
		case "'05-12-2023'":
			w.Write([]byte(`{"@odata.context":"x","value":[
				{"cotacaoCompra":4.9713,"cotacaoVenda":4.9719,"dataHoraCotacao":"2023-05-12 13:04:26.798"}
			]}`))
		case "'05-13-2023'":
			w.Write([]byte(`{"value":[]}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	ctx := context.Background()

	t.Run("Published day", func(t *testing.T) {
		quote, err := client.FetchQuote(ctx, time.Date(2023, 5, 12, 15, 0, 0, 0, time.UTC))

		require.NoError(t, err)
		assert.Equal(t, time.Date(2023, 5, 12, 0, 0, 0, 0, time.UTC), quote.Date)
		assert.Equal(t, "4.9713", quote.BuyRate.String())
		assert.Equal(t, "4.9719", quote.SellRate.String())
		assert.Equal(t, 13, quote.PublishedAt.Hour())
	})

	t.Run("Weekend is not published", func(t *testing.T) {
		_, err := client.FetchQuote(ctx, time.Date(2023, 5, 13, 0, 0, 0, 0, time.UTC))

		assert.ErrorIs(t, err, entity.ErrNotPublished)
	})

	t.Run("Client error is not retryable", func(t *testing.T) {
		_, err := client.FetchQuote(ctx, time.Date(2023, 5, 14, 0, 0, 0, 0, time.UTC))

		var srcErr *entity.RateSourceError
		require.True(t, errors.As(err, &srcErr))
		assert.False(t, srcErr.Retryable)
	})
}

func TestFetchQuoteRetryableStatus(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		_, err := newTestClient(server.URL).FetchQuote(context.Background(), time.Date(2023, 5, 12, 0, 0, 0, 0, time.UTC))
		server.Close()

		var srcErr *entity.RateSourceError
		require.True(t, errors.As(err, &srcErr), "status %d", status)
		assert.True(t, srcErr.Retryable, "status %d", status)
		assert.Equal(t, 1, srcErr.Attempts)
	}
}

func TestFetchQuoteInvalidPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RawQuery, "05-12-2023") {
			w.Write([]byte(`{"value":[{"cotacaoCompra":0,"cotacaoVenda":4.97,"dataHoraCotacao":"2023-05-12 13:04:26.798"}]}`))
			return
		}
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.FetchQuote(context.Background(), time.Date(2023, 5, 12, 0, 0, 0, 0, time.UTC))
	var srcErr *entity.RateSourceError
	require.True(t, errors.As(err, &srcErr))
	assert.Contains(t, err.Error(), "invalid exchange rate")

	_, err = client.FetchQuote(context.Background(), time.Date(2023, 5, 11, 0, 0, 0, 0, time.UTC))
	require.True(t, errors.As(err, &srcErr))
	assert.False(t, srcErr.Retryable)
}

func TestFetchQuotes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/CotacaoDolarPeriodo("))
		assert.Equal(t, "'05-10-2023'", r.URL.Query().Get("@dataInicial"))
		assert.Equal(t, "'05-15-2023'", r.URL.Query().Get("@dataFinalCotacao"))

		w.Write([]byte(`{"value":[
			{"cotacaoCompra":4.9600,"cotacaoVenda":4.9606,"dataHoraCotacao":"2023-05-10 13:03:00.000"},
			{"cotacaoCompra":4.9800,"cotacaoVenda":4.9806,"dataHoraCotacao":"2023-05-11 13:05:00.000"},
			{"cotacaoCompra":4.9713,"cotacaoVenda":4.9719,"dataHoraCotacao":"2023-05-12 13:04:26.798"},
			{"cotacaoCompra":4.9500,"cotacaoVenda":4.9506,"dataHoraCotacao":"2023-05-10 10:00:00.000"},
			{"cotacaoCompra":4.9900,"cotacaoVenda":4.9906,"dataHoraCotacao":"2023-05-15 13:06:00.000"}
		]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	quotes, err := client.FetchQuotes(context.Background(),
		time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 5, 15, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	require.Len(t, quotes, 4)
	assert.Equal(t, "2023-05-10", quotes[0].Date.Format(entity.DateFormat))
	// the later entry for a day wins
	assert.Equal(t, "4.95", quotes[0].BuyRate.String())
	assert.Equal(t, "2023-05-15", quotes[3].Date.Format(entity.DateFormat))

	t.Run("Reversed range", func(t *testing.T) {
		_, err := client.FetchQuotes(context.Background(),
			time.Date(2023, 5, 15, 0, 0, 0, 0, time.UTC),
			time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC))

		var verr *entity.ValidationError
		assert.True(t, errors.As(err, &verr))
	})
}

func TestPing(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"value":[]}`))
	}))

	client := newTestClient(server.URL)
	client.now = func() time.Time { return time.Date(2023, 5, 13, 9, 0, 0, 0, time.UTC) }

	assert.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	server.Close()

	err := client.Ping(context.Background())
	var srcErr *entity.RateSourceError
	require.True(t, errors.As(err, &srcErr))
	assert.True(t, srcErr.Retryable)
}

func TestFetchQuoteCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"value":[]}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(server.URL).FetchQuote(ctx, time.Date(2023, 5, 12, 0, 0, 0, 0, time.UTC))

	var srcErr *entity.RateSourceError
	require.True(t, errors.As(err, &srcErr))
	assert.False(t, srcErr.Retryable)
}
