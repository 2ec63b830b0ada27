package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/damon-houk/ptax-enricher/internal/domain/entity"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

const saleAnswer = `Looking at the confirmation, the sale was filled on June 5, 2023.

<answer>
[
  {
    "transaction_date": "June 5, 2023",
    "ticker": "amzn",
    "operation_type": "venda",
    "quantity": 10,
    "share_value": 124.25,
    "total_value": 1242.50,
    "commission": 0,
    "supplemental_fee": 0.03,
    "acquisition_date": "01/03/2022",
    "cost_basis_per_share": 85.10
  }
]
</answer>`

func TestParseRecords(t *testing.T) {
	t.Run("Tagged sale", func(t *testing.T) {
		txs, err := ParseRecords(saleAnswer)
		require.NoError(t, err)
		require.Len(t, txs, 1)

		tx := txs[0]
		assert.Equal(t, "AMZN", tx.Ticker)
		assert.Equal(t, entity.DirectionSell, tx.Direction)
		assert.Equal(t, time.Date(2023, 6, 5, 0, 0, 0, 0, time.UTC), tx.TradeDate)
		assert.Equal(t, "10", tx.Quantity.String())
		assert.Equal(t, "124.25", tx.UnitPrice.String())
		assert.Equal(t, "0.03", tx.Fees.String())
		require.NotNil(t, tx.AcquisitionDate)
		assert.Equal(t, time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC), *tx.AcquisitionDate)
		require.NotNil(t, tx.CostBasis)
		assert.Equal(t, "85.1", tx.CostBasis.String())
		assert.NoError(t, tx.Validate())
	})

	t.Run("Last answer wins", func(t *testing.T) {
		text := `<answer>{"transaction_date": "2023-01-02", "ticker": "OLD", "operation_type": "buy", "quantity": 1, "share_value": 1}</answer>
Correction:
<answer>{"transaction_date": "2023-03-01", "ticker": "AAPL", "operation_type": "buy", "quantity": 2, "share_value": 150, "commission": 0.5}</answer>`

		txs, err := ParseRecords(text)
		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.Equal(t, "AAPL", txs[0].Ticker)
		assert.Equal(t, entity.DirectionBuy, txs[0].Direction)
		assert.Nil(t, txs[0].AcquisitionDate)
		assert.Equal(t, "0.5", txs[0].Fees.String())
	})

	t.Run("Nested opening tags", func(t *testing.T) {
		text := `<answer> draft <answer>{"transaction_date": "2023-03-01", "ticker": "MSFT", "operation_type": "compra", "quantity": 1, "share_value": 250}</answer>`

		txs, err := ParseRecords(text)
		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.Equal(t, "MSFT", txs[0].Ticker)
	})

	t.Run("Code fence", func(t *testing.T) {
		text := "```json\n[{\"transaction_date\": \"05-06-2023\", \"ticker\": \"NVDA\", \"operation_type\": \"sell\", \"quantity\": 4, \"total_value\": 1600, \"acquisition_date\": null, \"cost_basis_per_share\": null}]\n```"

		txs, err := ParseRecords(text)
		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.Equal(t, time.Date(2023, 6, 5, 0, 0, 0, 0, time.UTC), txs[0].TradeDate)
		assert.Equal(t, "400", txs[0].UnitPrice.String())
		assert.Nil(t, txs[0].AcquisitionDate)
		assert.Nil(t, txs[0].CostBasis)
	})

	t.Run("Bare JSON", func(t *testing.T) {
		txs, err := ParseRecords(`{"transaction_date": "2023-03-01", "ticker": "AAPL", "operation_type": "buy", "quantity": "2", "share_value": "150.10"}`)
		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.Equal(t, "150.1", txs[0].UnitPrice.String())
	})

	t.Run("Errors", func(t *testing.T) {
		_, err := ParseRecords("I could not find any trade in this document.")
		assert.Error(t, err)
	})

	t.Run("Unreadable fields invalidate only their record", func(t *testing.T) {
		text := `<answer>[
			{"transaction_date": "2023-03-01", "ticker": "AAPL", "operation_type": "short", "quantity": 1, "share_value": 150},
			{"transaction_date": "sometime in May", "ticker": "MSFT", "operation_type": "buy", "quantity": 1, "share_value": 250},
			{"transaction_date": "2023-05-13", "ticker": "AMZN", "operation_type": "sale", "quantity": 10, "share_value": 110.5, "acquisition_date": "last year"},
			{"transaction_date": "2023-03-01", "ticker": "NVDA", "operation_type": "buy", "quantity": 2, "share_value": 300}
		]</answer>`

		txs, err := ParseRecords(text)
		require.NoError(t, err)
		require.Len(t, txs, 4)

		tests := []struct {
			index int
			field string
		}{
			{0, "direction"},
			{1, "trade_date"},
			{2, "acquisition_date"},
		}
		for _, tt := range tests {
			var validation *entity.ValidationError
			require.ErrorAs(t, txs[tt.index].Validate(), &validation, txs[tt.index].Ticker)
			assert.Equal(t, tt.field, validation.Field)
		}
		assert.Equal(t, entity.Direction("SHORT"), txs[0].Direction)
		assert.NoError(t, txs[3].Validate())
	})
}

func TestParseDocumentDate(t *testing.T) {
	want := time.Date(2023, 6, 5, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{"2023-06-05", "June 5, 2023", "Jun 5, 2023", "06/05/2023", "05-06-2023", " 2023-06-05 "} {
		got, err := ParseDocumentDate(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, got, s)
	}

	_, err := ParseDocumentDate("2023/06/05")
	assert.Error(t, err)
}

type fakeModels struct {
	resp     *genai.GenerateContentResponse
	err      error
	model    string
	contents []*genai.Content
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	return f.resp, f.err
}

func answer(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func TestGeminiExtractor_Extract(t *testing.T) {
	ctx := context.Background()

	t.Run("Sends document and parses answer", func(t *testing.T) {
		models := &fakeModels{resp: answer(saleAnswer)}
		extractor := newGeminiExtractor(models, "", logger.Nop())

		txs, err := extractor.Extract(ctx, []byte("%PDF-1.4"), "")
		require.NoError(t, err)
		require.Len(t, txs, 1)

		assert.Equal(t, DefaultModel, models.model)
		require.Len(t, models.contents, 1)
		parts := models.contents[0].Parts
		require.Len(t, parts, 2)
		require.NotNil(t, parts[0].InlineData)
		assert.Equal(t, "application/pdf", parts[0].InlineData.MIMEType)
		assert.Equal(t, []byte("%PDF-1.4"), parts[0].InlineData.Data)
	})

	t.Run("Empty document", func(t *testing.T) {
		extractor := newGeminiExtractor(&fakeModels{}, "m", logger.Nop())
		_, err := extractor.Extract(ctx, nil, "application/pdf")
		var validation *entity.ValidationError
		assert.ErrorAs(t, err, &validation)
	})

	t.Run("Model failure", func(t *testing.T) {
		boom := errors.New("quota exceeded")
		extractor := newGeminiExtractor(&fakeModels{err: boom}, "m", logger.Nop())
		_, err := extractor.Extract(ctx, []byte("doc"), "application/pdf")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("No candidates", func(t *testing.T) {
		extractor := newGeminiExtractor(&fakeModels{resp: &genai.GenerateContentResponse{}}, "m", logger.Nop())
		_, err := extractor.Extract(ctx, []byte("doc"), "application/pdf")
		assert.Error(t, err)
	})

	t.Run("Missing API key", func(t *testing.T) {
		_, err := NewGeminiExtractor(ctx, "", "", logger.Nop())
		assert.Error(t, err)
	})
}
