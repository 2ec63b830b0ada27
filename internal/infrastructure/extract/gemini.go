// Package extract reads trade confirmations out of brokerage documents with Gemini
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/damon-houk/ptax-enricher/internal/domain/entity"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/logger"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/trace"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured
const DefaultModel = "gemini-2.5-flash"

const instructions = `Extract every trade confirmation from this brokerage document.
For a sale, the trade date is the date the shares were actually sold (the fill date).

Answer between <answer> tags with a JSON array of objects with this structure:
{
    "transaction_date": "YYYY-MM-DD",
    "ticker": "SYMBOL",
    "operation_type": "sell" or "buy",
    "quantity": ###,
    "share_value": ###.##,
    "total_value": ###.##,
    "commission": ##.##,
    "supplemental_fee": #.##,
    "acquisition_date": "YYYY-MM-DD",
    "cost_basis_per_share": ###.##
}
All amounts are in USD. Use null for acquisition_date and cost_basis_per_share on purchases.`

// contentGenerator is the part of the genai client used here
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiExtractor implements the document extractor with the Gemini API
type GeminiExtractor struct {
	models contentGenerator
	model  string
	logger logger.Logger
}

// NewGeminiExtractor creates an extractor authenticated with apiKey
func NewGeminiExtractor(ctx context.Context, apiKey, model string, log logger.Logger) (*GeminiExtractor, error) {
	if apiKey == "" {
		return nil, errors.New("a Gemini API key is required for document extraction")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}

	return newGeminiExtractor(client.Models, model, log), nil
}

func newGeminiExtractor(models contentGenerator, model string, log logger.Logger) *GeminiExtractor {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	if model == "" {
		model = DefaultModel
	}

	return &GeminiExtractor{
		models: models,
		model:  model,
		logger: log,
	}
}

// Extract sends the document to the model and parses the transactions it lists
func (g *GeminiExtractor) Extract(ctx context.Context, document []byte, mimeType string) ([]entity.Transaction, error) {
	if len(document) == 0 {
		return nil, &entity.ValidationError{Field: "document", Message: "document is empty"}
	}
	if mimeType == "" {
		mimeType = "application/pdf"
	}

	ctx, span := trace.StartSpan(ctx, "extract.document",
		attribute.String("model", g.model),
		attribute.Int("size", len(document)))
	defer span.End()

	g.logger.Info("Extracting transactions from document", map[string]interface{}{
		"model":     g.model,
		"mime_type": mimeType,
		"size":      len(document),
	})

	temperature := float32(0)
	resp, err := g.models.GenerateContent(ctx, g.model,
		[]*genai.Content{{
			Role: "user",
			Parts: []*genai.Part{
				{InlineData: &genai.Blob{MIMEType: mimeType, Data: document}},
				{Text: instructions},
			},
		}},
		&genai.GenerateContentConfig{Temperature: &temperature},
	)
	if err != nil {
		trace.RecordError(span, err)
		return nil, fmt.Errorf("model request failed: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		err := errors.New("empty response from model")
		trace.RecordError(span, err)
		return nil, err
	}

	txs, err := ParseRecords(text)
	if err != nil {
		g.logger.Error("Could not parse model answer", map[string]interface{}{
			"error":  err.Error(),
			"answer": text,
		})
		trace.RecordError(span, err)
		return nil, err
	}

	g.logger.Info("Transactions extracted", map[string]interface{}{
		"count": len(txs),
	})
	return txs, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}
