package service

import (
	"context"

	"github.com/damon-houk/ptax-enricher/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// ManualRatePrompter asks the operator for rates. It returns one positive
// rate per pending query, in the same order.
type ManualRatePrompter interface {
	PromptRates(ctx context.Context, req entity.ManualOverrideRequest) ([]decimal.Decimal, error)
}

// DocumentExtractor turns a brokerage confirmation document into transactions
type DocumentExtractor interface {
	Extract(ctx context.Context, document []byte, mimeType string) ([]entity.Transaction, error)
}
