package repository

import (
	"context"

	"github.com/damon-houk/ptax-enricher/internal/domain/entity"
)

// BatchRepository defines the interface for batch result storage
type BatchRepository interface {
	// Store saves a batch result and returns its ID
	Store(ctx context.Context, batch *entity.BatchResult) (string, error)

	// FindByID retrieves a batch result by its unique identifier
	FindByID(ctx context.Context, id string) (*entity.BatchResult, error)
}
