package service

import (
	"context"
	"fmt"

	"github.com/damon-houk/ptax-enricher/internal/domain/entity"
	"github.com/damon-houk/ptax-enricher/internal/domain/repository"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/logger"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/middleware"
)

// BatchRunner runs the enrichment of a batch
type BatchRunner interface {
	Run(ctx context.Context, txs []entity.Transaction) (*entity.BatchResult, error)
}

// BatchService handles submission and retrieval of enriched batches
type BatchService struct {
	runner BatchRunner
	repo   repository.BatchRepository
	logger logger.Logger
}

// NewBatchService creates a new batch service
func NewBatchService(runner BatchRunner, repo repository.BatchRepository, log logger.Logger) *BatchService {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &BatchService{
		runner: runner,
		repo:   repo,
		logger: log,
	}
}

// Submit enriches the transactions and stores the result
func (s *BatchService) Submit(ctx context.Context, txs []entity.Transaction) (*entity.BatchResult, error) {
	requestID := middleware.GetRequestID(ctx)

	if len(txs) == 0 {
		return nil, &entity.ValidationError{Field: "transactions", Message: "at least one transaction is required"}
	}

	s.logger.Info("Submitting batch", map[string]interface{}{
		"request_id":   requestID,
		"transactions": len(txs),
	})

	result, err := s.runner.Run(ctx, txs)
	if err != nil {
		s.logger.Error("Batch run failed", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		return nil, fmt.Errorf("failed to run batch: %w", err)
	}

	id, err := s.repo.Store(ctx, result)
	if err != nil {
		s.logger.Error("Failed to store batch", map[string]interface{}{
			"request_id": requestID,
			"batch_id":   result.ID,
			"error":      err.Error(),
		})
		return nil, fmt.Errorf("failed to store batch: %w", err)
	}
	result.ID = id

	s.logger.Info("Batch stored", map[string]interface{}{
		"request_id": requestID,
		"batch_id":   id,
		"enriched":   result.Counts.Enriched,
		"failed":     result.Counts.Failed,
	})

	return result, nil
}

// Get retrieves a stored batch by ID
func (s *BatchService) Get(ctx context.Context, id string) (*entity.BatchResult, error) {
	return s.repo.FindByID(ctx, id)
}
