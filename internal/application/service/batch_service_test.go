package service

import (
	"context"
	"errors"
	"testing"

	"github.com/damon-houk/ptax-enricher/internal/domain/entity"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/logger"
	"github.com/damon-houk/ptax-enricher/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestSubmitBatch(t *testing.T) {
	runner := new(mocks.MockBatchRunner)
	repo := new(mocks.MockBatchRepository)
	service := NewBatchService(runner, repo, logger.Nop())
	ctx := context.Background()

	t.Run("Stores the run result", func(t *testing.T) {
		txs := []entity.Transaction{purchase()}
		result := &entity.BatchResult{ID: "batch-1", Counts: entity.BatchCounts{Enriched: 1}}

		runner.On("Run", ctx, txs).Return(result, nil).Once()
		repo.On("Store", ctx, result).Return("batch-1", nil).Once()

		got, err := service.Submit(ctx, txs)

		assert.NoError(t, err)
		assert.Equal(t, "batch-1", got.ID)
		runner.AssertExpectations(t)
		repo.AssertExpectations(t)
	})

	t.Run("Empty batch", func(t *testing.T) {
		_, err := service.Submit(ctx, nil)

		var verr *entity.ValidationError
		assert.True(t, errors.As(err, &verr))
		assert.Equal(t, "transactions", verr.Field)
	})

	t.Run("Source unreachable", func(t *testing.T) {
		txs := []entity.Transaction{sale()}
		runner.On("Run", ctx, txs).Return(nil, entity.ErrSourceUnreachable).Once()

		_, err := service.Submit(ctx, txs)

		assert.ErrorIs(t, err, entity.ErrSourceUnreachable)
		repo.AssertNotCalled(t, "Store", mock.Anything, mock.Anything)
	})

	t.Run("Storage error", func(t *testing.T) {
		txs := []entity.Transaction{purchase(), sale()}
		result := &entity.BatchResult{ID: "batch-2"}

		runner.On("Run", ctx, txs).Return(result, nil).Once()
		repo.On("Store", ctx, result).Return("", errors.New("disk full")).Once()

		_, err := service.Submit(ctx, txs)

		assert.ErrorContains(t, err, "disk full")
	})
}

func TestGetBatch(t *testing.T) {
	repo := new(mocks.MockBatchRepository)
	service := NewBatchService(new(mocks.MockBatchRunner), repo, logger.Nop())
	ctx := context.Background()

	stored := &entity.BatchResult{ID: "batch-1"}
	repo.On("FindByID", ctx, "batch-1").Return(stored, nil).Once()
	repo.On("FindByID", ctx, "nope").Return(nil, entity.ErrBatchNotFound).Once()

	got, err := service.Get(ctx, "batch-1")
	assert.NoError(t, err)
	assert.Equal(t, stored, got)

	_, err = service.Get(ctx, "nope")
	assert.ErrorIs(t, err, entity.ErrBatchNotFound)
}
