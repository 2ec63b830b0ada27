// internal/mocks/mocks.go
package mocks

import (
	"context"
	"time"

	"github.com/damon-houk/ptax-enricher/internal/domain/entity"
	"github.com/damon-houk/ptax-enricher/internal/infrastructure/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockBatchRepository mocks the BatchRepository interface
type MockBatchRepository struct {
	mock.Mock
}

func (m *MockBatchRepository) Store(ctx context.Context, batch *entity.BatchResult) (string, error) {
	args := m.Called(ctx, batch)
	return args.String(0), args.Error(1)
}

func (m *MockBatchRepository) FindByID(ctx context.Context, id string) (*entity.BatchResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.BatchResult), args.Error(1)
}

// MockRateSource mocks the RateSource interface
type MockRateSource struct {
	mock.Mock
}

func (m *MockRateSource) FetchQuote(ctx context.Context, date time.Time) (*entity.DailyQuote, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.DailyQuote), args.Error(1)
}

func (m *MockRateSource) FetchQuotes(ctx context.Context, start, end time.Time) ([]entity.DailyQuote, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.DailyQuote), args.Error(1)
}

func (m *MockRateSource) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockPrompter mocks the ManualRatePrompter interface
type MockPrompter struct {
	mock.Mock
}

func (m *MockPrompter) PromptRates(ctx context.Context, req entity.ManualOverrideRequest) ([]decimal.Decimal, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]decimal.Decimal), args.Error(1)
}

// MockDocumentExtractor mocks the DocumentExtractor interface
type MockDocumentExtractor struct {
	mock.Mock
}

func (m *MockDocumentExtractor) Extract(ctx context.Context, document []byte, mimeType string) ([]entity.Transaction, error) {
	args := m.Called(ctx, document, mimeType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Transaction), args.Error(1)
}

// MockBatchRunner mocks the batch coordinator
type MockBatchRunner struct {
	mock.Mock
}

func (m *MockBatchRunner) Run(ctx context.Context, txs []entity.Transaction) (*entity.BatchResult, error) {
	args := m.Called(ctx, txs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.BatchResult), args.Error(1)
}

// MockLogger mocks the logger interface
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Info(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Warn(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Error(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Fatal(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) WithField(key string, value interface{}) logger.Logger {
	args := m.Called(key, value)
	return args.Get(0).(logger.Logger)
}

func (m *MockLogger) WithFields(fields map[string]interface{}) logger.Logger {
	args := m.Called(fields)
	return args.Get(0).(logger.Logger)
}
