package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/damon-houk/ptax-enricher/internal/domain/entity"
	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
)

const batchKeyPrefix = "batch:"

// Open opens (creating if needed) the BadgerDB database at path
func Open(path string) (*badger.DB, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// BadgerBatchRepository stores batch results as JSON in BadgerDB
type BadgerBatchRepository struct {
	db *badger.DB
}

// NewBadgerBatchRepository creates a new BadgerDB batch repository
func NewBadgerBatchRepository(db *badger.DB) *BadgerBatchRepository {
	return &BadgerBatchRepository{db: db}
}

// Store saves a batch and returns its ID, assigning one when empty
func (r *BadgerBatchRepository) Store(ctx context.Context, batch *entity.BatchResult) (string, error) {
	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}

	data, err := json.Marshal(batch)
	if err != nil {
		return "", fmt.Errorf("failed to marshal batch: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(batchKeyPrefix+batch.ID), data)
	})
	if err != nil {
		return "", fmt.Errorf("failed to store batch: %w", err)
	}

	return batch.ID, nil
}

// FindByID retrieves a batch by its ID
func (r *BadgerBatchRepository) FindByID(ctx context.Context, id string) (*entity.BatchResult, error) {
	var batch entity.BatchResult

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(batchKeyPrefix + id))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &batch)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", entity.ErrBatchNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve batch: %w", err)
	}

	return &batch, nil
}
