package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/cashback-ledger/pkg/logger"
	"github.com/nimasrn/cashback-ledger/pkg/pg"
	"github.com/nimasrn/cashback-ledger/pkg/prom"
)

var (
	ErrConcurrentUpdate   = errors.New("concurrent update detected")
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
	ErrBatchIncomplete    = errors.New("batch update did not match every record")
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 2 * time.Millisecond
)

type StoreConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// Store runs units of work against the ledger tables. Repositories called
// with the ctx handed to fn share its database transaction.
type Store struct {
	db         *pg.DB
	maxRetries int
	baseDelay  time.Duration
}

func NewStore(db *pg.DB, cfg StoreConfig) *Store {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	return &Store{
		db:         db,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
	}
}

// RunAtomic runs fn in one database transaction. When fn fails with
// ErrConcurrentUpdate the transaction is rolled back and the whole
// read-compute-write cycle runs again with exponential backoff.
// Any other error aborts immediately.
func (s *Store) RunAtomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if pg.InTransaction(ctx) {
		return fn(ctx)
	}

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		err := s.db.WithinTransaction(ctx, fn)
		if err == nil {
			return nil
		}

		if !errors.Is(err, ErrConcurrentUpdate) {
			return err
		}

		prom.IncConflictRetry()
		logger.Debug("concurrent update, retrying unit of work", "attempt", attempt+1, "error", err)

		if attempt < s.maxRetries {
			delay := s.baseDelay * time.Duration(1<<attempt) // 2ms, 4ms, 8ms
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				continue
			}
		}
	}

	return fmt.Errorf("%w: failed after %d attempts", ErrMaxRetriesExceeded, s.maxRetries+1)
}

// RunBatch applies fn's writes all-or-none. Writes made in a batch are not
// version checked.
func (s *Store) RunBatch(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.db.WithinTransaction(ctx, fn)
}
