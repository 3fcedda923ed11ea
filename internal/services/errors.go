package services

import (
	"errors"

	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/nimasrn/cashback-ledger/internal/repository"
)

// conflictError turns an exhausted retry budget into the error callers see.
// Every other error is returned as is.
func conflictError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrMaxRetriesExceeded) {
		return &model.ConflictRetryExhaustedError{Operation: operation, Err: err}
	}
	return err
}
