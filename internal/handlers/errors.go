package handlers

import (
	"errors"

	"github.com/nimasrn/cashback-ledger/internal/model"
	xhttp "github.com/nimasrn/cashback-ledger/pkg/http"
	"github.com/nimasrn/cashback-ledger/pkg/logger"
)

const (
	CodeValidation        = "validation_error"
	CodeNotFound          = "not_found"
	CodeStaleState        = "stale_state"
	CodeInsufficient      = "insufficient_transactions"
	CodeRetryExhausted    = "update_failed_retry"
	CodePartialSettlement = "partial_settlement"
	CodeInternal          = "internal"
)

type partialSettlementResponse struct {
	errorResponse
	Payout         *model.PayoutRequest `json:"payout,omitempty"`
	TransactionIDs []string             `json:"transaction_ids"`
	Enqueued       bool                 `json:"enqueued"`
}

// writeServiceError maps an engine error onto a status code and error code.
func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	var (
		partial   *model.PartialSettlementError
		exhausted *model.ConflictRetryExhaustedError
	)

	switch {
	case errors.As(err, &partial):
		writePartialSettlement(ctx, nil, partial)
	case errors.As(err, &exhausted):
		writeError(ctx, xhttp.StatusServiceUnavailable, CodeRetryExhausted, "update failed, retry")
	case errors.Is(err, model.ErrValidation):
		writeError(ctx, xhttp.StatusBadRequest, CodeValidation, err.Error())
	case errors.Is(err, model.ErrNotFound):
		writeError(ctx, xhttp.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, model.ErrStaleState):
		writeError(ctx, xhttp.StatusConflict, CodeStaleState, err.Error())
	case errors.Is(err, model.ErrInsufficientTransactions):
		writeError(ctx, xhttp.StatusUnprocessableEntity, CodeInsufficient, err.Error())
	default:
		logger.Error("request failed", "request_id", xhttp.RequestID(ctx), "path", string(ctx.Path()), "error", err)
		writeError(ctx, xhttp.StatusInternalServerError, CodeInternal, xhttp.StatusText(xhttp.StatusInternalServerError))
	}
}

func writePartialSettlement(ctx *xhttp.RequestCtx, payout *model.PayoutRequest, err *model.PartialSettlementError) {
	writeJSON(ctx, xhttp.StatusInternalServerError, partialSettlementResponse{
		errorResponse:  errorResponse{Error: err.Error(), Code: CodePartialSettlement},
		Payout:         payout,
		TransactionIDs: err.TransactionIDs,
		Enqueued:       err.Enqueued,
	})
}
