package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/cashback-ledger/internal/model"
	xhttp "github.com/nimasrn/cashback-ledger/pkg/http"
	"github.com/shopspring/decimal"
)

type TransactionService interface {
	Get(ctx context.Context, id string) (*model.Transaction, error)
	List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error)
	ApplyStatusChange(ctx context.Context, req model.StatusChangeRequest) (*model.StatusChangeResult, error)
	AdjustCashback(ctx context.Context, req model.CashbackAdjustmentRequest) (*model.StatusChangeResult, error)
}

type TransactionHandler struct {
	svc TransactionService
}

func RegisterTransactionRoutes(e *router.Group, h *TransactionHandler) {
	e.GET("/transactions", h.ListTransactions)
	e.GET("/transactions/{id}", h.GetTransaction)
	e.PATCH("/transactions/{id}/status", h.ChangeStatus)
	e.PATCH("/transactions/{id}/cashback", h.AdjustCashback)
}

func NewTransactionHandler(svc TransactionService) *TransactionHandler {
	return &TransactionHandler{
		svc: svc,
	}
}

type changeStatusRequest struct {
	ExpectedStatus  model.TransactionStatus `json:"expected_status"`
	Status          model.TransactionStatus `json:"status"`
	AdminNotes      string                  `json:"admin_notes"`
	NotesToUser     string                  `json:"notes_to_user"`
	RejectionReason string                  `json:"rejection_reason"`
}

type adjustCashbackRequest struct {
	ExpectedStatus      model.TransactionStatus `json:"expected_status"`
	FinalCashbackAmount *decimal.Decimal        `json:"final_cashback_amount"`
	FinalSaleAmount     *decimal.Decimal        `json:"final_sale_amount"`
	AdminNotes          *string                 `json:"admin_notes"`
}

func (h *TransactionHandler) ListTransactions(ctx *xhttp.RequestCtx) {
	var f model.TransactionFilter

	if v := query(ctx, "user_id"); v != "" {
		f.UserID = &v
	}
	if v := query(ctx, "payout_id"); v != "" {
		f.PayoutID = &v
	}
	for _, s := range queryList(ctx, "status") {
		f.Statuses = append(f.Statuses, model.TransactionStatus(s))
	}
	p := queryPage(ctx)
	f.From, f.To, f.Limit, f.Offset, f.Desc = p.from, p.to, p.limit, p.offset, p.desc

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, listResponse[*model.Transaction]{Items: items, Total: total})
}

func (h *TransactionHandler) GetTransaction(ctx *xhttp.RequestCtx) {
	tx, err := h.svc.Get(ctx, pathParam(ctx, "id"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, tx)
}

func (h *TransactionHandler) ChangeStatus(ctx *xhttp.RequestCtx) {
	var req changeStatusRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, CodeValidation, "invalid JSON: "+err.Error())
		return
	}

	res, err := h.svc.ApplyStatusChange(ctx, model.StatusChangeRequest{
		TransactionID:   pathParam(ctx, "id"),
		ExpectedStatus:  req.ExpectedStatus,
		NewStatus:       req.Status,
		AdminNotes:      req.AdminNotes,
		NotesToUser:     req.NotesToUser,
		RejectionReason: req.RejectionReason,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, res)
}

func (h *TransactionHandler) AdjustCashback(ctx *xhttp.RequestCtx) {
	var req adjustCashbackRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, CodeValidation, "invalid JSON: "+err.Error())
		return
	}
	if req.FinalCashbackAmount == nil {
		writeServiceError(ctx, model.NewValidationError("final_cashback_amount", "is required"))
		return
	}

	res, err := h.svc.AdjustCashback(ctx, model.CashbackAdjustmentRequest{
		TransactionID:       pathParam(ctx, "id"),
		ExpectedStatus:      req.ExpectedStatus,
		FinalCashbackAmount: *req.FinalCashbackAmount,
		FinalSaleAmount:     req.FinalSaleAmount,
		AdminNotes:          req.AdminNotes,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, res)
}
