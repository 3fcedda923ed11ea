package handlers

import (
	"context"
	"errors"

	"github.com/fasthttp/router"
	"github.com/nimasrn/cashback-ledger/internal/model"
	xhttp "github.com/nimasrn/cashback-ledger/pkg/http"
)

type PayoutService interface {
	Get(ctx context.Context, id string) (*model.PayoutRequest, error)
	List(ctx context.Context, f model.PayoutFilter) ([]*model.PayoutRequest, int64, error)
	ResolvePayout(ctx context.Context, req model.PayoutResolutionRequest) (*model.PayoutResolutionResult, error)
}

type PayoutHandler struct {
	svc PayoutService
}

func RegisterPayoutRoutes(e *router.Group, h *PayoutHandler) {
	e.GET("/payouts", h.ListPayouts)
	e.GET("/payouts/{id}", h.GetPayout)
	e.POST("/payouts/{id}/resolve", h.ResolvePayout)
}

func NewPayoutHandler(svc PayoutService) *PayoutHandler {
	return &PayoutHandler{
		svc: svc,
	}
}

type resolvePayoutRequest struct {
	ExpectedStatus model.PayoutStatus `json:"expected_status"`
	Status         model.PayoutStatus `json:"status"`
	AdminNotes     string             `json:"admin_notes"`
	FailureReason  string             `json:"failure_reason"`
}

func (h *PayoutHandler) ListPayouts(ctx *xhttp.RequestCtx) {
	var f model.PayoutFilter

	if v := query(ctx, "user_id"); v != "" {
		f.UserID = &v
	}
	for _, s := range queryList(ctx, "status") {
		f.Statuses = append(f.Statuses, model.PayoutStatus(s))
	}
	p := queryPage(ctx)
	f.From, f.To, f.Limit, f.Offset, f.Desc = p.from, p.to, p.limit, p.offset, p.desc

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, listResponse[*model.PayoutRequest]{Items: items, Total: total})
}

func (h *PayoutHandler) GetPayout(ctx *xhttp.RequestCtx) {
	p, err := h.svc.Get(ctx, pathParam(ctx, "id"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, p)
}

func (h *PayoutHandler) ResolvePayout(ctx *xhttp.RequestCtx) {
	var req resolvePayoutRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, CodeValidation, "invalid JSON: "+err.Error())
		return
	}

	res, err := h.svc.ResolvePayout(ctx, model.PayoutResolutionRequest{
		PayoutID:       pathParam(ctx, "id"),
		ExpectedStatus: req.ExpectedStatus,
		NewStatus:      req.Status,
		AdminNotes:     req.AdminNotes,
		FailureReason:  req.FailureReason,
	})
	if err != nil {
		var partial *model.PartialSettlementError
		if res != nil && errors.As(err, &partial) {
			writePartialSettlement(ctx, res.Payout, partial)
			return
		}
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, res)
}
