package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/cashback-ledger/internal/model"
	xhttp "github.com/nimasrn/cashback-ledger/pkg/http"
)

type WalletService interface {
	GetWallet(ctx context.Context, userID string) (*model.UserProfile, error)
	AuditWallet(ctx context.Context, userID string) (*model.WalletAudit, error)
}

type WalletHandler struct {
	svc WalletService
}

func RegisterWalletRoutes(e *router.Group, h *WalletHandler) {
	e.GET("/users/{id}/wallet", h.GetWallet)
	e.GET("/users/{id}/wallet/audit", h.AuditWallet)
}

func NewWalletHandler(svc WalletService) *WalletHandler {
	return &WalletHandler{
		svc: svc,
	}
}

type walletResponse struct {
	UserID string       `json:"user_id"`
	Wallet model.Wallet `json:"wallet"`
}

func (h *WalletHandler) GetWallet(ctx *xhttp.RequestCtx) {
	u, err := h.svc.GetWallet(ctx, pathParam(ctx, "id"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, walletResponse{UserID: u.ID, Wallet: u.Wallet()})
}

func (h *WalletHandler) AuditWallet(ctx *xhttp.RequestCtx) {
	audit, err := h.svc.AuditWallet(ctx, pathParam(ctx, "id"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, audit)
}
