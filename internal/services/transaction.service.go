package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nimasrn/cashback-ledger/internal/ledger"
	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/nimasrn/cashback-ledger/pkg/logger"
	"github.com/nimasrn/cashback-ledger/pkg/prom"
)

// TransactionService is the status transition engine. Each call is one
// atomic read-compute-write unit over a transaction and its owner's wallet.
type TransactionService struct {
	store        UnitOfWork
	transactions TransactionRepository
	users        UserProfileRepository
	now          func() time.Time
}

func NewTransactionService(store UnitOfWork, transactions TransactionRepository, users UserProfileRepository) *TransactionService {
	return &TransactionService{
		store:        store,
		transactions: transactions,
		users:        users,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *TransactionService) Get(ctx context.Context, id string) (*model.Transaction, error) {
	return s.transactions.Get(ctx, id)
}

func (s *TransactionService) List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	return s.transactions.List(ctx, f)
}

// ApplyStatusChange moves a transaction to req.NewStatus and applies the
// resulting wallet delta to its owner in the same unit of work.
func (s *TransactionService) ApplyStatusChange(ctx context.Context, req model.StatusChangeRequest) (*model.StatusChangeResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	var (
		result *model.StatusChangeResult
		from   model.TransactionStatus
	)

	err := s.store.RunAtomic(ctx, func(ctx context.Context) error {
		tx, err := s.transactions.Get(ctx, req.TransactionID)
		if err != nil {
			return err
		}
		if tx.Status != req.ExpectedStatus {
			return staleTransaction(tx, req.ExpectedStatus)
		}
		if payoutID := tx.LinkedPayout(); payoutID != "" && req.NewStatus != model.TransactionStatusPaid {
			return model.NewValidationError("status",
				fmt.Sprintf("transaction is linked to payout %s, resolve the payout instead", payoutID))
		}
		if tx.LinkedPayout() == "" && req.NewStatus == model.TransactionStatusPaid && tx.Status != model.TransactionStatusPaid {
			return model.NewValidationError("status",
				"transaction is not linked to a payout, only a payout settlement can mark it paid")
		}

		delta, err := ledger.DeltaFor(tx.Status, req.NewStatus, tx.CashbackAmount())
		if err != nil {
			return err
		}

		user, err := s.users.Get(ctx, tx.UserID)
		if err != nil {
			return err
		}

		from = tx.Status
		updated := tx.Clone()
		applyStatusFields(updated, req, s.now())

		saved, err := s.transactions.Update(ctx, updated)
		if err != nil {
			return err
		}

		result, err = s.applyWallet(ctx, user, delta)
		if err != nil {
			return err
		}
		result.Transaction = saved
		return nil
	})
	if err != nil {
		return nil, conflictError("apply status change", err)
	}

	s.reportClamp(result, req.TransactionID)
	prom.IncTransition(string(from), string(req.NewStatus))
	prom.ObserveOperation("status_change", time.Since(start).Seconds())
	logger.Info("transaction status changed",
		"transaction_id", req.TransactionID,
		"user_id", result.Transaction.UserID,
		"from", from,
		"to", req.NewStatus,
		"pending_delta", result.Delta.Pending.String(),
		"balance_delta", result.Delta.Balance.String(),
		"lifetime_delta", result.Delta.Lifetime.String(),
	)

	return result, nil
}

// AdjustCashback changes the honored cashback of a transaction that is not
// claimed by a payout. The wallet moves by the difference right away.
func (s *TransactionService) AdjustCashback(ctx context.Context, req model.CashbackAdjustmentRequest) (*model.StatusChangeResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	var result *model.StatusChangeResult

	err := s.store.RunAtomic(ctx, func(ctx context.Context) error {
		tx, err := s.transactions.Get(ctx, req.TransactionID)
		if err != nil {
			return err
		}
		if tx.Status != req.ExpectedStatus {
			return staleTransaction(tx, req.ExpectedStatus)
		}
		if payoutID := tx.LinkedPayout(); payoutID != "" {
			return model.NewValidationError("final_cashback_amount",
				fmt.Sprintf("transaction is linked to payout %s and can no longer be edited", payoutID))
		}

		final := req.FinalCashbackAmount.Round(2)
		delta, err := ledger.AdjustmentDelta(tx.Status, tx.CashbackAmount(), final)
		if err != nil {
			return err
		}

		user, err := s.users.Get(ctx, tx.UserID)
		if err != nil {
			return err
		}

		updated := tx.Clone()
		updated.FinalCashbackAmount = &final
		if req.FinalSaleAmount != nil {
			sale := req.FinalSaleAmount.Round(2)
			updated.FinalSaleAmount = &sale
		}
		if req.AdminNotes != nil {
			updated.AdminNotes = strings.TrimSpace(*req.AdminNotes)
		}

		saved, err := s.transactions.Update(ctx, updated)
		if err != nil {
			return err
		}

		result, err = s.applyWallet(ctx, user, delta)
		if err != nil {
			return err
		}
		result.Transaction = saved
		return nil
	})
	if err != nil {
		return nil, conflictError("adjust cashback", err)
	}

	s.reportClamp(result, req.TransactionID)
	prom.ObserveOperation("cashback_adjustment", time.Since(start).Seconds())
	logger.Info("transaction cashback adjusted",
		"transaction_id", req.TransactionID,
		"status", result.Transaction.Status,
		"final_cashback_amount", result.Transaction.CashbackAmount().String(),
		"pending_delta", result.Delta.Pending.String(),
		"balance_delta", result.Delta.Balance.String(),
	)

	return result, nil
}

// applyWallet clamps delta against the current wallet and writes what is
// left. A zero delta does not touch the profile.
func (s *TransactionService) applyWallet(ctx context.Context, user *model.UserProfile, delta model.WalletDelta) (*model.StatusChangeResult, error) {
	applied, clamped := ledger.Clamp(user.Wallet(), delta)

	wallet := user.Wallet()
	if !applied.IsZero() {
		updated, err := s.users.ApplyWalletDelta(ctx, user, applied)
		if err != nil {
			return nil, err
		}
		wallet = updated.Wallet()
	}

	return &model.StatusChangeResult{
		Delta:   applied,
		Clamped: clamped,
		Wallet:  wallet,
	}, nil
}

// reportClamp flags a committed clamp for operator review.
func (s *TransactionService) reportClamp(result *model.StatusChangeResult, transactionID string) {
	if len(result.Clamped) == 0 {
		return
	}
	for _, field := range result.Clamped {
		prom.IncWalletClamp(field)
	}
	logger.Warn("wallet delta clamped at zero, counters drifted from transactions",
		"transaction_id", transactionID,
		"user_id", result.Transaction.UserID,
		"fields", result.Clamped,
	)
}

func applyStatusFields(t *model.Transaction, req model.StatusChangeRequest, now time.Time) {
	from := t.Status
	t.Status = req.NewStatus
	t.AdminNotes = strings.TrimSpace(req.AdminNotes)
	t.NotesToUser = strings.TrimSpace(req.NotesToUser)

	if req.NewStatus.Negative() {
		t.RejectionReason = strings.TrimSpace(req.RejectionReason)
	} else {
		t.RejectionReason = ""
	}

	switch req.NewStatus {
	case model.TransactionStatusConfirmed:
		if from != model.TransactionStatusConfirmed || t.ConfirmationDate == nil {
			t.ConfirmationDate = &now
		}
	case model.TransactionStatusPending, model.TransactionStatusRejected, model.TransactionStatusCancelled:
		t.ConfirmationDate = nil
	case model.TransactionStatusPaid:
		if from != model.TransactionStatusPaid || t.PaidDate == nil {
			t.PaidDate = &now
		}
	}
}

func staleTransaction(tx *model.Transaction, expected model.TransactionStatus) error {
	return &model.StaleStateError{
		Entity:   "transaction",
		ID:       tx.ID,
		Expected: string(expected),
		Actual:   string(tx.Status),
	}
}
