package services

import (
	"context"
	"time"

	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/nimasrn/cashback-ledger/pkg/logger"
	"github.com/shopspring/decimal"
)

type WalletService struct {
	users        UserProfileRepository
	transactions TransactionRepository
	payouts      PayoutRepository
	now          func() time.Time
}

func NewWalletService(users UserProfileRepository, transactions TransactionRepository, payouts PayoutRepository) *WalletService {
	return &WalletService{
		users:        users,
		transactions: transactions,
		payouts:      payouts,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *WalletService) GetWallet(ctx context.Context, userID string) (*model.UserProfile, error) {
	return s.users.Get(ctx, userID)
}

// AuditWallet recomputes the three counters of a user from the ledger and
// reports how far the stored values drifted.
//
//	pending  = cashback of pending transactions
//	balance  = cashback of confirmed and awaiting_payout transactions
//	           minus payouts still pending, approved or processing
//	lifetime = cashback of confirmed, awaiting_payout and paid transactions
func (s *WalletService) AuditWallet(ctx context.Context, userID string) (*model.WalletAudit, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	txs, err := s.transactions.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	payouts, err := s.payouts.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	expected := model.Wallet{
		PendingCashback:  decimal.Zero,
		CashbackBalance:  decimal.Zero,
		LifetimeCashback: decimal.Zero,
	}
	for _, tx := range txs {
		amount := tx.CashbackAmount()
		switch tx.Status {
		case model.TransactionStatusPending:
			expected.PendingCashback = expected.PendingCashback.Add(amount)
		case model.TransactionStatusConfirmed, model.TransactionStatusAwaitingPayout:
			expected.CashbackBalance = expected.CashbackBalance.Add(amount)
			expected.LifetimeCashback = expected.LifetimeCashback.Add(amount)
		case model.TransactionStatusPaid:
			expected.LifetimeCashback = expected.LifetimeCashback.Add(amount)
		}
	}
	for _, p := range payouts {
		switch p.Status {
		case model.PayoutStatusPending, model.PayoutStatusApproved, model.PayoutStatusProcessing:
			expected.CashbackBalance = expected.CashbackBalance.Sub(p.Amount)
		}
	}

	recorded := user.Wallet()
	drift := recorded.Sub(expected)
	audit := &model.WalletAudit{
		UserID:     userID,
		Recorded:   recorded,
		Expected:   expected,
		Drift:      drift,
		Consistent: drift.IsZero(),
		AuditedAt:  s.now(),
	}

	if !audit.Consistent {
		logger.Warn("wallet drifted from ledger",
			"user_id", userID,
			"pending_drift", drift.Pending.String(),
			"balance_drift", drift.Balance.String(),
			"lifetime_drift", drift.Lifetime.String(),
		)
	}
	return audit, nil
}
