package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	WalletFieldPending  = "pending_cashback"
	WalletFieldBalance  = "cashback_balance"
	WalletFieldLifetime = "lifetime_cashback"
)

type UserProfile struct {
	ID               string          `json:"id"`
	Email            string          `json:"email,omitempty"`
	DisplayName      string          `json:"display_name,omitempty"`
	PendingCashback  decimal.Decimal `json:"pending_cashback"`
	CashbackBalance  decimal.Decimal `json:"cashback_balance"`
	LifetimeCashback decimal.Decimal `json:"lifetime_cashback"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Version          int64           `json:"version"`
}

func (u *UserProfile) Wallet() Wallet {
	return Wallet{
		PendingCashback:  u.PendingCashback,
		CashbackBalance:  u.CashbackBalance,
		LifetimeCashback: u.LifetimeCashback,
	}
}

// Wallet is the three balance counters of a user profile.
type Wallet struct {
	PendingCashback  decimal.Decimal `json:"pending_cashback"`
	CashbackBalance  decimal.Decimal `json:"cashback_balance"`
	LifetimeCashback decimal.Decimal `json:"lifetime_cashback"`
}

func (w Wallet) Apply(d WalletDelta) Wallet {
	return Wallet{
		PendingCashback:  w.PendingCashback.Add(d.Pending),
		CashbackBalance:  w.CashbackBalance.Add(d.Balance),
		LifetimeCashback: w.LifetimeCashback.Add(d.Lifetime),
	}
}

func (w Wallet) Sub(o Wallet) WalletDelta {
	return WalletDelta{
		Pending:  w.PendingCashback.Sub(o.PendingCashback),
		Balance:  w.CashbackBalance.Sub(o.CashbackBalance),
		Lifetime: w.LifetimeCashback.Sub(o.LifetimeCashback),
	}
}

func (w Wallet) Equal(o Wallet) bool {
	return w.PendingCashback.Equal(o.PendingCashback) &&
		w.CashbackBalance.Equal(o.CashbackBalance) &&
		w.LifetimeCashback.Equal(o.LifetimeCashback)
}

// WalletDelta is a per-field increment applied to a wallet.
type WalletDelta struct {
	Pending  decimal.Decimal `json:"pending_cashback"`
	Balance  decimal.Decimal `json:"cashback_balance"`
	Lifetime decimal.Decimal `json:"lifetime_cashback"`
}

func (d WalletDelta) IsZero() bool {
	return d.Pending.IsZero() && d.Balance.IsZero() && d.Lifetime.IsZero()
}

func (d WalletDelta) Add(o WalletDelta) WalletDelta {
	return WalletDelta{
		Pending:  d.Pending.Add(o.Pending),
		Balance:  d.Balance.Add(o.Balance),
		Lifetime: d.Lifetime.Add(o.Lifetime),
	}
}

// WalletAudit compares the stored counters with the values recomputed from
// the user's transactions and unresolved payouts.
type WalletAudit struct {
	UserID     string      `json:"user_id"`
	Recorded   Wallet      `json:"recorded"`
	Expected   Wallet      `json:"expected"`
	Drift      WalletDelta `json:"drift"`
	Consistent bool        `json:"consistent"`
	AuditedAt  time.Time   `json:"audited_at"`
}
