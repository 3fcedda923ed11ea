// Package ledger holds the money-movement rules of the cashback ledger:
// the wallet delta for every transaction status pair, the zero floor for
// wallet counters, the payout reservation rule and settlement selection.
// Everything here is pure; persistence lives in the repository package.
package ledger

import (
	"fmt"

	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/shopspring/decimal"
)

// coefficients are multiplied by the cashback amount to get the delta of
// pendingCashback, cashbackBalance and lifetimeCashback.
type coefficients struct {
	pending, balance, lifetime int64
}

type transition struct {
	from, to model.TransactionStatus
}

const (
	pending   = model.TransactionStatusPending
	confirmed = model.TransactionStatusConfirmed
	awaiting  = model.TransactionStatusAwaitingPayout
	paid      = model.TransactionStatusPaid
	rejected  = model.TransactionStatusRejected
	cancelled = model.TransactionStatusCancelled
)

// transitions is the only place wallet deltas are defined. A pair missing
// from the table is not a supported admin transition. Same-status pairs are
// handled before the lookup.
var transitions = map[transition]coefficients{
	{pending, confirmed}: {-1, +1, +1},
	{pending, rejected}:  {-1, 0, 0},
	{pending, cancelled}: {-1, 0, 0},

	{confirmed, pending}:   {+1, -1, -1},
	{confirmed, rejected}:  {0, -1, -1},
	{confirmed, cancelled}: {0, -1, -1},
	{confirmed, paid}:      {0, 0, 0},

	// awaiting_payout carries the same money as confirmed.
	{awaiting, pending}:   {+1, -1, -1},
	{awaiting, confirmed}: {0, 0, 0},
	{awaiting, rejected}:  {0, -1, -1},
	{awaiting, cancelled}: {0, -1, -1},
	{awaiting, paid}:      {0, 0, 0},

	// reopening a rejected or cancelled transaction restores its money.
	{rejected, pending}:    {+1, 0, 0},
	{rejected, confirmed}:  {0, +1, +1},
	{rejected, cancelled}:  {0, 0, 0},
	{cancelled, pending}:   {+1, 0, 0},
	{cancelled, confirmed}: {0, +1, +1},
	{cancelled, rejected}:  {0, 0, 0},
}

// DeltaFor returns the wallet delta of moving a transaction carrying amount
// from one status to another.
func DeltaFor(from, to model.TransactionStatus, amount decimal.Decimal) (model.WalletDelta, error) {
	if !from.Valid() {
		return model.WalletDelta{}, model.NewValidationError("status", fmt.Sprintf("unknown current status %q", from))
	}
	if !to.Valid() {
		return model.WalletDelta{}, model.NewValidationError("status", fmt.Sprintf("unknown target status %q", to))
	}
	if from == to {
		return model.WalletDelta{}, nil
	}
	c, ok := transitions[transition{from, to}]
	if !ok {
		return model.WalletDelta{}, model.NewValidationError("status",
			fmt.Sprintf("unsupported transition from %s to %s", from, to))
	}
	return model.WalletDelta{
		Pending:  amount.Mul(decimal.NewFromInt(c.pending)),
		Balance:  amount.Mul(decimal.NewFromInt(c.balance)),
		Lifetime: amount.Mul(decimal.NewFromInt(c.lifetime)),
	}, nil
}

// Supported reports whether the table defines from -> to.
func Supported(from, to model.TransactionStatus) bool {
	if from == to {
		return from.Valid()
	}
	_, ok := transitions[transition{from, to}]
	return ok
}

// AdjustmentDelta is the wallet delta of changing the honored cashback of a
// transaction in status from old to new. Only pending, confirmed and
// awaiting_payout transactions carry adjustable money.
func AdjustmentDelta(status model.TransactionStatus, oldAmount, newAmount decimal.Decimal) (model.WalletDelta, error) {
	diff := newAmount.Sub(oldAmount)
	switch status {
	case pending:
		return model.WalletDelta{Pending: diff}, nil
	case confirmed, awaiting:
		return model.WalletDelta{Balance: diff, Lifetime: diff}, nil
	}
	return model.WalletDelta{}, model.NewValidationError("status",
		fmt.Sprintf("cashback of a %s transaction cannot be adjusted", status))
}
