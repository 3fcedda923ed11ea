package ledger

import (
	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/shopspring/decimal"
)

// Clamp floors every wallet counter at zero. It returns the delta that can
// actually be applied to w and the names of the fields whose requested
// delta had to be reduced. A clamped field means the counters drifted from
// the transactions they summarize.
func Clamp(w model.Wallet, d model.WalletDelta) (model.WalletDelta, []string) {
	var clamped []string

	floor := func(current, delta decimal.Decimal, field string) decimal.Decimal {
		if current.Add(delta).IsNegative() {
			clamped = append(clamped, field)
			if current.IsNegative() {
				return decimal.Zero
			}
			return current.Neg()
		}
		return delta
	}

	return model.WalletDelta{
		Pending:  floor(w.PendingCashback, d.Pending, model.WalletFieldPending),
		Balance:  floor(w.CashbackBalance, d.Balance, model.WalletFieldBalance),
		Lifetime: floor(w.LifetimeCashback, d.Lifetime, model.WalletFieldLifetime),
	}, clamped
}
