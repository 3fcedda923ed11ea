package ledger

import (
	"fmt"

	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/shopspring/decimal"
)

// Classify maps a payout status change onto the settlement engine cases.
func Classify(from, to model.PayoutStatus) model.Resolution {
	switch {
	case to == model.PayoutStatusPaid && from != model.PayoutStatusPaid:
		return model.ResolutionSettle
	case to.Released() && !from.Released():
		return model.ResolutionReverse
	default:
		return model.ResolutionNeutral
	}
}

// CheckPayoutTransition rejects status changes the engine refuses to make.
// A paid payout can only be corrected by rejecting or failing it.
func CheckPayoutTransition(from, to model.PayoutStatus) error {
	if from == model.PayoutStatusPaid && to != model.PayoutStatusPaid && !to.Released() {
		return model.NewValidationError("status",
			fmt.Sprintf("a paid payout can only be rejected or failed, not moved to %s", to))
	}
	return nil
}

// PayoutBalanceDelta is the cashbackBalance delta of a payout status change.
// The amount is withdrawn from the balance when the payout is requested, so
// releasing it (rejected or failed) credits it back and reopening a
// released payout withdraws it again.
func PayoutBalanceDelta(from, to model.PayoutStatus, amount decimal.Decimal) decimal.Decimal {
	switch {
	case !from.Released() && to.Released():
		return amount
	case from.Released() && !to.Released():
		return amount.Neg()
	}
	return decimal.Zero
}
