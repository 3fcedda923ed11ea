package ledger

import (
	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/shopspring/decimal"
)

// Tolerance is the largest difference between a payout amount and the sum of
// its settled transactions that still counts as an exact match.
var Tolerance = decimal.New(1, -2)

type Selection struct {
	IDs   []string
	Total decimal.Decimal
}

// SelectForPayout greedily picks candidates, which must already be ordered
// oldest first, without overshooting amount. It stops as soon as the running
// sum reaches amount. An empty or short selection is an error and nothing
// should be settled.
func SelectForPayout(payoutID string, candidates []*model.Transaction, amount decimal.Decimal) (Selection, error) {
	sel := Selection{Total: decimal.Zero}
	limit := amount.Add(Tolerance)
	target := amount.Sub(Tolerance)

	for _, c := range candidates {
		if sel.Total.GreaterThanOrEqual(target) {
			break
		}
		v := c.CashbackAmount()
		if !v.IsPositive() {
			continue
		}
		if sel.Total.Add(v).GreaterThan(limit) {
			continue
		}
		sel.IDs = append(sel.IDs, c.ID)
		sel.Total = sel.Total.Add(v)
	}

	if len(sel.IDs) == 0 || !Matches(sel.Total, amount) {
		return Selection{}, &model.InsufficientTransactionsError{
			PayoutID:  payoutID,
			Requested: amount.StringFixed(2),
			Available: sel.Total.StringFixed(2),
		}
	}
	return sel, nil
}

// Matches reports whether sum equals amount within Tolerance.
func Matches(sum, amount decimal.Decimal) bool {
	return sum.Sub(amount).Abs().LessThanOrEqual(Tolerance)
}

// Sum adds up the cashback amount of txs.
func Sum(txs []*model.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		total = total.Add(t.CashbackAmount())
	}
	return total
}
