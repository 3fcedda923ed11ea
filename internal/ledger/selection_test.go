package ledger

import (
	"testing"
	"time"

	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(id, amount string, final *string) *model.Transaction {
	tx := &model.Transaction{
		ID:                    id,
		Status:                model.TransactionStatusConfirmed,
		InitialCashbackAmount: dec(amount),
		TransactionDate:       time.Now(),
	}
	if final != nil {
		f := dec(*final)
		tx.FinalCashbackAmount = &f
	}
	return tx
}

func TestSelectForPayout(t *testing.T) {
	candidates := []*model.Transaction{
		candidate("t1", "50", nil),
		candidate("t2", "30", nil),
		candidate("t3", "40", nil),
	}

	t.Run("selects oldest transactions that cover the amount", func(t *testing.T) {
		sel, err := SelectForPayout("p1", candidates, dec("80"))
		require.NoError(t, err)
		assert.Equal(t, []string{"t1", "t2"}, sel.IDs)
		assert.True(t, sel.Total.Equal(dec("80")))
	})

	t.Run("skips candidates that would overshoot", func(t *testing.T) {
		mixed := []*model.Transaction{
			candidate("t1", "50", nil),
			candidate("t2", "60", nil),
			candidate("t3", "40", nil),
		}
		sel, err := SelectForPayout("p1", mixed, dec("90"))
		require.NoError(t, err)
		assert.Equal(t, []string{"t1", "t3"}, sel.IDs)
	})

	t.Run("fails when available cashback is short", func(t *testing.T) {
		_, err := SelectForPayout("p1", candidates, dec("125"))
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrInsufficientTransactions)

		var ite *model.InsufficientTransactionsError
		require.ErrorAs(t, err, &ite)
		assert.Equal(t, "125.00", ite.Requested)
		assert.Equal(t, "120.00", ite.Available)
	})

	t.Run("fails without candidates", func(t *testing.T) {
		_, err := SelectForPayout("p1", nil, dec("10"))
		assert.ErrorIs(t, err, model.ErrInsufficientTransactions)
	})

	t.Run("fails when no combination reaches the amount", func(t *testing.T) {
		_, err := SelectForPayout("p1", candidates, dec("35"))
		assert.ErrorIs(t, err, model.ErrInsufficientTransactions)
	})

	t.Run("uses final cashback amount when set", func(t *testing.T) {
		final := "20"
		sel, err := SelectForPayout("p1", []*model.Transaction{candidate("t9", "50", &final)}, dec("20"))
		require.NoError(t, err)
		assert.Equal(t, []string{"t9"}, sel.IDs)
	})

	t.Run("accepts a sum within tolerance", func(t *testing.T) {
		sel, err := SelectForPayout("p1", []*model.Transaction{candidate("a", "33.33", nil), candidate("b", "33.33", nil), candidate("c", "33.33", nil)}, dec("100"))
		require.NoError(t, err)
		assert.Len(t, sel.IDs, 3)
	})
}

func TestMatches(t *testing.T) {
	assert.True(t, Matches(dec("99.99"), dec("100")))
	assert.False(t, Matches(dec("99.98"), dec("100")))
	assert.True(t, Matches(decimal.Zero, decimal.Zero))
}
