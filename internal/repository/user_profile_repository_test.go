package repository

import (
	"context"
	"testing"

	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserProfileRepository_ApplyWalletDelta(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserProfileRepository(db)
	ctx := context.Background()

	u := seedUser(t, db, "u1", model.Wallet{
		PendingCashback:  money("100"),
		CashbackBalance:  money("20"),
		LifetimeCashback: money("50"),
	})

	updated, err := repo.ApplyWalletDelta(ctx, u, model.WalletDelta{
		Pending:  money("-40.25"),
		Balance:  money("40.25"),
		Lifetime: money("40.25"),
	})
	require.NoError(t, err)
	assert.True(t, updated.PendingCashback.Equal(money("59.75")))
	assert.True(t, updated.CashbackBalance.Equal(money("60.25")))
	assert.True(t, updated.LifetimeCashback.Equal(money("90.25")))
	assert.Equal(t, u.Version+1, updated.Version)

	t.Run("stale version", func(t *testing.T) {
		_, err := repo.ApplyWalletDelta(ctx, u, model.WalletDelta{Pending: money("1")})
		assert.ErrorIs(t, err, ErrConcurrentUpdate)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := repo.ApplyWalletDelta(ctx, &model.UserProfile{ID: "ghost", Version: 1}, model.WalletDelta{})
		assert.ErrorIs(t, err, ErrUserNotFound)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestUserProfileRepository_Get(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserProfileRepository(db)

	seedUser(t, db, "u1", model.Wallet{CashbackBalance: money("5.5")})

	u, err := repo.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1@example.com", u.Email)
	assert.True(t, u.Wallet().CashbackBalance.Equal(money("5.50")))
	assert.Equal(t, int64(1), u.Version)

	_, err = repo.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
