package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RunAtomic(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		store := NewStore(db, StoreConfig{})
		repo := NewUserProfileRepository(db)

		err := store.RunAtomic(ctx, func(ctx context.Context) error {
			_, err := repo.Create(ctx, &model.UserProfile{ID: "committed"})
			return err
		})
		require.NoError(t, err)

		_, err = repo.Get(ctx, "committed")
		assert.NoError(t, err)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		store := NewStore(db, StoreConfig{})
		repo := NewUserProfileRepository(db)
		boom := errors.New("boom")

		err := store.RunAtomic(ctx, func(ctx context.Context) error {
			if _, err := repo.Create(ctx, &model.UserProfile{ID: "rolled-back"}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = repo.Get(ctx, "rolled-back")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("retries concurrent updates", func(t *testing.T) {
		store := NewStore(db, StoreConfig{MaxRetries: 3, BaseDelay: time.Microsecond})
		attempts := 0

		err := store.RunAtomic(ctx, func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return fmt.Errorf("%w: test", ErrConcurrentUpdate)
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		store := NewStore(db, StoreConfig{MaxRetries: 2, BaseDelay: time.Microsecond})
		attempts := 0

		err := store.RunAtomic(ctx, func(ctx context.Context) error {
			attempts++
			return ErrConcurrentUpdate
		})
		assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
		assert.Equal(t, 3, attempts)
	})

	t.Run("does not retry other errors", func(t *testing.T) {
		store := NewStore(db, StoreConfig{MaxRetries: 3, BaseDelay: time.Microsecond})
		attempts := 0

		err := store.RunAtomic(ctx, func(ctx context.Context) error {
			attempts++
			return model.ErrValidation
		})
		assert.ErrorIs(t, err, model.ErrValidation)
		assert.Equal(t, 1, attempts)
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		store := NewStore(db, StoreConfig{MaxRetries: 3, BaseDelay: time.Hour})
		cctx, cancel := context.WithCancel(ctx)

		err := store.RunAtomic(cctx, func(ctx context.Context) error {
			cancel()
			return ErrConcurrentUpdate
		})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("joins an outer transaction", func(t *testing.T) {
		store := NewStore(db, StoreConfig{})
		calls := 0

		err := store.RunBatch(ctx, func(ctx context.Context) error {
			return store.RunAtomic(ctx, func(ctx context.Context) error {
				calls++
				return nil
			})
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})
}

func TestStore_StaleWriteIsRetried(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	store := NewStore(db, StoreConfig{MaxRetries: 3, BaseDelay: time.Microsecond})
	users := NewUserProfileRepository(db)

	seedUser(t, db, "u1", model.Wallet{})
	stale, err := users.Get(ctx, "u1")
	require.NoError(t, err)

	// Another writer moves the version forward.
	_, err = users.ApplyWalletDelta(ctx, stale, model.WalletDelta{Pending: money("1")})
	require.NoError(t, err)

	attempts := 0
	err = store.RunAtomic(ctx, func(ctx context.Context) error {
		attempts++
		u := stale
		if attempts > 1 {
			var err error
			if u, err = users.Get(ctx, "u1"); err != nil {
				return err
			}
		}
		_, err := users.ApplyWalletDelta(ctx, u, model.WalletDelta{Pending: money("2")})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	u, err := users.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, u.PendingCashback.Equal(money("3")))
	assert.Equal(t, int64(3), u.Version)
}
