package services

import (
	"context"
	"errors"
	"testing"

	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletService_AuditWallet(t *testing.T) {
	f := setupLedger(t)
	svc := f.walletService()
	ctx := context.Background()

	f.seedUser(t, "u1", "7", "12", "45")
	f.seedTransaction(t, "u1", model.TransactionStatusPending, "7", 0)
	f.seedTransaction(t, "u1", model.TransactionStatusConfirmed, "20", 1)
	f.seedTransaction(t, "u1", model.TransactionStatusPaid, "25", 2)
	f.seedTransaction(t, "u1", model.TransactionStatusRejected, "100", 3)
	f.seedPayout(t, "u1", model.PayoutStatusProcessing, "8")
	f.seedPayout(t, "u1", model.PayoutStatusPaid, "25")
	f.seedPayout(t, "u1", model.PayoutStatusRejected, "3")

	audit, err := svc.AuditWallet(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, audit.Consistent)
	assertWallet(t, "7", "12", "45", audit.Expected)
	assert.True(t, fixedNow.Equal(audit.AuditedAt))

	t.Run("reports drift", func(t *testing.T) {
		f.seedUser(t, "u2", "0", "10", "10")
		f.seedTransaction(t, "u2", model.TransactionStatusConfirmed, "4", 0)

		audit, err := svc.AuditWallet(ctx, "u2")
		require.NoError(t, err)
		assert.False(t, audit.Consistent)
		assertMoney(t, "6", audit.Drift.Balance)
		assertMoney(t, "6", audit.Drift.Lifetime)
		assert.True(t, audit.Drift.Pending.IsZero())
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.AuditWallet(ctx, "nobody")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestWalletService_GetWallet(t *testing.T) {
	f := setupLedger(t)
	f.seedUser(t, "u1", "1.5", "2", "3")

	u, err := f.walletService().GetWallet(context.Background(), "u1")
	require.NoError(t, err)
	assertWallet(t, "1.5", "2", "3", u.Wallet())
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthService_Check(t *testing.T) {
	f := setupLedger(t)
	down := errors.New("connection refused")

	svc := NewHealthService(map[string]Pinger{
		"database": f.db,
		"queue":    nil,
	})
	status, err := svc.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"database": "ok"}, status)

	svc = NewHealthService(map[string]Pinger{
		"database": f.db,
		"redis":    pingFunc(func(context.Context) error { return down }),
	})
	status, err = svc.Check(context.Background())
	assert.ErrorIs(t, err, down)
	assert.Equal(t, "connection refused", status["redis"])
	assert.Equal(t, "ok", status["database"])
}
