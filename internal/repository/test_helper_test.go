package repository

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/nimasrn/cashback-ledger/pkg/pg"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *pg.DB {
	t.Helper()

	db, err := pg.CreateSQLite(":memory:", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, AutoMigrate(context.Background(), db))

	return db
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedUser(t *testing.T, db *pg.DB, id string, w model.Wallet) *model.UserProfile {
	t.Helper()
	u, err := NewUserProfileRepository(db).Create(context.Background(), &model.UserProfile{
		ID:               id,
		Email:            id + "@example.com",
		PendingCashback:  w.PendingCashback,
		CashbackBalance:  w.CashbackBalance,
		LifetimeCashback: w.LifetimeCashback,
	})
	require.NoError(t, err)
	return u
}

func seedTransaction(t *testing.T, db *pg.DB, userID string, status model.TransactionStatus, cashback string, date time.Time) *model.Transaction {
	t.Helper()
	tx, err := NewTransactionRepository(db).Create(context.Background(), &model.Transaction{
		UserID:                userID,
		StoreName:             "Example Store",
		SaleAmount:            money(cashback).Mul(decimal.NewFromInt(10)),
		InitialCashbackAmount: money(cashback),
		Status:                status,
		TransactionDate:       date,
	})
	require.NoError(t, err)
	return tx
}
