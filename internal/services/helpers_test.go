package services

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/nimasrn/cashback-ledger/internal/repository"
	"github.com/nimasrn/cashback-ledger/pkg/pg"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	baseDate = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fixedNow = time.Date(2024, 4, 2, 9, 30, 0, 0, time.UTC)
)

type ledgerFixture struct {
	db           *pg.DB
	store        *repository.Store
	users        *repository.UserProfileRepository
	transactions *repository.TransactionRepository
	payouts      *repository.PayoutRequestRepository
}

func setupLedger(t *testing.T) *ledgerFixture {
	t.Helper()

	db, err := pg.CreateSQLite(":memory:", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, repository.AutoMigrate(context.Background(), db))

	return &ledgerFixture{
		db:           db,
		store:        repository.NewStore(db, repository.StoreConfig{MaxRetries: 3, BaseDelay: time.Microsecond}),
		users:        repository.NewUserProfileRepository(db),
		transactions: repository.NewTransactionRepository(db),
		payouts:      repository.NewPayoutRequestRepository(db),
	}
}

func (f *ledgerFixture) transactionService() *TransactionService {
	s := NewTransactionService(f.store, f.transactions, f.users)
	s.now = func() time.Time { return fixedNow }
	return s
}

func (f *ledgerFixture) payoutService(publisher JobPublisher, cfg PayoutServiceConfig) *PayoutService {
	s := NewPayoutService(f.store, f.payouts, f.transactions, f.users, publisher, cfg)
	s.now = func() time.Time { return fixedNow }
	return s
}

func (f *ledgerFixture) walletService() *WalletService {
	s := NewWalletService(f.users, f.transactions, f.payouts)
	s.now = func() time.Time { return fixedNow }
	return s
}

func (f *ledgerFixture) seedUser(t *testing.T, id, pending, balance, lifetime string) *model.UserProfile {
	t.Helper()
	u, err := f.users.Create(context.Background(), &model.UserProfile{
		ID:               id,
		Email:            id + "@example.com",
		PendingCashback:  money(pending),
		CashbackBalance:  money(balance),
		LifetimeCashback: money(lifetime),
	})
	require.NoError(t, err)
	return u
}

func (f *ledgerFixture) seedTransaction(t *testing.T, userID string, status model.TransactionStatus, cashback string, day int) *model.Transaction {
	t.Helper()
	tx, err := f.transactions.Create(context.Background(), &model.Transaction{
		UserID:                userID,
		StoreName:             "Example Store",
		SaleAmount:            money(cashback).Mul(decimal.NewFromInt(20)),
		InitialCashbackAmount: money(cashback),
		Status:                status,
		TransactionDate:       baseDate.AddDate(0, 0, day),
	})
	require.NoError(t, err)
	return tx
}

func (f *ledgerFixture) seedPayout(t *testing.T, userID string, status model.PayoutStatus, amount string, ids ...string) *model.PayoutRequest {
	t.Helper()
	p, err := f.payouts.Create(context.Background(), &model.PayoutRequest{
		UserID:         userID,
		Amount:         money(amount),
		PaymentMethod:  "paypal",
		Status:         status,
		TransactionIDs: ids,
		RequestedAt:    baseDate,
	})
	require.NoError(t, err)
	return p
}

// link claims tx for payoutID the way the payout request flow does.
func (f *ledgerFixture) link(t *testing.T, tx *model.Transaction, payoutID string) *model.Transaction {
	t.Helper()
	updated := tx.Clone()
	updated.Status = model.TransactionStatusAwaitingPayout
	updated.PayoutID = &payoutID
	saved, err := f.transactions.Update(context.Background(), updated)
	require.NoError(t, err)
	return saved
}

func (f *ledgerFixture) wallet(t *testing.T, userID string) model.Wallet {
	t.Helper()
	u, err := f.users.Get(context.Background(), userID)
	require.NoError(t, err)
	return u.Wallet()
}

func (f *ledgerFixture) reload(t *testing.T, id string) *model.Transaction {
	t.Helper()
	tx, err := f.transactions.Get(context.Background(), id)
	require.NoError(t, err)
	return tx
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, money(want).Equal(got), "want %s, got %s", want, got.String())
}

func assertWallet(t *testing.T, pending, balance, lifetime string, w model.Wallet) {
	t.Helper()
	assert.Truef(t, money(pending).Equal(w.PendingCashback), "pending: want %s, got %s", pending, w.PendingCashback)
	assert.Truef(t, money(balance).Equal(w.CashbackBalance), "balance: want %s, got %s", balance, w.CashbackBalance)
	assert.Truef(t, money(lifetime).Equal(w.LifetimeCashback), "lifetime: want %s, got %s", lifetime, w.LifetimeCashback)
}
