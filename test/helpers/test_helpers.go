package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/nimasrn/cashback-ledger/internal/repository"
	"github.com/nimasrn/cashback-ledger/pkg/pg"
	"github.com/nimasrn/cashback-ledger/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SetupTestDB opens an in-memory sqlite ledger with the schema migrated.
func SetupTestDB(t *testing.T) *pg.DB {
	t.Helper()

	db, err := pg.CreateSQLite(":memory:", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, repository.AutoMigrate(context.Background(), db))
	return db
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	t.Helper()
	mr := miniredis.RunT(t)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, redis.NewFromClient("e2e:", client)
}

func CreateTestUser(t *testing.T, db *pg.DB, u *model.UserProfile) *model.UserProfile {
	t.Helper()
	saved, err := repository.NewUserProfileRepository(db).Create(context.Background(), u)
	require.NoError(t, err)
	return saved
}

func CreateTestTransaction(t *testing.T, db *pg.DB, tx *model.Transaction) *model.Transaction {
	t.Helper()
	saved, err := repository.NewTransactionRepository(db).Create(context.Background(), tx)
	require.NoError(t, err)
	return saved
}

func CreateTestPayout(t *testing.T, db *pg.DB, p *model.PayoutRequest) *model.PayoutRequest {
	t.Helper()
	saved, err := repository.NewPayoutRequestRepository(db).Create(context.Background(), p)
	require.NoError(t, err)
	return saved
}

func GetTransaction(t *testing.T, db *pg.DB, id string) *model.Transaction {
	t.Helper()
	tx, err := repository.NewTransactionRepository(db).Get(context.Background(), id)
	require.NoError(t, err)
	return tx
}

func GetWallet(t *testing.T, db *pg.DB, userID string) model.Wallet {
	t.Helper()
	u, err := repository.NewUserProfileRepository(db).Get(context.Background(), userID)
	require.NoError(t, err)
	return u.Wallet()
}

func Money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// AssertWallet compares the three counters numerically.
func AssertWallet(t *testing.T, pending, balance, lifetime string, w model.Wallet) {
	t.Helper()
	assert.Truef(t, Money(pending).Equal(w.PendingCashback), "pending: want %s, got %s", pending, w.PendingCashback)
	assert.Truef(t, Money(balance).Equal(w.CashbackBalance), "balance: want %s, got %s", balance, w.CashbackBalance)
	assert.Truef(t, Money(lifetime).Equal(w.LifetimeCashback), "lifetime: want %s, got %s", lifetime, w.LifetimeCashback)
}

func WaitForCondition(timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()
	if !WaitForCondition(timeout, condition) {
		t.Fatal(msg)
	}
}

func Ptr[T any](v T) *T {
	return &v
}
