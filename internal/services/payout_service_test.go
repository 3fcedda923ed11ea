package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockJobPublisher struct {
	mock.Mock
}

func (m *MockJobPublisher) PublishJSON(ctx context.Context, data any, metadata map[string]string) (string, error) {
	args := m.Called(ctx, data, metadata)
	return args.String(0), args.Error(1)
}

// failingSync fails the follow-up batch writes.
type failingSync struct {
	TransactionRepository
	err error
}

func (f failingSync) MarkPaid(context.Context, []string, string, time.Time) error { return f.err }

func (f failingSync) RevertToConfirmed(context.Context, []string, string) error { return f.err }

// seedSettleable creates a user holding four confirmed transactions worth 40
// and an open payout of amount, with the wallet already reflecting it.
func seedSettleable(t *testing.T, f *ledgerFixture, amount, balance string) (*model.PayoutRequest, []*model.Transaction) {
	t.Helper()
	f.seedUser(t, "u1", "0", balance, "40")
	txs := []*model.Transaction{
		f.seedTransaction(t, "u1", model.TransactionStatusConfirmed, "10", 0),
		f.seedTransaction(t, "u1", model.TransactionStatusConfirmed, "5", 1),
		f.seedTransaction(t, "u1", model.TransactionStatusConfirmed, "20", 2),
		f.seedTransaction(t, "u1", model.TransactionStatusConfirmed, "5", 3),
	}
	return f.seedPayout(t, "u1", model.PayoutStatusPending, amount), txs
}

func assertConsistent(t *testing.T, f *ledgerFixture, userID string) {
	t.Helper()
	audit, err := f.walletService().AuditWallet(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, audit.Consistent, "drift: %+v", audit.Drift)
}

func TestPayoutService_SettleSelectsOldestFirst(t *testing.T) {
	f := setupLedger(t)
	svc := f.payoutService(nil, PayoutServiceConfig{})
	ctx := context.Background()

	p, txs := seedSettleable(t, f, "15", "25")

	res, err := svc.ResolvePayout(ctx, model.PayoutResolutionRequest{
		PayoutID:       p.ID,
		ExpectedStatus: model.PayoutStatusPending,
		NewStatus:      model.PayoutStatusPaid,
		AdminNotes:     "sent via paypal",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ResolutionSettle, res.Resolution)
	assert.Equal(t, []string{txs[0].ID, txs[1].ID}, res.TransactionIDs)
	assert.True(t, res.BalanceDelta.IsZero())
	assert.False(t, res.Atomic)
	assert.Equal(t, model.PayoutStatusPaid, res.Payout.Status)
	assert.Equal(t, "sent via paypal", res.Payout.AdminNotes)
	require.NotNil(t, res.Payout.ProcessedAt)
	assert.True(t, fixedNow.Equal(*res.Payout.ProcessedAt))

	for _, tx := range txs[:2] {
		got := f.reload(t, tx.ID)
		assert.Equal(t, model.TransactionStatusPaid, got.Status)
		assert.Equal(t, p.ID, got.LinkedPayout())
		require.NotNil(t, got.PaidDate)
		assert.True(t, fixedNow.Equal(*got.PaidDate))
	}
	for _, tx := range txs[2:] {
		assert.Equal(t, model.TransactionStatusConfirmed, f.reload(t, tx.ID).Status)
	}

	stored, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, res.TransactionIDs, stored.TransactionIDs)

	assertWallet(t, "0", "25", "40", f.wallet(t, "u1"))
	assertConsistent(t, f, "u1")
}

func TestPayoutService_SettleSkipsOvershoot(t *testing.T) {
	f := setupLedger(t)
	svc := f.payoutService(nil, PayoutServiceConfig{})

	p, txs := seedSettleable(t, f, "20", "20")

	res, err := svc.ResolvePayout(context.Background(), model.PayoutResolutionRequest{
		PayoutID:  p.ID,
		NewStatus: model.PayoutStatusPaid,
	})
	require.NoError(t, err)
	// 10 + 5, the 20 would overshoot, then the last 5
	assert.Equal(t, []string{txs[0].ID, txs[1].ID, txs[3].ID}, res.TransactionIDs)
	assertConsistent(t, f, "u1")
}

func TestPayoutService_SettleInsufficient(t *testing.T) {
	f := setupLedger(t)
	svc := f.payoutService(nil, PayoutServiceConfig{})

	p, txs := seedSettleable(t, f, "50", "0")

	res, err := svc.ResolvePayout(context.Background(), model.PayoutResolutionRequest{
		PayoutID:  p.ID,
		NewStatus: model.PayoutStatusPaid,
	})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, model.ErrInsufficientTransactions)

	var insufficient *model.InsufficientTransactionsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "50.00", insufficient.Requested)

	stored, err := svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PayoutStatusPending, stored.Status)
	assert.Equal(t, int64(1), stored.Version)
	for _, tx := range txs {
		assert.Equal(t, model.TransactionStatusConfirmed, f.reload(t, tx.ID).Status)
	}
}

func TestPayoutService_SettlePrelinked(t *testing.T) {
	f := setupLedger(t)
	svc := f.payoutService(nil, PayoutServiceConfig{})
	ctx := context.Background()

	f.seedUser(t, "u1", "0", "0", "15")
	a := f.seedTransaction(t, "u1", model.TransactionStatusConfirmed, "10", 0)
	b := f.seedTransaction(t, "u1", model.TransactionStatusConfirmed, "5", 1)
	p := f.seedPayout(t, "u1", model.PayoutStatusProcessing, "15", b.ID, a.ID)
	f.link(t, a, p.ID)
	f.link(t, b, p.ID)

	res, err := svc.ResolvePayout(ctx, model.PayoutResolutionRequest{
		PayoutID:  p.ID,
		NewStatus: model.PayoutStatusPaid,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, a.ID}, res.TransactionIDs)
	assert.Equal(t, model.TransactionStatusPaid, f.reload(t, a.ID).Status)
	assert.Equal(t, model.TransactionStatusPaid, f.reload(t, b.ID).Status)
	assertConsistent(t, f, "u1")
}

func TestPayoutService_SettlePrelinkedInvalid(t *testing.T) {
	f := setupLedger(t)
	svc := f.payoutService(nil, PayoutServiceConfig{})
	ctx := context.Background()

	f.seedUser(t, "u1", "0", "0", "20")
	a := f.seedTransaction(t, "u1", model.TransactionStatusConfirmed, "10", 0)
	b := f.seedTransaction(t, "u1", model.TransactionStatusConfirmed, "10", 1)
	pending := f.seedTransaction(t, "u1", model.TransactionStatusPending, "10", 2)

	other := f.seedPayout(t, "u1", model.PayoutStatusPending, "10", b.ID)
	f.link(t, b, other.ID)

	tests := []struct {
		name string
		ids  []string
	}{
		{name: "claimed by another payout", ids: []string{a.ID, b.ID}},
		{name: "not yet confirmed", ids: []string{a.ID, pending.ID}},
		{name: "missing transaction", ids: []string{a.ID, "missing"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := f.seedPayout(t, "u1", model.PayoutStatusApproved, "20", tt.ids...)

			_, err := svc.ResolvePayout(ctx, model.PayoutResolutionRequest{
				PayoutID:  p.ID,
				NewStatus: model.PayoutStatusPaid,
			})
			assert.ErrorIs(t, err, model.ErrInsufficientTransactions)

			stored, err := svc.Get(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, model.PayoutStatusApproved, stored.Status)
		})
	}
	assert.Equal(t, model.TransactionStatusConfirmed, f.reload(t, a.ID).Status)
}

func TestPayoutService_ReverseCreditsAndReleases(t *testing.T) {
	f := setupLedger(t)
	svc := f.payoutService(nil, PayoutServiceConfig{})
	ctx := context.Background()

	p, txs := seedSettleable(t, f, "15", "25")

	_, err := svc.ResolvePayout(ctx, model.PayoutResolutionRequest{PayoutID: p.ID, NewStatus: model.PayoutStatusPaid})
	require.NoError(t, err)

	res, err := svc.ResolvePayout(ctx, model.PayoutResolutionRequest{
		PayoutID:       p.ID,
		ExpectedStatus: model.PayoutStatusPaid,
		NewStatus:      model.PayoutStatusRejected,
		FailureReason:  "bank bounced the transfer",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ResolutionReverse, res.Resolution)
	assert.Equal(t, []string{txs[0].ID, txs[1].ID}, res.TransactionIDs)
	assertMoney(t, "15", res.BalanceDelta)
	assert.Empty(t, res.Payout.TransactionIDs)
	assert.Equal(t, "bank bounced the transfer", res.Payout.FailureReason)

	for _, tx := range txs[:2] {
		got := f.reload(t, tx.ID)
		assert.Equal(t, model.TransactionStatusConfirmed, got.Status)
		assert.Nil(t, got.PayoutID)
		assert.Nil(t, got.PaidDate)
	}
	assertWallet(t, "0", "40", "40", f.wallet(t, "u1"))
	assertConsistent(t, f, "u1")

	// a second release must not credit again
	res, err = svc.ResolvePayout(ctx, model.PayoutResolutionRequest{
		PayoutID:      p.ID,
		NewStatus:     model.PayoutStatusFailed,
		FailureReason: "still bounced",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ResolutionNeutral, res.Resolution)
	assert.True(t, res.BalanceDelta.IsZero())
	assertWallet(t, "0", "40", "40", f.wallet(t, "u1"))

	_, err = svc.ResolvePayout(ctx, model.PayoutResolutionRequest{
		PayoutID:      p.ID,
		NewStatus:     model.PayoutStatusFailed,
		FailureReason: "still bounced",
	})
	require.NoError(t, err)
	assertWallet(t, "0", "40", "40", f.wallet(t, "u1"))
	assertConsistent(t, f, "u1")
}

func TestPayoutService_ReversePendingReleasesPrelinked(t *testing.T) {
	f := setupLedger(t)
	svc := f.payoutService(nil, PayoutServiceConfig{})

	f.seedUser(t, "u1", "0", "0", "15")
	tx := f.seedTransaction(t, "u1", model.TransactionStatusConfirmed, "15", 0)
	p := f.seedPayout(t, "u1", model.PayoutStatusPending, "15", tx.ID)
	f.link(t, tx, p.ID)

	res, err := svc.ResolvePayout(context.Background(), model.PayoutResolutionRequest{
		PayoutID:      p.ID,
		NewStatus:     model.PayoutStatusRejected,
		FailureReason: "invalid payment details",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{tx.ID}, res.TransactionIDs)

	got := f.reload(t, tx.ID)
	assert.Equal(t, model.TransactionStatusConfirmed, got.Status)
	assert.Empty(t, got.LinkedPayout())
	assertWallet(t, "0", "15", "15", f.wallet(t, "u1"))
	assertConsistent(t, f, "u1")
}

func TestPayoutService_Reopen(t *testing.T) {
	f := setupLedger(t)
	svc := f.payoutService(nil, PayoutServiceConfig{})
	ctx := context.Background()

	f.seedUser(t, "u1", "0", "20", "20")
	f.seedTransaction(t, "u1", model.TransactionStatusConfirmed, "20", 0)
	p := f.seedPayout(t, "u1", model.PayoutStatusRejected, "15")

	res, err := svc.ResolvePayout(ctx, model.PayoutResolutionRequest{
		PayoutID:       p.ID,
		ExpectedStatus: model.PayoutStatusRejected,
		NewStatus:      model.PayoutStatusPending,
	})
	require.NoError(t, err)
	assert.Equal(t, model.ResolutionNeutral, res.Resolution)
	assertMoney(t, "-15", res.BalanceDelta)
	assert.Empty(t, res.Payout.FailureReason)
	assertWallet(t, "0", "5", "20", f.wallet(t, "u1"))
	assertConsistent(t, f, "u1")

	t.Run("short balance is refused", func(t *testing.T) {
		short := f.seedPayout(t, "u1", model.PayoutStatusFailed, "10")

		_, err := svc.ResolvePayout(ctx, model.PayoutResolutionRequest{
			PayoutID:  short.ID,
			NewStatus: model.PayoutStatusApproved,
		})
		assert.ErrorIs(t, err, model.ErrValidation)

		stored, err := svc.Get(ctx, short.ID)
		require.NoError(t, err)
		assert.Equal(t, model.PayoutStatusFailed, stored.Status)
		assertWallet(t, "0", "5", "20", f.wallet(t, "u1"))
	})
}

func TestPayoutService_AtomicSettlement(t *testing.T) {
	f := setupLedger(t)
	svc := f.payoutService(nil, PayoutServiceConfig{AtomicSettlementLimit: 2})
	ctx := context.Background()

	p, txs := seedSettleable(t, f, "15", "25")

	res, err := svc.ResolvePayout(ctx, model.PayoutResolutionRequest{PayoutID: p.ID, NewStatus: model.PayoutStatusPaid})
	require.NoError(t, err)
	assert.True(t, res.Atomic)
	for _, tx := range txs[:2] {
		got := f.reload(t, tx.ID)
		assert.Equal(t, model.TransactionStatusPaid, got.Status)
		assert.Equal(t, int64(2), got.Version)
	}

	res, err = svc.ResolvePayout(ctx, model.PayoutResolutionRequest{
		PayoutID:      p.ID,
		NewStatus:     model.PayoutStatusFailed,
		FailureReason: "returned",
	})
	require.NoError(t, err)
	assert.True(t, res.Atomic)
	assert.Equal(t, model.TransactionStatusConfirmed, f.reload(t, txs[0].ID).Status)
	assertConsistent(t, f, "u1")

	t.Run("above limit stays two-phase", func(t *testing.T) {
		big := f.seedPayout(t, "u1", model.PayoutStatusPending, "40")
		res, err := svc.ResolvePayout(ctx, model.PayoutResolutionRequest{PayoutID: big.ID, NewStatus: model.PayoutStatusPaid})
		require.NoError(t, err)
		assert.False(t, res.Atomic)
		assert.Len(t, res.TransactionIDs, 4)
	})
}

func TestPayoutService_ResolveErrors(t *testing.T) {
	f := setupLedger(t)
	svc := f.payoutService(nil, PayoutServiceConfig{})
	ctx := context.Background()

	f.seedUser(t, "u1", "0", "0", "0")
	pending := f.seedPayout(t, "u1", model.PayoutStatusPending, "10")
	paid := f.seedPayout(t, "u1", model.PayoutStatusPaid, "10")

	tests := []struct {
		name string
		req  model.PayoutResolutionRequest
		want error
	}{
		{
			name: "stale",
			req:  model.PayoutResolutionRequest{PayoutID: pending.ID, ExpectedStatus: model.PayoutStatusApproved, NewStatus: model.PayoutStatusProcessing},
			want: model.ErrStaleState,
		},
		{
			name: "paid back to pending",
			req:  model.PayoutResolutionRequest{PayoutID: paid.ID, NewStatus: model.PayoutStatusPending},
			want: model.ErrValidation,
		},
		{
			name: "rejection without reason",
			req:  model.PayoutResolutionRequest{PayoutID: pending.ID, NewStatus: model.PayoutStatusRejected},
			want: model.ErrValidation,
		},
		{
			name: "unknown status",
			req:  model.PayoutResolutionRequest{PayoutID: pending.ID, NewStatus: "sent"},
			want: model.ErrValidation,
		},
		{
			name: "unknown payout",
			req:  model.PayoutResolutionRequest{PayoutID: "missing", NewStatus: model.PayoutStatusApproved},
			want: model.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.ResolvePayout(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, res)
		})
	}

	t.Run("neutral move", func(t *testing.T) {
		res, err := svc.ResolvePayout(ctx, model.PayoutResolutionRequest{PayoutID: pending.ID, NewStatus: model.PayoutStatusApproved})
		require.NoError(t, err)
		assert.Equal(t, model.ResolutionNeutral, res.Resolution)
		assert.Empty(t, res.TransactionIDs)
		assert.Equal(t, int64(2), res.Payout.Version)
	})
}

func TestPayoutService_PartialSettlement(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()
	p, txs := seedSettleable(t, f, "15", "25")

	pub := new(MockJobPublisher)
	pub.On("PublishJSON", mock.Anything, mock.AnythingOfType("model.SettlementSyncJob"),
		mock.MatchedBy(func(md map[string]string) bool {
			return md["type"] == JobTypeSettlementSync && md["action"] == "settle" && md["payout_id"] == p.ID
		})).Return("1-0", nil).Once()

	boom := errors.New("connection reset")
	svc := NewPayoutService(f.store, f.payouts, failingSync{TransactionRepository: f.transactions, err: boom}, f.users, pub, PayoutServiceConfig{})
	svc.now = func() time.Time { return fixedNow }

	res, err := svc.ResolvePayout(ctx, model.PayoutResolutionRequest{PayoutID: p.ID, NewStatus: model.PayoutStatusPaid})
	require.NotNil(t, res)
	assert.Equal(t, model.PayoutStatusPaid, res.Payout.Status)
	assert.ErrorIs(t, err, model.ErrPartialSettlement)
	assert.ErrorIs(t, err, boom)

	var partial *model.PartialSettlementError
	require.ErrorAs(t, err, &partial)
	assert.True(t, partial.Enqueued)
	assert.Equal(t, model.SettlementActionSettle, partial.Action)
	assert.Equal(t, []string{txs[0].ID, txs[1].ID}, partial.TransactionIDs)
	pub.AssertExpectations(t)

	// phase one committed, the transactions did not move
	stored, err := f.payouts.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PayoutStatusPaid, stored.Status)
	assert.Equal(t, model.TransactionStatusConfirmed, f.reload(t, txs[0].ID).Status)

	job := pub.Calls[0].Arguments.Get(1).(model.SettlementSyncJob)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, p.ID, job.PayoutID)
	assert.True(t, fixedNow.Equal(job.At))

	applied, err := f.payoutService(nil, PayoutServiceConfig{}).ReplaySettlement(ctx, job)
	require.NoError(t, err)
	assert.True(t, applied)
	for _, tx := range txs[:2] {
		got := f.reload(t, tx.ID)
		assert.Equal(t, model.TransactionStatusPaid, got.Status)
		assert.Equal(t, p.ID, got.LinkedPayout())
	}
	assertConsistent(t, f, "u1")
}

func TestPayoutService_UnsyncedSettlementKeepsItsTransactions(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()

	// both payouts were debited at request time: 40 - 15 - 25
	first, txs := seedSettleable(t, f, "15", "0")
	second := f.seedPayout(t, "u1", model.PayoutStatusPending, "25")

	pub := new(MockJobPublisher)
	pub.On("PublishJSON", mock.Anything, mock.AnythingOfType("model.SettlementSyncJob"), mock.Anything).
		Return("1-0", nil).Once()

	broken := NewPayoutService(f.store, f.payouts, failingSync{TransactionRepository: f.transactions, err: errors.New("connection reset")}, f.users, pub, PayoutServiceConfig{})
	broken.now = func() time.Time { return fixedNow }

	_, err := broken.ResolvePayout(ctx, model.PayoutResolutionRequest{PayoutID: first.ID, NewStatus: model.PayoutStatusPaid})
	require.ErrorIs(t, err, model.ErrPartialSettlement)
	job := pub.Calls[0].Arguments.Get(1).(model.SettlementSyncJob)
	assert.Equal(t, []string{txs[0].ID, txs[1].ID}, job.TransactionIDs)

	svc := f.payoutService(nil, PayoutServiceConfig{})
	res, err := svc.ResolvePayout(ctx, model.PayoutResolutionRequest{PayoutID: second.ID, NewStatus: model.PayoutStatusPaid})
	require.NoError(t, err)
	assert.Equal(t, []string{txs[2].ID, txs[3].ID}, res.TransactionIDs)

	applied, err := svc.ReplaySettlement(ctx, job)
	require.NoError(t, err)
	assert.True(t, applied)

	for i, tx := range txs {
		want := second.ID
		if i < 2 {
			want = first.ID
		}
		got := f.reload(t, tx.ID)
		assert.Equal(t, model.TransactionStatusPaid, got.Status)
		assert.Equal(t, want, got.LinkedPayout())
	}
	assertConsistent(t, f, "u1")
}

func TestPayoutService_ReplayRefusesTransactionsOfAnotherPayout(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()
	p, txs := seedSettleable(t, f, "15", "25")

	broken := NewPayoutService(f.store, f.payouts, failingSync{TransactionRepository: f.transactions, err: errors.New("boom")}, f.users, nil, PayoutServiceConfig{})
	_, err := broken.ResolvePayout(ctx, model.PayoutResolutionRequest{PayoutID: p.ID, NewStatus: model.PayoutStatusPaid})
	require.ErrorIs(t, err, model.ErrPartialSettlement)

	// a row settled elsewhere in the meantime
	require.NoError(t, f.transactions.MarkPaid(ctx, []string{txs[0].ID}, "p-other", fixedNow))

	svc := f.payoutService(nil, PayoutServiceConfig{})
	applied, err := svc.ReplaySettlement(ctx, model.SettlementSyncJob{
		ID:             "job-1",
		PayoutID:       p.ID,
		Action:         model.SettlementActionSettle,
		TransactionIDs: []string{txs[0].ID, txs[1].ID},
		At:             fixedNow,
	})
	assert.False(t, applied)
	assert.ErrorIs(t, err, model.ErrSettlementConflict)

	assert.Equal(t, "p-other", f.reload(t, txs[0].ID).LinkedPayout())
	assert.Equal(t, model.TransactionStatusConfirmed, f.reload(t, txs[1].ID).Status)
}

func TestPayoutService_PartialSettlementWithoutPublisher(t *testing.T) {
	f := setupLedger(t)
	p, _ := seedSettleable(t, f, "15", "25")

	svc := NewPayoutService(f.store, f.payouts, failingSync{TransactionRepository: f.transactions, err: errors.New("boom")}, f.users, nil, PayoutServiceConfig{})

	res, err := svc.ResolvePayout(context.Background(), model.PayoutResolutionRequest{PayoutID: p.ID, NewStatus: model.PayoutStatusPaid})
	require.NotNil(t, res)

	var partial *model.PartialSettlementError
	require.ErrorAs(t, err, &partial)
	assert.False(t, partial.Enqueued)
}

func TestPayoutService_ReplaySuperseded(t *testing.T) {
	f := setupLedger(t)
	svc := f.payoutService(nil, PayoutServiceConfig{})
	ctx := context.Background()

	p, txs := seedSettleable(t, f, "15", "25")
	_, err := svc.ResolvePayout(ctx, model.PayoutResolutionRequest{PayoutID: p.ID, NewStatus: model.PayoutStatusPaid})
	require.NoError(t, err)
	_, err = svc.ResolvePayout(ctx, model.PayoutResolutionRequest{PayoutID: p.ID, NewStatus: model.PayoutStatusRejected, FailureReason: "x"})
	require.NoError(t, err)

	applied, err := svc.ReplaySettlement(ctx, model.SettlementSyncJob{
		ID:             "job-1",
		PayoutID:       p.ID,
		Action:         model.SettlementActionSettle,
		TransactionIDs: []string{txs[0].ID, txs[1].ID},
		At:             fixedNow,
	})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, model.TransactionStatusConfirmed, f.reload(t, txs[0].ID).Status)

	applied, err = svc.ReplaySettlement(ctx, model.SettlementSyncJob{
		ID:             "job-2",
		PayoutID:       p.ID,
		Action:         model.SettlementActionRevert,
		TransactionIDs: []string{txs[0].ID, txs[1].ID},
	})
	require.NoError(t, err)
	assert.True(t, applied)

	_, err = svc.ReplaySettlement(ctx, model.SettlementSyncJob{PayoutID: p.ID, Action: "refund"})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.ReplaySettlement(ctx, model.SettlementSyncJob{PayoutID: "missing", Action: model.SettlementActionSettle})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestPayoutService_List(t *testing.T) {
	f := setupLedger(t)
	svc := f.payoutService(nil, PayoutServiceConfig{})

	f.seedUser(t, "u1", "0", "0", "0")
	f.seedPayout(t, "u1", model.PayoutStatusPending, "10")
	f.seedPayout(t, "u1", model.PayoutStatusPaid, "20")

	got, total, err := svc.List(context.Background(), model.PayoutFilter{Statuses: []model.PayoutStatus{model.PayoutStatusPaid}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, got, 1)
	assertMoney(t, "20", got[0].Amount)
}
