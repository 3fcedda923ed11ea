package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/cashback-ledger/internal/ledger"
	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/nimasrn/cashback-ledger/pkg/logger"
	"github.com/nimasrn/cashback-ledger/pkg/prom"
	"github.com/shopspring/decimal"
)

const JobTypeSettlementSync = "settlement_sync"

type PayoutServiceConfig struct {
	// AtomicSettlementLimit widens the atomic unit to the transaction writes
	// when a resolution touches at most this many transactions. Zero keeps
	// the two-phase settlement.
	AtomicSettlementLimit int
}

// PayoutService is the payout settlement engine. Phase one writes the payout
// and the wallet atomically. Phase two batches the transaction writes and,
// when it fails, leaves a sync job for the reconciler.
type PayoutService struct {
	store        UnitOfWork
	payouts      PayoutRepository
	transactions TransactionRepository
	users        UserProfileRepository
	publisher    JobPublisher
	config       PayoutServiceConfig
	now          func() time.Time
}

// NewPayoutService creates the engine. publisher may be nil, in which case
// failed follow-up batches are only reported.
func NewPayoutService(store UnitOfWork, payouts PayoutRepository, transactions TransactionRepository, users UserProfileRepository, publisher JobPublisher, cfg PayoutServiceConfig) *PayoutService {
	return &PayoutService{
		store:        store,
		payouts:      payouts,
		transactions: transactions,
		users:        users,
		publisher:    publisher,
		config:       cfg,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *PayoutService) Get(ctx context.Context, id string) (*model.PayoutRequest, error) {
	return s.payouts.Get(ctx, id)
}

func (s *PayoutService) List(ctx context.Context, f model.PayoutFilter) ([]*model.PayoutRequest, int64, error) {
	return s.payouts.List(ctx, f)
}

// ResolvePayout applies an admin decision to a payout. On a follow-up batch
// failure both the committed result and a *model.PartialSettlementError are
// returned.
func (s *PayoutService) ResolvePayout(ctx context.Context, req model.PayoutResolutionRequest) (*model.PayoutResolutionResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	var (
		result *model.PayoutResolutionResult
		from   model.PayoutStatus
	)

	err := s.store.RunAtomic(ctx, func(ctx context.Context) error {
		p, err := s.payouts.Get(ctx, req.PayoutID)
		if err != nil {
			return err
		}
		if req.ExpectedStatus != "" && p.Status != req.ExpectedStatus {
			return &model.StaleStateError{
				Entity:   "payout",
				ID:       p.ID,
				Expected: string(req.ExpectedStatus),
				Actual:   string(p.Status),
			}
		}
		if err := ledger.CheckPayoutTransition(p.Status, req.NewStatus); err != nil {
			return err
		}

		from = p.Status
		now := s.now()
		resolution := ledger.Classify(p.Status, req.NewStatus)

		updated := p.Clone()
		updated.Status = req.NewStatus
		updated.ProcessedAt = &now
		if notes := strings.TrimSpace(req.AdminNotes); notes != "" {
			updated.AdminNotes = notes
		}
		if req.NewStatus.Released() {
			updated.FailureReason = strings.TrimSpace(req.FailureReason)
		} else {
			updated.FailureReason = ""
		}

		var ids []string
		switch resolution {
		case model.ResolutionSettle:
			ids, err = s.settlementSet(ctx, p)
			if err != nil {
				return err
			}
			updated.TransactionIDs = ids
		case model.ResolutionReverse:
			ids = slices.Clone(p.TransactionIDs)
			updated.TransactionIDs = []string{}
		}

		balanceDelta := ledger.PayoutBalanceDelta(p.Status, req.NewStatus, p.Amount)
		if err := s.moveBalance(ctx, p, balanceDelta); err != nil {
			return err
		}

		saved, err := s.payouts.Update(ctx, updated)
		if err != nil {
			return err
		}

		atomic := resolution != model.ResolutionNeutral && len(ids) > 0 &&
			s.config.AtomicSettlementLimit > 0 && len(ids) <= s.config.AtomicSettlementLimit
		if atomic {
			if err := s.syncGuarded(ctx, resolution, saved.ID, ids, now); err != nil {
				return err
			}
		}

		result = &model.PayoutResolutionResult{
			Payout:         saved,
			Resolution:     resolution,
			TransactionIDs: ids,
			BalanceDelta:   balanceDelta,
			Atomic:         atomic,
		}
		return nil
	})
	if err != nil {
		return nil, conflictError("resolve payout", err)
	}

	prom.IncPayoutResolution(string(result.Resolution))
	logger.Info("payout resolved",
		"payout_id", result.Payout.ID,
		"user_id", result.Payout.UserID,
		"from", from,
		"to", req.NewStatus,
		"resolution", result.Resolution,
		"transactions", len(result.TransactionIDs),
		"balance_delta", result.BalanceDelta.String(),
		"atomic", result.Atomic,
	)

	if result.Resolution != model.ResolutionNeutral && !result.Atomic && len(result.TransactionIDs) > 0 {
		action := actionFor(result.Resolution)
		at := *result.Payout.ProcessedAt
		if err := s.runSync(ctx, action, result.Payout.ID, result.TransactionIDs, at); err != nil {
			prom.ObserveOperation("payout_resolution", time.Since(start).Seconds())
			return result, s.partialSettlement(ctx, action, result.Payout.ID, result.TransactionIDs, at, err)
		}
	}

	prom.ObserveOperation("payout_resolution", time.Since(start).Seconds())
	return result, nil
}

// ReplaySettlement re-runs the follow-up batch of job. It reports false when
// the payout has since moved to a state the job no longer applies to.
func (s *PayoutService) ReplaySettlement(ctx context.Context, job model.SettlementSyncJob) (bool, error) {
	p, err := s.payouts.Get(ctx, job.PayoutID)
	if err != nil {
		return false, err
	}

	switch job.Action {
	case model.SettlementActionSettle:
		if p.Status != model.PayoutStatusPaid || !sameIDs(p.TransactionIDs, job.TransactionIDs) {
			logger.Info("settlement job superseded, skipping",
				"job_id", job.ID, "payout_id", p.ID, "status", p.Status)
			return false, nil
		}
	case model.SettlementActionRevert:
		if !p.Status.Released() {
			logger.Info("revert job superseded, skipping",
				"job_id", job.ID, "payout_id", p.ID, "status", p.Status)
			return false, nil
		}
	default:
		return false, model.NewValidationError("action", fmt.Sprintf("unknown settlement action %q", job.Action))
	}

	if err := s.runSync(ctx, job.Action, p.ID, job.TransactionIDs, job.At); err != nil {
		return false, err
	}

	logger.Info("settlement job replayed",
		"job_id", job.ID, "payout_id", p.ID, "action", job.Action, "transactions", len(job.TransactionIDs))
	return true, nil
}

// settlementSet picks the transactions a payout settles: the pre-linked set
// when there is one, otherwise a greedy selection over the user's unclaimed
// confirmed transactions. Transactions recorded on another open or paid
// payout are never offered, even before that payout's batch has synced.
func (s *PayoutService) settlementSet(ctx context.Context, p *model.PayoutRequest) ([]string, error) {
	held, err := s.heldByOtherPayouts(ctx, p)
	if err != nil {
		return nil, err
	}

	if len(p.TransactionIDs) > 0 {
		return s.checkPrelinked(ctx, p, held)
	}

	settleable, err := s.transactions.ListSettleable(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	candidates := make([]*model.Transaction, 0, len(settleable))
	for _, tx := range settleable {
		if _, ok := held[tx.ID]; !ok {
			candidates = append(candidates, tx)
		}
	}
	sel, err := ledger.SelectForPayout(p.ID, candidates, p.Amount)
	if err != nil {
		return nil, err
	}
	return sel.IDs, nil
}

// heldByOtherPayouts maps transaction ids recorded on the user's other
// unreleased payouts to the payout holding them.
func (s *PayoutService) heldByOtherPayouts(ctx context.Context, p *model.PayoutRequest) (map[string]string, error) {
	payouts, err := s.payouts.ListByUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	held := make(map[string]string)
	for _, other := range payouts {
		if other.ID == p.ID || other.Status.Released() {
			continue
		}
		for _, id := range other.TransactionIDs {
			held[id] = other.ID
		}
	}
	return held, nil
}

func (s *PayoutService) checkPrelinked(ctx context.Context, p *model.PayoutRequest, held map[string]string) ([]string, error) {
	txs, err := s.transactions.GetMany(ctx, p.TransactionIDs)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			return nil, err
		}
		return nil, &model.InsufficientTransactionsError{
			PayoutID:  p.ID,
			Requested: p.Amount.StringFixed(2),
			Available: decimal.Zero.StringFixed(2),
			Reason:    err.Error(),
		}
	}

	for _, tx := range txs {
		linked := tx.LinkedPayout()
		if linked == "" {
			linked = held[tx.ID]
		}
		if linked != "" && linked != p.ID {
			return nil, &model.InsufficientTransactionsError{
				PayoutID:  p.ID,
				Requested: p.Amount.StringFixed(2),
				Available: ledger.Sum(txs).StringFixed(2),
				Reason:    fmt.Sprintf("transaction %s belongs to payout %s", tx.ID, linked),
			}
		}
		switch tx.Status {
		case model.TransactionStatusConfirmed, model.TransactionStatusAwaitingPayout:
		case model.TransactionStatusPaid:
			if linked == p.ID {
				continue
			}
			fallthrough
		default:
			return nil, &model.InsufficientTransactionsError{
				PayoutID:  p.ID,
				Requested: p.Amount.StringFixed(2),
				Available: ledger.Sum(txs).StringFixed(2),
				Reason:    fmt.Sprintf("transaction %s is %s", tx.ID, tx.Status),
			}
		}
	}

	if sum := ledger.Sum(txs); !ledger.Matches(sum, p.Amount) {
		logger.Warn("pre-linked transactions do not add up to the payout amount",
			"payout_id", p.ID, "amount", p.Amount.String(), "sum", sum.String())
	}
	return slices.Clone(p.TransactionIDs), nil
}

// moveBalance applies the payout's cashbackBalance delta. Withdrawing again
// for a reopened payout never clamps: a short balance is refused.
func (s *PayoutService) moveBalance(ctx context.Context, p *model.PayoutRequest, delta decimal.Decimal) error {
	if delta.IsZero() {
		return nil
	}

	user, err := s.users.Get(ctx, p.UserID)
	if err != nil {
		return err
	}
	if user.CashbackBalance.Add(delta).IsNegative() {
		return model.NewValidationError("status",
			fmt.Sprintf("cashback balance %s cannot cover reopening payout of %s",
				user.CashbackBalance.StringFixed(2), p.Amount.StringFixed(2)))
	}

	_, err = s.users.ApplyWalletDelta(ctx, user, model.WalletDelta{Balance: delta})
	return err
}

// syncGuarded performs the transaction writes inside the atomic unit with a
// version check on every row.
func (s *PayoutService) syncGuarded(ctx context.Context, resolution model.Resolution, payoutID string, ids []string, at time.Time) error {
	txs, err := s.transactions.GetMany(ctx, ids)
	if err != nil {
		return err
	}

	for _, tx := range txs {
		updated := tx.Clone()
		if linked := tx.LinkedPayout(); linked != "" && linked != payoutID {
			return fmt.Errorf("%w: transaction %s belongs to payout %s", model.ErrSettlementConflict, tx.ID, linked)
		}
		switch resolution {
		case model.ResolutionSettle:
			paidAt := at
			updated.Status = model.TransactionStatusPaid
			updated.PayoutID = &payoutID
			updated.PaidDate = &paidAt
		case model.ResolutionReverse:
			updated.Status = model.TransactionStatusConfirmed
			updated.PayoutID = nil
			updated.PaidDate = nil
		}
		if _, err := s.transactions.Update(ctx, updated); err != nil {
			return err
		}
	}
	return nil
}

func (s *PayoutService) runSync(ctx context.Context, action model.SettlementAction, payoutID string, ids []string, at time.Time) error {
	return s.store.RunBatch(ctx, func(ctx context.Context) error {
		if action == model.SettlementActionSettle {
			return s.transactions.MarkPaid(ctx, ids, payoutID, at)
		}
		return s.transactions.RevertToConfirmed(ctx, ids, payoutID)
	})
}

func (s *PayoutService) partialSettlement(ctx context.Context, action model.SettlementAction, payoutID string, ids []string, at time.Time, cause error) error {
	prom.IncPartialSettlement(string(action))

	enqueued := false
	if s.publisher != nil {
		job := model.SettlementSyncJob{
			ID:             uuid.NewString(),
			PayoutID:       payoutID,
			Action:         action,
			TransactionIDs: ids,
			At:             at,
			CreatedAt:      s.now(),
		}
		_, err := s.publisher.PublishJSON(ctx, job, map[string]string{
			"type":      JobTypeSettlementSync,
			"job_id":    job.ID,
			"payout_id": payoutID,
			"action":    string(action),
		})
		if err != nil {
			logger.Error("failed to schedule settlement sync", "payout_id", payoutID, "error", err)
		} else {
			enqueued = true
		}
	}

	logger.Error("payout updated but transactions failed to sync",
		"payout_id", payoutID,
		"action", action,
		"transactions", len(ids),
		"enqueued", enqueued,
		"error", cause,
	)

	return &model.PartialSettlementError{
		PayoutID:       payoutID,
		Action:         action,
		TransactionIDs: ids,
		Enqueued:       enqueued,
		Err:            cause,
	}
}

func actionFor(r model.Resolution) model.SettlementAction {
	if r == model.ResolutionReverse {
		return model.SettlementActionRevert
	}
	return model.SettlementActionSettle
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}
