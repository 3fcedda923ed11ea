package processor

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/nimasrn/cashback-ledger/internal/queue"
	"github.com/nimasrn/cashback-ledger/pkg/logger"
	"github.com/nimasrn/cashback-ledger/pkg/prom"
)

const TypeSettlementSync = "settlement_sync"

// Results recorded per settlement sync job.
const (
	SyncResultApplied    = "applied"
	SyncResultSuperseded = "superseded"
	SyncResultDuplicate  = "duplicate"
	SyncResultInvalid    = "invalid"
	SyncResultExhausted  = "exhausted"
	SyncResultConflict   = "conflict"
	SyncResultFailed     = "failed"
)

type SettlementReplayer interface {
	ReplaySettlement(ctx context.Context, job model.SettlementSyncJob) (bool, error)
}

// SettlementSyncProcessor replays the transaction batch of a payout
// resolution that committed without it.
type SettlementSyncProcessor struct {
	payouts     SettlementReplayer
	idempotency *IdempotencyService
}

func NewSettlementSyncProcessor(payouts SettlementReplayer, idempotency *IdempotencyService) *SettlementSyncProcessor {
	return &SettlementSyncProcessor{
		payouts:     payouts,
		idempotency: idempotency,
	}
}

func (p *SettlementSyncProcessor) GetType() string {
	return TypeSettlementSync
}

// Process applies one job. A nil return acknowledges the message, an error
// leaves it on the stream for another attempt.
func (p *SettlementSyncProcessor) Process(ctx context.Context, msg *queue.Message) error {
	start := time.Now()

	var job model.SettlementSyncJob
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		logger.Error("failed to unmarshal settlement job", "message_id", msg.ID, "error", err)
		prom.IncSyncJob(SyncResultInvalid)
		return nil
	}
	if job.ID == "" || job.PayoutID == "" {
		logger.Error("settlement job without id", "message_id", msg.ID)
		prom.IncSyncJob(SyncResultInvalid)
		return nil
	}

	procCtx, err := p.idempotency.AcquireProcessingLock(ctx, job.ID)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyProcessed):
			logger.Info("settlement job already applied, skipping", "job_id", job.ID)
			prom.IncSyncJob(SyncResultDuplicate)
			return nil
		case errors.Is(err, ErrMaxRetriesExceeded):
			logger.Error("settlement job gave up, needs manual reconciliation",
				"job_id", job.ID, "payout_id", job.PayoutID, "action", job.Action)
			prom.IncSyncJob(SyncResultExhausted)
			return nil
		case errors.Is(err, ErrLockAcquireFailed):
			logger.Info("settlement job locked by another worker", "job_id", job.ID)
			return err
		default:
			return err
		}
	}
	defer func() {
		_ = p.idempotency.ReleaseLock(ctx, procCtx)
	}()

	logger.Info("replaying settlement job",
		"job_id", job.ID,
		"payout_id", job.PayoutID,
		"action", job.Action,
		"transactions", len(job.TransactionIDs),
		"attempt", msg.Attempts,
		"is_retry", procCtx.IsRetry)

	applied, err := p.payouts.ReplaySettlement(ctx, job)
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) || errors.Is(err, model.ErrNotFound) {
			logger.Error("settlement job cannot be applied", "job_id", job.ID, "error", err)
			prom.IncSyncJob(SyncResultInvalid)
			if markErr := p.idempotency.MarkSuccess(ctx, procCtx); markErr != nil {
				logger.Error("failed to mark job done", "job_id", job.ID, "error", markErr)
			}
			return nil
		}

		// A conflict means another payout holds some of the rows. It stays on
		// the retry path so it ends in the dead letter queue for manual review.
		result := SyncResultFailed
		if errors.Is(err, model.ErrSettlementConflict) {
			result = SyncResultConflict
			logger.Error("settlement job conflicts with another payout",
				"job_id", job.ID, "payout_id", job.PayoutID, "error", err)
		}
		prom.IncSyncJob(result)
		if markErr := p.idempotency.MarkFailure(ctx, procCtx, err); markErr != nil {
			logger.Error("failed to mark failure", "job_id", job.ID, "error", markErr)
		}
		return err
	}

	result := SyncResultApplied
	if !applied {
		result = SyncResultSuperseded
	}
	prom.IncSyncJob(result)
	prom.ObserveSyncDuration(time.Since(start).Seconds())

	if markErr := p.idempotency.MarkSuccess(ctx, procCtx); markErr != nil {
		logger.Error("failed to mark success", "job_id", job.ID, "error", markErr)
	}
	return nil
}
