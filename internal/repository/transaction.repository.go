package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/nimasrn/cashback-ledger/pkg/pg"
	"gorm.io/gorm"
)

var ErrTransactionNotFound = fmt.Errorf("transaction %w", model.ErrNotFound)

type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{
		db,
	}
}

func (r *TransactionRepository) Create(ctx context.Context, t *model.Transaction) (*model.Transaction, error) {
	entity := toTransactionEntity(t)

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toTransactionModel(entity), nil
}

func (r *TransactionRepository) Get(ctx context.Context, id string) (*model.Transaction, error) {
	var entity TransactionEntity
	err := r.Read(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
		}
		return nil, err
	}
	return toTransactionModel(&entity), nil
}

// GetMany returns the transactions in the order of ids. A missing id is an
// error.
func (r *TransactionRepository) GetMany(ctx context.Context, ids []string) ([]*model.Transaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var entities []*TransactionEntity
	if err := r.Read(ctx).Where("id IN ?", ids).Find(&entities).Error; err != nil {
		return nil, err
	}

	byID := make(map[string]*TransactionEntity, len(entities))
	for _, e := range entities {
		byID[e.ID] = e
	}

	out := make([]*model.Transaction, 0, len(ids))
	for _, id := range ids {
		e, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
		}
		out = append(out, toTransactionModel(e))
	}
	return out, nil
}

func (r *TransactionRepository) List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	q := r.Read(ctx).Model(&TransactionEntity{})

	if f.UserID != nil && *f.UserID != "" {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.PayoutID != nil && *f.PayoutID != "" {
		q = q.Where("payout_id = ?", *f.PayoutID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where("status IN ?", statuses)
	}
	if f.From != nil {
		q = q.Where("transaction_date >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("transaction_date < ?", f.To.UTC())
	}

	// Count before pagination
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "transaction_date ASC, id ASC"
	if f.Desc {
		order = "transaction_date DESC, id DESC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*TransactionEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toTransactionModels(entities), total, nil
}

// ListSettleable returns the user's confirmed transactions not claimed by any
// payout, oldest transaction date first.
func (r *TransactionRepository) ListSettleable(ctx context.Context, userID string) ([]*model.Transaction, error) {
	var entities []*TransactionEntity
	err := r.Read(ctx).
		Where("user_id = ? AND status = ? AND payout_id IS NULL", userID, string(model.TransactionStatusConfirmed)).
		Order("transaction_date ASC, id ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toTransactionModels(entities), nil
}

func (r *TransactionRepository) ListByUser(ctx context.Context, userID string) ([]*model.Transaction, error) {
	var entities []*TransactionEntity
	err := r.Read(ctx).
		Where("user_id = ?", userID).
		Order("transaction_date ASC, id ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toTransactionModels(entities), nil
}

// Update writes the mutable fields of t if the stored version still equals
// t.Version and returns the stored state.
func (r *TransactionRepository) Update(ctx context.Context, t *model.Transaction) (*model.Transaction, error) {
	e := toTransactionEntity(t)

	result := r.Write(ctx).
		Model(&TransactionEntity{}).
		Where("id = ? AND version = ?", t.ID, t.Version).
		Updates(map[string]any{
			"status":                e.Status,
			"payout_id":             e.PayoutID,
			"final_sale_amount":     e.FinalSaleAmount,
			"final_cashback_amount": e.FinalCashbackAmount,
			"confirmation_date":     e.ConfirmationDate,
			"paid_date":             e.PaidDate,
			"admin_notes":           e.AdminNotes,
			"notes_to_user":         e.NotesToUser,
			"rejection_reason":      e.RejectionReason,
			"version":               gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		return nil, r.explainMissedUpdate(ctx, t.ID)
	}

	return r.Get(ctx, t.ID)
}

// MarkPaid settles ids against payoutID in one statement. Only unclaimed
// confirmed or awaiting_payout rows and rows already linked to payoutID are
// written. Any other id fails the batch so the surrounding unit rolls back.
func (r *TransactionRepository) MarkPaid(ctx context.Context, ids []string, payoutID string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	settleable := []string{
		string(model.TransactionStatusConfirmed),
		string(model.TransactionStatusAwaitingPayout),
	}
	linked := append(slices.Clone(settleable), string(model.TransactionStatusPaid))

	result := r.Write(ctx).
		Model(&TransactionEntity{}).
		Where("id IN ? AND ((payout_id IS NULL AND status IN ?) OR (payout_id = ? AND status IN ?))",
			ids, settleable, payoutID, linked).
		Updates(map[string]any{
			"status":    string(model.TransactionStatusPaid),
			"payout_id": payoutID,
			"paid_date": at.UTC(),
			"version":   gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if want := int64(len(unique(ids))); result.RowsAffected != want {
		return r.explainIncompleteBatch(ctx, ids, want,
			fmt.Sprintf("marked %d of %d transactions paid", result.RowsAffected, want))
	}
	return nil
}

// RevertToConfirmed releases ids from payoutID. Transactions already claimed
// by another payout are left alone and make the batch fail.
func (r *TransactionRepository) RevertToConfirmed(ctx context.Context, ids []string, payoutID string) error {
	if len(ids) == 0 {
		return nil
	}

	result := r.Write(ctx).
		Model(&TransactionEntity{}).
		Where("id IN ? AND (payout_id = ? OR payout_id IS NULL)", ids, payoutID).
		Updates(map[string]any{
			"status":    string(model.TransactionStatusConfirmed),
			"payout_id": nil,
			"paid_date": nil,
			"version":   gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if want := int64(len(unique(ids))); result.RowsAffected != want {
		return r.explainIncompleteBatch(ctx, ids, want,
			fmt.Sprintf("reverted %d of %d transactions", result.RowsAffected, want))
	}
	return nil
}

func (r *TransactionRepository) explainMissedUpdate(ctx context.Context, id string) error {
	var count int64
	if err := r.Read(ctx).Model(&TransactionEntity{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
	}
	return fmt.Errorf("%w: transaction %s", ErrConcurrentUpdate, id)
}

// explainIncompleteBatch tells a batch that missed rows because they do not
// exist apart from one that missed rows held by another payout or in the
// wrong status. Both wrap ErrBatchIncomplete.
func (r *TransactionRepository) explainIncompleteBatch(ctx context.Context, ids []string, want int64, detail string) error {
	var found int64
	if err := r.Read(ctx).Model(&TransactionEntity{}).Where("id IN ?", ids).Count(&found).Error; err != nil {
		return fmt.Errorf("%w: %s", ErrBatchIncomplete, detail)
	}
	if found < want {
		return fmt.Errorf("%w: %s, %d missing", ErrBatchIncomplete, detail, want-found)
	}
	return fmt.Errorf("%w: %w: %s", ErrBatchIncomplete, model.ErrSettlementConflict, detail)
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
