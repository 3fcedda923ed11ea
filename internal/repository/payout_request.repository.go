package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/nimasrn/cashback-ledger/pkg/pg"
	"gorm.io/gorm"
)

var ErrPayoutNotFound = fmt.Errorf("payout request %w", model.ErrNotFound)

type PayoutRequestRepository struct {
	*pg.DB
}

func NewPayoutRequestRepository(db *pg.DB) *PayoutRequestRepository {
	return &PayoutRequestRepository{
		db,
	}
}

func (r *PayoutRequestRepository) Create(ctx context.Context, p *model.PayoutRequest) (*model.PayoutRequest, error) {
	entity := toPayoutRequestEntity(p)

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toPayoutRequestModel(entity), nil
}

func (r *PayoutRequestRepository) Get(ctx context.Context, id string) (*model.PayoutRequest, error) {
	var entity PayoutRequestEntity
	err := r.Read(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPayoutNotFound, id)
		}
		return nil, err
	}
	return toPayoutRequestModel(&entity), nil
}

func (r *PayoutRequestRepository) List(ctx context.Context, f model.PayoutFilter) ([]*model.PayoutRequest, int64, error) {
	q := r.Read(ctx).Model(&PayoutRequestEntity{})

	if f.UserID != nil && *f.UserID != "" {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where("status IN ?", statuses)
	}
	if f.From != nil {
		q = q.Where("requested_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("requested_at < ?", f.To.UTC())
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "requested_at ASC, id ASC"
	if f.Desc {
		order = "requested_at DESC, id DESC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*PayoutRequestEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toPayoutRequestModels(entities), total, nil
}

func (r *PayoutRequestRepository) ListByUser(ctx context.Context, userID string) ([]*model.PayoutRequest, error) {
	var entities []*PayoutRequestEntity
	err := r.Read(ctx).
		Where("user_id = ?", userID).
		Order("requested_at ASC, id ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toPayoutRequestModels(entities), nil
}

// Update writes the mutable fields of p if the stored version still equals
// p.Version and returns the stored state.
func (r *PayoutRequestRepository) Update(ctx context.Context, p *model.PayoutRequest) (*model.PayoutRequest, error) {
	e := toPayoutRequestEntity(p)

	result := r.Write(ctx).
		Model(&PayoutRequestEntity{}).
		Where("id = ? AND version = ?", p.ID, p.Version).
		Updates(map[string]any{
			"status":          e.Status,
			"transaction_ids": e.TransactionIDs,
			"processed_at":    e.ProcessedAt,
			"admin_notes":     e.AdminNotes,
			"failure_reason":  e.FailureReason,
			"version":         gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := r.Read(ctx).Model(&PayoutRequestEntity{}).Where("id = ?", p.ID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, fmt.Errorf("%w: %s", ErrPayoutNotFound, p.ID)
		}
		return nil, fmt.Errorf("%w: payout request %s", ErrConcurrentUpdate, p.ID)
	}

	return r.Get(ctx, p.ID)
}
