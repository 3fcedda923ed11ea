package repository

import (
	"time"

	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/nimasrn/cashback-ledger/pkg/pg"
	"github.com/shopspring/decimal"
)

type PayoutRequestEntity struct {
	pg.Model
	UserID         string          `gorm:"column:user_id;type:varchar(64);not null;index:idx_payout_requests_user_status,priority:1"`
	Amount         decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null"`
	PaymentMethod  string          `gorm:"column:payment_method;type:varchar(64);not null;default:''"`
	PaymentDetails string          `gorm:"column:payment_details;type:text;not null;default:''"`
	Status         string          `gorm:"column:status;type:varchar(32);not null;index:idx_payout_requests_user_status,priority:2"`
	TransactionIDs StringList      `gorm:"column:transaction_ids;type:text;not null;default:'[]'"`
	RequestedAt    time.Time       `gorm:"column:requested_at;not null"`
	ProcessedAt    *time.Time      `gorm:"column:processed_at"`
	AdminNotes     string          `gorm:"column:admin_notes;type:text;not null;default:''"`
	FailureReason  string          `gorm:"column:failure_reason;type:text;not null;default:''"`
}

func (PayoutRequestEntity) TableName() string {
	return "payout_requests"
}

func toPayoutRequestEntity(m *model.PayoutRequest) *PayoutRequestEntity {
	if m == nil {
		return nil
	}
	return &PayoutRequestEntity{
		Model: pg.Model{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
			Version:   m.Version,
		},
		UserID:         m.UserID,
		Amount:         roundMoney(m.Amount),
		PaymentMethod:  m.PaymentMethod,
		PaymentDetails: m.PaymentDetails,
		Status:         string(m.Status),
		TransactionIDs: StringList(m.TransactionIDs),
		RequestedAt:    m.RequestedAt.UTC(),
		ProcessedAt:    utcPtr(m.ProcessedAt),
		AdminNotes:     m.AdminNotes,
		FailureReason:  m.FailureReason,
	}
}

func toPayoutRequestModel(e *PayoutRequestEntity) *model.PayoutRequest {
	if e == nil {
		return nil
	}
	ids := []string(e.TransactionIDs)
	if ids == nil {
		ids = []string{}
	}
	return &model.PayoutRequest{
		ID:             e.ID,
		UserID:         e.UserID,
		Amount:         roundMoney(e.Amount),
		PaymentMethod:  e.PaymentMethod,
		PaymentDetails: e.PaymentDetails,
		Status:         model.PayoutStatus(e.Status),
		TransactionIDs: ids,
		RequestedAt:    e.RequestedAt.UTC(),
		ProcessedAt:    utcPtr(e.ProcessedAt),
		AdminNotes:     e.AdminNotes,
		FailureReason:  e.FailureReason,
		CreatedAt:      e.CreatedAt.UTC(),
		UpdatedAt:      e.UpdatedAt.UTC(),
		Version:        e.Version,
	}
}

func toPayoutRequestModels(entities []*PayoutRequestEntity) []*model.PayoutRequest {
	if entities == nil {
		return nil
	}
	models := make([]*model.PayoutRequest, len(entities))
	for i, e := range entities {
		models[i] = toPayoutRequestModel(e)
	}
	return models
}
