package repository

import (
	"time"

	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/nimasrn/cashback-ledger/pkg/pg"
	"github.com/shopspring/decimal"
)

type TransactionEntity struct {
	pg.Model
	UserID                string           `gorm:"column:user_id;type:varchar(64);not null;index:idx_transactions_user_status,priority:1"`
	StoreID               string           `gorm:"column:store_id;type:varchar(64);not null;default:''"`
	StoreName             string           `gorm:"column:store_name;type:varchar(255);not null;default:''"`
	OrderID               string           `gorm:"column:order_id;type:varchar(128);not null;default:''"`
	ClickID               string           `gorm:"column:click_id;type:varchar(128);not null;default:''"`
	ConversionID          string           `gorm:"column:conversion_id;type:varchar(128);not null;default:''"`
	SaleAmount            decimal.Decimal  `gorm:"column:sale_amount;type:decimal(20,2);not null;default:0"`
	FinalSaleAmount       *decimal.Decimal `gorm:"column:final_sale_amount;type:decimal(20,2)"`
	InitialCashbackAmount decimal.Decimal  `gorm:"column:initial_cashback_amount;type:decimal(20,2);not null;default:0"`
	FinalCashbackAmount   *decimal.Decimal `gorm:"column:final_cashback_amount;type:decimal(20,2)"`
	Status                string           `gorm:"column:status;type:varchar(32);not null;index:idx_transactions_user_status,priority:2"`
	PayoutID              *string          `gorm:"column:payout_id;type:varchar(64);index"`
	TransactionDate       time.Time        `gorm:"column:transaction_date;not null;index:idx_transactions_user_status,priority:3"`
	ConfirmationDate      *time.Time       `gorm:"column:confirmation_date"`
	PaidDate              *time.Time       `gorm:"column:paid_date"`
	AdminNotes            string           `gorm:"column:admin_notes;type:text;not null;default:''"`
	NotesToUser           string           `gorm:"column:notes_to_user;type:text;not null;default:''"`
	RejectionReason       string           `gorm:"column:rejection_reason;type:text;not null;default:''"`
}

func (TransactionEntity) TableName() string {
	return "transactions"
}

func toTransactionEntity(m *model.Transaction) *TransactionEntity {
	if m == nil {
		return nil
	}
	return &TransactionEntity{
		Model: pg.Model{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
			Version:   m.Version,
		},
		UserID:                m.UserID,
		StoreID:               m.StoreID,
		StoreName:             m.StoreName,
		OrderID:               m.OrderID,
		ClickID:               m.ClickID,
		ConversionID:          m.ConversionID,
		SaleAmount:            roundMoney(m.SaleAmount),
		FinalSaleAmount:       roundMoneyPtr(m.FinalSaleAmount),
		InitialCashbackAmount: roundMoney(m.InitialCashbackAmount),
		FinalCashbackAmount:   roundMoneyPtr(m.FinalCashbackAmount),
		Status:                string(m.Status),
		PayoutID:              m.PayoutID,
		TransactionDate:       m.TransactionDate.UTC(),
		ConfirmationDate:      utcPtr(m.ConfirmationDate),
		PaidDate:              utcPtr(m.PaidDate),
		AdminNotes:            m.AdminNotes,
		NotesToUser:           m.NotesToUser,
		RejectionReason:       m.RejectionReason,
	}
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	return &model.Transaction{
		ID:                    e.ID,
		UserID:                e.UserID,
		StoreID:               e.StoreID,
		StoreName:             e.StoreName,
		OrderID:               e.OrderID,
		ClickID:               e.ClickID,
		ConversionID:          e.ConversionID,
		SaleAmount:            roundMoney(e.SaleAmount),
		FinalSaleAmount:       roundMoneyPtr(e.FinalSaleAmount),
		InitialCashbackAmount: roundMoney(e.InitialCashbackAmount),
		FinalCashbackAmount:   roundMoneyPtr(e.FinalCashbackAmount),
		Status:                model.TransactionStatus(e.Status),
		PayoutID:              e.PayoutID,
		TransactionDate:       e.TransactionDate.UTC(),
		ConfirmationDate:      utcPtr(e.ConfirmationDate),
		PaidDate:              utcPtr(e.PaidDate),
		AdminNotes:            e.AdminNotes,
		NotesToUser:           e.NotesToUser,
		RejectionReason:       e.RejectionReason,
		CreatedAt:             e.CreatedAt.UTC(),
		UpdatedAt:             e.UpdatedAt.UTC(),
		Version:               e.Version,
	}
}

func toTransactionModels(entities []*TransactionEntity) []*model.Transaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}

func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func roundMoneyPtr(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	r := d.Round(2)
	return &r
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
