package repository

import (
	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/nimasrn/cashback-ledger/pkg/pg"
	"github.com/shopspring/decimal"
)

type UserProfileEntity struct {
	pg.Model
	Email            string          `gorm:"column:email;type:varchar(255);not null;default:''"`
	DisplayName      string          `gorm:"column:display_name;type:varchar(255);not null;default:''"`
	PendingCashback  decimal.Decimal `gorm:"column:pending_cashback;type:decimal(20,2);not null;default:0"`
	CashbackBalance  decimal.Decimal `gorm:"column:cashback_balance;type:decimal(20,2);not null;default:0"`
	LifetimeCashback decimal.Decimal `gorm:"column:lifetime_cashback;type:decimal(20,2);not null;default:0"`
}

func (UserProfileEntity) TableName() string {
	return "user_profiles"
}

func toUserProfileEntity(m *model.UserProfile) *UserProfileEntity {
	if m == nil {
		return nil
	}
	return &UserProfileEntity{
		Model: pg.Model{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
			Version:   m.Version,
		},
		Email:            m.Email,
		DisplayName:      m.DisplayName,
		PendingCashback:  roundMoney(m.PendingCashback),
		CashbackBalance:  roundMoney(m.CashbackBalance),
		LifetimeCashback: roundMoney(m.LifetimeCashback),
	}
}

func toUserProfileModel(e *UserProfileEntity) *model.UserProfile {
	if e == nil {
		return nil
	}
	return &model.UserProfile{
		ID:               e.ID,
		Email:            e.Email,
		DisplayName:      e.DisplayName,
		PendingCashback:  roundMoney(e.PendingCashback),
		CashbackBalance:  roundMoney(e.CashbackBalance),
		LifetimeCashback: roundMoney(e.LifetimeCashback),
		CreatedAt:        e.CreatedAt.UTC(),
		UpdatedAt:        e.UpdatedAt.UTC(),
		Version:          e.Version,
	}
}
