package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/nimasrn/cashback-ledger/pkg/pg"
	"gorm.io/gorm"
)

var ErrUserNotFound = fmt.Errorf("user profile %w", model.ErrNotFound)

type UserProfileRepository struct {
	*pg.DB
}

func NewUserProfileRepository(db *pg.DB) *UserProfileRepository {
	return &UserProfileRepository{
		db,
	}
}

func (r *UserProfileRepository) Create(ctx context.Context, u *model.UserProfile) (*model.UserProfile, error) {
	entity := toUserProfileEntity(u)

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toUserProfileModel(entity), nil
}

func (r *UserProfileRepository) Get(ctx context.Context, id string) (*model.UserProfile, error) {
	var entity UserProfileEntity
	err := r.Read(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, id)
		}
		return nil, err
	}
	return toUserProfileModel(&entity), nil
}

// ApplyWalletDelta increments each wallet counter by d in place, guarded by
// the version of u. Counters are never read back and rewritten, so the
// increments stay correct under concurrent writers.
func (r *UserProfileRepository) ApplyWalletDelta(ctx context.Context, u *model.UserProfile, d model.WalletDelta) (*model.UserProfile, error) {
	result := r.Write(ctx).
		Model(&UserProfileEntity{}).
		Where("id = ? AND version = ?", u.ID, u.Version).
		Updates(map[string]any{
			"pending_cashback":  gorm.Expr("pending_cashback + ?", roundMoney(d.Pending)),
			"cashback_balance":  gorm.Expr("cashback_balance + ?", roundMoney(d.Balance)),
			"lifetime_cashback": gorm.Expr("lifetime_cashback + ?", roundMoney(d.Lifetime)),
			"version":           gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := r.Read(ctx).Model(&UserProfileEntity{}).Where("id = ?", u.ID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, u.ID)
		}
		return nil, fmt.Errorf("%w: user profile %s", ErrConcurrentUpdate, u.ID)
	}

	return r.Get(ctx, u.ID)
}
