package services

import (
	"context"
	"time"

	"github.com/nimasrn/cashback-ledger/internal/model"
)

// UnitOfWork runs fn atomically. Repositories called with the ctx handed to
// fn take part in the same unit.
type UnitOfWork interface {
	RunAtomic(ctx context.Context, fn func(ctx context.Context) error) error
	RunBatch(ctx context.Context, fn func(ctx context.Context) error) error
}

type TransactionRepository interface {
	Get(ctx context.Context, id string) (*model.Transaction, error)
	GetMany(ctx context.Context, ids []string) ([]*model.Transaction, error)
	List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error)
	ListSettleable(ctx context.Context, userID string) ([]*model.Transaction, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Transaction, error)
	Update(ctx context.Context, t *model.Transaction) (*model.Transaction, error)
	MarkPaid(ctx context.Context, ids []string, payoutID string, at time.Time) error
	RevertToConfirmed(ctx context.Context, ids []string, payoutID string) error
}

type UserProfileRepository interface {
	Get(ctx context.Context, id string) (*model.UserProfile, error)
	ApplyWalletDelta(ctx context.Context, u *model.UserProfile, d model.WalletDelta) (*model.UserProfile, error)
}

type PayoutRepository interface {
	Get(ctx context.Context, id string) (*model.PayoutRequest, error)
	List(ctx context.Context, f model.PayoutFilter) ([]*model.PayoutRequest, int64, error)
	ListByUser(ctx context.Context, userID string) ([]*model.PayoutRequest, error)
	Update(ctx context.Context, p *model.PayoutRequest) (*model.PayoutRequest, error)
}

// JobPublisher hands settlement sync jobs to the reconciler.
type JobPublisher interface {
	PublishJSON(ctx context.Context, data any, metadata map[string]string) (string, error)
}
