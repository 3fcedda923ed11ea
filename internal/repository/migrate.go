package repository

import (
	"context"

	"github.com/nimasrn/cashback-ledger/pkg/pg"
)

// Entities lists every table owned by the ledger, in creation order.
func Entities() []any {
	return []any{
		&UserProfileEntity{},
		&TransactionEntity{},
		&PayoutRequestEntity{},
	}
}

// AutoMigrate creates the ledger tables from the entity definitions. It is
// used for SQLite, PostgreSQL deployments run the goose migrations instead.
func AutoMigrate(ctx context.Context, db *pg.DB) error {
	return db.Write(ctx).AutoMigrate(Entities()...)
}
