package fixtures

import (
	"time"

	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/shopspring/decimal"
)

// BaseDate anchors fixture transaction dates so selection order is stable.
var BaseDate = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

const (
	TestUser1 = "user-1"
	TestUser2 = "user-2"
)

func NewUserProfile(id, pending, balance, lifetime string) *model.UserProfile {
	return &model.UserProfile{
		ID:               id,
		Email:            id + "@example.com",
		DisplayName:      id,
		PendingCashback:  decimal.RequireFromString(pending),
		CashbackBalance:  decimal.RequireFromString(balance),
		LifetimeCashback: decimal.RequireFromString(lifetime),
	}
}

// NewTransaction returns a purchase of userID earning cashback, day days
// after BaseDate. The sale amount assumes a 5% rate.
func NewTransaction(userID string, status model.TransactionStatus, cashback string, day int) *model.Transaction {
	amount := decimal.RequireFromString(cashback)
	return &model.Transaction{
		UserID:                userID,
		StoreName:             Stores[day%len(Stores)],
		SaleAmount:            amount.Mul(decimal.NewFromInt(20)),
		InitialCashbackAmount: amount,
		Status:                status,
		TransactionDate:       BaseDate.AddDate(0, 0, day),
	}
}

func NewPayoutRequest(userID string, status model.PayoutStatus, amount string, transactionIDs ...string) *model.PayoutRequest {
	return &model.PayoutRequest{
		UserID:         userID,
		Amount:         decimal.RequireFromString(amount),
		PaymentMethod:  "paypal",
		PaymentDetails: userID + "@example.com",
		Status:         status,
		TransactionIDs: transactionIDs,
		RequestedAt:    BaseDate.AddDate(0, 1, 0),
	}
}

var Stores = []string{
	"Example Store",
	"Corner Books",
	"Travel Deals",
	"Home Goods",
}

// AdminTransitions lists status changes an admin may make with the wallet
// movement each one causes for a cashback of 10.
var AdminTransitions = []struct {
	From     model.TransactionStatus
	To       model.TransactionStatus
	Pending  string
	Balance  string
	Lifetime string
}{
	{model.TransactionStatusPending, model.TransactionStatusConfirmed, "-10", "10", "10"},
	{model.TransactionStatusPending, model.TransactionStatusRejected, "-10", "0", "0"},
	{model.TransactionStatusConfirmed, model.TransactionStatusPending, "10", "-10", "-10"},
	{model.TransactionStatusConfirmed, model.TransactionStatusCancelled, "0", "-10", "-10"},
	{model.TransactionStatusRejected, model.TransactionStatusConfirmed, "0", "10", "10"},
	{model.TransactionStatusCancelled, model.TransactionStatusPending, "10", "0", "0"},
}
