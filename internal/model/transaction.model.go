package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the cashback lifecycle state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending        TransactionStatus = "pending"
	TransactionStatusConfirmed      TransactionStatus = "confirmed"
	TransactionStatusAwaitingPayout TransactionStatus = "awaiting_payout"
	TransactionStatusPaid           TransactionStatus = "paid"
	TransactionStatusRejected       TransactionStatus = "rejected"
	TransactionStatusCancelled      TransactionStatus = "cancelled"
)

var transactionStatuses = []TransactionStatus{
	TransactionStatusPending,
	TransactionStatusConfirmed,
	TransactionStatusAwaitingPayout,
	TransactionStatusPaid,
	TransactionStatusRejected,
	TransactionStatusCancelled,
}

func (s TransactionStatus) Valid() bool {
	for _, v := range transactionStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Negative reports whether the status is a terminal-negative one that
// requires a rejection reason.
func (s TransactionStatus) Negative() bool {
	return s == TransactionStatusRejected || s == TransactionStatusCancelled
}

// Assignable reports whether an admin may move a transaction to s.
// awaiting_payout is only ever set by the payout request flow.
func (s TransactionStatus) Assignable() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusConfirmed, TransactionStatusRejected,
		TransactionStatusCancelled, TransactionStatusPaid:
		return true
	}
	return false
}

type Transaction struct {
	ID                    string            `json:"id"`
	UserID                string            `json:"user_id"`
	StoreID               string            `json:"store_id,omitempty"`
	StoreName             string            `json:"store_name,omitempty"`
	OrderID               string            `json:"order_id,omitempty"`
	ClickID               string            `json:"click_id,omitempty"`
	ConversionID          string            `json:"conversion_id,omitempty"`
	SaleAmount            decimal.Decimal   `json:"sale_amount"`
	FinalSaleAmount       *decimal.Decimal  `json:"final_sale_amount,omitempty"`
	InitialCashbackAmount decimal.Decimal   `json:"initial_cashback_amount"`
	FinalCashbackAmount   *decimal.Decimal  `json:"final_cashback_amount,omitempty"`
	Status                TransactionStatus `json:"status"`
	PayoutID              *string           `json:"payout_id,omitempty"`
	TransactionDate       time.Time         `json:"transaction_date"`
	ConfirmationDate      *time.Time        `json:"confirmation_date,omitempty"`
	PaidDate              *time.Time        `json:"paid_date,omitempty"`
	AdminNotes            string            `json:"admin_notes,omitempty"`
	NotesToUser           string            `json:"notes_to_user,omitempty"`
	RejectionReason       string            `json:"rejection_reason,omitempty"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
	Version               int64             `json:"version"`
}

// CashbackAmount is the amount the ledger moves for this transaction.
func (t *Transaction) CashbackAmount() decimal.Decimal {
	if t.FinalCashbackAmount != nil {
		return *t.FinalCashbackAmount
	}
	return t.InitialCashbackAmount
}

func (t *Transaction) EffectiveSaleAmount() decimal.Decimal {
	if t.FinalSaleAmount != nil {
		return *t.FinalSaleAmount
	}
	return t.SaleAmount
}

func (t *Transaction) LinkedPayout() string {
	if t.PayoutID == nil {
		return ""
	}
	return *t.PayoutID
}

func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// StatusChangeRequest is one admin "manage transaction" submission.
// ExpectedStatus is the status the admin saw when opening the edit view.
type StatusChangeRequest struct {
	TransactionID   string
	ExpectedStatus  TransactionStatus
	NewStatus       TransactionStatus
	AdminNotes      string
	NotesToUser     string
	RejectionReason string
}

func (p StatusChangeRequest) Validate() error {
	if strings.TrimSpace(p.TransactionID) == "" {
		return NewValidationError("transaction_id", "is required")
	}
	if !p.ExpectedStatus.Valid() {
		return NewValidationError("expected_status", "must be the status shown when the transaction was opened")
	}
	if !p.NewStatus.Assignable() {
		return NewValidationError("status", "must be one of pending, confirmed, rejected, cancelled, paid")
	}
	if p.NewStatus.Negative() && strings.TrimSpace(p.RejectionReason) == "" {
		return NewValidationError("rejection_reason", "is required when rejecting or cancelling")
	}
	return nil
}

type StatusChangeResult struct {
	Transaction *Transaction `json:"transaction"`
	Delta       WalletDelta  `json:"delta"`
	Clamped     []string     `json:"clamped,omitempty"`
	Wallet      Wallet       `json:"wallet"`
}

// CashbackAdjustmentRequest edits the honored cashback of a transaction
// that has not been claimed by a payout.
type CashbackAdjustmentRequest struct {
	TransactionID       string
	ExpectedStatus      TransactionStatus
	FinalCashbackAmount decimal.Decimal
	FinalSaleAmount     *decimal.Decimal
	AdminNotes          *string
}

func (p CashbackAdjustmentRequest) Validate() error {
	if strings.TrimSpace(p.TransactionID) == "" {
		return NewValidationError("transaction_id", "is required")
	}
	if !p.ExpectedStatus.Valid() {
		return NewValidationError("expected_status", "must be the status shown when the transaction was opened")
	}
	if p.FinalCashbackAmount.IsNegative() {
		return NewValidationError("final_cashback_amount", "must not be negative")
	}
	if p.FinalSaleAmount != nil && p.FinalSaleAmount.IsNegative() {
		return NewValidationError("final_sale_amount", "must not be negative")
	}
	return nil
}

// TransactionFilter controls List queries.
type TransactionFilter struct {
	UserID   *string
	PayoutID *string
	Statuses []TransactionStatus
	From     *time.Time
	To       *time.Time
	Limit    int  // default 50
	Offset   int  // for pagination
	Desc     bool // order by transaction_date
}
