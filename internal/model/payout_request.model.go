package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusApproved   PayoutStatus = "approved"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusPaid       PayoutStatus = "paid"
	PayoutStatusRejected   PayoutStatus = "rejected"
	PayoutStatusFailed     PayoutStatus = "failed"
)

var payoutStatuses = []PayoutStatus{
	PayoutStatusPending,
	PayoutStatusApproved,
	PayoutStatusProcessing,
	PayoutStatusPaid,
	PayoutStatusRejected,
	PayoutStatusFailed,
}

func (s PayoutStatus) Valid() bool {
	for _, v := range payoutStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Released reports whether the payout amount is back in the user's
// balance, which holds for rejected and failed payouts.
func (s PayoutStatus) Released() bool {
	return s == PayoutStatusRejected || s == PayoutStatusFailed
}

type PayoutRequest struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	Amount         decimal.Decimal `json:"amount"`
	PaymentMethod  string          `json:"payment_method"`
	PaymentDetails string          `json:"payment_details,omitempty"`
	Status         PayoutStatus    `json:"status"`
	TransactionIDs []string        `json:"transaction_ids"`
	RequestedAt    time.Time       `json:"requested_at"`
	ProcessedAt    *time.Time      `json:"processed_at,omitempty"`
	AdminNotes     string          `json:"admin_notes,omitempty"`
	FailureReason  string          `json:"failure_reason,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Version        int64           `json:"version"`
}

func (p *PayoutRequest) Clone() *PayoutRequest {
	if p == nil {
		return nil
	}
	c := *p
	c.TransactionIDs = append([]string(nil), p.TransactionIDs...)
	return &c
}

// PayoutResolutionRequest is one admin decision on a payout request.
// ExpectedStatus is optional; when set the resolution fails with a stale
// state error if the payout moved in the meantime.
type PayoutResolutionRequest struct {
	PayoutID       string
	ExpectedStatus PayoutStatus
	NewStatus      PayoutStatus
	AdminNotes     string
	FailureReason  string
}

func (p PayoutResolutionRequest) Validate() error {
	if strings.TrimSpace(p.PayoutID) == "" {
		return NewValidationError("payout_id", "is required")
	}
	if p.ExpectedStatus != "" && !p.ExpectedStatus.Valid() {
		return NewValidationError("expected_status", "is not a payout status")
	}
	if !p.NewStatus.Valid() {
		return NewValidationError("status", "must be one of pending, approved, processing, paid, rejected, failed")
	}
	if p.NewStatus.Released() && strings.TrimSpace(p.FailureReason) == "" {
		return NewValidationError("failure_reason", "is required when rejecting or failing a payout")
	}
	return nil
}

// Resolution is how the settlement engine classified a payout transition.
type Resolution string

const (
	ResolutionSettle  Resolution = "settle"
	ResolutionReverse Resolution = "reverse"
	ResolutionNeutral Resolution = "neutral"
)

type PayoutResolutionResult struct {
	Payout         *PayoutRequest  `json:"payout"`
	Resolution     Resolution      `json:"resolution"`
	TransactionIDs []string        `json:"transaction_ids"`
	BalanceDelta   decimal.Decimal `json:"balance_delta"`
	Atomic         bool            `json:"atomic"`
}

// PayoutFilter controls List queries.
type PayoutFilter struct {
	UserID   *string
	Statuses []PayoutStatus
	From     *time.Time
	To       *time.Time
	Limit    int  // default 50
	Offset   int  // for pagination
	Desc     bool // order by requested_at
}
