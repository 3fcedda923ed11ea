package model

import "time"

// SettlementAction names the follow-up batch of a payout resolution.
type SettlementAction string

const (
	// SettlementActionSettle marks the payout's transactions paid.
	SettlementActionSettle SettlementAction = "settle"
	// SettlementActionRevert returns the payout's transactions to confirmed.
	SettlementActionRevert SettlementAction = "revert"
)

// SettlementSyncJob is published when the follow-up batch of a payout
// resolution fails, so the reconciler can replay it.
type SettlementSyncJob struct {
	ID             string           `json:"id"`
	PayoutID       string           `json:"payout_id"`
	Action         SettlementAction `json:"action"`
	TransactionIDs []string         `json:"transaction_ids"`
	At             time.Time        `json:"at"`
	CreatedAt      time.Time        `json:"created_at"`
}
