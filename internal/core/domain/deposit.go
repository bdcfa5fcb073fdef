package domain

import "time"

// CurrencySUI is the canonical balance unit.
const CurrencySUI = "SUI"

// Deposit sources.
const (
	SourcePaystack = "paystack"
	SourceSui      = "sui"
	SourceManual   = "manual"
	SourcePayout   = "escrow_payout"
	SourceRefund   = "escrow_refund"
)

// DepositStatus tracks a ledger entry from payment confirmation to balance credit.
type DepositStatus string

const (
	DepositPending  DepositStatus = "pending"
	DepositCredited DepositStatus = "credited"
)

// Deposit is a ledger entry keyed by the external payment reference. The
// reference is unique, which makes crediting idempotent.
type Deposit struct {
	ID               string        `json:"id" bson:"_id,omitempty"`
	Reference        string        `json:"reference" bson:"reference"`
	UserID           string        `json:"user_id" bson:"user_id"`
	Source           string        `json:"source" bson:"source"`
	ExternalAmount   float64       `json:"external_amount" bson:"external_amount"`
	ExternalCurrency string        `json:"external_currency" bson:"external_currency"`
	Rate             float64       `json:"rate" bson:"rate"`
	AmountSui        float64       `json:"amount_sui" bson:"amount_sui"`
	Status           DepositStatus `json:"status" bson:"status"`
	CreatedAt        time.Time     `json:"created_at" bson:"created_at"`
	CreditedAt       *time.Time    `json:"credited_at,omitempty" bson:"credited_at,omitempty"`
}
