package domain

import (
	"errors"
	"time"
)

// EscrowStatus is the application-side status of a purchase recorded on chain.
type EscrowStatus string

const (
	EscrowActive    EscrowStatus = "active"
	EscrowCompleted EscrowStatus = "completed"
	EscrowFailed    EscrowStatus = "failed"
)

var validEscrowTransitions = map[EscrowStatus][]EscrowStatus{
	EscrowActive: {EscrowCompleted},
}

var ErrInvalidTransition = errors.New("invalid status transition")

// CanTransitionTo reports whether a transition from current status to next is valid.
func (s EscrowStatus) CanTransitionTo(next EscrowStatus) bool {
	for _, allowed := range validEscrowTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Escrow records a purchase: the buyer's balance was debited and a
// create_escrow move call was submitted to the chain.
type Escrow struct {
	ID              string       `json:"id" bson:"_id,omitempty"`
	ProductID       string       `json:"product_id" bson:"product_id"`
	BuyerID         string       `json:"buyer_id" bson:"buyer_id"`
	SellerID        string       `json:"seller_id" bson:"seller_id"`
	BuyerAddress    string       `json:"buyer_address" bson:"buyer_address"`
	SellerAddress   string       `json:"seller_address" bson:"seller_address"`
	Amount          float64      `json:"amount" bson:"amount"`
	Status          EscrowStatus `json:"status" bson:"status"`
	TxDigest        string       `json:"tx_digest,omitempty" bson:"tx_digest,omitempty"`
	ConfirmTxDigest string       `json:"confirm_tx_digest,omitempty" bson:"confirm_tx_digest,omitempty"`
	FailureReason   string       `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`
	CreatedAt       time.Time    `json:"created_at" bson:"created_at"`
	ConfirmedAt     *time.Time   `json:"confirmed_at,omitempty" bson:"confirmed_at,omitempty"`
}
