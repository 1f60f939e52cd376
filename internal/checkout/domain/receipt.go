package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt is shown once a payment is confirmed. OrderID is empty when the
// order could not be created and the payment was flagged for reconciliation.
type Receipt struct {
	OrderID         string             `json:"order_id,omitempty"`
	ConfirmationRef string             `json:"confirmation_ref"`
	Amount          decimal.Decimal    `json:"amount"`
	Currency        string             `json:"currency"`
	Method          Method             `json:"method"`
	Items           []CartSnapshotItem `json:"items"`
	Flagged         bool               `json:"-"`
	IssuedAt        time.Time          `json:"issued_at"`
}

// DisplayRef is the order id when there is one, else the provider's reference.
func (r Receipt) DisplayRef() string {
	if r.OrderID != "" {
		return r.OrderID
	}
	return r.ConfirmationRef
}
