package domain

import (
	"time"

	"github.com/google/uuid"
)

type FlagStatus string

const (
	FlagPending   FlagStatus = "pending"
	FlagPublished FlagStatus = "published"
	FlagResolved  FlagStatus = "resolved"
)

// ReconciliationFlag records a payment that was captured by the provider but
// has no order yet. Payload holds the order as it was submitted.
type ReconciliationFlag struct {
	ID              int64      `json:"id"`
	Token           uuid.UUID  `json:"token"`
	ConfirmationRef string     `json:"confirmation_ref"`
	Method          string     `json:"method"`
	Payload         []byte     `json:"payload"`
	Reason          string     `json:"reason"`
	Status          FlagStatus `json:"status"`
	OrderID         *uuid.UUID `json:"order_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
