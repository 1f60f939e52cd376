package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrInvalidOrder = errors.New("invalid order")

type OrderStatus string

const (
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
)

type OrderItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Size        string          `json:"size,omitempty"`
	Color       string          `json:"color,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Order is created exactly once per payment idempotency token.
type Order struct {
	ID               uuid.UUID       `json:"id"`
	IdempotencyToken uuid.UUID       `json:"idempotency_token"`
	ConfirmationRef  string          `json:"confirmation_ref"`
	Method           string          `json:"method"`
	UserID           string          `json:"user_id"`
	Email            string          `json:"email"`
	FullName         string          `json:"full_name"`
	Phone            string          `json:"phone,omitempty"`
	Shipping         Address         `json:"shipping"`
	Items            []OrderItem     `json:"items"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	AmountMinor      int64           `json:"amount_minor"`
	Currency         string          `json:"currency"`
	Status           OrderStatus     `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Validate is the authoritative field check. The checkout form gate is only
// a convenience for the shopper.
func (o *Order) Validate() error {
	var missing []string
	if o.IdempotencyToken == uuid.Nil {
		missing = append(missing, "idempotency_token")
	}
	if strings.TrimSpace(o.ConfirmationRef) == "" {
		missing = append(missing, "confirmation_ref")
	}
	if len(o.Items) == 0 {
		missing = append(missing, "items")
	}
	if strings.TrimSpace(o.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(o.FullName) == "" {
		missing = append(missing, "full_name")
	}
	if strings.TrimSpace(o.Shipping.Line1) == "" || strings.TrimSpace(o.Shipping.City) == "" ||
		strings.TrimSpace(o.Shipping.PostalCode) == "" || strings.TrimSpace(o.Shipping.Country) == "" {
		missing = append(missing, "shipping")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	if o.TotalAmount.IsNegative() {
		return &ValidationError{Missing: []string{"total_amount"}}
	}
	return nil
}

type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "invalid order: " + strings.Join(e.Missing, ", ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidOrder
}
