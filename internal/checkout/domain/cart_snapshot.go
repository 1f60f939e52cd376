package domain

import (
	"time"

	cartdomain "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/cart/domain"
	"github.com/shopspring/decimal"
)

// CartSnapshotItem is a line item with its price as captured when the snapshot was taken.
type CartSnapshotItem struct {
	LineID      string          `json:"line_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Size        string          `json:"size,omitempty"`
	Color       string          `json:"color,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// CartSnapshot is the immutable copy of the cart and the shopper's fields a
// payment is charged against. Values are copied in and never shared with the
// live cart.
type CartSnapshot struct {
	Items       []CartSnapshotItem `json:"items"`
	TotalItems  int                `json:"total_items"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	Currency    string             `json:"currency"`
	Contact     Contact            `json:"contact"`
	Shipping    Shipping           `json:"shipping"`
	CapturedAt  time.Time          `json:"captured_at"`
}

func NewCartSnapshot(c cartdomain.Cart, currency string, fields Fields, at time.Time) CartSnapshot {
	items := make([]CartSnapshotItem, 0, len(c.Items))
	for _, li := range c.Items {
		items = append(items, CartSnapshotItem{
			LineID:      li.ID,
			ProductID:   li.ProductID,
			ProductName: li.Name,
			Size:        li.Size,
			Color:       li.Color,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
			Subtotal:    li.Subtotal(),
		})
	}
	return CartSnapshot{
		Items:       items,
		TotalItems:  c.TotalItems,
		TotalAmount: c.TotalPrice,
		Currency:    currency,
		Contact:     fields.Contact,
		Shipping:    fields.Shipping,
		CapturedAt:  at,
	}
}

func (s CartSnapshot) IsEmpty() bool {
	return len(s.Items) == 0
}

// Clone returns a copy whose item slice is not shared with s.
func (s CartSnapshot) Clone() CartSnapshot {
	items := make([]CartSnapshotItem, len(s.Items))
	copy(items, s.Items)
	s.Items = items
	return s
}

// AmountMinor is the total converted to the currency's minor unit.
func (s CartSnapshot) AmountMinor() (int64, error) {
	return ToMinorUnits(s.TotalAmount, s.Currency)
}
