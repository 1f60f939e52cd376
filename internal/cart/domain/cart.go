package domain

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrLineNotFound    = errors.New("line not found in cart")
	ErrVariantRequired = errors.New("size or color selection required")
	ErrUnknownVariant  = errors.New("size or color not offered for product")
	ErrQuantityLimit   = errors.New("line quantity limit exceeded")
)

// MaxLineQuantity caps the quantity of a single line, merged adds included.
const MaxLineQuantity = 99

// Product is the catalog record a line item is created from.
type Product struct {
	ID     string
	Name   string
	Price  decimal.Decimal
	Sizes  []string
	Colors []string
}

// ValidateVariant checks a size/color selection against the options the product offers.
func (p Product) ValidateVariant(size, color string) error {
	if len(p.Sizes) > 0 {
		if size == "" {
			return ErrVariantRequired
		}
		if !slices.Contains(p.Sizes, size) {
			return ErrUnknownVariant
		}
	} else if size != "" {
		return ErrUnknownVariant
	}
	if len(p.Colors) > 0 {
		if color == "" {
			return ErrVariantRequired
		}
		if !slices.Contains(p.Colors, color) {
			return ErrUnknownVariant
		}
	} else if color != "" {
		return ErrUnknownVariant
	}
	return nil
}

type LineItem struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`
	AddedAt   time.Time       `json:"added_at"`
}

func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Cart is the shopper's live cart. TotalItems and TotalPrice are derived from
// Items by Recalculate and are never set independently.
type Cart struct {
	Items      []LineItem      `json:"items"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Open       bool            `json:"open"`
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c Cart) Line(lineID string) (LineItem, bool) {
	for _, li := range c.Items {
		if li.ID == lineID {
			return li, true
		}
	}
	return LineItem{}, false
}

// Clone returns a copy that shares no slice memory with c.
func (c Cart) Clone() Cart {
	c.Items = cloneItems(c.Items)
	return c
}

var lineIDEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

// LineID is the identity of a (product, size, color) combination. Each part
// is escaped so a ':' inside an id cannot collide with the separator.
func LineID(productID, size, color string) string {
	return lineIDEscaper.Replace(productID) + ":" + lineIDEscaper.Replace(size) + ":" + lineIDEscaper.Replace(color)
}

// Recalculate derives TotalItems and TotalPrice from Items.
func Recalculate(c Cart) Cart {
	total := decimal.Zero
	count := 0
	for _, li := range c.Items {
		count += li.Quantity
		total = total.Add(li.Subtotal())
	}
	c.TotalItems = count
	c.TotalPrice = total
	return c
}

func cloneItems(items []LineItem) []LineItem {
	if len(items) == 0 {
		return []LineItem{}
	}
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}
