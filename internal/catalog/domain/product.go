package domain

import (
	"time"

	cartdomain "github.com/BetterLogicTeam/falcoP-shop-sub000/internal/cart/domain"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url"`
	Sizes       []string        `json:"sizes,omitempty"`
	Colors      []string        `json:"colors,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// CartProduct is the view of the product the cart captures at add time.
func (p *Product) CartProduct() cartdomain.Product {
	return cartdomain.Product{
		ID:     p.ID,
		Name:   p.Name,
		Price:  p.Price,
		Sizes:  append([]string(nil), p.Sizes...),
		Colors: append([]string(nil), p.Colors...),
	}
}
