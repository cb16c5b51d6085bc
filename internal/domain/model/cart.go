package model

import (
	"github.com/shopspring/decimal"

	"restaurant-storefront/internal/domain"
)

// LineItem is one menu item of an order draft, priced in major units.
type LineItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// Cart is the explicit order draft handed over at checkout.
type Cart struct {
	Items []LineItem
}

func NewCart(items []LineItem) (*Cart, error) {
	for i, it := range items {
		if it.ID == "" {
			return nil, domain.NewValidationError("items", "item %d has no id", i)
		}
		if it.Quantity <= 0 {
			return nil, domain.NewValidationError("items", "item %s quantity must be positive", it.ID)
		}
		if it.Price.Sign() < 0 {
			return nil, domain.NewValidationError("items", "item %s price is negative", it.ID)
		}
	}
	return &Cart{Items: items}, nil
}

// Total is Σ price × quantity.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

func (c *Cart) IsEmpty() bool { return c == nil || len(c.Items) == 0 }
