package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog view the core depends on. Stock is the number of
// units still available for reservation; reservations decrement it through
// the catalog port, never through this struct.
type Product struct {
	ID        string
	Name      string
	SKU       string
	ImageURL  string
	Price     decimal.Decimal
	SalePrice *decimal.Decimal
	Stock     int
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EffectivePrice returns the sale price when one is set, the list price
// otherwise.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.SalePrice != nil {
		return *p.SalePrice
	}
	return p.Price
}
