package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one entry in a user's cart, unique per (ProductID, VariantID).
type CartLine struct {
	ProductID string          `json:"product_id"`
	VariantID string          `json:"variant_id,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	AddedAt   time.Time       `json:"added_at"`
}

// Cart is a per-user aggregate. TotalItems and TotalAmount are derived and
// recomputed after every mutation; callers persist the whole aggregate in one
// write while holding the (user, product) lock.
type Cart struct {
	UserID      string          `json:"user_id"`
	Lines       []CartLine      `json:"lines"`
	TotalItems  int             `json:"total_items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func NewCart(userID string) *Cart {
	return &Cart{
		UserID:      userID,
		TotalAmount: decimal.Zero,
		UpdatedAt:   time.Now(),
	}
}

func (c *Cart) findLine(productID, variantID string) int {
	for i, line := range c.Lines {
		if line.ProductID == productID && line.VariantID == variantID {
			return i
		}
	}
	return -1
}

// AddItem merges into an existing (product, variant) line by incrementing its
// quantity and overwriting its stored price with the supplied one, or appends
// a new line. The price overwrite captures the latest catalog price.
func (c *Cart) AddItem(productID, variantID string, quantity int, unitPrice decimal.Decimal) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if i := c.findLine(productID, variantID); i >= 0 {
		c.Lines[i].Quantity += quantity
		c.Lines[i].UnitPrice = unitPrice
	} else {
		c.Lines = append(c.Lines, CartLine{
			ProductID: productID,
			VariantID: variantID,
			Quantity:  quantity,
			UnitPrice: unitPrice,
			AddedAt:   time.Now(),
		})
	}
	c.recompute()
	return nil
}

// UpdateItem sets the line quantity exactly. A quantity of zero or less
// removes the line. Returns ErrNotFound when no matching line exists.
func (c *Cart) UpdateItem(productID, variantID string, quantity int) error {
	i := c.findLine(productID, variantID)
	if i < 0 {
		return ErrNotFound
	}
	if quantity <= 0 {
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	} else {
		c.Lines[i].Quantity = quantity
	}
	c.recompute()
	return nil
}

// RemoveItem deletes the matching line. Removing an absent line is a no-op.
func (c *Cart) RemoveItem(productID, variantID string) {
	if i := c.findLine(productID, variantID); i >= 0 {
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	}
	c.recompute()
}

// Clear empties the cart. The cart record itself is never deleted.
func (c *Cart) Clear() {
	c.Lines = nil
	c.recompute()
}

func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

func (c *Cart) recompute() {
	items := 0
	amount := decimal.Zero
	for _, line := range c.Lines {
		items += line.Quantity
		amount = amount.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	c.TotalItems = items
	c.TotalAmount = amount
	c.UpdatedAt = time.Now()
}
