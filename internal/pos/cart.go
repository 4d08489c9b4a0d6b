package pos

import (
	"strings"

	"warungpos/backend/internal/domain"
)

// Cart holds the working set of line items for one POS transaction. Lines are
// kept in insertion order and keyed by product ID. Derived totals are
// recomputed on every read; nothing is cached. A Cart is not safe for
// concurrent use: each terminal session owns exactly one.
type Cart struct {
	lines         []domain.CartLine
	index         map[string]int
	discountCents int64
	taxCents      int64
}

func NewCart() *Cart {
	return &Cart{
		lines: make([]domain.CartLine, 0, 8),
		index: make(map[string]int, 8),
	}
}

// AddItem puts one unit of product into the cart. If the product is already
// present its quantity is incremented by one. The product's stock quantity is
// captured as the line's stock limit; any increment that would exceed it is
// rejected with ErrOutOfStock and leaves the cart unchanged.
func (c *Cart) AddItem(product domain.Product) error {
	id := strings.TrimSpace(product.ID)
	if id == "" || product.PriceCents < 0 || product.StockQty < 0 {
		return ErrInvalidAmount
	}

	if pos, ok := c.index[id]; ok {
		line := c.lines[pos]
		if line.Quantity+1 > line.StockLimit {
			return ErrOutOfStock
		}
		c.lines[pos].Quantity++
		return nil
	}

	if product.StockQty == 0 {
		return ErrOutOfStock
	}

	c.index[id] = len(c.lines)
	c.lines = append(c.lines, domain.CartLine{
		ProductID:      id,
		Name:           product.Name,
		UnitPriceCents: product.PriceCents,
		Quantity:       1,
		StockLimit:     product.StockQty,
	})
	return nil
}

// UpdateQuantity applies a signed delta to a line's quantity. A result of
// zero or less removes the line; a result above the stock limit is rejected
// with ErrOutOfStock and leaves the quantity unchanged. Unknown product IDs
// are a no-op, matching RemoveItem.
func (c *Cart) UpdateQuantity(productID string, delta int) error {
	pos, ok := c.index[productID]
	if !ok {
		return nil
	}

	newQty := c.lines[pos].Quantity + delta
	if newQty <= 0 {
		c.remove(pos)
		return nil
	}
	if newQty > c.lines[pos].StockLimit {
		return ErrOutOfStock
	}
	c.lines[pos].Quantity = newQty
	return nil
}

// RemoveItem deletes the line for productID; no-op if absent.
func (c *Cart) RemoveItem(productID string) {
	if pos, ok := c.index[productID]; ok {
		c.remove(pos)
	}
}

// Clear empties the cart and resets discount and tax to zero.
func (c *Cart) Clear() {
	c.lines = c.lines[:0]
	c.index = make(map[string]int, 8)
	c.discountCents = 0
	c.taxCents = 0
}

// SetDiscount sets the cart-level discount. Negative amounts are rejected.
func (c *Cart) SetDiscount(cents int64) error {
	if cents < 0 {
		return ErrInvalidAmount
	}
	c.discountCents = cents
	return nil
}

// SetTax sets the cart-level tax amount. Negative amounts are rejected.
func (c *Cart) SetTax(cents int64) error {
	if cents < 0 {
		return ErrInvalidAmount
	}
	c.taxCents = cents
	return nil
}

func (c *Cart) SubtotalCents() int64 {
	var subtotal int64
	for _, line := range c.lines {
		subtotal += line.UnitPriceCents * int64(line.Quantity)
	}
	return subtotal
}

func (c *Cart) TotalCents() int64 {
	return c.SubtotalCents() - c.discountCents + c.taxCents
}

func (c *Cart) TotalItems() int {
	var count int
	for _, line := range c.lines {
		count += line.Quantity
	}
	return count
}

func (c *Cart) DiscountCents() int64 { return c.discountCents }

func (c *Cart) TaxCents() int64 { return c.taxCents }

func (c *Cart) IsEmpty() bool { return len(c.lines) == 0 }

// Lines returns a copy of the cart's lines in insertion order.
func (c *Cart) Lines() []domain.CartLine {
	out := make([]domain.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Restore replaces the cart's contents with a previously held snapshot.
// Lines with non-positive quantity or quantity above the stock limit are
// rejected wholesale so a corrupt snapshot cannot break the cart invariant.
func (c *Cart) Restore(lines []domain.CartLine, discountCents int64, taxCents int64) error {
	if discountCents < 0 || taxCents < 0 {
		return ErrInvalidAmount
	}
	index := make(map[string]int, len(lines))
	restored := make([]domain.CartLine, 0, len(lines))
	for _, line := range lines {
		if line.Quantity < 1 {
			return ErrInvalidQuantity
		}
		if line.Quantity > line.StockLimit || line.UnitPriceCents < 0 {
			return ErrOutOfStock
		}
		if _, dup := index[line.ProductID]; dup {
			return ErrInvalidQuantity
		}
		index[line.ProductID] = len(restored)
		restored = append(restored, line)
	}

	c.lines = restored
	c.index = index
	c.discountCents = discountCents
	c.taxCents = taxCents
	return nil
}

func (c *Cart) remove(pos int) {
	delete(c.index, c.lines[pos].ProductID)
	c.lines = append(c.lines[:pos], c.lines[pos+1:]...)
	for i := pos; i < len(c.lines); i++ {
		c.index[c.lines[i].ProductID] = i
	}
}
