package domain

import "github.com/shopspring/decimal"

// Cart is the per-user cart record. Totals are derived from Items and are
// recomputed by every mutation, never at read time.
type Cart struct {
	UserID        string          `json:"userId"`
	Items         []CartItem      `json:"items"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	TotalQuantity int             `json:"totalQuantity"`
}

// CartItem holds a snapshot of catalog attributes taken when the product was
// first added. Price stays authoritative for totals until reconciliation
// refreshes it.
type CartItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Name      string          `json:"name"`
	Brand     string          `json:"brand"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"imageUrl"`
	Available bool            `json:"available"`
}

func NewCart(userID string) *Cart {
	return &Cart{
		UserID:      userID,
		Items:       []CartItem{},
		TotalAmount: decimal.Zero,
	}
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Item returns a pointer into Items so callers can update the line in place.
func (c *Cart) Item(productID string) (*CartItem, bool) {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i], true
		}
	}
	return nil, false
}

// RemoveItem drops the line for productID, keeping the order of the rest.
// It reports whether a line was removed.
func (c *Cart) RemoveItem(productID string) bool {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Cart) RecalculateTotals() {
	qty := 0
	amount := decimal.Zero
	for _, item := range c.Items {
		qty += item.Quantity
		amount = amount.Add(item.LineTotal())
	}
	c.TotalQuantity = qty
	c.TotalAmount = amount
}

func (i CartItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// NewCartItem snapshots a catalog product into a cart line.
func NewCartItem(p *Product, quantity int) CartItem {
	return CartItem{
		ProductID: p.ID,
		Quantity:  quantity,
		Name:      p.Name,
		Brand:     p.Brand,
		Price:     p.Price,
		ImageURL:  p.ImageURL,
		Available: p.Inventory > 0,
	}
}
