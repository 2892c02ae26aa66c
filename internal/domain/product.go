package domain

import "github.com/shopspring/decimal"

// Product is the catalog view the cart needs at add time.
type Product struct {
	ID        string
	Name      string
	Brand     string
	Price     decimal.Decimal
	ImageURL  string
	Inventory int
}

// ItemCheck is one cart line sent to catalog validation.
type ItemCheck struct {
	ProductID string
	Quantity  int
}

// ItemValidation is the catalog verdict for one cart line.
type ItemValidation struct {
	ProductID         string
	Valid             bool
	Message           string
	CurrentPrice      decimal.Decimal
	AvailableQuantity int
}
