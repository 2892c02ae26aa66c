package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRecalculateTotals(t *testing.T) {
	cart := NewCart("u1")
	cart.Items = append(cart.Items,
		CartItem{ProductID: "p1", Quantity: 2, Price: price("10.00")},
		CartItem{ProductID: "p2", Quantity: 3, Price: price("2.50")},
	)

	cart.RecalculateTotals()

	assert.Equal(t, 5, cart.TotalQuantity)
	assert.True(t, cart.TotalAmount.Equal(price("27.50")), "got %s", cart.TotalAmount)
}

func TestRecalculateTotals_EmptyCart(t *testing.T) {
	cart := &Cart{UserID: "u1", TotalAmount: price("99"), TotalQuantity: 4}

	cart.RecalculateTotals()

	assert.Equal(t, 0, cart.TotalQuantity)
	assert.True(t, cart.TotalAmount.IsZero())
}

func TestItem_ReturnsPointerIntoCart(t *testing.T) {
	cart := NewCart("u1")
	cart.Items = append(cart.Items, CartItem{ProductID: "p1", Quantity: 1})

	item, ok := cart.Item("p1")
	require.True(t, ok)
	item.Quantity = 7

	assert.Equal(t, 7, cart.Items[0].Quantity)

	_, ok = cart.Item("missing")
	assert.False(t, ok)
}

func TestRemoveItem_KeepsOrder(t *testing.T) {
	cart := NewCart("u1")
	cart.Items = append(cart.Items,
		CartItem{ProductID: "a"},
		CartItem{ProductID: "b"},
		CartItem{ProductID: "c"},
	)

	assert.True(t, cart.RemoveItem("b"))
	assert.False(t, cart.RemoveItem("b"))

	require.Len(t, cart.Items, 2)
	assert.Equal(t, "a", cart.Items[0].ProductID)
	assert.Equal(t, "c", cart.Items[1].ProductID)
}

func TestNewCartItem_SnapshotsProduct(t *testing.T) {
	p := &Product{ID: "p1", Name: "Espresso", Brand: "Acme", Price: price("4.20"), ImageURL: "img/p1.png", Inventory: 0}

	item := NewCartItem(p, 3)

	assert.Equal(t, "p1", item.ProductID)
	assert.Equal(t, 3, item.Quantity)
	assert.Equal(t, "Espresso", item.Name)
	assert.Equal(t, "Acme", item.Brand)
	assert.Equal(t, "img/p1.png", item.ImageURL)
	assert.False(t, item.Available)
	assert.True(t, item.LineTotal().Equal(price("12.60")))
}

func TestErrors_WrapNotFound(t *testing.T) {
	for _, err := range []error{ErrCartNotFound, ErrCartEmpty, ErrItemNotFound, ErrProductNotFound} {
		assert.True(t, errors.Is(err, ErrNotFound), "%v should wrap ErrNotFound", err)
	}
	assert.Equal(t, "B (NO_STOCK)", InvalidItemReason("B", "NO_STOCK"))
}
