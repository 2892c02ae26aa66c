package consumer

import (
	"encoding/json"
	"fmt"

	"github.com/fjod/go_cart/cart-service/internal/domain"
	"github.com/shopspring/decimal"
)

// productUpdatedEvent accepts the price as a JSON string or number.
type productUpdatedEvent struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Brand     string           `json:"brand"`
	Price     *decimal.Decimal `json:"price"`
	Inventory *int             `json:"inventory"`
}

type productDeletedEvent struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	EventType   string `json:"eventType"`
	Timestamp   any    `json:"timestamp"`
}

type checkoutCompletedEvent struct {
	CheckoutID string `json:"checkout_id"`
	UserID     string `json:"user_id"`
}

func parseProductUpdated(raw []byte) (*productUpdatedEvent, error) {
	var e productUpdatedEvent
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedEvent, err)
	}
	switch {
	case e.ID == "":
		return nil, fmt.Errorf("%w: missing id", domain.ErrMalformedEvent)
	case e.Price == nil:
		return nil, fmt.Errorf("%w: missing price", domain.ErrMalformedEvent)
	case e.Inventory == nil:
		return nil, fmt.Errorf("%w: missing inventory", domain.ErrMalformedEvent)
	}
	return &e, nil
}

func parseProductDeleted(raw []byte) (*productDeletedEvent, error) {
	var e productDeletedEvent
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedEvent, err)
	}
	if e.ProductID == "" {
		return nil, fmt.Errorf("%w: missing productId", domain.ErrMalformedEvent)
	}
	return &e, nil
}

func parseCheckoutCompleted(raw []byte) (*checkoutCompletedEvent, error) {
	var e checkoutCompletedEvent
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedEvent, err)
	}
	if e.UserID == "" {
		return nil, fmt.Errorf("%w: missing or invalid user_id", domain.ErrMalformedEvent)
	}
	return &e, nil
}
