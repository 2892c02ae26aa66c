package service

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/cart-service/internal/domain"
	"github.com/fjod/go_cart/cart-service/internal/metrics"
	"github.com/fjod/go_cart/cart-service/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ValidateForCheckout checks every line against the catalog, drops rejected
// lines and refreshes prices. The cleaned cart is committed even when lines
// were rejected; the rejection is then reported as a *domain.ValidationError
// carrying that committed cart.
func (s *CartService) ValidateForCheckout(ctx context.Context, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidArgument)
	}
	ctx, span := s.tracer.Start(ctx, "cart.validate_for_checkout")
	defer span.End()
	span.SetAttributes(attribute.String("cart.user_id", userID))

	// Rebuilt by every attempt; a discarded attempt must not leak its
	// findings into the result.
	var invalid []string
	cart, err := s.store.Update(ctx, userID, func(ctx context.Context, c *domain.Cart) (*domain.Cart, error) {
		invalid = nil
		if c.IsEmpty() {
			return nil, store.ErrNoChange
		}

		checks := make([]domain.ItemCheck, 0, len(c.Items))
		for _, item := range c.Items {
			checks = append(checks, domain.ItemCheck{ProductID: item.ProductID, Quantity: item.Quantity})
		}
		results, err := s.catalog.ValidateCartItems(ctx, checks)
		if err != nil {
			return nil, err
		}

		for _, r := range results {
			item, ok := c.Item(r.ProductID)
			if !ok {
				continue
			}
			if !r.Valid {
				c.RemoveItem(r.ProductID)
				if err := s.index.RemoveMember(ctx, r.ProductID, userID); err != nil {
					return nil, err
				}
				invalid = append(invalid, domain.InvalidItemReason(r.ProductID, r.Message))
				continue
			}
			if !r.CurrentPrice.Equal(item.Price) {
				item.Price = r.CurrentPrice
			}
		}
		c.RecalculateTotals()
		return c, nil
	})
	if err != nil {
		s.metrics.CheckoutValidation(metrics.CheckoutError)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if len(invalid) > 0 {
		s.metrics.CheckoutValidation(metrics.CheckoutInvalidItems)
		logCtx := s.log.WithFields(ctx, map[string]any{"user_id": userID, "invalid_items": invalid})
		s.log.Info(logCtx, "checkout validation removed invalid items")
		return nil, &domain.ValidationError{InvalidItems: invalid, Cart: cart}
	}
	if cart.IsEmpty() {
		s.metrics.CheckoutValidation(metrics.CheckoutEmpty)
		return nil, domain.ErrCartEmpty
	}
	s.metrics.CheckoutValidation(metrics.CheckoutOK)
	return cart, nil
}
