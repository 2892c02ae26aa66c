package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/fjod/go_cart/cart-service/internal/domain"
	"github.com/fjod/go_cart/cart-service/internal/metrics"
	"github.com/fjod/go_cart/cart-service/internal/store"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// ReconcileOnCatalogUpdate applies a catalog change to every cart the index
// lists for the product. A line whose quantity exceeds the new inventory is
// dropped; otherwise a changed price is copied into the snapshot.
func (s *CartService) ReconcileOnCatalogUpdate(ctx context.Context, productID string, price decimal.Decimal, inventory int) error {
	return s.fanOut(ctx, "cart.reconcile_update", productID, func(ctx context.Context, userID string) error {
		var action string
		_, err := s.store.Update(ctx, userID, func(ctx context.Context, c *domain.Cart) (*domain.Cart, error) {
			action = ""
			item, ok := c.Item(productID)
			if !ok {
				action = metrics.ActionStaleIndex
				return nil, store.ErrNoChange
			}
			switch {
			case inventory < item.Quantity:
				c.RemoveItem(productID)
				if err := s.index.RemoveMember(ctx, productID, userID); err != nil {
					return nil, err
				}
				action = metrics.ActionRemoved
			case !price.Equal(item.Price):
				item.Price = price
				action = metrics.ActionPriceUpdated
			default:
				return nil, store.ErrNoChange
			}
			c.RecalculateTotals()
			return c, nil
		})
		if err != nil {
			return err
		}
		s.afterReconcile(ctx, productID, userID, action)
		return nil
	})
}

// ReconcileOnCatalogDeletion drops the product from every cart listed for it.
func (s *CartService) ReconcileOnCatalogDeletion(ctx context.Context, productID string) error {
	return s.fanOut(ctx, "cart.reconcile_deletion", productID, func(ctx context.Context, userID string) error {
		var action string
		_, err := s.store.Update(ctx, userID, func(ctx context.Context, c *domain.Cart) (*domain.Cart, error) {
			if !c.RemoveItem(productID) {
				action = metrics.ActionStaleIndex
				return nil, store.ErrNoChange
			}
			if err := s.index.RemoveMember(ctx, productID, userID); err != nil {
				return nil, err
			}
			action = metrics.ActionRemoved
			c.RecalculateTotals()
			return c, nil
		})
		if err != nil {
			return err
		}
		s.afterReconcile(ctx, productID, userID, action)
		return nil
	})
}

// afterReconcile records what one cart went through. Stale entries are
// counted but stay in the index; only a committed removal may drop a member.
func (s *CartService) afterReconcile(ctx context.Context, productID, userID, action string) {
	if action == "" {
		return
	}
	s.metrics.ReconciliationAction(action)
	logCtx := s.log.WithFields(ctx, map[string]any{"user_id": userID, "product_id": productID, "action": action})
	s.log.Debug(logCtx, "cart reconciled")
}

// fanOut runs apply for every indexed user with bounded concurrency. Carts
// are independent: one failure is collected and the rest still run.
func (s *CartService) fanOut(
	ctx context.Context,
	spanName string,
	productID string,
	apply func(ctx context.Context, userID string) error) error {

	if productID == "" {
		return fmt.Errorf("%w: product id is required", domain.ErrInvalidArgument)
	}
	ctx, span := s.tracer.Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(attribute.String("catalog.product_id", productID))

	members, err := s.index.MembersOf(ctx, productID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetAttributes(attribute.Int("cart.count", len(members)))

	var (
		mu   sync.Mutex
		errs error
	)
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for _, userID := range members {
		g.Go(func() error {
			if err := apply(ctx, userID); err != nil {
				logCtx := s.log.WithFields(ctx, map[string]any{"user_id": userID, "product_id": productID})
				s.log.Error(logCtx, "failed to reconcile cart", err)
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("cart %s: %w", userID, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if errs != nil {
		span.RecordError(errs)
		span.SetStatus(codes.Error, "some carts failed to reconcile")
		return errs
	}
	logCtx := s.log.WithFields(ctx, map[string]any{"product_id": productID, "carts": len(members)})
	s.log.Info(logCtx, "catalog change applied to carts")
	return nil
}
