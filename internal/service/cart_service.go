package service

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/cart-service/internal/domain"
	"github.com/fjod/go_cart/cart-service/internal/index"
	"github.com/fjod/go_cart/cart-service/internal/logger"
	"github.com/fjod/go_cart/cart-service/internal/metrics"
	"github.com/fjod/go_cart/cart-service/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const defaultConcurrency = 8

// CatalogGateway is the part of the product catalog the cart depends on.
type CatalogGateway interface {
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	ValidateCartItems(ctx context.Context, items []domain.ItemCheck) ([]domain.ItemValidation, error)
}

type Options struct {
	// ReconcileConcurrency caps how many carts one catalog event updates at once.
	ReconcileConcurrency int
	Logger               *logger.Logger
	Metrics              *metrics.Metrics
}

type CartService struct {
	store       store.CartStore
	index       index.ProductIndex
	catalog     CatalogGateway
	log         *logger.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	concurrency int
	sfg         singleflight.Group // Collapses concurrent reads of one cart
}

func NewCartService(st store.CartStore, idx index.ProductIndex, catalog CatalogGateway, opts Options) *CartService {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	concurrency := opts.ReconcileConcurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &CartService{
		store:       st,
		index:       idx,
		catalog:     catalog,
		log:         log,
		metrics:     opts.Metrics,
		tracer:      otel.Tracer("github.com/fjod/go_cart/cart-service/internal/service"),
		concurrency: concurrency,
	}
}

// AddItem increments an existing line or snapshots the product from the
// catalog into a new one. The catalog call runs inside the update, so it
// repeats when the commit loses a race.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if err := requireIDs(userID, productID); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", domain.ErrInvalidArgument)
	}

	return s.store.Update(ctx, userID, func(ctx context.Context, c *domain.Cart) (*domain.Cart, error) {
		if item, ok := c.Item(productID); ok {
			item.Quantity += quantity
			c.RecalculateTotals()
			return c, nil
		}

		product, err := s.catalog.GetProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		// Registered before commit so the index never misses a committed line.
		if err := s.index.AddMember(ctx, productID, userID); err != nil {
			return nil, err
		}
		c.Items = append(c.Items, domain.NewCartItem(product, quantity))
		c.RecalculateTotals()
		return c, nil
	})
}

// UpdateItemQuantity sets the quantity of a line already in the cart.
func (s *CartService) UpdateItemQuantity(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if err := requireIDs(userID, productID); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", domain.ErrInvalidArgument)
	}

	return s.store.Update(ctx, userID, func(_ context.Context, c *domain.Cart) (*domain.Cart, error) {
		item, ok := c.Item(productID)
		if !ok {
			return nil, domain.ErrItemNotFound
		}
		item.Quantity = quantity
		c.RecalculateTotals()
		return c, nil
	})
}

// RemoveItem drops the line if present. The index member is removed inside
// the update, before the commit; an add that reads the committed cart
// registers after it.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	if err := requireIDs(userID, productID); err != nil {
		return nil, err
	}

	return s.store.Update(ctx, userID, func(ctx context.Context, c *domain.Cart) (*domain.Cart, error) {
		if c.RemoveItem(productID) {
			if err := s.index.RemoveMember(ctx, productID, userID); err != nil {
				return nil, err
			}
		}
		c.RecalculateTotals()
		return c, nil
	})
}

func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidArgument)
	}
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		return s.store.Get(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Cart), nil
}

// ClearCart drops the cart record. Index entries are left behind; the
// index only ever over-reports.
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrInvalidArgument)
	}
	if err := s.store.Delete(ctx, userID); err != nil {
		s.log.Error(s.log.WithUserID(ctx, userID), "failed to clear cart", err)
		return err
	}
	return nil
}

func requireIDs(userID, productID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrInvalidArgument)
	}
	if productID == "" {
		return fmt.Errorf("%w: product id is required", domain.ErrInvalidArgument)
	}
	return nil
}
