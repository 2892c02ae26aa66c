package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/cart-service/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

const (
	getProductMethod        = "/product.ProductService/GetProductById"
	validateCartItemsMethod = "/product.ProductService/ValidateCartItems"
)

type Options struct {
	Timeout            time.Duration
	BreakerFailures    uint32
	BreakerOpenTimeout time.Duration
}

// Client talks to the product catalog. Every call runs under its own
// timeout and behind a circuit breaker.
type Client struct {
	conn    grpc.ClientConnInterface
	breaker *gobreaker.CircuitBreaker[any]
	timeout time.Duration
}

// NewConn dials the catalog with tracing enabled.
func NewConn(addr string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to catalog: %w", err)
	}
	return conn, nil
}

func NewClient(conn grpc.ClientConnInterface, opts Options) *Client {
	failures := opts.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	settings := gobreaker.Settings{
		Name:    "catalog",
		Timeout: opts.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: isSuccessful,
	}
	return &Client{
		conn:    conn,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
		timeout: opts.Timeout,
	}
}

func (c *Client) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var resp getProductResponse
	if err := c.invoke(ctx, getProductMethod, &getProductRequest{ID: productID}, &resp); err != nil {
		return nil, err
	}
	if resp.Product == nil {
		return nil, domain.ErrProductNotFound
	}
	return resp.Product.toDomain()
}

func (c *Client) ValidateCartItems(ctx context.Context, items []domain.ItemCheck) ([]domain.ItemValidation, error) {
	req := validateCartItemsRequest{Items: make([]itemCheckMessage, 0, len(items))}
	for _, item := range items {
		req.Items = append(req.Items, itemCheckMessage{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	var resp validateCartItemsResponse
	if err := c.invoke(ctx, validateCartItemsMethod, &req, &resp); err != nil {
		return nil, err
	}

	results := make([]domain.ItemValidation, 0, len(resp.Results))
	for _, r := range resp.Results {
		v, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	return results, nil
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		callCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		return nil, c.conn.Invoke(callCtx, method, req, resp, grpc.ForceCodec(jsonCodec{}))
	})
	if err != nil {
		return classify(method, err)
	}
	return nil
}

// isSuccessful keeps caller mistakes from tripping the breaker.
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	switch status.Code(err) {
	case codes.NotFound, codes.InvalidArgument:
		return true
	}
	return false
}

func classify(method string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: catalog circuit open: %w", domain.ErrUpstreamUnavailable, err)
	}
	switch status.Code(err) {
	case codes.NotFound:
		return domain.ErrProductNotFound
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", domain.ErrInvalidArgument, status.Convert(err).Message())
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrUpstreamUnavailable, method, err)
}

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: bad catalog price %q: %w", domain.ErrUpstreamUnavailable, raw, err)
	}
	return price, nil
}
