package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrCartNotFound    = fmt.Errorf("cart %w", ErrNotFound)
	ErrCartEmpty       = fmt.Errorf("cart is empty: %w", ErrNotFound)
	ErrItemNotFound    = fmt.Errorf("item %w in cart", ErrNotFound)
	ErrProductNotFound = fmt.Errorf("product %w", ErrNotFound)

	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrMalformedEvent      = errors.New("malformed catalog event")
	ErrMalformedCart       = errors.New("malformed cart record")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrContention          = errors.New("cart update gave up under contention")
)

// ValidationError is returned by checkout validation when some lines were
// rejected. The removal of those lines has already been committed; Cart is
// the state that was saved.
type ValidationError struct {
	InvalidItems []string
	Cart         *Cart
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("cart items were updated during validation: %d invalid", len(e.InvalidItems))
}

// InvalidItemReason formats a rejected line the way clients display it.
func InvalidItemReason(productID, message string) string {
	return fmt.Sprintf("%s (%s)", productID, message)
}
