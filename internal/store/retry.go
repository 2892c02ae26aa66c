package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/fjod/go_cart/cart-service/internal/domain"
)

// RetryPolicy bounds the optimistic update loop. The zero value retries
// forever without waiting between attempts.
type RetryPolicy struct {
	MaxAttempts    uint
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (p RetryPolicy) newBackOff() backoff.BackOff {
	if p.InitialBackoff <= 0 {
		return &backoff.ZeroBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff
	if p.MaxBackoff > 0 {
		b.MaxInterval = p.MaxBackoff
	}
	return b
}

// runOptimistic repeats attempt while it reports ErrConflict. Any other
// error ends the loop and is returned as is.
func runOptimistic(
	ctx context.Context,
	policy RetryPolicy,
	backend string,
	observer ConflictObserver,
	attempt func() (*domain.Cart, error)) (*domain.Cart, error) {

	op := func() (*domain.Cart, error) {
		cart, err := attempt()
		if errors.Is(err, ErrConflict) {
			if observer != nil {
				observer.CommitConflict(backend)
			}
			return nil, err
		}
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		return cart, nil
	}

	cart, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(policy.newBackOff()),
		backoff.WithMaxTries(policy.MaxAttempts),
		backoff.WithMaxElapsedTime(0),
	)
	// Retry hands back the wrapper as is when the last allowed try fails.
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	if errors.Is(err, ErrConflict) {
		return nil, fmt.Errorf("%w: %d attempts", domain.ErrContention, policy.MaxAttempts)
	}
	if err != nil {
		return nil, err
	}
	return cart, nil
}
