package store

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_cart/cart-service/internal/domain"
)

// DefaultCartTTL is how long an untouched cart survives in the store.
const DefaultCartTTL = 30 * 24 * time.Hour

var (
	// ErrConflict means another writer committed between read and commit.
	// It is recovered by the update loop and never returned to callers.
	ErrConflict = errors.New("concurrent cart update")

	// ErrNoChange may be returned by a MutateFunc to skip the write. Update
	// then returns the cart as it was read.
	ErrNoChange = errors.New("no change to commit")
)

// MutateFunc transforms the current cart into the one to commit. It runs
// once per attempt, so any side effect it has must tolerate repetition.
// The cart it receives is a fresh copy owned by the attempt.
type MutateFunc func(ctx context.Context, cart *domain.Cart) (*domain.Cart, error)

// CartStore persists one cart per user with a TTL and offers a
// version-checked read-modify-write.
type CartStore interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Put(ctx context.Context, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
	Update(ctx context.Context, userID string, mutate MutateFunc) (*domain.Cart, error)
}

// ConflictObserver is told about every lost commit.
type ConflictObserver interface {
	CommitConflict(backend string)
}
