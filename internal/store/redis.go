package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/cart-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const redisBackend = "redis"

func NewRedisStore(client *redis.Client, ttl time.Duration, policy RetryPolicy, observer ConflictObserver) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultCartTTL
	}
	return &RedisStore{
		client:   client,
		ttl:      ttl,
		policy:   policy,
		observer: observer,
	}
}

// RedisStore keeps carts as JSON strings under cart:<userID> and uses
// WATCH/MULTI/EXEC for version-checked commits.
type RedisStore struct {
	client   *redis.Client
	ttl      time.Duration
	policy   RetryPolicy
	observer ConflictObserver
}

func (r *RedisStore) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	return readCart(ctx, r.client, userID)
}

func (r *RedisStore) Put(ctx context.Context, cart *domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := r.client.Set(ctx, cartKey(cart.UserID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	return nil
}

func (r *RedisStore) Update(ctx context.Context, userID string, mutate MutateFunc) (*domain.Cart, error) {
	return runOptimistic(ctx, r.policy, redisBackend, r.observer, func() (*domain.Cart, error) {
		return r.attempt(ctx, userID, mutate)
	})
}

// attempt is a single WATCH/GET/mutate/MULTI-SET-EXEC round.
func (r *RedisStore) attempt(ctx context.Context, userID string, mutate MutateFunc) (*domain.Cart, error) {
	key := cartKey(userID)

	var (
		result    *domain.Cart
		mutateErr error
	)
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readCart(ctx, tx, userID)
		if errors.Is(err, domain.ErrCartNotFound) {
			current = domain.NewCart(userID)
		} else if err != nil {
			return err
		}

		next, err := mutate(ctx, current)
		if errors.Is(err, ErrNoChange) {
			result = current
			return nil
		}
		if err != nil {
			mutateErr = err
			return err
		}

		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal cart failed: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		result = next
		return nil
	}, key)

	switch {
	case mutateErr != nil:
		return nil, mutateErr
	case errors.Is(err, redis.TxFailedErr):
		return nil, ErrConflict
	case errors.Is(err, domain.ErrMalformedCart), errors.Is(err, domain.ErrUpstreamUnavailable):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("redis update failed: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	return result, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readCart(ctx context.Context, g getter, userID string) (*domain.Cart, error) {
	data, err := g.Get(ctx, cartKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w: %w", domain.ErrUpstreamUnavailable, err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w: %w", domain.ErrMalformedCart, err)
	}
	if cart.UserID == "" {
		cart.UserID = userID
	}
	return &cart, nil
}

func cartKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}
