package index

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/cart-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

type RedisIndex struct {
	client *redis.Client
}

func NewRedisIndex(client *redis.Client) *RedisIndex {
	return &RedisIndex{client: client}
}

func (r *RedisIndex) AddMember(ctx context.Context, productID, userID string) error {
	if err := r.client.SAdd(ctx, indexKey(productID), userID).Err(); err != nil {
		return fmt.Errorf("redis sadd failed: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	return nil
}

func (r *RedisIndex) RemoveMember(ctx context.Context, productID, userID string) error {
	if err := r.client.SRem(ctx, indexKey(productID), userID).Err(); err != nil {
		return fmt.Errorf("redis srem failed: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	return nil
}

// MembersOf returns an empty slice when the product has no members.
func (r *RedisIndex) MembersOf(ctx context.Context, productID string) ([]string, error) {
	members, err := r.client.SMembers(ctx, indexKey(productID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers failed: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	if members == nil {
		return []string{}, nil
	}
	return members, nil
}

func indexKey(productID string) string {
	return fmt.Sprintf("product-index:%s", productID)
}
