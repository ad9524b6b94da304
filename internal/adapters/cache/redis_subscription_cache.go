package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/viralforge/mesh/services/integrations/M34-change-notification-service/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M34-change-notification-service/internal/ports"
)

const subscriptionKeyPrefix = "notify:sub:record:"

// RedisSubscriptionCache is a read-through decorator over the persistent
// subscription store. The store is read-only for this service, so entries
// only ever age out; no invalidation path is needed.
type RedisSubscriptionCache struct {
	client *redis.Client
	next   ports.SubscriptionRepository
	ttl    time.Duration
}

func NewRedisSubscriptionCache(client *redis.Client, next ports.SubscriptionRepository, ttl time.Duration) *RedisSubscriptionCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisSubscriptionCache{client: client, next: next, ttl: ttl}
}

func (c *RedisSubscriptionCache) GetByID(ctx context.Context, subscriptionID string) (domain.Subscription, error) {
	key := subscriptionKeyPrefix + subscriptionID
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var sub domain.Subscription
		if unmarshalErr := json.Unmarshal(raw, &sub); unmarshalErr == nil {
			return sub, nil
		}
		// A corrupt entry falls through to the store and gets rewritten.
	} else if !errors.Is(err, redis.Nil) {
		// Cache unavailability must not make lookups fail; go to the store.
		sub, storeErr := c.next.GetByID(ctx, subscriptionID)
		return sub, storeErr
	}

	sub, err := c.next.GetByID(ctx, subscriptionID)
	if err != nil {
		return domain.Subscription{}, err
	}
	if encoded, marshalErr := json.Marshal(sub); marshalErr == nil {
		_ = c.client.Set(ctx, key, encoded, c.ttl).Err()
	}
	return sub, nil
}
