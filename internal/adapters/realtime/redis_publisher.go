package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/viralforge/mesh/services/integrations/M34-change-notification-service/internal/domain"
)

const channelPrefix = "notify:sub:"

// RedisPublisher pushes dispatch events onto the per-subscription pub/sub
// channel the real-time transport fans out to connected clients.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, subscriptionID string, event domain.DispatchEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal dispatch event: %w", err)
	}
	return p.client.Publish(ctx, channelPrefix+subscriptionID, payload).Err()
}
