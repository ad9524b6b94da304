package ports

import (
	"context"

	"github.com/viralforge/mesh/services/integrations/M34-change-notification-service/internal/domain"
)

// SubscriptionRepository resolves a subscription id to its persisted record.
// A miss is domain.ErrNotFound; the pipeline treats it as unauthenticated.
type SubscriptionRepository interface {
	GetByID(ctx context.Context, subscriptionID string) (domain.Subscription, error)
}
