package ports

import (
	"context"

	"github.com/viralforge/mesh/services/integrations/M34-change-notification-service/internal/domain"
)

// EventPublisher delivers a dispatch event to the channel identified by a
// subscription id. Publishing is fire-and-forget from the pipeline's point of
// view: transport errors are the adapter's concern and are never retried here.
type EventPublisher interface {
	Publish(ctx context.Context, subscriptionID string, event domain.DispatchEvent) error
}
