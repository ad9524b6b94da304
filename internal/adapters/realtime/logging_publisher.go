package realtime

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/viralforge/mesh/services/integrations/M34-change-notification-service/internal/domain"
)

// LoggingPublisher is the local/dev stand-in for a real transport.
type LoggingPublisher struct {
	logger *slog.Logger
}

func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	return &LoggingPublisher{logger: logger}
}

func (p *LoggingPublisher) Publish(ctx context.Context, subscriptionID string, event domain.DispatchEvent) error {
	payload, _ := json.Marshal(event)
	p.logger.InfoContext(ctx, "dispatched event",
		"subscription_id", subscriptionID,
		"event_type", event.Type,
		"payload", string(payload),
	)
	return nil
}
