package application

import (
	"context"
	"crypto/hmac"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/viralforge/mesh/services/integrations/M34-change-notification-service/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M34-change-notification-service/internal/ports"
)

const serviceName = "M34-Change-Notification-Service"

// Service runs the notification pipeline: batch-level token verification,
// per-notification authentication, optional payload decryption, enrichment and
// dispatch. It holds no mutable state, so one instance serves concurrent batches.
type Service struct {
	cfg           Config
	tokens        ports.ValidationTokenVerifier
	decryptor     ports.PayloadDecryptor
	subscriptions ports.SubscriptionRepository
	fetcher       ports.ResourceFetcher
	publisher     ports.EventPublisher
}

func NewService(deps Dependencies) *Service {
	s := &Service{
		cfg:           deps.Config,
		tokens:        deps.TokenVerifier,
		decryptor:     deps.Decryptor,
		subscriptions: deps.Subscriptions,
		fetcher:       deps.Fetcher,
		publisher:     deps.Publisher,
	}
	if s.cfg.MaxConcurrency <= 0 {
		s.cfg.MaxConcurrency = 8
	}
	return s
}

// ProcessBatch handles one inbound webhook batch. Per-notification failures
// are swallowed after logging; the caller acknowledges the batch either way.
func (s *Service) ProcessBatch(ctx context.Context, batch domain.NotificationBatch) BatchResult {
	if err := s.verifyTokens(ctx, batch.ValidationTokens); err != nil {
		appLogger().WarnContext(ctx, "batch suppressed",
			"operation", "process_batch",
			"outcome", "suppressed",
			"token_count", len(batch.ValidationTokens),
			"notification_count", len(batch.Notifications),
			"error", err.Error(),
		)
		return BatchResult{Status: BatchStatusSuppressed, Skipped: len(batch.Notifications)}
	}

	// Notifications are independent; evaluate them concurrently but dispatch
	// in input order so a batch always produces a deterministic event sequence.
	outcomes := make([]notificationOutcome, len(batch.Notifications))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrency)
	for i, n := range batch.Notifications {
		i, n := i, n
		g.Go(func() error {
			outcomes[i] = s.evaluate(gctx, n)
			return nil
		})
	}
	_ = g.Wait()

	result := BatchResult{Status: BatchStatusCompleted}
	for _, out := range outcomes {
		if out.skipReason != "" {
			result.Skipped++
			continue
		}
		if err := s.publisher.Publish(ctx, out.event.SubscriptionID, out.event); err != nil {
			// Fire-and-forget: delivery is the transport's problem.
			appLogger().WarnContext(ctx, "event publish failed",
				"operation", "dispatch",
				"outcome", "failure",
				"subscription_id", out.event.SubscriptionID,
				"error", err.Error(),
			)
		}
		result.Dispatched++
	}
	appLogger().InfoContext(ctx, "batch processed",
		"operation", "process_batch",
		"outcome", "success",
		"dispatched", result.Dispatched,
		"skipped", result.Skipped,
	)
	return result
}

// verifyTokens folds the per-token results with a short-circuit-free AND so
// every token is checked and logged even after the first failure. A batch
// without tokens passes; any rejected token fails the whole batch.
func (s *Service) verifyTokens(ctx context.Context, tokens []string) error {
	valid := true
	for i, raw := range tokens {
		if s.tokens.Verify(ctx, raw) {
			continue
		}
		valid = false
		appLogger().WarnContext(ctx, "validation token rejected",
			"operation", "verify_tokens",
			"outcome", "failure",
			"token_index", i,
		)
	}
	if !valid {
		return domain.ErrBatchInvalid
	}
	return nil
}

type notificationOutcome struct {
	event      domain.DispatchEvent
	skipReason string
}

func (s *Service) evaluate(ctx context.Context, n domain.Notification) notificationOutcome {
	sub, err := s.authenticate(ctx, n)
	if err != nil {
		appLogger().WarnContext(ctx, "notification skipped",
			"operation", "authenticate",
			"outcome", "failure",
			"subscription_id", n.SubscriptionID,
		)
		return notificationOutcome{skipReason: "unauthenticated"}
	}

	if n.IsEncrypted() {
		doc, err := s.decryptor.Decrypt(*n.EncryptedContent)
		if err != nil {
			appLogger().WarnContext(ctx, "notification skipped",
				"operation", "decrypt",
				"outcome", "failure",
				"subscription_id", sub.SubscriptionID,
				"failure_kind", domain.DecryptionKind(err),
			)
			return notificationOutcome{skipReason: "decryption_failed"}
		}
		return notificationOutcome{
			event: domain.NewDispatchEvent(sub.SubscriptionID, richEventType(doc), doc),
		}
	}

	switch n.ChangeType {
	case domain.ChangeTypeCreated:
		projection, err := s.fetcher.Get(ctx, n.Resource, s.cfg.FetchSelectFields)
		if err != nil {
			appLogger().WarnContext(ctx, "notification skipped",
				"operation", "enrichment_fetch",
				"outcome", "failure",
				"subscription_id", sub.SubscriptionID,
				"resource", n.Resource,
				"error", err.Error(),
			)
			return notificationOutcome{skipReason: "enrichment_fetch_failed"}
		}
		return notificationOutcome{
			event: domain.NewDispatchEvent(sub.SubscriptionID, projectionEventType(projection, n), projection),
		}
	default:
		// Notify-only policy for non-creation changes: no fetch, empty body.
		return notificationOutcome{
			event: domain.NewDispatchEvent(sub.SubscriptionID, domain.EventTypeNotification, nil),
		}
	}
}

// authenticate gates a notification on the shared client-state secret and an
// existing subscription. Both failure modes collapse to ErrUnauthenticated so
// callers cannot tell which check tripped.
func (s *Service) authenticate(ctx context.Context, n domain.Notification) (domain.Subscription, error) {
	if !secureEquals(n.ClientState, s.cfg.ClientStateSecret) {
		return domain.Subscription{}, domain.ErrUnauthenticated
	}
	sub, err := s.subscriptions.GetByID(ctx, strings.TrimSpace(n.SubscriptionID))
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			appLogger().WarnContext(ctx, "subscription lookup unavailable",
				"operation", "subscription_lookup",
				"outcome", "failure",
				"subscription_id", n.SubscriptionID,
				"error", err.Error(),
			)
		}
		return domain.Subscription{}, domain.ErrUnauthenticated
	}
	return sub, nil
}

// secureEquals compares the shared secret in constant time. The length of the
// configured secret is not considered sensitive.
func secureEquals(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}

func richEventType(doc map[string]any) string {
	if t, ok := doc["@odata.type"].(string); ok && strings.TrimSpace(t) != "" {
		return t
	}
	return domain.EventTypeChatMessage
}

func projectionEventType(projection map[string]any, n domain.Notification) string {
	if t, ok := projection["@odata.type"].(string); ok && strings.TrimSpace(t) != "" {
		return t
	}
	if strings.TrimSpace(n.ResourceData.ODataType) != "" {
		return n.ResourceData.ODataType
	}
	return domain.EventTypeNotification
}

func appLogger() *slog.Logger {
	return slog.Default().With(
		"service", serviceName,
		"module", "pipeline",
		"layer", "application",
	)
}
