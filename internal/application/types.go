package application

import (
	"github.com/viralforge/mesh/services/integrations/M34-change-notification-service/internal/ports"
)

// Config is the read-only pipeline configuration fixed at construction.
type Config struct {
	// ClientStateSecret is the process-wide secret every notification's
	// clientState must match before anything else is looked at.
	ClientStateSecret string
	// FetchSelectFields narrows the enrichment projection fetched for
	// created-type plain notifications.
	FetchSelectFields []string
	// MaxConcurrency bounds how many notifications of one batch are
	// evaluated at the same time.
	MaxConcurrency int
}

type Dependencies struct {
	Config        Config
	TokenVerifier ports.ValidationTokenVerifier
	Decryptor     ports.PayloadDecryptor
	Subscriptions ports.SubscriptionRepository
	Fetcher       ports.ResourceFetcher
	Publisher     ports.EventPublisher
}

const (
	BatchStatusCompleted  = "completed"
	BatchStatusSuppressed = "suppressed"
)

// BatchResult summarizes one batch run. The webhook acknowledges the batch as
// accepted regardless of these counts; they exist for logging and tests.
type BatchResult struct {
	Status     string `json:"status"`
	Dispatched int    `json:"dispatched"`
	Skipped    int    `json:"skipped"`
}
