package domain

import "time"

// Subscription is the persisted record negotiated with the remote resource graph.
// This service only ever reads it; creation and renewal are owned elsewhere.
type Subscription struct {
	SubscriptionID string    `json:"subscription_id"`
	UserID         string    `json:"user_id"`
	ClientState    string    `json:"client_state"`
	Resource       string    `json:"resource"`
	ExpiresAt      time.Time `json:"expires_at"`
	CreatedAt      time.Time `json:"created_at"`
}
