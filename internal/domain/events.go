package domain

// Event type tags carried on dispatched events. Decrypted rich payloads keep the
// resource's own @odata.type when it is present; EventTypeChatMessage is the
// fallback for rich payloads without one. EventTypeNotification is the generic
// tag for notify-only changes that carry no resource body.
const (
	EventTypeChatMessage  = "#Microsoft.Graph.chatMessage"
	EventTypeNotification = "notification"
)

// DispatchEvent is the normalized event published to a subscriber channel.
// It is constructed, published and forgotten; nothing persists it.
type DispatchEvent struct {
	SubscriptionID string         `json:"subscription_id"`
	Type           string         `json:"type"`
	Resource       map[string]any `json:"resource"`
}

// NewDispatchEvent keeps the zero-value resource an empty object rather than
// null so subscribers always receive a JSON object body.
func NewDispatchEvent(subscriptionID, eventType string, resource map[string]any) DispatchEvent {
	if resource == nil {
		resource = map[string]any{}
	}
	return DispatchEvent{
		SubscriptionID: subscriptionID,
		Type:           eventType,
		Resource:       resource,
	}
}
