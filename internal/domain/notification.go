package domain

import "strings"

const (
	ChangeTypeCreated = "created"
	ChangeTypeUpdated = "updated"
	ChangeTypeDeleted = "deleted"
)

// ResourceData carries the identity of the remote resource a notification refers to.
// The @odata fields keep the remote service's type tags intact for downstream routing.
type ResourceData struct {
	ID        string `json:"id"`
	ODataType string `json:"@odata.type,omitempty"`
	ODataID   string `json:"@odata.id,omitempty"`
}

// EncryptedContent is the rich-payload envelope delivered inline with a notification.
// Data is AES ciphertext, DataKey the RSA-wrapped session key, DataSignature an
// HMAC-SHA256 over the ciphertext keyed with the unwrapped session key.
type EncryptedContent struct {
	Data                            string `json:"data"`
	DataKey                         string `json:"dataKey"`
	DataSignature                   string `json:"dataSignature"`
	EncryptionCertificateID         string `json:"encryptionCertificateId,omitempty"`
	EncryptionCertificateThumbprint string `json:"encryptionCertificateThumbprint,omitempty"`
}

// Notification is one entry of an inbound change-notification batch.
type Notification struct {
	SubscriptionID   string            `json:"subscriptionId"`
	ClientState      string            `json:"clientState"`
	ChangeType       string            `json:"changeType"`
	Resource         string            `json:"resource"`
	ResourceData     ResourceData      `json:"resourceData"`
	EncryptedContent *EncryptedContent `json:"encryptedContent,omitempty"`
}

// NotificationBatch is the decoded webhook payload: optional batch-level
// validation tokens plus the notifications themselves.
type NotificationBatch struct {
	ValidationTokens []string
	Notifications    []Notification
}

func (n Notification) IsEncrypted() bool {
	return n.EncryptedContent != nil && strings.TrimSpace(n.EncryptedContent.Data) != ""
}
