package contracts

import (
	"github.com/viralforge/mesh/services/integrations/M34-change-notification-service/internal/domain"
)

type SuccessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorResponse struct {
	Status string       `json:"status"`
	Error  ErrorPayload `json:"error"`
}

// ChangeNotificationRequest mirrors the remote graph service's webhook body.
// Field names follow its wire format, including the optional batch-level
// validation tokens used for proof-of-authenticity on rich payload deliveries.
type ChangeNotificationRequest struct {
	ValidationTokens []string                 `json:"validationTokens,omitempty"`
	Value            []ChangeNotificationItem `json:"value"`
}

type ChangeNotificationItem struct {
	SubscriptionID         string                `json:"subscriptionId"`
	SubscriptionExpiration string                `json:"subscriptionExpirationDateTime,omitempty"`
	ClientState            string                `json:"clientState"`
	ChangeType             string                `json:"changeType"`
	Resource               string                `json:"resource"`
	TenantID               string                `json:"tenantId,omitempty"`
	ResourceData           ResourceDataItem      `json:"resourceData"`
	EncryptedContent       *EncryptedContentItem `json:"encryptedContent,omitempty"`
}

type ResourceDataItem struct {
	ID        string `json:"id"`
	ODataType string `json:"@odata.type,omitempty"`
	ODataID   string `json:"@odata.id,omitempty"`
}

type EncryptedContentItem struct {
	Data                            string `json:"data"`
	DataKey                         string `json:"dataKey"`
	DataSignature                   string `json:"dataSignature"`
	EncryptionCertificateID         string `json:"encryptionCertificateId,omitempty"`
	EncryptionCertificateThumbprint string `json:"encryptionCertificateThumbprint,omitempty"`
}

// ToDomain converts the wire batch into the domain batch the pipeline consumes.
func (r ChangeNotificationRequest) ToDomain() domain.NotificationBatch {
	batch := domain.NotificationBatch{
		ValidationTokens: r.ValidationTokens,
		Notifications:    make([]domain.Notification, 0, len(r.Value)),
	}
	for _, item := range r.Value {
		n := domain.Notification{
			SubscriptionID: item.SubscriptionID,
			ClientState:    item.ClientState,
			ChangeType:     item.ChangeType,
			Resource:       item.Resource,
			ResourceData: domain.ResourceData{
				ID:        item.ResourceData.ID,
				ODataType: item.ResourceData.ODataType,
				ODataID:   item.ResourceData.ODataID,
			},
		}
		if item.EncryptedContent != nil {
			n.EncryptedContent = &domain.EncryptedContent{
				Data:                            item.EncryptedContent.Data,
				DataKey:                         item.EncryptedContent.DataKey,
				DataSignature:                   item.EncryptedContent.DataSignature,
				EncryptionCertificateID:         item.EncryptedContent.EncryptionCertificateID,
				EncryptionCertificateThumbprint: item.EncryptedContent.EncryptionCertificateThumbprint,
			}
		}
		batch.Notifications = append(batch.Notifications, n)
	}
	return batch
}
