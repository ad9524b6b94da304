package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/viralforge/mesh/services/integrations/M34-change-notification-service/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M34-change-notification-service/internal/ports"
)

type Repositories struct {
	Subscriptions ports.SubscriptionRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Subscriptions: &subscriptionRepository{db: db},
	}
}

type subscriptionModel struct {
	SubscriptionID string    `gorm:"column:subscription_id;primaryKey"`
	UserID         string    `gorm:"column:user_id"`
	ClientState    string    `gorm:"column:client_state"`
	Resource       string    `gorm:"column:resource"`
	ExpiresAt      time.Time `gorm:"column:expires_at"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (subscriptionModel) TableName() string { return "graph_subscriptions" }

type subscriptionRepository struct {
	db *gorm.DB
}

func (r *subscriptionRepository) GetByID(ctx context.Context, subscriptionID string) (domain.Subscription, error) {
	var rec subscriptionModel
	err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Subscription{}, domain.ErrNotFound
		}
		return domain.Subscription{}, err
	}
	return toDomainSubscription(rec), nil
}

func toDomainSubscription(rec subscriptionModel) domain.Subscription {
	return domain.Subscription{
		SubscriptionID: rec.SubscriptionID,
		UserID:         rec.UserID,
		ClientState:    rec.ClientState,
		Resource:       rec.Resource,
		ExpiresAt:      rec.ExpiresAt.UTC(),
		CreatedAt:      rec.CreatedAt.UTC(),
	}
}
