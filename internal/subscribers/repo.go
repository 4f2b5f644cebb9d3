package subscribers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/soumil-kumar17/MailMaven/pkg/db/models"
	"github.com/soumil-kumar17/MailMaven/pkg/enums"
)

// Repository exposes persistence helpers for subscribers.
type Repository interface {
	Create(ctx context.Context, sub *models.Subscription) error
	CountConfirmed(ctx context.Context) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a subscribers repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Create(ctx context.Context, sub *models.Subscription) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if sub.SubscribedAt.IsZero() {
		sub.SubscribedAt = time.Now().UTC()
	}
	if sub.Status == "" {
		sub.Status = enums.SubscriptionStatusPendingConfirmation
	}
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repositoryImpl) CountConfirmed(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("status = ?", enums.SubscriptionStatusConfirmed).
		Count(&count).Error
	return count, err
}
