package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/soumil-kumar17/MailMaven/pkg/enums"
)

// Subscription is a newsletter subscriber.
type Subscription struct {
	ID           uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string                   `gorm:"type:text;not null;uniqueIndex"`
	Name         string                   `gorm:"type:text;not null"`
	SubscribedAt time.Time                `gorm:"type:timestamptz;not null;default:now()"`
	Status       enums.SubscriptionStatus `gorm:"type:text;not null"`
}

func (Subscription) TableName() string { return "subscriptions" }
