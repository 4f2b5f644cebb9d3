package models

import "github.com/google/uuid"

// IssueDeliveryTask is one pending (issue, recipient) delivery.
type IssueDeliveryTask struct {
	NewsletterIssueID uuid.UUID `gorm:"type:uuid;primaryKey"`
	SubscriberEmail   string    `gorm:"type:text;primaryKey"`
}

func (IssueDeliveryTask) TableName() string { return "issue_delivery_queue" }
