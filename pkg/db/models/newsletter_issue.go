package models

import (
	"time"

	"github.com/google/uuid"
)

// NewsletterIssue is a published issue. Rows are immutable once written.
type NewsletterIssue struct {
	ID          uuid.UUID `gorm:"column:newsletter_issue_id;type:uuid;primaryKey"`
	Title       string    `gorm:"type:text;not null"`
	TextContent string    `gorm:"type:text;not null"`
	HTMLContent string    `gorm:"column:html_content;type:text;not null"`
	PublishedAt time.Time `gorm:"type:timestamptz;not null"`
}

func (NewsletterIssue) TableName() string { return "newsletter_issues" }
