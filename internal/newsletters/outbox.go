package newsletters

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soumil-kumar17/MailMaven/pkg/db"
	"github.com/soumil-kumar17/MailMaven/pkg/db/models"
	"github.com/soumil-kumar17/MailMaven/pkg/enums"
	pkgerrors "github.com/soumil-kumar17/MailMaven/pkg/errors"
)

const enqueueConfirmedSQL = `
INSERT INTO issue_delivery_queue (newsletter_issue_id, subscriber_email)
SELECT ?, email
FROM subscriptions
WHERE status = ?`

// Outbox writes issues and their delivery fan-out inside a caller owned
// transaction. It never commits.
type Outbox struct {
	now func() time.Time
}

// NewOutbox returns an outbox writer.
func NewOutbox() *Outbox {
	return &Outbox{now: time.Now}
}

// InsertIssue stores a new issue and returns its generated id.
func (o *Outbox) InsertIssue(ctx context.Context, tx *db.Tx, title, htmlContent, textContent string) (uuid.UUID, error) {
	if tx == nil || tx.Done() {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, db.ErrTxDone, "insert newsletter issue")
	}
	if strings.TrimSpace(title) == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}

	issue := models.NewsletterIssue{
		ID:          uuid.New(),
		Title:       title,
		HTMLContent: htmlContent,
		TextContent: textContent,
		PublishedAt: o.now().UTC(),
	}
	if err := tx.DB().WithContext(ctx).Create(&issue).Error; err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert newsletter issue")
	}
	return issue.ID, nil
}

// EnqueueTasks queues one delivery task per currently confirmed subscriber
// with a single INSERT ... SELECT. It returns the number of queued tasks.
func (o *Outbox) EnqueueTasks(ctx context.Context, tx *db.Tx, issueID uuid.UUID) (int64, error) {
	if tx == nil || tx.Done() {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, db.ErrTxDone, "enqueue delivery tasks")
	}
	if issueID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "issue id is required")
	}

	result := tx.DB().WithContext(ctx).Exec(enqueueConfirmedSQL, issueID, enums.SubscriptionStatusConfirmed)
	if result.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "enqueue delivery tasks")
	}
	return result.RowsAffected, nil
}
