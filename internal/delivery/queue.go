package delivery

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/soumil-kumar17/MailMaven/pkg/db"
	"github.com/soumil-kumar17/MailMaven/pkg/db/models"
	pkgerrors "github.com/soumil-kumar17/MailMaven/pkg/errors"
)

// Task identifies one pending delivery.
type Task struct {
	IssueID         uuid.UUID
	SubscriberEmail string
}

// Claim is a dequeued task together with the transaction holding its row
// lock. It ends through exactly one of Queue.DeleteTask or Release.
type Claim struct {
	Task Task
	tx   *db.Tx
}

// Release rolls back the claim, leaving the task queued.
func (c *Claim) Release() error {
	if c == nil {
		return nil
	}
	return c.tx.Rollback()
}

// Queue reads and removes delivery tasks. Concurrent consumers never see the
// same task because dequeue skips rows locked by another transaction.
type Queue struct {
	client *db.Client
}

// NewQueue returns a queue backed by the database client.
func NewQueue(client *db.Client) (*Queue, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "delivery queue requires a database client")
	}
	return &Queue{client: client}, nil
}

// Dequeue locks one pending task inside a new transaction. It returns nil
// when the queue is empty or every pending row is locked by another worker.
func (q *Queue) Dequeue(ctx context.Context) (*Claim, error) {
	tx, err := q.client.Begin(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "begin dequeue transaction")
	}

	var row models.IssueDeliveryTask
	err = tx.DB().WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Take(&row).Error
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dequeue delivery task")
	}

	return &Claim{
		Task: Task{IssueID: row.NewsletterIssueID, SubscriberEmail: row.SubscriberEmail},
		tx:   tx,
	}, nil
}

// GetIssue loads the issue a claimed task belongs to, inside the claim's transaction.
func (q *Queue) GetIssue(ctx context.Context, claim *Claim) (models.NewsletterIssue, error) {
	var issue models.NewsletterIssue
	if claim == nil || claim.tx.Done() {
		return issue, pkgerrors.Wrap(pkgerrors.CodeInternal, db.ErrTxDone, "load newsletter issue")
	}
	err := claim.tx.DB().WithContext(ctx).
		Where("newsletter_issue_id = ?", claim.Task.IssueID).
		Take(&issue).Error
	if err != nil {
		return issue, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load newsletter issue")
	}
	return issue, nil
}

// DeleteTask removes the claimed task and commits, releasing the row lock.
func (q *Queue) DeleteTask(ctx context.Context, claim *Claim) error {
	if claim == nil || claim.tx.Done() {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, db.ErrTxDone, "delete delivery task")
	}
	err := claim.tx.DB().WithContext(ctx).
		Where("newsletter_issue_id = ? AND subscriber_email = ?", claim.Task.IssueID, claim.Task.SubscriberEmail).
		Delete(&models.IssueDeliveryTask{}).Error
	if err != nil {
		_ = claim.tx.Rollback()
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete delivery task")
	}
	if err := claim.tx.Commit(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "commit delivery task")
	}
	return nil
}
