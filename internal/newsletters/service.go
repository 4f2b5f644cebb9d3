package newsletters

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/soumil-kumar17/MailMaven/internal/flash"
	"github.com/soumil-kumar17/MailMaven/internal/idempotency"
	"github.com/soumil-kumar17/MailMaven/pkg/db"
	pkgerrors "github.com/soumil-kumar17/MailMaven/pkg/errors"
	"github.com/soumil-kumar17/MailMaven/pkg/logger"
	"github.com/soumil-kumar17/MailMaven/pkg/metrics"
)

// AdminNewslettersPath is where a publish redirects to.
const AdminNewslettersPath = "/admin/newsletters"

const (
	MessagePublished        = "The newsletter issue has been published!"
	MessageAlreadyPublished = "The newsletter issue has already been published."
	MessagePublishFailed    = "Failed to publish the newsletter issue. Please try again."
	MessageStillPublishing  = "The newsletter issue is still being published. Please wait."
)

// IdempotencyStore claims keys and persists the response of the winning request.
type IdempotencyStore interface {
	BeginOrGet(ctx context.Context, userID uuid.UUID, key idempotency.Key) (idempotency.NextAction, error)
	Complete(ctx context.Context, tx *db.Tx, userID uuid.UUID, key idempotency.Key, resp idempotency.Response) (idempotency.Response, error)
}

// OutboxWriter writes an issue and its delivery tasks in a caller owned transaction.
type OutboxWriter interface {
	InsertIssue(ctx context.Context, tx *db.Tx, title, htmlContent, textContent string) (uuid.UUID, error)
	EnqueueTasks(ctx context.Context, tx *db.Tx, issueID uuid.UUID) (int64, error)
}

// Notifier delivers one-shot messages to the publishing user.
type Notifier interface {
	Push(ctx context.Context, userID uuid.UUID, msg flash.Message) error
}

// PublishInput is a publish request from an authenticated user.
type PublishInput struct {
	UserID         uuid.UUID
	Title          string
	HTMLContent    string
	TextContent    string
	IdempotencyKey string
}

// Service defines newsletter publishing.
type Service interface {
	Publish(ctx context.Context, input PublishInput) (idempotency.Response, error)
}

// ServiceParams wires the publish service.
type ServiceParams struct {
	Store    IdempotencyStore
	Outbox   OutboxWriter
	Notifier Notifier
	Metrics  *metrics.PublishMetrics
	Logger   *logger.Logger
}

type service struct {
	store    IdempotencyStore
	outbox   OutboxWriter
	notifier Notifier
	metrics  *metrics.PublishMetrics
	logg     *logger.Logger
}

// NewService validates dependencies and returns the publish service.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "idempotency store required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox writer required")
	}
	if params.Notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifier required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		store:    params.Store,
		outbox:   params.Outbox,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		logg:     logg,
	}, nil
}

// Publish stores the issue and queues one delivery per confirmed subscriber,
// exactly once per (user, idempotency key). A repeated request gets the first
// response back unchanged. Any failure before the commit leaves no trace and
// the key stays claimable.
func (s *service) Publish(ctx context.Context, input PublishInput) (idempotency.Response, error) {
	key, err := validateInput(input)
	if err != nil {
		s.metrics.IncOutcome(metrics.PublishInvalid)
		return idempotency.Response{}, err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"user_id":         input.UserID.String(),
		"idempotency_key": key.String(),
	})

	action, err := s.store.BeginOrGet(ctx, input.UserID, key)
	if errors.Is(err, idempotency.ErrInFlight) {
		s.notify(ctx, input.UserID, flash.Info(MessageStillPublishing))
		s.metrics.IncOutcome(metrics.PublishInFlight)
		s.logg.Info(ctx, "newsletter.publish.in_flight")
		return idempotency.Response{}, err
	}
	if err != nil {
		return idempotency.Response{}, s.fail(ctx, input.UserID, err)
	}
	if action.Action == idempotency.ReturnSaved {
		s.notify(ctx, input.UserID, flash.Info(MessageAlreadyPublished))
		s.metrics.IncOutcome(metrics.PublishReplayed)
		s.logg.Info(ctx, "newsletter.publish.replayed")
		return action.Saved, nil
	}

	tx := action.Tx
	defer func() { _ = tx.Rollback() }()

	issueID, err := s.outbox.InsertIssue(ctx, tx, input.Title, input.HTMLContent, input.TextContent)
	if err != nil {
		return idempotency.Response{}, s.fail(ctx, input.UserID, err)
	}
	ctx = s.logg.WithIssueID(ctx, issueID.String())

	queued, err := s.outbox.EnqueueTasks(ctx, tx, issueID)
	if err != nil {
		return idempotency.Response{}, s.fail(ctx, input.UserID, err)
	}

	resp, err := s.store.Complete(ctx, tx, input.UserID, key, idempotency.SeeOther(AdminNewslettersPath))
	if err != nil {
		return idempotency.Response{}, s.fail(ctx, input.UserID, err)
	}

	s.notify(ctx, input.UserID, flash.Info(MessagePublished))
	s.metrics.IncOutcome(metrics.PublishCreated)
	s.logg.Info(s.logg.WithField(ctx, "queued_tasks", queued), "newsletter.publish.created")
	return resp, nil
}

func validateInput(input PublishInput) (idempotency.Key, error) {
	if input.UserID == uuid.Nil {
		return idempotency.Key{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	key, err := idempotency.ParseKey(input.IdempotencyKey)
	if err != nil {
		return idempotency.Key{}, err
	}
	missing := map[string]string{}
	if strings.TrimSpace(input.Title) == "" {
		missing["title"] = "is required"
	}
	if strings.TrimSpace(input.HTMLContent) == "" {
		missing["html_content"] = "is required"
	}
	if strings.TrimSpace(input.TextContent) == "" {
		missing["text_content"] = "is required"
	}
	if len(missing) > 0 {
		return idempotency.Key{}, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(missing)
	}
	return key, nil
}

func (s *service) fail(ctx context.Context, userID uuid.UUID, err error) error {
	s.metrics.IncOutcome(metrics.PublishFailed)
	s.logg.Error(ctx, "newsletter.publish.failed", err)
	s.notify(ctx, userID, flash.Error(MessagePublishFailed))
	return err
}

func (s *service) notify(ctx context.Context, userID uuid.UUID, msg flash.Message) {
	if err := s.notifier.Push(ctx, userID, msg); err != nil {
		s.logg.Warn(ctx, "newsletter.publish.flash_failed")
	}
}
