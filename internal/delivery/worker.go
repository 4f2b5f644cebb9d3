package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/soumil-kumar17/MailMaven/internal/email"
	"github.com/soumil-kumar17/MailMaven/internal/subscribers"
	"github.com/soumil-kumar17/MailMaven/pkg/db/models"
	pkgerrors "github.com/soumil-kumar17/MailMaven/pkg/errors"
	"github.com/soumil-kumar17/MailMaven/pkg/logger"
	"github.com/soumil-kumar17/MailMaven/pkg/metrics"
)

const (
	defaultEmptyQueueBackoff = 15 * time.Second
	defaultErrorBackoff      = time.Second
)

// ExecutionOutcome is the result of one worker iteration.
type ExecutionOutcome int

const (
	TaskCompleted ExecutionOutcome = iota + 1
	EmptyQueue
)

func (o ExecutionOutcome) String() string {
	switch o {
	case TaskCompleted:
		return "task_completed"
	case EmptyQueue:
		return "empty_queue"
	default:
		return "unknown"
	}
}

// TaskQueue is the queue surface the worker consumes.
type TaskQueue interface {
	Dequeue(ctx context.Context) (*Claim, error)
	GetIssue(ctx context.Context, claim *Claim) (models.NewsletterIssue, error)
	DeleteTask(ctx context.Context, claim *Claim) error
}

// WorkerParams wires a delivery worker.
type WorkerParams struct {
	Name              string
	Queue             TaskQueue
	Sender            email.Sender
	Logger            *logger.Logger
	Metrics           *metrics.DeliveryMetrics
	EmptyQueueBackoff time.Duration
	ErrorBackoff      time.Duration
}

// Worker drains the delivery queue one task at a time.
type Worker struct {
	name              string
	queue             TaskQueue
	sender            email.Sender
	logg              *logger.Logger
	metrics           *metrics.DeliveryMetrics
	emptyQueueBackoff time.Duration
	errorBackoff      time.Duration
	sleep             func(context.Context, time.Duration) error
}

// NewWorker validates dependencies and applies default backoffs.
func NewWorker(params WorkerParams) (*Worker, error) {
	if params.Queue == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "delivery queue required")
	}
	if params.Sender == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "email sender required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	emptyBackoff := params.EmptyQueueBackoff
	if emptyBackoff <= 0 {
		emptyBackoff = defaultEmptyQueueBackoff
	}
	errorBackoff := params.ErrorBackoff
	if errorBackoff <= 0 {
		errorBackoff = defaultErrorBackoff
	}
	name := params.Name
	if name == "" {
		name = "delivery-worker"
	}
	return &Worker{
		name:              name,
		queue:             params.Queue,
		sender:            params.Sender,
		logg:              logg,
		metrics:           params.Metrics,
		emptyQueueBackoff: emptyBackoff,
		errorBackoff:      errorBackoff,
		sleep:             sleep,
	}, nil
}

// Run loops until ctx is cancelled. It continues immediately after a
// completed task and backs off after an empty queue or an error.
func (w *Worker) Run(ctx context.Context) error {
	ctx = w.logg.WithField(ctx, "worker", w.name)
	w.logg.Info(ctx, "delivery.worker.started")

	for {
		select {
		case <-ctx.Done():
			w.logg.Info(ctx, "delivery.worker.stopped")
			return ctx.Err()
		default:
		}

		outcome, err := w.TryExecuteTask(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.logg.Info(ctx, "delivery.worker.stopped")
				return ctx.Err()
			}
			w.metrics.IncIteration(metrics.IterationError)
			w.logg.Error(ctx, "delivery.worker.iteration_failed", err)
			if err := w.sleep(ctx, w.errorBackoff); err != nil {
				return err
			}
			continue
		}

		if outcome == EmptyQueue {
			w.metrics.IncIteration(metrics.IterationEmptyQueue)
			if err := w.sleep(ctx, w.emptyQueueBackoff); err != nil {
				return err
			}
			continue
		}
		w.metrics.IncIteration(metrics.IterationTaskCompleted)
	}
}

// TryExecuteTask dequeues one task, sends it and deletes it. Invalid addresses
// and transport failures are logged and the task is deleted anyway, so each
// task gets at most one send attempt. Database errors and an unavailable
// provider leave the task queued.
func (w *Worker) TryExecuteTask(ctx context.Context) (ExecutionOutcome, error) {
	claim, err := w.queue.Dequeue(ctx)
	if err != nil {
		return 0, err
	}
	if claim == nil {
		return EmptyQueue, nil
	}
	defer func() { _ = claim.Release() }()

	ctx = w.logg.WithIssueID(ctx, claim.Task.IssueID.String())
	ctx = w.logg.WithField(ctx, "subscriber_email", claim.Task.SubscriberEmail)

	recipient, err := subscribers.ParseEmail(claim.Task.SubscriberEmail)
	if err != nil {
		w.metrics.IncTask(metrics.TaskInvalidEmail)
		w.logg.Warn(ctx, "delivery.task.invalid_email")
	} else {
		issue, err := w.queue.GetIssue(ctx, claim)
		if err != nil {
			return 0, err
		}
		if err := w.send(ctx, recipient, issue); err != nil {
			return 0, err
		}
	}

	if err := w.queue.DeleteTask(ctx, claim); err != nil {
		return 0, err
	}
	return TaskCompleted, nil
}

// send returns an error when ctx ended or the provider breaker is open.
// Either way the task stays queued. Other provider failures are swallowed.
func (w *Worker) send(ctx context.Context, recipient subscribers.Email, issue models.NewsletterIssue) error {
	start := time.Now()
	err := w.sender.Send(ctx, recipient, issue.Title, issue.HTMLContent, issue.TextContent)
	w.metrics.ObserveSend(time.Since(start))
	if err == nil {
		w.metrics.IncTask(metrics.TaskSent)
		w.logg.Debug(ctx, "delivery.task.sent")
		return nil
	}
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return err
	}
	if errors.Is(err, email.ErrUnavailable) {
		w.metrics.IncTask(metrics.TaskDeferred)
		return err
	}
	w.metrics.IncTask(metrics.TaskTransportFailed)
	w.logg.Error(ctx, "delivery.task.send_failed", err)
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
