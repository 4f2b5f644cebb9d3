//go:build integration

package delivery_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"

	"github.com/soumil-kumar17/MailMaven/internal/delivery"
	"github.com/soumil-kumar17/MailMaven/internal/flash"
	"github.com/soumil-kumar17/MailMaven/internal/idempotency"
	"github.com/soumil-kumar17/MailMaven/internal/newsletters"
	"github.com/soumil-kumar17/MailMaven/internal/subscribers"
	"github.com/soumil-kumar17/MailMaven/pkg/config"
	"github.com/soumil-kumar17/MailMaven/pkg/db"
	"github.com/soumil-kumar17/MailMaven/pkg/db/models"
	"github.com/soumil-kumar17/MailMaven/pkg/enums"
	"github.com/soumil-kumar17/MailMaven/pkg/logger"
	"github.com/soumil-kumar17/MailMaven/pkg/migrate"
)

func setupPostgres(t *testing.T) *db.Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("mailmaven"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	client, err := db.New(ctx, config.DBConfig{DSN: dsn, MaxOpenConns: 20, MaxIdleConns: 10}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	sqlDB, err := client.DB().DB()
	require.NoError(t, err)
	_, err = migrate.UpEmbedded(ctx, sqlDB)
	require.NoError(t, err)
	return client
}

type nopNotifier struct{}

func (nopNotifier) Push(context.Context, uuid.UUID, flash.Message) error { return nil }

type countingSender struct {
	mu         sync.Mutex
	recipients []string
}

func (s *countingSender) Send(ctx context.Context, recipient subscribers.Email, subject, htmlBody, textBody string) error {
	time.Sleep(5 * time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipients = append(s.recipients, recipient.String())
	return nil
}

func TestIntegration_PublishOnceAndDrainWithConcurrentWorkers(t *testing.T) {
	client := setupPostgres(t)
	ctx := context.Background()

	const subscriberCount = 40
	subs := subscribers.NewRepository(client.DB())
	for i := 0; i < subscriberCount; i++ {
		sub := &models.Subscription{
			Email:  fmt.Sprintf("reader%02d@example.com", i),
			Name:   fmt.Sprintf("Reader %d", i),
			Status: enums.SubscriptionStatusConfirmed,
		}
		require.NoError(t, subs.Create(ctx, sub))
	}
	require.NoError(t, subs.Create(ctx, &models.Subscription{Email: "pending@example.com", Name: "Pending"}))

	store, err := idempotency.NewStore(client)
	require.NoError(t, err)
	svc, err := newsletters.NewService(newsletters.ServiceParams{
		Store:    store,
		Outbox:   newsletters.NewOutbox(),
		Notifier: nopNotifier{},
	})
	require.NoError(t, err)

	userID := uuid.New()
	input := newsletters.PublishInput{
		UserID:         userID,
		Title:          "Concurrent",
		HTMLContent:    "<p>body</p>",
		TextContent:    "body",
		IdempotencyKey: "abc",
	}

	responses := make([]idempotency.Response, 5)
	var publishers errgroup.Group
	for i := range responses {
		i := i
		publishers.Go(func() error {
			resp, err := svc.Publish(ctx, input)
			responses[i] = resp
			return err
		})
	}
	require.NoError(t, publishers.Wait())
	for _, resp := range responses {
		assert.Equal(t, int16(303), resp.StatusCode)
		assert.Equal(t, [][]byte{[]byte(newsletters.AdminNewslettersPath)}, resp.HeaderValues("Location"))
	}

	var issues, tasks int64
	require.NoError(t, client.DB().Model(&models.NewsletterIssue{}).Count(&issues).Error)
	require.NoError(t, client.DB().Model(&models.IssueDeliveryTask{}).Count(&tasks).Error)
	assert.Equal(t, int64(1), issues)
	assert.Equal(t, int64(subscriberCount), tasks)

	queue, err := delivery.NewQueue(client)
	require.NoError(t, err)
	sender := &countingSender{}

	var workers errgroup.Group
	for i := 0; i < 4; i++ {
		worker, err := delivery.NewWorker(delivery.WorkerParams{
			Name:   fmt.Sprintf("worker-%d", i),
			Queue:  queue,
			Sender: sender,
		})
		require.NoError(t, err)
		workers.Go(func() error {
			for {
				outcome, err := worker.TryExecuteTask(ctx)
				if err != nil {
					return err
				}
				if outcome == delivery.EmptyQueue {
					return nil
				}
			}
		})
	}
	require.NoError(t, workers.Wait())

	require.NoError(t, client.DB().Model(&models.IssueDeliveryTask{}).Count(&tasks).Error)
	assert.Zero(t, tasks)

	sort.Strings(sender.recipients)
	require.Len(t, sender.recipients, subscriberCount)
	for i := 1; i < len(sender.recipients); i++ {
		assert.NotEqual(t, sender.recipients[i-1], sender.recipients[i], "recipient delivered twice")
	}
}

func TestIntegration_SavedResponseRoundTripsHeaders(t *testing.T) {
	client := setupPostgres(t)
	ctx := context.Background()

	store, err := idempotency.NewStore(client)
	require.NoError(t, err)
	key, err := idempotency.ParseKey("headers")
	require.NoError(t, err)
	userID := uuid.New()

	action, err := store.BeginOrGet(ctx, userID, key)
	require.NoError(t, err)
	require.Equal(t, idempotency.StartProcessing, action.Action)

	want := idempotency.SeeOther("/admin/newsletters")
	want.Headers = append(want.Headers,
		want.Headers[0],
		want.Headers[0],
	)
	want.Headers[1].Value = []byte(`quoted "value", with \ backslash`)
	want.Body = []byte{0x00, 0xff, 0x10}

	_, err = store.Complete(ctx, action.Tx, userID, key, want)
	require.NoError(t, err)

	saved, err := store.GetSaved(ctx, userID, key)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, want.StatusCode, saved.StatusCode)
	assert.Equal(t, want.Headers, saved.Headers)
	assert.Equal(t, want.Body, saved.Body)
}
