// Package testdb opens throwaway sqlite databases carrying the newsletter schema.
package testdb

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/soumil-kumar17/MailMaven/pkg/db/models"
	"github.com/soumil-kumar17/MailMaven/pkg/enums"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS subscriptions (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  subscribed_at DATETIME NOT NULL,
  status TEXT NOT NULL CHECK (status IN ('pending_confirmation', 'confirmed'))
);`,
	`CREATE TABLE IF NOT EXISTS newsletter_issues (
  newsletter_issue_id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  text_content TEXT NOT NULL,
  html_content TEXT NOT NULL,
  published_at DATETIME NOT NULL
);`,
	`CREATE TABLE IF NOT EXISTS issue_delivery_queue (
  newsletter_issue_id TEXT NOT NULL REFERENCES newsletter_issues(newsletter_issue_id) ON DELETE CASCADE,
  subscriber_email TEXT NOT NULL,
  PRIMARY KEY (newsletter_issue_id, subscriber_email)
);`,
	`CREATE TABLE IF NOT EXISTS idempotency (
  user_id TEXT NOT NULL,
  idempotency_key TEXT NOT NULL,
  response_status_code INTEGER,
  response_headers TEXT,
  response_body BLOB,
  created_at DATETIME NOT NULL,
  PRIMARY KEY (user_id, idempotency_key)
);`,
}

// Open returns a private in-memory database for the calling test.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	for _, ddl := range schema {
		require.NoError(t, conn.Exec(ddl).Error)
	}
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

// AddSubscriber inserts a subscriber row and returns it.
func AddSubscriber(t *testing.T, conn *gorm.DB, email string, status enums.SubscriptionStatus) models.Subscription {
	t.Helper()
	sub := models.Subscription{
		ID:           uuid.New(),
		Email:        email,
		Name:         strings.SplitN(email, "@", 2)[0],
		SubscribedAt: time.Now().UTC(),
		Status:       status,
	}
	require.NoError(t, conn.Create(&sub).Error)
	return sub
}

// CountRows counts the rows of a table.
func CountRows(t *testing.T, conn *gorm.DB, table string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, conn.Table(table).Count(&count).Error)
	return count
}
