// Package flash keeps one-shot user notifications in Redis until the next page
// load drains them.
package flash

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/soumil-kumar17/MailMaven/pkg/errors"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// maxDrain caps how many messages one Drain returns.
const maxDrain = 50

// Message is a single flash notification.
type Message struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

// Info builds an info level message.
func Info(text string) Message { return Message{Level: LevelInfo, Text: text} }

// Error builds an error level message.
func Error(text string) Message { return Message{Level: LevelError, Text: text} }

type listStore interface {
	AppendWithTTL(ctx context.Context, key string, ttl time.Duration, values ...string) error
	PopAll(ctx context.Context, key string, max int) ([]string, error)
	FlashKey(userID string) string
}

// Store queues flash messages per user.
type Store struct {
	lists listStore
	ttl   time.Duration
}

// NewStore wires the flash store on top of the redis client.
func NewStore(lists listStore, ttl time.Duration) (*Store, error) {
	if lists == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "flash store requires a redis client")
	}
	if ttl <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "flash ttl must be positive")
	}
	return &Store{lists: lists, ttl: ttl}, nil
}

// Push appends msg to the user's pending messages and refreshes their TTL.
func (s *Store) Push(ctx context.Context, userID uuid.UUID, msg Message) error {
	if strings.TrimSpace(msg.Text) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "flash message text is required")
	}
	if msg.Level == "" {
		msg.Level = LevelInfo
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode flash message")
	}
	if err := s.lists.AppendWithTTL(ctx, s.lists.FlashKey(userID.String()), s.ttl, string(payload)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "push flash message")
	}
	return nil
}

// Drain removes and returns the user's pending messages, oldest first.
// Entries that fail to decode are skipped.
func (s *Store) Drain(ctx context.Context, userID uuid.UUID) ([]Message, error) {
	raw, err := s.lists.PopAll(ctx, s.lists.FlashKey(userID.String()), maxDrain)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "drain flash messages")
	}
	messages := make([]Message, 0, len(raw))
	for _, entry := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}
