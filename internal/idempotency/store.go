package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/soumil-kumar17/MailMaven/pkg/db"
	"github.com/soumil-kumar17/MailMaven/pkg/db/models"
	pkgerrors "github.com/soumil-kumar17/MailMaven/pkg/errors"
	"github.com/soumil-kumar17/MailMaven/pkg/types"
)

var (
	// ErrNotFound reports that no record exists for the (user, key) pair.
	ErrNotFound = errors.New("idempotency record not found")
	// ErrInFlight reports that another request holds the key and has not saved a response yet.
	ErrInFlight = errors.New("idempotency key is still being processed")
	// ErrConflictRace reports that the claim lost but no record could be read back.
	ErrConflictRace = errors.New("idempotency claim conflicted without a readable record")
)

// Action tells the caller what to do after BeginOrGet.
type Action int

const (
	// StartProcessing means the caller owns the key and holds the open transaction.
	StartProcessing Action = iota + 1
	// ReturnSaved means a previous request already produced the response.
	ReturnSaved
)

// NextAction is the result of BeginOrGet. Tx is set for StartProcessing and
// Saved for ReturnSaved.
type NextAction struct {
	Action Action
	Tx     *db.Tx
	Saved  Response
}

// Store persists idempotency records.
type Store struct {
	client *db.Client
	now    func() time.Time
}

// NewStore returns a store backed by the provided database client.
func NewStore(client *db.Client) (*Store, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "idempotency store requires a database client")
	}
	return &Store{client: client, now: time.Now}, nil
}

// BeginOrGet claims (userID, key) by inserting an empty record inside a new
// transaction. The winner receives the open transaction, which must end in
// Complete or Rollback. A loser gets the saved response of the earlier request.
func (s *Store) BeginOrGet(ctx context.Context, userID uuid.UUID, key Key) (NextAction, error) {
	if userID == uuid.Nil {
		return NextAction{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if key.String() == "" {
		return NextAction{}, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key cannot be empty")
	}

	tx, err := s.client.Begin(ctx)
	if err != nil {
		return NextAction{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "begin idempotency transaction")
	}

	record := models.IdempotencyRecord{
		UserID:         userID,
		IdempotencyKey: key.String(),
		CreatedAt:      s.now().UTC(),
	}
	result := tx.DB().WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&record)
	if result.Error != nil {
		_ = tx.Rollback()
		return NextAction{}, pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "claim idempotency key")
	}
	if result.RowsAffected > 0 {
		return NextAction{Action: StartProcessing, Tx: tx}, nil
	}

	// Lost the claim. Release the transaction before reading the winner's row.
	if err := tx.Rollback(); err != nil {
		return NextAction{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release idempotency transaction")
	}

	saved, err := s.GetSaved(ctx, userID, key)
	switch {
	case errors.Is(err, ErrNotFound):
		return NextAction{}, pkgerrors.Wrap(pkgerrors.CodeInternal, ErrConflictRace, "read back idempotency record")
	case err != nil:
		return NextAction{}, err
	case saved == nil:
		return NextAction{}, pkgerrors.Wrap(pkgerrors.CodeConflict, ErrInFlight, "request is already being processed")
	}
	return NextAction{Action: ReturnSaved, Saved: *saved}, nil
}

// GetSaved returns the stored response for (userID, key). A nil response with
// a nil error means the record exists but is still pending. ErrNotFound is
// returned when no record exists.
func (s *Store) GetSaved(ctx context.Context, userID uuid.UUID, key Key) (*Response, error) {
	var record models.IdempotencyRecord
	err := s.client.DB().WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key.String()).
		Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record")
	}
	if record.Pending() {
		return nil, nil
	}

	body := record.ResponseBody
	if body == nil {
		body = []byte{}
	}
	return &Response{
		StatusCode: *record.ResponseStatusCode,
		Headers:    record.ResponseHeaders,
		Body:       body,
	}, nil
}

// Complete writes resp onto the claimed record and commits tx. It is the only
// commit path for a transaction returned by BeginOrGet. On failure the
// transaction is rolled back.
func (s *Store) Complete(ctx context.Context, tx *db.Tx, userID uuid.UUID, key Key, resp Response) (Response, error) {
	if tx == nil || tx.Done() {
		return Response{}, pkgerrors.Wrap(pkgerrors.CodeInternal, db.ErrTxDone, "complete idempotency record")
	}
	if !resp.valid() {
		_ = tx.Rollback()
		return Response{}, pkgerrors.New(pkgerrors.CodeInternal, "response status code out of range").
			WithDetails(map[string]any{"status_code": resp.StatusCode})
	}

	headers := resp.Headers
	if headers == nil {
		headers = types.HeaderPairs{}
	}
	body := resp.Body
	if body == nil {
		body = []byte{}
	}

	result := tx.DB().WithContext(ctx).
		Model(&models.IdempotencyRecord{}).
		Where("user_id = ? AND idempotency_key = ?", userID, key.String()).
		Updates(map[string]any{
			"response_status_code": resp.StatusCode,
			"response_headers":     headers,
			"response_body":        body,
		})
	if result.Error != nil {
		_ = tx.Rollback()
		return Response{}, pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "save idempotency response")
	}
	if result.RowsAffected != 1 {
		_ = tx.Rollback()
		return Response{}, pkgerrors.Wrap(pkgerrors.CodeInternal, ErrNotFound, "save idempotency response")
	}
	if err := tx.Commit(); err != nil {
		return Response{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "commit idempotency transaction")
	}

	resp.Headers = headers
	resp.Body = body
	return resp, nil
}
