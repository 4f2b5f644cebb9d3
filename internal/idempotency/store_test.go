package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/soumil-kumar17/MailMaven/internal/testdb"
	"github.com/soumil-kumar17/MailMaven/pkg/db"
	"github.com/soumil-kumar17/MailMaven/pkg/db/models"
	pkgerrors "github.com/soumil-kumar17/MailMaven/pkg/errors"
	"github.com/soumil-kumar17/MailMaven/pkg/types"
)

func newTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	conn := testdb.Open(t)
	store, err := NewStore(db.Wrap(conn))
	require.NoError(t, err)
	return store, conn
}

func mustKey(t *testing.T, raw string) Key {
	t.Helper()
	key, err := ParseKey(raw)
	require.NoError(t, err)
	return key
}

func sampleResponse() Response {
	return Response{
		StatusCode: 303,
		Headers: types.HeaderPairs{
			{Name: "Location", Value: []byte("/admin/newsletters")},
			{Name: "Set-Cookie", Value: []byte("a=1")},
			{Name: "Set-Cookie", Value: []byte("b=2")},
		},
		Body: []byte("see other"),
	}
}

func TestBeginOrGetClaimsThenReplays(t *testing.T) {
	store, conn := newTestStore(t)
	ctx := context.Background()
	userID := uuid.New()
	key := mustKey(t, "abc")

	action, err := store.BeginOrGet(ctx, userID, key)
	require.NoError(t, err)
	require.Equal(t, StartProcessing, action.Action)
	require.NotNil(t, action.Tx)

	saved, err := store.Complete(ctx, action.Tx, userID, key, sampleResponse())
	require.NoError(t, err)
	assert.Equal(t, sampleResponse(), saved)
	assert.True(t, action.Tx.Done())

	replay, err := store.BeginOrGet(ctx, userID, key)
	require.NoError(t, err)
	require.Equal(t, ReturnSaved, replay.Action)
	assert.Nil(t, replay.Tx)
	assert.Equal(t, sampleResponse(), replay.Saved)

	assert.Equal(t, int64(1), testdb.CountRows(t, conn, "idempotency"))
}

func TestBeginOrGetScopesKeysPerUser(t *testing.T) {
	store, conn := newTestStore(t)
	ctx := context.Background()
	key := mustKey(t, "shared")

	for i := 0; i < 2; i++ {
		userID := uuid.New()
		action, err := store.BeginOrGet(ctx, userID, key)
		require.NoError(t, err)
		require.Equal(t, StartProcessing, action.Action)
		_, err = store.Complete(ctx, action.Tx, userID, key, SeeOther("/x"))
		require.NoError(t, err)
	}
	assert.Equal(t, int64(2), testdb.CountRows(t, conn, "idempotency"))
}

func TestRolledBackClaimIsReclaimable(t *testing.T) {
	store, conn := newTestStore(t)
	ctx := context.Background()
	userID := uuid.New()
	key := mustKey(t, "retry-me")

	action, err := store.BeginOrGet(ctx, userID, key)
	require.NoError(t, err)
	require.Equal(t, StartProcessing, action.Action)
	require.NoError(t, action.Tx.Rollback())

	assert.Zero(t, testdb.CountRows(t, conn, "idempotency"))

	again, err := store.BeginOrGet(ctx, userID, key)
	require.NoError(t, err)
	assert.Equal(t, StartProcessing, again.Action)
	require.NoError(t, again.Tx.Rollback())
}

func TestBeginOrGetReportsPendingRecordAsInFlight(t *testing.T) {
	store, conn := newTestStore(t)
	ctx := context.Background()
	userID := uuid.New()
	key := mustKey(t, "pending")

	require.NoError(t, conn.Create(&models.IdempotencyRecord{
		UserID:         userID,
		IdempotencyKey: key.String(),
		CreatedAt:      time.Now().UTC(),
	}).Error)

	saved, err := store.GetSaved(ctx, userID, key)
	require.NoError(t, err)
	assert.Nil(t, saved)

	_, err = store.BeginOrGet(ctx, userID, key)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInFlight))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestGetSavedMissingRecord(t *testing.T) {
	store, _ := newTestStore(t)

	saved, err := store.GetSaved(context.Background(), uuid.New(), mustKey(t, "nope"))
	assert.Nil(t, saved)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompleteRejectsFinishedTransaction(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	userID := uuid.New()
	key := mustKey(t, "twice")

	action, err := store.BeginOrGet(ctx, userID, key)
	require.NoError(t, err)
	_, err = store.Complete(ctx, action.Tx, userID, key, SeeOther("/a"))
	require.NoError(t, err)

	_, err = store.Complete(ctx, action.Tx, userID, key, SeeOther("/b"))
	require.Error(t, err)
	assert.ErrorIs(t, err, db.ErrTxDone)

	saved, err := store.GetSaved(ctx, userID, key)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, [][]byte{[]byte("/a")}, saved.HeaderValues("Location"))
}

func TestCompleteRejectsInvalidStatusAndRollsBack(t *testing.T) {
	store, conn := newTestStore(t)
	ctx := context.Background()
	userID := uuid.New()
	key := mustKey(t, "bad-status")

	action, err := store.BeginOrGet(ctx, userID, key)
	require.NoError(t, err)

	_, err = store.Complete(ctx, action.Tx, userID, key, Response{StatusCode: 42})
	require.Error(t, err)
	assert.True(t, action.Tx.Done())
	assert.Zero(t, testdb.CountRows(t, conn, "idempotency"))
}

func TestCompleteNormalizesNilHeadersAndBody(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	userID := uuid.New()
	key := mustKey(t, "empty")

	action, err := store.BeginOrGet(ctx, userID, key)
	require.NoError(t, err)
	_, err = store.Complete(ctx, action.Tx, userID, key, Response{StatusCode: 204})
	require.NoError(t, err)

	saved, err := store.GetSaved(ctx, userID, key)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, int16(204), saved.StatusCode)
	assert.Empty(t, saved.Headers)
	assert.Empty(t, saved.Body)
}

func TestBeginOrGetValidatesInput(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.BeginOrGet(context.Background(), uuid.Nil, mustKey(t, "k"))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = store.BeginOrGet(context.Background(), uuid.New(), Key{})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}
