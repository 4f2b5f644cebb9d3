package flash

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgredis "github.com/soumil-kumar17/MailMaven/pkg/redis"
)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis, *pkgredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := pkgredis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewStore(client, ttl)
	require.NoError(t, err)
	return store, mr, client
}

func TestPushAndDrainPreservesOrder(t *testing.T) {
	store, _, _ := newTestStore(t, time.Minute)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, store.Push(ctx, userID, Info("first")))
	require.NoError(t, store.Push(ctx, userID, Error("second")))

	messages, err := store.Drain(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, []Message{Info("first"), Error("second")}, messages)

	messages, err = store.Drain(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestMessagesAreScopedPerUser(t *testing.T) {
	store, _, _ := newTestStore(t, time.Minute)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	require.NoError(t, store.Push(ctx, alice, Info("for alice")))

	messages, err := store.Drain(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, messages)

	messages, err = store.Drain(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, messages, 1)
}

func TestMessagesExpireAfterTTL(t *testing.T) {
	store, mr, client := newTestStore(t, 10*time.Minute)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, store.Push(ctx, userID, Info("soon gone")))
	assert.Equal(t, 10*time.Minute, mr.TTL(client.FlashKey(userID.String())))

	mr.FastForward(11 * time.Minute)

	messages, err := store.Drain(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestDrainSkipsUndecodableEntries(t *testing.T) {
	store, mr, client := newTestStore(t, time.Minute)
	ctx := context.Background()
	userID := uuid.New()

	_, err := mr.RPush(client.FlashKey(userID.String()), "not-json")
	require.NoError(t, err)
	require.NoError(t, store.Push(ctx, userID, Info("ok")))

	messages, err := store.Drain(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, []Message{Info("ok")}, messages)
}

func TestPushRejectsBlankText(t *testing.T) {
	store, _, _ := newTestStore(t, time.Minute)
	assert.Error(t, store.Push(context.Background(), uuid.New(), Info("  ")))
}

func TestNewStoreValidatesInput(t *testing.T) {
	_, err := NewStore(nil, time.Minute)
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	client := pkgredis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	_, err = NewStore(client, 0)
	assert.Error(t, err)
}
