package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- MemoryIdempotencyStore ---

func TestMemoryIdempotencyStore_AddAndContains(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	ctx := context.Background()

	got, err := store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, got)

	require.NoError(t, store.Add(ctx, "evt-1"))

	got, err = store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, got)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryIdempotencyStore_Expiry(t *testing.T) {
	store := NewMemoryIdempotencyStore(10 * time.Millisecond)
	ctx := context.Background()
	require.NoError(t, store.Add(ctx, "evt-expire"))

	time.Sleep(20 * time.Millisecond)

	got, err := store.Contains(ctx, "evt-expire")
	require.NoError(t, err)
	assert.False(t, got)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryIdempotencyStore_Concurrent(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Add(ctx, "evt-shared")
			_, _ = store.Contains(ctx, "evt-shared")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, store.Len())
}

// --- RedisIdempotencyStore ---

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisIdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisIdempotencyStore(client, "catalog:processed:", ttl), mr
}

func TestRedisIdempotencyStore_AddAndContains(t *testing.T) {
	store, mr := newRedisStore(t, time.Hour)
	ctx := context.Background()

	got, err := store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, got)

	require.NoError(t, store.Add(ctx, "evt-1"))

	got, err = store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, got)
	assert.True(t, mr.Exists("catalog:processed:evt-1"))
	assert.Equal(t, time.Hour, mr.TTL("catalog:processed:evt-1"))
}

func TestRedisIdempotencyStore_Expiry(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	ctx := context.Background()
	require.NoError(t, store.Add(ctx, "evt-2"))

	mr.FastForward(2 * time.Minute)

	got, err := store.Contains(ctx, "evt-2")
	require.NoError(t, err)
	assert.False(t, got)
}

func TestRedisIdempotencyStore_ServerDown(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	mr.Close()

	_, err := store.Contains(context.Background(), "evt-3")
	require.Error(t, err)
}

// --- IdempotentHandler ---

func TestIdempotentHandler_SkipsDuplicates(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	var calls atomic.Int32
	h := IdempotentHandler(store, func(context.Context, *Event) error {
		calls.Add(1)
		return nil
	}, testLogger())

	event := &Event{EventID: "evt-dup", EventType: "item.created"}
	require.NoError(t, h(context.Background(), event))
	require.NoError(t, h(context.Background(), event))

	assert.Equal(t, int32(1), calls.Load())
}

func TestIdempotentHandler_FailureIsNotRecorded(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	fail := true
	var calls int
	h := IdempotentHandler(store, func(context.Context, *Event) error {
		calls++
		if fail {
			return errors.New("index down")
		}
		return nil
	}, testLogger())

	event := &Event{EventID: "evt-retry"}
	require.Error(t, h(context.Background(), event))

	fail = false
	require.NoError(t, h(context.Background(), event))
	assert.Equal(t, 2, calls)
}

func TestIdempotentHandler_NoEventIDPassesThrough(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	var calls int
	h := IdempotentHandler(store, func(context.Context, *Event) error {
		calls++
		return nil
	}, testLogger())

	require.NoError(t, h(context.Background(), &Event{}))
	require.NoError(t, h(context.Background(), &Event{}))
	assert.Equal(t, 2, calls)
}

type failingStore struct{}

func (failingStore) Contains(context.Context, string) (bool, error) {
	return false, errors.New("store down")
}
func (failingStore) Add(context.Context, string) error { return errors.New("store down") }

func TestIdempotentHandler_StoreFailureStillProcesses(t *testing.T) {
	lookups := IdempotencyStoreErrors.WithLabelValues("contains")
	writes := IdempotencyStoreErrors.WithLabelValues("add")
	lookupsBefore, writesBefore := testutil.ToFloat64(lookups), testutil.ToFloat64(writes)

	var calls int
	h := IdempotentHandler(failingStore{}, func(context.Context, *Event) error {
		calls++
		return nil
	}, testLogger())

	require.NoError(t, h(context.Background(), &Event{EventID: "evt-x"}))
	assert.Equal(t, 1, calls)
	assert.InDelta(t, lookupsBefore+1, testutil.ToFloat64(lookups), 0.001)
	assert.InDelta(t, writesBefore+1, testutil.ToFloat64(writes), 0.001)
}
