package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryKV_Basics(t *testing.T) {
	testKVBasics(t, NewInMemoryKV())
}

func TestInMemoryKV_StateStoreRoundTrip(t *testing.T) {
	testStateStoreRoundTrip(t, NewInMemoryKV())
}

func TestInMemoryKV_ExpiresEntries(t *testing.T) {
	ctx := context.Background()
	kv := NewInMemoryKV()
	now := testStart
	kv.now = func() time.Time { return now }

	require.NoError(t, kv.Put(ctx, "short", []byte("x"), time.Minute))
	require.NoError(t, kv.Put(ctx, "forever", []byte("y"), 0))

	now = now.Add(59 * time.Second)
	_, ok, err := kv.Get(ctx, "short")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok, err = kv.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok, "entry should expire exactly at its ttl")
	assert.Equal(t, 1, kv.Len())

	now = now.Add(24 * 365 * time.Hour)
	_, ok, err = kv.Get(ctx, "forever")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInMemoryKV_CopiesValues(t *testing.T) {
	ctx := context.Background()
	kv := NewInMemoryKV()

	value := []byte("abc")
	require.NoError(t, kv.Put(ctx, "k", value, 0))
	value[0] = 'z'

	got, _, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	got[1] = 'z'
	again, _, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestStateStore_DefaultsAndOptions(t *testing.T) {
	kv := NewInMemoryKV()

	def := NewStateStore(kv)
	assert.Equal(t, "installation-abc", def.Key("abc"))
	assert.Equal(t, 3*time.Hour, def.TTL())

	custom := NewStateStore(kv, WithKeyPrefix("tenant-a:"), WithTTL(time.Minute), WithLogger(nil))
	assert.Equal(t, "tenant-a:abc", custom.Key("abc"))
	assert.Equal(t, time.Minute, custom.TTL())
}

func TestStateStore_SavedStateExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	kv := NewInMemoryKV()
	now := testStart
	kv.now = func() time.Time { return now }
	store := NewStateStore(kv)

	require.NoError(t, store.Save(ctx, sampleState("ttl")))

	now = now.Add(DefaultTTL - time.Second)
	got, err := store.Get(ctx, "ttl")
	require.NoError(t, err)
	assert.NotNil(t, got)

	now = now.Add(time.Second)
	got, err = store.Get(ctx, "ttl")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStateStore_SaveRejectsInvalidState(t *testing.T) {
	ctx := context.Background()
	store := NewStateStore(NewInMemoryKV())

	assert.Error(t, store.Save(ctx, nil))
	assert.ErrorIs(t, store.Save(ctx, sampleState("")), ErrInvalidKey)
}

func TestStateStore_IgnoresPayloadsThatAreNotStates(t *testing.T) {
	ctx := context.Background()
	kv := NewInMemoryKV()
	store := NewStateStore(kv)

	for _, payload := range []string{"", "null", `{"foo":"bar"}`, `[1,2,3]`} {
		require.NoError(t, kv.Put(ctx, store.Key("odd"), []byte(payload), 0))
		got, err := store.Get(ctx, "odd")
		require.NoError(t, err, payload)
		assert.Nil(t, got, payload)
	}
}
