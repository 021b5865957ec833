package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/appinstall/pkg/api"
)

var testStart = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func sampleState(id string) *api.InstallationState {
	started := testStart
	completed := testStart.Add(2 * time.Second)
	return &api.InstallationState{
		ID:     id,
		Status: api.InstallationFailed,
		Step: &api.StepStatus{
			ID:     "root-id",
			Name:   "installation",
			Path:   []string{"installation"},
			Status: api.StepFailed,
			Meta:   api.StepMeta{Label: "Installation"},
			Children: []*api.StepStatus{
				{
					ID:     "leaf-id",
					Name:   "webhooks",
					Path:   []string{"installation", "webhooks"},
					Status: api.StepFailed,
					Meta:   api.StepMeta{Label: "Webhooks", Description: "Subscribes webhooks"},
					IsLeaf: true,
				},
			},
		},
		Data: map[string]any{
			"installation": map[string]any{
				"eventing": map[string]any{"count": float64(2), "ok": true, "ids": []any{"a", "b"}},
			},
		},
		StartedAt:   &started,
		CompletedAt: &completed,
		Error: &api.InstallationError{
			Path:    []string{"installation", "webhooks"},
			Key:     api.ErrKeyStepExecutionFailed,
			Message: "Step failed",
		},
	}
}

// testKVBasics checks the behaviour every KeyValueStore must share.
func testKVBasics(t *testing.T, kv KeyValueStore) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Put(ctx, "k1", []byte("v1"), time.Hour))
	got, ok, err := kv.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, kv.Put(ctx, "k1", []byte("v2"), 0))
	got, ok, err = kv.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), got)

	assert.ErrorIs(t, kv.Put(ctx, "", []byte("x"), 0), ErrInvalidKey)
}

// testStateStoreRoundTrip checks save/load through a StateStore over kv.
func testStateStoreRoundTrip(t *testing.T, kv KeyValueStore) {
	t.Helper()
	ctx := context.Background()
	store := NewStateStore(kv)

	want := sampleState("round-trip")
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Get(ctx, "round-trip")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, got)

	missing, err := store.Get(ctx, "never-saved")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, kv.Put(ctx, store.Key("garbled"), []byte("{not json"), time.Hour))
	garbled, err := store.Get(ctx, "garbled")
	require.NoError(t, err)
	assert.Nil(t, garbled)
}
