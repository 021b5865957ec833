package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestSQLiteKV(t *testing.T) *SQLiteKV {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = db.Close()
	})

	kv, err := NewSQLiteKV(db)
	require.NoError(t, err)
	return kv
}

func TestSQLiteKV_Basics(t *testing.T) {
	testKVBasics(t, newTestSQLiteKV(t))
}

func TestSQLiteKV_StateStoreRoundTrip(t *testing.T) {
	testStateStoreRoundTrip(t, newTestSQLiteKV(t))
}

func TestSQLiteKV_SchemaIsIdempotent(t *testing.T) {
	kv := newTestSQLiteKV(t)
	_, err := NewSQLiteKV(kv.db)
	require.NoError(t, err)
}

func TestSQLiteKV_ExpiryAndPurge(t *testing.T) {
	ctx := context.Background()
	kv := newTestSQLiteKV(t)
	now := testStart
	kv.now = func() time.Time { return now }

	require.NoError(t, kv.Put(ctx, "short", []byte("x"), time.Minute))
	require.NoError(t, kv.Put(ctx, "long", []byte("y"), time.Hour))
	require.NoError(t, kv.Put(ctx, "forever", []byte("z"), 0))

	now = now.Add(time.Minute)
	_, ok, err := kv.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = kv.Get(ctx, "long")
	require.NoError(t, err)
	assert.True(t, ok)

	purged, err := kv.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	now = now.Add(48 * time.Hour)
	purged, err = kv.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, ok, err = kv.Get(ctx, "forever")
	require.NoError(t, err)
	assert.True(t, ok)
}

func countRows(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM installation_kv`).Scan(&n))
	return n
}

func TestSQLiteKV_PutPurgesExpiredRowsPeriodically(t *testing.T) {
	ctx := context.Background()
	kv := newTestSQLiteKV(t)
	now := testStart
	kv.now = func() time.Time { return now }

	require.NoError(t, kv.Put(ctx, "old", []byte("x"), time.Minute))

	// Expired, but the purge interval has not passed yet.
	now = now.Add(2 * time.Minute)
	require.NoError(t, kv.Put(ctx, "a", []byte("a"), time.Hour))
	assert.Equal(t, 2, countRows(t, kv.db))

	now = now.Add(DefaultPurgeInterval)
	require.NoError(t, kv.Put(ctx, "b", []byte("b"), time.Hour))
	assert.Equal(t, 2, countRows(t, kv.db))

	_, ok, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
}
