package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/petrijr/appinstall/internal/testutil"
)

type RedisKVTestSuite struct {
	suite.Suite
	client *redis.Client
	kv     *RedisKV
}

func TestRedisKVTestSuite(t *testing.T) {
	addr := testutil.GetRedisAddress(t)

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() {
		_ = client.Close()
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("redis ping failed: %v", err)
	}

	suite.Run(t, &RedisKVTestSuite{client: client, kv: NewRedisKV(client)})
}

func (r *RedisKVTestSuite) SetupTest() {
	r.Require().NoError(r.client.FlushDB(context.Background()).Err())
}

func (r *RedisKVTestSuite) TestBasics() {
	testKVBasics(r.T(), r.kv)
}

func (r *RedisKVTestSuite) TestStateStoreRoundTrip() {
	testStateStoreRoundTrip(r.T(), r.kv)
}

func (r *RedisKVTestSuite) TestSaveSetsKeyTTL() {
	ctx := context.Background()
	store := NewStateStore(r.kv)

	r.Require().NoError(store.Save(ctx, sampleState("ttl-check")))

	ttl, err := r.client.TTL(ctx, "installation-ttl-check").Result()
	r.Require().NoError(err)
	r.Greater(ttl, 2*time.Hour+59*time.Minute)
	r.LessOrEqual(ttl, DefaultTTL)
}

func (r *RedisKVTestSuite) TestExpiredKeyIsGone() {
	ctx := context.Background()
	r.Require().NoError(r.kv.Put(ctx, "blink", []byte("x"), 50*time.Millisecond))

	r.Eventually(func() bool {
		_, ok, err := r.kv.Get(ctx, "blink")
		return err == nil && !ok
	}, 5*time.Second, 50*time.Millisecond)
}
