package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	_ "modernc.org/sqlite"

	"github.com/petrijr/appinstall"
)

const (
	storeMemory   = "memory"
	storeSQLite   = "sqlite"
	storePostgres = "postgres"
	storeRedis    = "redis"
	storeMongo    = "mongo"

	defaultSQLiteDSN = "file:appinstall.db?_pragma=journal_mode(WAL)"
	defaultMongoDB   = "appinstall"
)

// storeFlags selects and configures the state store backend.
type storeFlags struct {
	kind    string
	dsn     string
	ttl     time.Duration
	mongoDB string
}

// open returns the configured store and a closer releasing its connection.
func (f storeFlags) open(ctx context.Context) (appinstall.StateStore, io.Closer, error) {
	opts := []appinstall.StoreOption{appinstall.WithTTL(f.ttl)}

	switch f.kind {
	case storeMemory:
		return appinstall.NewInMemoryStateStore(opts...), nopCloser{}, nil

	case storeSQLite:
		dsn := f.dsn
		if dsn == "" {
			dsn = defaultSQLiteDSN
		}
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		store, err := appinstall.NewSQLiteStateStore(db, opts...)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store, db, nil

	case storePostgres:
		if f.dsn == "" {
			return nil, nil, fmt.Errorf("--dsn is required for the %s store", f.kind)
		}
		db, err := sql.Open("pgx", f.dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		store, err := appinstall.NewPostgresStateStore(db, opts...)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store, db, nil

	case storeRedis:
		if f.dsn == "" {
			return nil, nil, fmt.Errorf("--dsn is required for the %s store", f.kind)
		}
		ropts, err := redis.ParseURL(f.dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(ropts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return appinstall.NewRedisStateStore(client, opts...), client, nil

	case storeMongo:
		if f.dsn == "" {
			return nil, nil, fmt.Errorf("--dsn is required for the %s store", f.kind)
		}
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(f.dsn))
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		closer := mongoCloser{client}
		store, err := appinstall.NewMongoStateStore(ctx, client.Database(f.mongoDB), opts...)
		if err != nil {
			_ = closer.Close()
			return nil, nil, err
		}
		return store, closer, nil

	default:
		return nil, nil, fmt.Errorf("unknown store %q (want memory, sqlite, postgres, redis or mongo)", f.kind)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type mongoCloser struct{ client *mongo.Client }

func (m mongoCloser) Close() error {
	return m.client.Disconnect(context.Background())
}
