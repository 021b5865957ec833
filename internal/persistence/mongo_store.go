package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultMongoCollection is the collection used when none is given.
const DefaultMongoCollection = "installation_kv"

// MongoKV is a KeyValueStore backed by a MongoDB collection. Documents carry
// an expiresAt field covered by a TTL index; since the TTL monitor runs
// periodically, Get also checks expiry itself.
type MongoKV struct {
	coll *mongo.Collection
	now  func() time.Time
}

var _ KeyValueStore = (*MongoKV)(nil)

type mongoEntry struct {
	Key       string     `bson:"_id"`
	Value     []byte     `bson:"value"`
	ExpiresAt *time.Time `bson:"expiresAt,omitempty"`
}

// NewMongoKV ensures the TTL index on the collection and returns a MongoKV.
// An empty collection name uses DefaultMongoCollection.
func NewMongoKV(ctx context.Context, db *mongo.Database, collection string) (*MongoKV, error) {
	if collection == "" {
		collection = DefaultMongoCollection
	}
	coll := db.Collection(collection)

	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return nil, fmt.Errorf("create ttl index: %w", err)
	}
	return &MongoKV{coll: coll, now: time.Now}, nil
}

func (s *MongoKV) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	entry := mongoEntry{
		Key:       key,
		Value:     value,
		ExpiresAt: expiry(s.now().UTC(), ttl),
	}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": key}, entry, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var entry mongoEntry
	err := s.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if entry.ExpiresAt != nil && !s.now().Before(*entry.ExpiresAt) {
		return nil, false, nil
	}
	return entry.Value, true, nil
}
