package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/IgorGrieder/link-redirector/internal/infrastructure/db"
	"github.com/IgorGrieder/link-redirector/internal/processing/links"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "link_records"

// Store keeps each value in its own document keyed by _id. A TTL index on
// expiresAt lets the server purge entries whose ttl hint has passed.
type Store struct {
	coll *mongo.Collection
	now  func() time.Time
}

type entryDoc struct {
	Key       string     `bson:"_id"`
	Value     []byte     `bson:"value"`
	UpdatedAt time.Time  `bson:"updatedAt"`
	ExpiresAt *time.Time `bson:"expiresAt,omitempty"`
}

func NewStore(m *db.Mongo) (*Store, error) {
	s := &Store{coll: m.Collection(collectionName), now: time.Now}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0).SetName("ttl_expiresAt"),
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	// The TTL monitor runs about once a minute, so filter lapsed entries here too.
	filter := bson.M{
		"_id": key,
		"$or": bson.A{
			bson.M{"expiresAt": bson.M{"$exists": false}},
			bson.M{"expiresAt": nil},
			bson.M{"expiresAt": bson.M{"$gt": s.now().UTC()}},
		},
	}

	var doc entryDoc
	err := s.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, links.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.Value, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.now().UTC()
	doc := entryDoc{
		Key:       key,
		Value:     value,
		UpdatedAt: now,
	}
	if ttl > 0 {
		expiresAt := now.Add(ttl)
		doc.ExpiresAt = &expiresAt
	}

	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": key})
	return err
}
