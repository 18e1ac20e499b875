package index

import (
	"context"
	"fmt"

	"github.com/cuemby/filedb/pkg/key"
	"github.com/cuemby/filedb/pkg/metrics"
	"github.com/cuemby/filedb/pkg/query"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoKeyID is the key-id table's document shape: one unique
// canonical_key per key_id, minted on first sighting.
type mongoKeyID struct {
	CanonicalKey []byte `bson:"canonical_key"`
	KeyID        string `bson:"key_id"`
}

// mongoRecord decodes the fields of a data-table document that this
// Index cares about directly; the user key's own fields are decoded
// separately via bson.M in Find.
type mongoRecord struct {
	KeyID       string `bson:"key_id"`
	StoragePath string `bson:"_storage_path_e5c8b4a5_96b1_4ed3_9a36_d8bb28204240"` // key.FieldStoragePath
}

// MongoIndex is a document-store-backed Index: its native query
// engine renders a Query directly, and its unique index on
// canonical_key is what arbitrates the key-id minting race the
// specification allows for two racing processes.
type MongoIndex struct {
	name     string
	database *mongo.Database
}

// NewMongoIndex wires up the key-id collection's unique index and
// returns an Index over database, named name for cache-path purposes.
func NewMongoIndex(ctx context.Context, name string, database *mongo.Database) (*MongoIndex, error) {
	keyIDs := database.Collection(keyIDCollection)
	_, err := keyIDs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "canonical_key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("index: ensure canonical_key unique index: %w", err)
	}
	return &MongoIndex{name: name, database: database}, nil
}

const keyIDCollection = "filedb_key_ids"

func dataCollectionName(storageName string) string {
	return "filedb_data_" + storageName
}

func (x *MongoIndex) Name() string { return x.name }

func (x *MongoIndex) Close() error { return nil }

func (x *MongoIndex) resolveKeyID(ctx context.Context, canonical []byte) (string, bool, error) {
	var doc mongoKeyID
	err := x.database.Collection(keyIDCollection).
		FindOne(ctx, bson.M{"canonical_key": canonical}).
		Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("index: lookup key-id: %w", err)
	}
	return doc.KeyID, true, nil
}

// mintKeyID inserts a brand new key-id candidate for canonical. On a
// duplicate-key error from the unique index — another process won the
// race — it re-reads and returns the winner's key-id, per the
// specification's race-resolution rule.
func (x *MongoIndex) mintKeyID(ctx context.Context, canonical []byte, candidate string) (string, error) {
	_, err := x.database.Collection(keyIDCollection).InsertOne(ctx, mongoKeyID{
		CanonicalKey: canonical,
		KeyID:        candidate,
	})
	if mongo.IsDuplicateKeyError(err) {
		metrics.IndexUpsertRacesTotal.Inc()
		id, found, readErr := x.resolveKeyID(ctx, canonical)
		if readErr != nil {
			return "", readErr
		}
		if !found {
			return "", fmt.Errorf("index: lost the key-id race but winner's record vanished")
		}
		return id, nil
	}
	if err != nil {
		return "", fmt.Errorf("index: mint key-id: %w", err)
	}
	return candidate, nil
}

func (x *MongoIndex) StoragePath(k key.Key, storageName string) (string, bool, error) {
	ctx := context.Background()
	canonical, err := key.Canonical(k)
	if err != nil {
		return "", false, fmt.Errorf("index: canonicalize key: %w", err)
	}

	id, found, err := x.resolveKeyID(ctx, canonical)
	if err != nil || !found {
		return "", false, err
	}

	var rec mongoRecord
	err = x.database.Collection(dataCollectionName(storageName)).
		FindOne(ctx, bson.M{"key_id": id}).
		Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("index: lookup storage path: %w", err)
	}
	return rec.StoragePath, true, nil
}

func (x *MongoIndex) Upsert(k key.Key, storagePath string, storageName string) error {
	if err := key.Validate(k); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	ctx := context.Background()
	canonical, err := key.Canonical(k)
	if err != nil {
		return fmt.Errorf("index: canonicalize key: %w", err)
	}

	id, found, err := x.resolveKeyID(ctx, canonical)
	if err != nil {
		return err
	}
	if !found {
		id, err = x.mintKeyID(ctx, canonical, uuid.NewString())
		if err != nil {
			return err
		}
	}

	doc := bson.M{}
	for field, value := range k {
		doc[field] = value
	}
	doc["key_id"] = id
	doc[key.FieldStoragePath] = storagePath

	_, err = x.database.Collection(dataCollectionName(storageName)).
		UpdateOne(ctx, bson.M{"key_id": id}, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("index: upsert data record: %w", err)
	}
	return nil
}

func (x *MongoIndex) Delete(k key.Key, storageName string) error {
	ctx := context.Background()
	canonical, err := key.Canonical(k)
	if err != nil {
		return fmt.Errorf("index: canonicalize key: %w", err)
	}

	id, found, err := x.resolveKeyID(ctx, canonical)
	if err != nil || !found {
		return err
	}

	_, err = x.database.Collection(dataCollectionName(storageName)).
		DeleteOne(ctx, bson.M{"key_id": id})
	if err != nil {
		return fmt.Errorf("index: delete data record: %w", err)
	}
	return nil
}

func (x *MongoIndex) Find(q query.Query, storageName string) ([]key.Key, error) {
	ctx := context.Background()
	cursor, err := x.database.Collection(dataCollectionName(storageName)).Find(ctx, q.Render())
	if err != nil {
		return nil, fmt.Errorf("index: find: %w", err)
	}
	defer cursor.Close(ctx)

	var results []key.Key
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("index: decode record: %w", err)
		}
		delete(raw, "_id")
		delete(raw, "key_id")
		delete(raw, key.FieldStoragePath)

		k := make(key.Key, len(raw))
		for field, value := range raw {
			k[field] = value
		}
		results = append(results, k)
	}
	return results, cursor.Err()
}
