package repository

import (
	"context"
	"fmt"

	mongoInfra "github.com/RishiKendai/aegis-dupe/internal/infra/mongo"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository is a thin collection-name based wrapper over one database
type MongoRepository struct {
	db *mongo.Database
}

func NewMongoRepository(client *mongoInfra.Client) *MongoRepository {
	return &MongoRepository{
		db: client.Database,
	}
}

// EnsureIndexes creates the indexes the repositories query by. Existing
// indexes are left alone.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "scanId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	}
	names, err := r.db.Collection(reportsCollection).Indexes().CreateMany(ctx, models)
	if err != nil {
		return fmt.Errorf("failed to create indexes on %s: %w", reportsCollection, err)
	}
	log.Debug().Strs("indexes", names).Str("collection", reportsCollection).Msg("Indexes ensured")
	return nil
}

func (r *MongoRepository) InsertOne(ctx context.Context, collection string, document interface{}, opts ...*options.InsertOneOptions) error {
	if _, err := r.db.Collection(collection).InsertOne(ctx, document, opts...); err != nil {
		return fmt.Errorf("insert into %s: %w", collection, err)
	}
	return nil
}

// ReplaceOne replaces the document matching filter; pass an upsert option to
// create it when missing
func (r *MongoRepository) ReplaceOne(ctx context.Context, collection string, filter, document interface{}, opts ...*options.ReplaceOptions) error {
	if _, err := r.db.Collection(collection).ReplaceOne(ctx, filter, document, opts...); err != nil {
		return fmt.Errorf("replace in %s: %w", collection, err)
	}
	return nil
}

func (r *MongoRepository) FindOne(ctx context.Context, collection string, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult {
	return r.db.Collection(collection).FindOne(ctx, filter, opts...)
}

func (r *MongoRepository) FindMany(ctx context.Context, collection string, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	return r.db.Collection(collection).Find(ctx, filter, opts...)
}

func (r *MongoRepository) CountDocuments(ctx context.Context, collection string, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return r.db.Collection(collection).CountDocuments(ctx, filter, opts...)
}
