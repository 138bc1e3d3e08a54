package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/RishiKendai/aegis-dupe/internal/index"
	"github.com/RishiKendai/aegis-dupe/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	snapshotsCollection = "dupe_index_snapshots"
	latestSnapshotID    = "latest"
)

// IndexSnapshot is the stored form of the submission index
type IndexSnapshot struct {
	ID          string                             `bson:"_id"`
	Root        *index.NodeRecord[models.Metadata] `bson:"root"`
	Submissions int                                `bson:"submissions"`
	CreatedAt   time.Time                          `bson:"createdAt"`
}

type SnapshotsRepository struct {
	mongoRepo *MongoRepository
}

func NewSnapshotsRepository(mongoRepo *MongoRepository) *SnapshotsRepository {
	return &SnapshotsRepository{
		mongoRepo: mongoRepo,
	}
}

// SaveIndexSnapshot replaces the stored snapshot with root
func (r *SnapshotsRepository) SaveIndexSnapshot(ctx context.Context, root *index.NodeRecord[models.Metadata], submissions int) error {
	snapshot := &IndexSnapshot{
		ID:          latestSnapshotID,
		Root:        root,
		Submissions: submissions,
		CreatedAt:   time.Now(),
	}

	filter := bson.M{"_id": latestSnapshotID}
	err := r.mongoRepo.ReplaceOne(ctx, snapshotsCollection, filter, snapshot, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save index snapshot: %w", err)
	}

	return nil
}

// LatestIndexSnapshot returns nil when no snapshot has been saved
func (r *SnapshotsRepository) LatestIndexSnapshot(ctx context.Context) (*IndexSnapshot, error) {
	var snapshot IndexSnapshot
	err := r.mongoRepo.FindOne(ctx, snapshotsCollection, bson.M{"_id": latestSnapshotID}).Decode(&snapshot)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find index snapshot: %w", err)
	}

	return &snapshot, nil
}
