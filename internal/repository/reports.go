package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/RishiKendai/aegis-dupe/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const reportsCollection = "dupe_scan_reports"

type ReportsRepository struct {
	mongoRepo *MongoRepository
}

func NewReportsRepository(mongoRepo *MongoRepository) *ReportsRepository {
	return &ReportsRepository{
		mongoRepo: mongoRepo,
	}
}

func (r *ReportsRepository) InsertScanReport(ctx context.Context, report *models.ScanReport) error {
	report.CreatedAt = time.Now()

	err := r.mongoRepo.InsertOne(ctx, reportsCollection, report)
	if err != nil {
		return fmt.Errorf("failed to insert scan report: %w", err)
	}

	return nil
}

// GetReportByScanID returns nil when no report exists for scanID
func (r *ReportsRepository) GetReportByScanID(ctx context.Context, scanID string) (*models.ScanReport, error) {
	filter := bson.M{"scanId": scanID}

	var report models.ScanReport
	err := r.mongoRepo.FindOne(ctx, reportsCollection, filter).Decode(&report)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find report: %w", err)
	}

	return &report, nil
}

// GetLatestReport returns the most recent report, nil when there is none
func (r *ReportsRepository) GetLatestReport(ctx context.Context) (*models.ScanReport, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	var report models.ScanReport
	err := r.mongoRepo.FindOne(ctx, reportsCollection, bson.M{}, opts).Decode(&report)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest report: %w", err)
	}

	return &report, nil
}

// ListReports returns up to limit reports, newest first
func (r *ReportsRepository) ListReports(ctx context.Context, limit int64) ([]*models.ScanReport, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(limit)

	cursor, err := r.mongoRepo.FindMany(ctx, reportsCollection, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find reports: %w", err)
	}
	defer cursor.Close(ctx)

	var reports []*models.ScanReport
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, fmt.Errorf("failed to decode reports: %w", err)
	}

	return reports, nil
}

// CountReports returns the number of stored reports
func (r *ReportsRepository) CountReports(ctx context.Context) (int64, error) {
	count, err := r.mongoRepo.CountDocuments(ctx, reportsCollection, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return count, nil
}
