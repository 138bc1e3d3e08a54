package plagiarism

import (
	"context"
	"fmt"
	"time"

	"github.com/RishiKendai/aegis-dupe/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const defaultTopPairs = 10

// ReportStore persists finished scan reports
type ReportStore interface {
	InsertScanReport(ctx context.Context, report *models.ScanReport) error
}

// Scanner runs a directory scan end to end: indexing, clustering, status
// tracking and report persistence. The report store and Redis client are
// optional.
type Scanner struct {
	detector *Detector
	reports  ReportStore
	redis    redis.Cmdable
	topPairs int
}

func NewScanner(detector *Detector, reports ReportStore, redisClient redis.Cmdable) *Scanner {
	return &Scanner{
		detector: detector,
		reports:  reports,
		redis:    redisClient,
		topPairs: defaultTopPairs,
	}
}

// WithTopPairs sets how many of the strongest pairs a report lists; 0 lists
// every edge
func (s *Scanner) WithTopPairs(n int) *Scanner {
	s.topPairs = n
	return s
}

// Run processes directory into the shared detector and reports on the whole
// graph. Repeated runs reuse ids per file stem (see ProcessDirectory).
func (s *Scanner) Run(ctx context.Context, scanID, directory string) (*models.ScanReport, error) {
	start := time.Now()
	s.setStatus(ctx, scanID, models.StepStarted)

	s.setStatus(ctx, scanID, models.StepIndexing)
	processed, err := s.detector.ProcessDirectory(ctx, directory)
	if err != nil {
		s.setStatus(ctx, scanID, models.StepFailed)
		log.Error().Err(err).Str("scanId", scanID).Str("directory", directory).Msg("Scan failed")
		return nil, fmt.Errorf("failed to process directory: %w", err)
	}

	s.setStatus(ctx, scanID, models.StepClustering)
	clusters := s.detector.FindPlagiarismClusters()

	flagged := 0
	for _, c := range clusters {
		if c.Risk != RiskClean {
			flagged += len(c.Submissions)
		}
	}

	report := &models.ScanReport{
		ScanID:       scanID,
		Directory:    directory,
		Status:       string(models.StepCompleted),
		Processed:    processed,
		Clusters:     clusters,
		TopPairs:     s.detector.MostSimilarPairs(s.topPairs),
		FlaggedCount: flagged,
		CreatedAt:    time.Now(),
	}

	if s.reports != nil {
		if err := s.reports.InsertScanReport(ctx, report); err != nil {
			s.setStatus(ctx, scanID, models.StepFailed)
			return report, fmt.Errorf("failed to store scan report: %w", err)
		}
	}
	s.setStatus(ctx, scanID, models.StepCompleted)

	log.Info().
		Str("scanId", scanID).
		Str("directory", directory).
		Int("processed", processed).
		Int("clusters", len(clusters)).
		Int("flagged", flagged).
		Dur("duration", time.Since(start)).
		Msg("Scan completed")
	return report, nil
}

// setStatus is best effort; a Redis failure never fails the scan
func (s *Scanner) setStatus(ctx context.Context, scanID string, step models.Step) {
	if s.redis == nil {
		return
	}
	_ = UpdateStatus(ctx, s.redis, scanID, step)
}
