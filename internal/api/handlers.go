package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/RishiKendai/aegis-dupe/internal/config"
	"github.com/RishiKendai/aegis-dupe/internal/index"
	"github.com/RishiKendai/aegis-dupe/internal/models"
	"github.com/RishiKendai/aegis-dupe/internal/plagiarism"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	defaultTopPairs    = 10
	defaultReportLimit = 20
	maxReportLimit     = 100
)

// ReportReader reads stored scan reports
type ReportReader interface {
	GetReportByScanID(ctx context.Context, scanID string) (*models.ScanReport, error)
	GetLatestReport(ctx context.Context) (*models.ScanReport, error)
	ListReports(ctx context.Context, limit int64) ([]*models.ScanReport, error)
	CountReports(ctx context.Context) (int64, error)
}

// SnapshotWriter stores the submission index
type SnapshotWriter interface {
	SaveIndexSnapshot(ctx context.Context, root *index.NodeRecord[models.Metadata], submissions int) error
}

// Dependencies are the collaborators of the HTTP surface. Reports, Snapshots
// and Redis are optional and must be left nil when unavailable.
type Dependencies struct {
	Detector  *plagiarism.Detector
	Scanner   *plagiarism.Scanner
	Reports   ReportReader
	Snapshots SnapshotWriter
	Redis     redis.Cmdable
}

// Handler holds dependencies for handlers
type Handler struct {
	cfg         *config.Config
	detector    *plagiarism.Detector
	scanner     *plagiarism.Scanner
	reports     ReportReader
	snapshots   SnapshotWriter
	redisClient redis.Cmdable
	scanSem     chan struct{} // bounds concurrent scans
	scanTimeout time.Duration
}

func NewHandler(cfg *config.Config, deps Dependencies) *Handler {
	return &Handler{
		cfg:         cfg,
		detector:    deps.Detector,
		scanner:     deps.Scanner,
		reports:     deps.Reports,
		snapshots:   deps.Snapshots,
		redisClient: deps.Redis,
		scanSem:     make(chan struct{}, cfg.MaxConcurrentScans),
		scanTimeout: cfg.ScanTimeout,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

// AddSubmission indexes one file and returns its neighbors
func (h *Handler) AddSubmission(c *gin.Context) {
	var req models.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	if !h.detector.AddSubmission(c.Request.Context(), req.Path, req.SubmissionID) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: "Submission could not be tokenized",
			Code:  "SUBMISSION_SKIPPED",
		})
		return
	}

	meta, _ := h.detector.GetSubmissionMetadata(req.SubmissionID)
	similar, _ := h.detector.SimilarSubmissions(req.SubmissionID, nil)
	score := plagiarism.SubmissionScore(similar)
	c.JSON(http.StatusCreated, gin.H{
		"submissionId": req.SubmissionID,
		"metadata":     meta,
		"similar":      nonNil(similar),
		"score":        score,
		"risk":         plagiarism.GetRiskLevel(score),
	})
}

// Scan starts an asynchronous directory scan and returns 202 with its id
func (h *Handler) Scan(c *gin.Context) {
	var req models.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	ctx := c.Request.Context()
	select {
	case h.scanSem <- struct{}{}:
	case <-ctx.Done():
		c.JSON(http.StatusRequestTimeout, ErrorResponse{
			Error: "Request cancelled",
			Code:  "REQUEST_TIMEOUT",
		})
		return
	}

	scanID := uuid.NewString()
	if h.redisClient != nil {
		if err := plagiarism.UpdateStatus(ctx, h.redisClient, scanID, models.StepInitiated); err != nil {
			log.Warn().Err(err).Str("scanId", scanID).Msg("Failed to update initiated status")
		}
	}

	c.JSON(http.StatusAccepted, models.ScanResponse{
		Step:   models.StepInitiated,
		ScanID: scanID,
	})

	go h.runScan(scanID, req.Directory)
}

func (h *Handler) runScan(scanID, directory string) {
	defer func() { <-h.scanSem }()

	ctx, cancel := context.WithTimeout(context.Background(), h.scanTimeout)
	defer cancel()

	if _, err := h.scanner.Run(ctx, scanID, directory); err != nil {
		log.Error().Err(err).Str("scanId", scanID).Msg("Scan failed")
	}
}

// ScanStatus reports the step of a scan and its report once stored
func (h *Handler) ScanStatus(c *gin.Context) {
	scanID := c.Param("scanId")
	if h.redisClient == nil && h.reports == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "Scan tracking is not configured",
			Code:  "STATUS_UNAVAILABLE",
		})
		return
	}

	ctx := c.Request.Context()
	resp := gin.H{"scanId": scanID}
	if h.redisClient != nil {
		step, err := plagiarism.GetStatus(ctx, h.redisClient, scanID)
		if err != nil {
			_ = c.Error(err)
			return
		}
		resp["step"] = step
	}
	if h.reports != nil {
		report, err := h.reports.GetReportByScanID(ctx, scanID)
		if err != nil {
			_ = c.Error(err)
			return
		}
		if report != nil {
			resp["report"] = report
			if _, ok := resp["step"]; !ok {
				resp["step"] = models.Step(report.Status)
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) LatestReport(c *gin.Context) {
	if h.reports == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "Report storage is not configured",
			Code:  "REPORTS_UNAVAILABLE",
		})
		return
	}
	report, err := h.reports.GetLatestReport(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	if report == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "No scan report found",
			Code:  "REPORT_NOT_FOUND",
		})
		return
	}
	c.JSON(http.StatusOK, report)
}

// Reports lists stored reports, newest first, up to the limit query parameter
func (h *Handler) Reports(c *gin.Context) {
	if h.reports == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "Report storage is not configured",
			Code:  "REPORTS_UNAVAILABLE",
		})
		return
	}

	limit := defaultReportLimit
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > maxReportLimit {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "limit must be an integer within [1, 100]",
				Code:  "INVALID_QUERY",
			})
			return
		}
		limit = v
	}

	ctx := c.Request.Context()
	reports, err := h.reports.ListReports(ctx, int64(limit))
	if err != nil {
		_ = c.Error(err)
		return
	}
	total, err := h.reports.CountReports(ctx)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reports": nonNil(reports),
		"total":   total,
	})
}

func (h *Handler) Clusters(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"clusters": h.detector.FindPlagiarismClusters(),
	})
}

func (h *Handler) Components(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"components": nonNil(h.detector.ConnectedComponents()),
	})
}

func (h *Handler) Matrix(c *gin.Context) {
	ids, matrix := h.detector.GetSimilarityMatrix()
	c.JSON(http.StatusOK, models.SimilarityMatrix{IDs: ids, Matrix: matrix})
}

// Submission returns the metadata and edge summary of one submission
func (h *Handler) Submission(c *gin.Context) {
	id := c.Param("id")
	meta, ok := h.detector.GetSubmissionMetadata(id)
	if !ok {
		submissionNotFound(c)
		return
	}
	fm, _ := h.detector.FileMetrics(id)
	c.JSON(http.StatusOK, gin.H{
		"submissionId": id,
		"metadata":     meta,
		"metrics":      fm,
	})
}

// Similar lists the neighbors of a submission. The optional min query
// parameter overrides the graph threshold.
func (h *Handler) Similar(c *gin.Context) {
	id := c.Param("id")

	var floor *float64
	if raw := c.Query("min"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "min must be a number within [0, 1]",
				Code:  "INVALID_QUERY",
			})
			return
		}
		floor = &v
	}

	similar, ok := h.detector.SimilarSubmissions(id, floor)
	if !ok {
		submissionNotFound(c)
		return
	}
	score := plagiarism.SubmissionScore(similar)
	c.JSON(http.StatusOK, gin.H{
		"submissionId": id,
		"similar":      nonNil(similar),
		"score":        score,
		"risk":         plagiarism.GetRiskLevel(score),
	})
}

func (h *Handler) Pairs(c *gin.Context) {
	top := defaultTopPairs
	if raw := c.Query("top"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "top must be a non-negative integer",
				Code:  "INVALID_QUERY",
			})
			return
		}
		top = v
	}
	c.JSON(http.StatusOK, gin.H{
		"pairs": h.detector.MostSimilarPairs(top),
	})
}

func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.detector.Stats())
}

type saveIndexRequest struct {
	Path string `json:"path"`
}

// SaveIndex writes a snapshot to the configured path and to the snapshot
// store when one is configured. A path in the body names another file in the
// configured snapshot directory; anything resolving outside it is rejected.
func (h *Handler) SaveIndex(c *gin.Context) {
	var req saveIndexRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "Invalid request body",
				Code:  "INVALID_REQUEST",
			})
			return
		}
	}
	path := h.cfg.IndexSnapshotPath
	if req.Path != "" {
		resolved, err := snapshotPathIn(h.cfg.IndexSnapshotPath, req.Path)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: err.Error(),
				Code:  "INVALID_SNAPSHOT_PATH",
			})
			return
		}
		path = resolved
	}
	if path == "" && h.snapshots == nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "No snapshot path or store configured",
			Code:  "NO_SNAPSHOT_TARGET",
		})
		return
	}

	resp := gin.H{"submissions": h.detector.Stats().Submissions}
	if path != "" {
		if err := h.detector.SaveSnapshot(path); err != nil {
			_ = c.Error(err)
			return
		}
		resp["path"] = path
		resp["graphPath"] = plagiarism.GraphPath(path)
	}
	if h.snapshots != nil {
		root := h.detector.IndexSnapshot()
		if err := h.snapshots.SaveIndexSnapshot(c.Request.Context(), root, h.detector.Stats().Submissions); err != nil {
			_ = c.Error(err)
			return
		}
		resp["stored"] = true
	}

	log.Info().Interface("target", resp).Msg("Index snapshot saved")
	c.JSON(http.StatusOK, resp)
}

// snapshotPathIn resolves requested against the directory of configured and
// fails when the result leaves that directory
func snapshotPathIn(configured, requested string) (string, error) {
	if configured == "" {
		return "", errors.New("snapshot paths are disabled without INDEX_SNAPSHOT_PATH")
	}
	base, err := filepath.Abs(filepath.Dir(configured))
	if err != nil {
		return "", fmt.Errorf("cannot resolve snapshot directory: %w", err)
	}
	target := requested
	if !filepath.IsAbs(target) {
		target = filepath.Join(base, target)
	}
	target = filepath.Clean(target)

	rel, err := filepath.Rel(base, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("snapshot path must name a file inside %s", base)
	}
	return target, nil
}

func submissionNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, ErrorResponse{
		Error: "Submission not found",
		Code:  "SUBMISSION_NOT_FOUND",
	})
}

// nonNil keeps empty lists encoded as [] rather than null
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
