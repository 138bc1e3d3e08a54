package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/RishiKendai/aegis-dupe/internal/config"
	"github.com/RishiKendai/aegis-dupe/internal/index"
	"github.com/RishiKendai/aegis-dupe/internal/models"
	"github.com/RishiKendai/aegis-dupe/internal/plagiarism"
	"github.com/RishiKendai/aegis-dupe/internal/tokenizer"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sumSource = `def calculate_sum(numbers):
    total = 0
    for num in numbers:
        total += num
    return total
`
	sumCopySource = `def calculate_sum(numbers):
    # adds everything up
    total = 0
    for num in numbers:
        total += num
    return total
`
	productSource = `def calculate_product(numbers):
    product = 1
    for num in numbers:
        product *= num
    return product
`
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memoryReports struct {
	mu      sync.Mutex
	reports []*models.ScanReport
}

func (m *memoryReports) InsertScanReport(_ context.Context, report *models.ScanReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, report)
	return nil
}

func (m *memoryReports) GetReportByScanID(_ context.Context, scanID string) (*models.ScanReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reports {
		if r.ScanID == scanID {
			return r, nil
		}
	}
	return nil, nil
}

func (m *memoryReports) GetLatestReport(_ context.Context) (*models.ScanReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.reports) == 0 {
		return nil, nil
	}
	return m.reports[len(m.reports)-1], nil
}

func (m *memoryReports) ListReports(_ context.Context, limit int64) ([]*models.ScanReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ScanReport
	for i := len(m.reports) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		out = append(out, m.reports[i])
	}
	return out, nil
}

func (m *memoryReports) CountReports(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.reports)), nil
}

type memorySnapshots struct {
	root        *index.NodeRecord[models.Metadata]
	submissions int
}

func (m *memorySnapshots) SaveIndexSnapshot(_ context.Context, root *index.NodeRecord[models.Metadata], submissions int) error {
	m.root = root
	m.submissions = submissions
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		RateLimitRPS:       100,
		MaxConcurrentScans: 1,
		ScanTimeout:        time.Minute,
	}
}

func newTestRouter(t *testing.T, cfg *config.Config, reports *memoryReports, snapshots SnapshotWriter) (*gin.Engine, *plagiarism.Detector) {
	t.Helper()
	detector := plagiarism.NewDetector(tokenizer.NewCodeParser(), plagiarism.DefaultOptions())
	deps := Dependencies{Detector: detector, Snapshots: snapshots}
	if reports != nil {
		deps.Reports = reports
		deps.Scanner = plagiarism.NewScanner(detector, reports, nil)
	} else {
		deps.Scanner = plagiarism.NewScanner(detector, nil, nil)
	}
	return SetupRoutes(cfg, deps), detector
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t, testConfig(), nil, nil)
	w := do(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
}

func TestSubmissions(t *testing.T) {
	dir := t.TempDir()
	router, _ := newTestRouter(t, testConfig(), nil, nil)

	w := do(t, router, http.MethodPost, "/api/v1/submissions", models.SubmitRequest{
		Path: writeSource(t, dir, "a.py", sumSource), SubmissionID: "a",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, decode(t, w)["similar"])
	assert.Equal(t, plagiarism.RiskClean, decode(t, w)["risk"])

	w = do(t, router, http.MethodPost, "/api/v1/submissions", models.SubmitRequest{
		Path: writeSource(t, dir, "b.py", sumCopySource), SubmissionID: "b",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	similar := body["similar"].([]any)
	require.Len(t, similar, 1)
	assert.Equal(t, "a", similar[0].(map[string]any)["id"])
	assert.Equal(t, plagiarism.RiskNearCopy, body["risk"])

	w = do(t, router, http.MethodPost, "/api/v1/submissions", models.SubmitRequest{
		Path: filepath.Join(dir, "missing.py"), SubmissionID: "m",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, router, http.MethodPost, "/api/v1/submissions", map[string]string{"path": "x.py"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decode(t, w)["code"])
}

func TestSubmissionQueries(t *testing.T) {
	dir := t.TempDir()
	router, detector := newTestRouter(t, testConfig(), nil, nil)
	ctx := context.Background()
	require.True(t, detector.AddSubmission(ctx, writeSource(t, dir, "a.py", sumSource), "a"))
	require.True(t, detector.AddSubmission(ctx, writeSource(t, dir, "b.py", sumCopySource), "b"))
	require.True(t, detector.AddSubmission(ctx, writeSource(t, dir, "c.py", productSource), "c"))

	w := do(t, router, http.MethodGet, "/api/v1/submissions/a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	metrics := decode(t, w)["metrics"].(map[string]any)
	assert.Equal(t, float64(1), metrics["degree"])

	w = do(t, router, http.MethodGet, "/api/v1/submissions/zzz", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, router, http.MethodGet, "/api/v1/submissions/zzz/similar", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodGet, "/api/v1/submissions/c/similar", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{}, decode(t, w)["similar"])

	w = do(t, router, http.MethodGet, "/api/v1/submissions/a/similar?min=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, router, http.MethodGet, "/api/v1/submissions/a/similar?min=0.99", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["similar"], 1)

	w = do(t, router, http.MethodGet, "/api/v1/pairs?top=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	pairs := decode(t, w)["pairs"].([]any)
	require.Len(t, pairs, 1)
	assert.Equal(t, "a", pairs[0].(map[string]any)["a"])
	assert.Equal(t, "b", pairs[0].(map[string]any)["b"])
	w = do(t, router, http.MethodGet, "/api/v1/pairs?top=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodGet, "/api/v1/clusters", nil)
	require.Equal(t, http.StatusOK, w.Code)
	clusters := decode(t, w)["clusters"].([]any)
	require.Len(t, clusters, 1)
	assert.Equal(t, []any{"a", "b"}, clusters[0].(map[string]any)["submissions"])

	w = do(t, router, http.MethodGet, "/api/v1/components", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["components"], 2)

	w = do(t, router, http.MethodGet, "/api/v1/matrix", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var matrix models.SimilarityMatrix
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &matrix))
	assert.Equal(t, []string{"a", "b", "c"}, matrix.IDs)
	assert.Equal(t, matrix.Matrix[0][1], matrix.Matrix[1][0])
	assert.Zero(t, matrix.Matrix[0][2])

	w = do(t, router, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), decode(t, w)["submissions"])
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "a.py", sumSource)
	writeSource(t, dir, "b.py", sumCopySource)
	reports := &memoryReports{}
	router, _ := newTestRouter(t, testConfig(), reports, nil)

	w := do(t, router, http.MethodPost, "/api/v1/scan", models.ScanRequest{Directory: dir})
	require.Equal(t, http.StatusAccepted, w.Code)
	var resp models.ScanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.StepInitiated, resp.Step)
	require.NotEmpty(t, resp.ScanID)

	require.Eventually(t, func() bool {
		w := do(t, router, http.MethodGet, "/api/v1/scan/"+resp.ScanID, nil)
		return w.Code == http.StatusOK && decode(t, w)["report"] != nil
	}, 5*time.Second, 20*time.Millisecond)

	w = do(t, router, http.MethodGet, "/api/v1/reports/latest", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report models.ScanReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, resp.ScanID, report.ScanID)
	assert.Equal(t, 2, report.Processed)
	require.Len(t, report.Clusters, 1)
	assert.Equal(t, 2, report.FlaggedCount)

	w = do(t, router, http.MethodGet, "/api/v1/reports?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode(t, w)
	assert.Equal(t, float64(1), listed["total"])
	assert.Len(t, listed["reports"], 1)

	w = do(t, router, http.MethodGet, "/api/v1/reports?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScan_WithoutTracking(t *testing.T) {
	router, _ := newTestRouter(t, testConfig(), nil, nil)

	w := do(t, router, http.MethodGet, "/api/v1/scan/abc", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = do(t, router, http.MethodGet, "/api/v1/reports/latest", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = do(t, router, http.MethodPost, "/api/v1/scan", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSaveIndex(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.IndexSnapshotPath = filepath.Join(dir, "index.json")
	snapshots := &memorySnapshots{}
	router, detector := newTestRouter(t, cfg, nil, snapshots)
	require.True(t, detector.AddSubmission(context.Background(), writeSource(t, dir, "a.py", sumSource), "a"))

	w := do(t, router, http.MethodPost, "/api/v1/index/save", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["stored"])
	assert.FileExists(t, cfg.IndexSnapshotPath)
	assert.FileExists(t, plagiarism.GraphPath(cfg.IndexSnapshotPath))
	assert.Equal(t, 1, snapshots.submissions)
	require.NotNil(t, snapshots.root)

	w = do(t, router, http.MethodPost, "/api/v1/index/save", map[string]string{"path": "alt.json"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, filepath.Join(dir, "alt.json"), decode(t, w)["path"])
	assert.FileExists(t, filepath.Join(dir, "alt.graph.json"))
}

func TestSaveIndex_RejectsPathOutsideSnapshotDir(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig()
	cfg.IndexSnapshotPath = filepath.Join(root, "snapshots", "index.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.IndexSnapshotPath), 0o755))
	victim := writeSource(t, root, "victim.conf", "keep me")
	router, _ := newTestRouter(t, cfg, nil, nil)

	for _, path := range []string{victim, "../victim.conf", "nested/../../victim.conf", "."} {
		w := do(t, router, http.MethodPost, "/api/v1/index/save", map[string]string{"path": path})
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.Equal(t, "INVALID_SNAPSHOT_PATH", decode(t, w)["code"], path)
	}

	content, err := os.ReadFile(victim)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(content))
	assert.NoFileExists(t, filepath.Join(root, "victim.graph.json"))
}

func TestSaveIndex_PathNeedsConfiguredDir(t *testing.T) {
	dir := t.TempDir()
	router, _ := newTestRouter(t, testConfig(), nil, &memorySnapshots{})
	w := do(t, router, http.MethodPost, "/api/v1/index/save", map[string]string{"path": filepath.Join(dir, "index.json")})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_SNAPSHOT_PATH", decode(t, w)["code"])
	assert.NoFileExists(t, filepath.Join(dir, "index.json"))
}

func TestSaveIndex_NoTarget(t *testing.T) {
	router, _ := newTestRouter(t, testConfig(), nil, nil)
	w := do(t, router, http.MethodPost, "/api/v1/index/save", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "NO_SNAPSHOT_TARGET", decode(t, w)["code"])
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRPS = 1
	router, _ := newTestRouter(t, cfg, nil, nil)

	// burst is twice the rate
	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/api/v1/stats", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/api/v1/stats", nil).Code)
	w := do(t, router, http.MethodGet, "/api/v1/stats", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", decode(t, w)["code"])
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	// health is not limited
	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/health", nil).Code)
}

func TestRateLimiter_SweepsIdleClients(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Now()
	rl.now = func() time.Time { return now }

	assert.Zero(t, rl.Reserve("10.0.0.1"))
	assert.Positive(t, rl.Reserve("10.0.0.1"))
	assert.Equal(t, 1, rl.clientCount())

	now = now.Add(2 * clientIdleTTL)
	assert.Zero(t, rl.Reserve("10.0.0.2"))
	assert.Equal(t, 1, rl.clientCount())
}

func TestRequestID(t *testing.T) {
	router, _ := newTestRouter(t, testConfig(), nil, nil)

	w := do(t, router, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "trace-42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "trace-42", rec.Header().Get(requestIDHeader))
}
