package plagiarism

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/RishiKendai/aegis-dupe/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryReports struct {
	reports []*models.ScanReport
	err     error
}

func (m *memoryReports) InsertScanReport(_ context.Context, report *models.ScanReport) error {
	if m.err != nil {
		return m.err
	}
	m.reports = append(m.reports, report)
	return nil
}

func TestScanner_Run(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "a.py", sumSource)
	writeSource(t, dir, "b.py", sumCopySource)
	writeSource(t, dir, "c.py", productSource)

	store := &memoryReports{}
	scanner := NewScanner(newTestDetector(), store, nil)

	report, err := scanner.Run(context.Background(), "scan-1", dir)
	require.NoError(t, err)

	assert.Equal(t, "scan-1", report.ScanID)
	assert.Equal(t, string(models.StepCompleted), report.Status)
	assert.Equal(t, 3, report.Processed)
	require.Len(t, report.Clusters, 1)
	assert.Equal(t, []string{"a_0", "b_1"}, report.Clusters[0].Submissions)
	assert.Equal(t, 2, report.FlaggedCount)
	require.Len(t, report.TopPairs, 1)
	assert.Equal(t, models.SimilarPair{A: "a_0", B: "b_1", Score: 1.0}, report.TopPairs[0])

	require.Len(t, store.reports, 1)
	assert.Same(t, report, store.reports[0])
}

func TestScanner_RunFailures(t *testing.T) {
	scanner := NewScanner(newTestDetector(), nil, nil)
	_, err := scanner.Run(context.Background(), "scan-2", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	dir := t.TempDir()
	writeSource(t, dir, "a.py", sumSource)
	scanner = NewScanner(newTestDetector(), &memoryReports{err: errors.New("mongo down")}, nil)
	report, err := scanner.Run(context.Background(), "scan-3", dir)
	assert.Error(t, err)
	assert.NotNil(t, report)
}

func TestUpdateStatus_RejectsUnknownStep(t *testing.T) {
	err := UpdateStatus(context.Background(), nil, "scan", models.Step("bogus"))
	assert.Error(t, err)
}

func TestScanner_TopPairsLimit(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "a.py", sumSource)
	writeSource(t, dir, "b.py", sumCopySource)
	writeSource(t, dir, "c.py", sumSource)

	report, err := NewScanner(newTestDetector(), nil, nil).WithTopPairs(2).Run(context.Background(), "scan-4", dir)
	require.NoError(t, err)
	assert.Len(t, report.TopPairs, 2)

	report, err = NewScanner(newTestDetector(), nil, nil).WithTopPairs(0).Run(context.Background(), "scan-5", dir)
	require.NoError(t, err)
	assert.Len(t, report.TopPairs, 3)
}
