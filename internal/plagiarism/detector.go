package plagiarism

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/RishiKendai/aegis-dupe/internal/graph"
	"github.com/RishiKendai/aegis-dupe/internal/index"
	"github.com/RishiKendai/aegis-dupe/internal/matcher"
	"github.com/RishiKendai/aegis-dupe/internal/metrics"
	"github.com/RishiKendai/aegis-dupe/internal/models"
	"github.com/RishiKendai/aegis-dupe/internal/tokenizer"
	"github.com/rs/zerolog/log"
)

// Tokenizer turns a file into normalized tokens and metadata
type Tokenizer interface {
	Tokenize(ctx context.Context, path string) ([]string, models.Metadata, error)
}

type Options struct {
	Threshold          float64
	IndexOrder         int
	MatchMinSimilarity float64
	Workers            int
	ClusterEps         float64
	ClusterMinSamples  int
	// CacheClearEvery clears the fingerprint cache after that many added
	// submissions; 0 disables it
	CacheClearEvery int
}

func DefaultOptions() Options {
	return Options{
		Threshold:          graph.DefaultThreshold,
		IndexOrder:         index.DefaultOrder,
		MatchMinSimilarity: 0.7,
		Workers:            4,
		ClusterEps:         0.3,
		ClusterMinSamples:  2,
		CacheClearEvery:    500,
	}
}

var skippedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
}

// Detector indexes submissions, scores every new one against all stored
// ones and groups them into clusters.
//
// Mutations hold the write lock for their whole duration. Each read query
// holds the read lock while it runs; GetSimilarityMatrix takes it once per
// row, so a submission added mid-build can leave rows mutually inconsistent.
type Detector struct {
	mu        sync.RWMutex
	opts      Options
	tokenizer Tokenizer
	index     *index.Tree[models.Metadata]
	matcher   *matcher.Matcher
	graph     *graph.Graph
	tokens    map[string][]string
	added     int
}

func NewDetector(tok Tokenizer, opts Options, matcherOpts ...matcher.Option) *Detector {
	return &Detector{
		opts:      opts,
		tokenizer: tok,
		index:     index.New[models.Metadata](opts.IndexOrder),
		matcher:   matcher.New(matcherOpts...),
		graph:     graph.New(opts.Threshold),
		tokens:    make(map[string][]string),
	}
}

// AddSubmission tokenizes path, stores it under id and links it to every
// stored submission it resembles. Tokenizer failures are logged and the
// submission is skipped.
func (d *Detector) AddSubmission(ctx context.Context, path, id string) bool {
	start := time.Now()
	defer func() { metrics.SubmissionDuration.Observe(time.Since(start).Seconds()) }()

	tokens, meta, err := d.tokenizer.Tokenize(ctx, path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Str("submissionId", id).Msg("Failed to tokenize submission, skipping")
		metrics.SubmissionsProcessed.WithLabelValues("skipped").Inc()
		return false
	}
	// nothing to compare; indexing it would only add an isolated node
	if len(tokens) == 0 {
		log.Warn().Str("path", path).Str("submissionId", id).Msg("Submission has no tokens, skipping")
		metrics.SubmissionsProcessed.WithLabelValues("skipped").Inc()
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.graph.AddFile(id, meta)
	d.index.Insert(id, meta)

	var stored []string
	for _, e := range d.index.Entries() {
		if e.Key != id {
			if _, ok := d.tokens[e.Key]; ok {
				stored = append(stored, e.Key)
			}
		}
	}
	d.tokens[id] = tokens

	scores := d.compare(tokens, stored)
	edges := 0
	for _, other := range stored {
		if d.graph.AddSimilarity(id, other, scores[other]) {
			edges++
		}
	}

	d.added++
	if d.opts.CacheClearEvery > 0 && d.added%d.opts.CacheClearEvery == 0 {
		log.Debug().Int("entries", d.matcher.CacheSize()).Msg("Clearing fingerprint cache")
		d.matcher.ClearCache()
	}

	metrics.SubmissionsProcessed.WithLabelValues("added").Inc()
	metrics.Comparisons.Add(float64(len(stored)))
	metrics.EdgesAdded.Add(float64(edges))
	metrics.IndexedSubmissions.Set(float64(d.index.Len()))
	metrics.FingerprintCacheSize.Set(float64(d.matcher.CacheSize()))

	log.Info().
		Str("submissionId", id).
		Str("language", meta.Language).
		Int("tokens", len(tokens)).
		Int("compared", len(stored)).
		Int("edges", edges).
		Msg("Submission added")
	return true
}

// ProcessDirectory adds every supported file below root and returns how many
// were added. A failing file never stops the walk.
//
// Ids are <stem>_<n> with n counting from 0 on every call, so scanning a
// second directory upserts over same-named ids of an earlier scan. Edges to
// the replaced content are kept.
func (d *Detector) ProcessDirectory(ctx context.Context, root string) (int, error) {
	info, err := os.Stat(root)
	if err != nil {
		return 0, fmt.Errorf("failed to open directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("%s is not a directory", root)
	}

	processed := 0
	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Failed to read path, skipping")
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if entry.IsDir() {
			if path != root && skippedDirs[entry.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !tokenizer.IsSupported(path) {
			return nil
		}

		stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if d.AddSubmission(ctx, path, fmt.Sprintf("%s_%d", stem, processed)) {
			processed++
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return processed, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	log.Info().Str("directory", root).Int("processed", processed).Msg("Directory processed")
	return processed, err
}

// FindPlagiarismClusters groups the current graph into clusters and attaches
// member metadata and a risk level from the strongest edge inside each cluster
func (d *Detector) FindPlagiarismClusters() []models.ClusterRecord {
	start := time.Now()
	defer func() { metrics.ClusterDuration.Observe(time.Since(start).Seconds()) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	clusters := d.graph.FindClusters(d.opts.ClusterEps, d.opts.ClusterMinSamples)
	records := make([]models.ClusterRecord, 0, len(clusters))
	for i, members := range clusters {
		rec := models.ClusterRecord{
			ClusterID:   i,
			Submissions: members,
			Metadata:    make([]models.Metadata, 0, len(members)),
		}
		for j, a := range members {
			if meta, ok := d.index.Search(a); ok {
				rec.Metadata = append(rec.Metadata, meta)
			}
			for _, b := range members[j+1:] {
				if w, ok := d.graph.Weight(a, b); ok {
					rec.MaxSimilarity = max(rec.MaxSimilarity, w)
				}
			}
		}
		rec.Risk = GetRiskLevel(rec.MaxSimilarity)
		records = append(records, rec)
	}
	return records
}

// GetSimilarityMatrix returns every indexed id in ascending order and the
// dense matrix of edge scores between them, zero where no edge exists
func (d *Detector) GetSimilarityMatrix() ([]string, [][]float64) {
	d.mu.RLock()
	entries := d.index.Entries()
	d.mu.RUnlock()

	ids := make([]string, len(entries))
	pos := make(map[string]int, len(entries))
	for i, e := range entries {
		ids[i] = e.Key
		pos[e.Key] = i
	}

	matrix := make([][]float64, len(ids))
	for i, id := range ids {
		matrix[i] = make([]float64, len(ids))

		d.mu.RLock()
		neighbors := d.graph.FindSimilarFiles(id, nil)
		d.mu.RUnlock()

		for _, n := range neighbors {
			if j, ok := pos[n.ID]; ok && j != i {
				matrix[i][j] = n.Score
			}
		}
	}
	return ids, matrix
}

// GetSubmissionMetadata looks id up in the index
func (d *Detector) GetSubmissionMetadata(id string) (models.Metadata, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.index.Search(id)
}

// SimilarSubmissions returns the neighbors of id scoring at least minSimilarity
// (the graph threshold when nil). The bool is false for unknown ids.
func (d *Detector) SimilarSubmissions(id string, minSimilarity *float64) ([]graph.Neighbor, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.graph.HasNode(id) {
		return nil, false
	}
	return d.graph.FindSimilarFiles(id, minSimilarity), true
}

// FileMetrics summarizes the edges of one submission
func (d *Detector) FileMetrics(id string) (graph.FileMetrics, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.graph.FileMetrics(id)
}

// MostSimilarPairs returns the strongest topK edges
func (d *Detector) MostSimilarPairs(topK int) []models.SimilarPair {
	d.mu.RLock()
	pairs := d.graph.MostSimilarPairs(topK)
	d.mu.RUnlock()

	out := make([]models.SimilarPair, len(pairs))
	for i, p := range pairs {
		out[i] = models.SimilarPair{A: p.A, B: p.B, Score: p.Score}
	}
	return out
}

// ConnectedComponents returns the connected components of the graph
func (d *Detector) ConnectedComponents() [][]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.graph.ConnectedComponents()
}

// Stats collects the counters of every component
type Stats struct {
	Submissions int             `json:"submissions"`
	Index       index.Metrics   `json:"index"`
	Matcher     matcher.Metrics `json:"matcher"`
	Graph       graph.Metrics   `json:"graph"`
}

func (d *Detector) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Stats{
		Submissions: d.index.Len(),
		Index:       d.index.Metrics(),
		Matcher:     d.matcher.Metrics(),
		Graph:       d.graph.Metrics(),
	}
}

// ClearCache drops the matcher's fingerprint cache
func (d *Detector) ClearCache() {
	d.matcher.ClearCache()
	metrics.FingerprintCacheSize.Set(0)
}
