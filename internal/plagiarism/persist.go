package plagiarism

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/RishiKendai/aegis-dupe/internal/graph"
	"github.com/RishiKendai/aegis-dupe/internal/index"
	"github.com/RishiKendai/aegis-dupe/internal/metrics"
	"github.com/RishiKendai/aegis-dupe/internal/models"
	"github.com/rs/zerolog/log"
)

// SaveIndex writes the submission index to path
func (d *Detector) SaveIndex(path string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.index.Save(path)
}

// LoadIndex replaces the submission index with the one stored at path. On
// error the current index is kept.
func (d *Detector) LoadIndex(ctx context.Context, path string) error {
	tree := index.New[models.Metadata](d.opts.IndexOrder)
	if err := tree.Load(path); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.adoptIndex(ctx, tree)
	return nil
}

// IndexSnapshot returns the persisted form of the submission index
func (d *Detector) IndexSnapshot() *index.NodeRecord[models.Metadata] {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.index.Snapshot()
}

// RestoreIndex replaces the submission index with rec. On error the current
// index is kept.
func (d *Detector) RestoreIndex(ctx context.Context, rec *index.NodeRecord[models.Metadata]) error {
	tree := index.New[models.Metadata](d.opts.IndexOrder)
	if err := tree.Restore(rec); err != nil {
		return fmt.Errorf("failed to restore index: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.adoptIndex(ctx, tree)
	return nil
}

// adoptIndex installs tree and registers its submissions in the graph.
// Graph nodes missing from tree are dropped with their edges so clusters and
// pairs only name indexed submissions. Edges are not recomputed. Token sequences are not persisted, so each
// submission is tokenized again from its recorded path; one that cannot be
// read stays indexed but takes no part in later comparisons.
func (d *Detector) adoptIndex(ctx context.Context, tree *index.Tree[models.Metadata]) {
	entries := tree.Entries()
	keep := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		keep[e.Key] = struct{}{}
	}
	dropped := 0
	for _, id := range d.graph.Nodes() {
		if _, ok := keep[id]; !ok && d.graph.RemoveFile(id) {
			dropped++
		}
	}

	tokens := make(map[string][]string, len(entries))
	for _, e := range entries {
		d.graph.AddFile(e.Key, e.Value)

		if existing, ok := d.tokens[e.Key]; ok {
			tokens[e.Key] = existing
			continue
		}
		toks, _, err := d.tokenizer.Tokenize(ctx, e.Value.FilePath)
		if err != nil || len(toks) == 0 {
			log.Warn().Err(err).Str("submissionId", e.Key).Str("path", e.Value.FilePath).Msg("Cannot re-tokenize indexed submission")
			continue
		}
		tokens[e.Key] = toks
	}

	d.index = tree
	d.tokens = tokens
	metrics.IndexedSubmissions.Set(float64(tree.Len()))
	log.Info().Int("submissions", tree.Len()).Int("comparable", len(tokens)).Int("dropped", dropped).Msg("Submission index replaced")
}

// SaveGraph writes the similarity graph to path
func (d *Detector) SaveGraph(path string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.graph.Save(path)
}

// LoadGraph replaces the similarity graph with the one stored at path
func (d *Detector) LoadGraph(path string) error {
	g := graph.New(d.opts.Threshold)
	if err := g.Load(path); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.graph = g
	return nil
}

// GraphPath is where the graph belonging to the index at indexPath is kept
func GraphPath(indexPath string) string {
	return strings.TrimSuffix(indexPath, filepath.Ext(indexPath)) + ".graph.json"
}

// SaveSnapshot writes the index to indexPath and the graph next to it
func (d *Detector) SaveSnapshot(indexPath string) error {
	if err := d.SaveIndex(indexPath); err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}
	if err := d.SaveGraph(GraphPath(indexPath)); err != nil {
		return fmt.Errorf("failed to save graph: %w", err)
	}
	return nil
}

// LoadSnapshot loads the index at indexPath and, when present, the graph
// saved next to it. Without a graph file only nodes are restored. A graph
// that fails to load leaves the loaded index in place.
func (d *Detector) LoadSnapshot(ctx context.Context, indexPath string) error {
	if err := d.LoadIndex(ctx, indexPath); err != nil {
		return fmt.Errorf("failed to load index: %w", err)
	}
	graphPath := GraphPath(indexPath)
	if _, err := os.Stat(graphPath); errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("path", graphPath).Msg("No graph snapshot found, similarity edges start empty")
		return nil
	}
	if err := d.LoadGraph(graphPath); err != nil {
		return fmt.Errorf("failed to load graph: %w", err)
	}
	return nil
}
