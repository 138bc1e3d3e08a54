package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/RishiKendai/aegis-dupe/internal/models"
	"github.com/rs/zerolog/log"
)

var ErrCorruptSnapshot = errors.New("corrupt graph snapshot")

type NodeRecord struct {
	ID       string          `bson:"id" json:"id"`
	Metadata models.Metadata `bson:"metadata" json:"metadata"`
}

// Record is the persisted form of a graph
type Record struct {
	Threshold float64      `bson:"threshold" json:"threshold"`
	Nodes     []NodeRecord `bson:"nodes" json:"nodes"`
	Edges     []Pair       `bson:"edges" json:"edges"`
}

// Snapshot copies the graph into a record with nodes and edges in a stable order
func (g *Graph) Snapshot() Record {
	rec := Record{Threshold: g.threshold}
	for _, id := range g.Nodes() {
		rec.Nodes = append(rec.Nodes, NodeRecord{ID: id, Metadata: g.nodes[id]})
	}
	rec.Edges = g.pairs()
	sort.Slice(rec.Edges, func(i, j int) bool {
		if rec.Edges[i].A != rec.Edges[j].A {
			return rec.Edges[i].A < rec.Edges[j].A
		}
		return rec.Edges[i].B < rec.Edges[j].B
	})
	return rec
}

// Restore replaces the graph contents with rec. Edges are taken as stored,
// without re-applying the threshold. On error the graph is left untouched.
func (g *Graph) Restore(rec Record) error {
	fresh := New(rec.Threshold)
	for _, n := range rec.Nodes {
		if n.ID == "" {
			return fmt.Errorf("%w: node without id", ErrCorruptSnapshot)
		}
		fresh.AddFile(n.ID, n.Metadata)
	}
	for _, e := range rec.Edges {
		if !fresh.HasNode(e.A) || !fresh.HasNode(e.B) || e.A == e.B {
			return fmt.Errorf("%w: edge %s-%s references unknown nodes", ErrCorruptSnapshot, e.A, e.B)
		}
		if e.Score < 0 || e.Score > 1 {
			return fmt.Errorf("%w: edge %s-%s has score %v", ErrCorruptSnapshot, e.A, e.B, e.Score)
		}
		if _, exists := fresh.adj[e.A][e.B]; !exists {
			fresh.edges++
		}
		fresh.adj[e.A][e.B] = e.Score
		fresh.adj[e.B][e.A] = e.Score
	}

	g.threshold = fresh.threshold
	g.nodes = fresh.nodes
	g.adj = fresh.adj
	g.edges = fresh.edges
	return nil
}

// Save writes the graph as JSON to path
func (g *Graph) Save(path string) error {
	data, err := json.Marshal(g.Snapshot())
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write graph: %w", err)
	}
	log.Info().Str("path", path).Int("nodes", len(g.nodes)).Int("edges", g.edges).Msg("Graph saved")
	return nil
}

// Load replaces the graph with the one stored at path
func (g *Graph) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read graph: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if err := g.Restore(rec); err != nil {
		return err
	}
	log.Info().Str("path", path).Int("nodes", len(g.nodes)).Int("edges", g.edges).Msg("Graph loaded")
	return nil
}
