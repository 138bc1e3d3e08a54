// Package graph keeps a sparse weighted similarity graph over submissions and
// groups them into clusters on demand.
//
// # Thread Safety
//
// Graph is not internally synchronized. Mutations (AddFile, AddSimilarity,
// RemoveFile, Clear, Restore) must be serialized by the caller and must not overlap any
// read query. Read queries may run concurrently with each other.
package graph

import (
	"math"
	"sort"
	"sync/atomic"
	"time"

	"github.com/RishiKendai/aegis-dupe/internal/models"
	"github.com/rs/zerolog/log"
)

const DefaultThreshold = 0.7

// Neighbor is an adjacent submission and the weight of the shared edge
type Neighbor struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Pair is an undirected edge with A < B
type Pair struct {
	A     string  `bson:"a" json:"a"`
	B     string  `bson:"b" json:"b"`
	Score float64 `bson:"score" json:"score"`
}

type FileMetrics struct {
	Degree         int     `json:"degree"`
	MeanSimilarity float64 `json:"mean_similarity"`
	MaxSimilarity  float64 `json:"max_similarity"`
	MinSimilarity  float64 `json:"min_similarity"`
}

type Graph struct {
	threshold float64
	nodes     map[string]models.Metadata
	adj       map[string]map[string]float64
	edges     int

	clusteringTime atomic.Int64
}

// New creates an empty graph. Edges are only kept for scores >= threshold.
func New(threshold float64) *Graph {
	return &Graph{
		threshold: threshold,
		nodes:     make(map[string]models.Metadata),
		adj:       make(map[string]map[string]float64),
	}
}

func (g *Graph) Threshold() float64 {
	return g.threshold
}

// AddFile registers a node, replacing the metadata of an existing one
func (g *Graph) AddFile(id string, meta models.Metadata) {
	g.nodes[id] = meta
	if _, ok := g.adj[id]; !ok {
		g.adj[id] = make(map[string]float64)
	}
}

// AddSimilarity adds or reweights the edge a-b when score clears the
// threshold. Unknown endpoints are registered with empty metadata.
func (g *Graph) AddSimilarity(a, b string, score float64) bool {
	if a == b || score < g.threshold {
		return false
	}
	for _, id := range []string{a, b} {
		if _, ok := g.nodes[id]; !ok {
			g.AddFile(id, models.Metadata{})
		}
	}
	if _, exists := g.adj[a][b]; !exists {
		g.edges++
	}
	g.adj[a][b] = score
	g.adj[b][a] = score
	return true
}

// RemoveFile drops id and every edge touching it
func (g *Graph) RemoveFile(id string) bool {
	if _, ok := g.nodes[id]; !ok {
		return false
	}
	for other := range g.adj[id] {
		delete(g.adj[other], id)
		g.edges--
	}
	delete(g.adj, id)
	delete(g.nodes, id)
	return true
}

func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

func (g *Graph) Metadata(id string) (models.Metadata, bool) {
	meta, ok := g.nodes[id]
	return meta, ok
}

// Weight returns the score of the edge a-b
func (g *Graph) Weight(a, b string) (float64, bool) {
	w, ok := g.adj[a][b]
	return w, ok
}

func (g *Graph) Degree(id string) int {
	return len(g.adj[id])
}

func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

func (g *Graph) EdgeCount() int {
	return g.edges
}

// Nodes returns every node id in ascending order
func (g *Graph) Nodes() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FindSimilarFiles returns the neighbors of id scoring at least minSimilarity,
// or the graph threshold when minSimilarity is nil, best first
func (g *Graph) FindSimilarFiles(id string, minSimilarity *float64) []Neighbor {
	if !g.HasNode(id) {
		log.Warn().Str("submissionId", id).Msg("Submission not found in graph")
		return nil
	}

	threshold := g.threshold
	if minSimilarity != nil {
		threshold = *minSimilarity
	}

	var similar []Neighbor
	for other, score := range g.adj[id] {
		if score >= threshold {
			similar = append(similar, Neighbor{ID: other, Score: score})
		}
	}
	sort.Slice(similar, func(i, j int) bool {
		if similar[i].Score != similar[j].Score {
			return similar[i].Score > similar[j].Score
		}
		return similar[i].ID < similar[j].ID
	})
	return similar
}

// ConnectedComponents returns every component, isolated nodes included.
// Members are sorted and components are ordered by their first member.
func (g *Graph) ConnectedComponents() [][]string {
	seen := make(map[string]bool, len(g.nodes))
	var components [][]string

	for _, start := range g.Nodes() {
		if seen[start] {
			continue
		}
		seen[start] = true
		component := []string{start}
		stack := []string{start}
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for other := range g.adj[id] {
				if !seen[other] {
					seen[other] = true
					component = append(component, other)
					stack = append(stack, other)
				}
			}
		}
		sort.Strings(component)
		components = append(components, component)
	}
	return components
}

// MostSimilarPairs returns up to topK edges ordered by descending score.
// topK <= 0 returns every edge.
func (g *Graph) MostSimilarPairs(topK int) []Pair {
	pairs := g.pairs()
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Score != pairs[j].Score {
			return pairs[i].Score > pairs[j].Score
		}
		if pairs[i].A != pairs[j].A {
			return pairs[i].A < pairs[j].A
		}
		return pairs[i].B < pairs[j].B
	})
	if topK > 0 && len(pairs) > topK {
		pairs = pairs[:topK]
	}
	return pairs
}

func (g *Graph) pairs() []Pair {
	pairs := make([]Pair, 0, g.edges)
	for a, neighbors := range g.adj {
		for b, score := range neighbors {
			if a < b {
				pairs = append(pairs, Pair{A: a, B: b, Score: score})
			}
		}
	}
	return pairs
}

// FileMetrics summarizes the edges of one node
func (g *Graph) FileMetrics(id string) (FileMetrics, bool) {
	if !g.HasNode(id) {
		return FileMetrics{}, false
	}
	neighbors := g.adj[id]
	if len(neighbors) == 0 {
		return FileMetrics{}, true
	}

	fm := FileMetrics{Degree: len(neighbors), MinSimilarity: math.Inf(1)}
	sum := 0.0
	for _, score := range neighbors {
		sum += score
		fm.MaxSimilarity = max(fm.MaxSimilarity, score)
		fm.MinSimilarity = min(fm.MinSimilarity, score)
	}
	fm.MeanSimilarity = sum / float64(len(neighbors))
	return fm, true
}

type Metrics struct {
	TotalNodes        int           `json:"total_nodes"`
	TotalEdges        int           `json:"total_edges"`
	AverageDegree     float64       `json:"average_degree"`
	Density           float64       `json:"density"`
	AverageClustering float64       `json:"average_clustering"`
	ClusteringTime    time.Duration `json:"clustering_time"`
}

func (g *Graph) Metrics() Metrics {
	n := len(g.nodes)
	m := Metrics{
		TotalNodes:     n,
		TotalEdges:     g.edges,
		ClusteringTime: time.Duration(g.clusteringTime.Load()),
	}
	if n == 0 {
		return m
	}
	m.AverageDegree = 2 * float64(g.edges) / float64(n)
	if n > 1 {
		m.Density = 2 * float64(g.edges) / float64(n*(n-1))
	}

	total := 0.0
	for id := range g.nodes {
		total += g.localClustering(id)
	}
	m.AverageClustering = total / float64(n)
	return m
}

// localClustering is the fraction of neighbor pairs of id that are adjacent
func (g *Graph) localClustering(id string) float64 {
	neighbors := make([]string, 0, len(g.adj[id]))
	for other := range g.adj[id] {
		neighbors = append(neighbors, other)
	}
	k := len(neighbors)
	if k < 2 {
		return 0
	}

	links := 0
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			if _, ok := g.adj[neighbors[i]][neighbors[j]]; ok {
				links++
			}
		}
	}
	return 2 * float64(links) / float64(k*(k-1))
}

// Clear removes every node and edge and resets the counters
func (g *Graph) Clear() {
	g.nodes = make(map[string]models.Metadata)
	g.adj = make(map[string]map[string]float64)
	g.edges = 0
	g.clusteringTime.Store(0)
}
