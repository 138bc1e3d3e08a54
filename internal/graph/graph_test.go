package graph

import (
	"testing"

	"github.com/RishiKendai/aegis-dupe/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGraph(ids ...string) *Graph {
	g := New(DefaultThreshold)
	for _, id := range ids {
		g.AddFile(id, models.Metadata{FileName: id + ".py"})
	}
	return g
}

func TestGraph_AddFileIsIdempotent(t *testing.T) {
	g := newTestGraph("a")
	g.AddFile("a", models.Metadata{FileName: "renamed.py"})

	assert.Equal(t, 1, g.NodeCount())
	meta, ok := g.Metadata("a")
	require.True(t, ok)
	assert.Equal(t, "renamed.py", meta.FileName)
}

func TestGraph_AddSimilarityRespectsThreshold(t *testing.T) {
	g := newTestGraph("a", "b", "c")

	assert.False(t, g.AddSimilarity("a", "b", 0.69))
	assert.True(t, g.AddSimilarity("a", "c", 0.7))
	assert.False(t, g.AddSimilarity("a", "a", 1.0), "no self loops")

	_, ok := g.Weight("a", "b")
	assert.False(t, ok)
	w, ok := g.Weight("c", "a")
	require.True(t, ok)
	assert.Equal(t, 0.7, w)
	assert.Equal(t, 1, g.EdgeCount())

	// reweighting does not add an edge
	g.AddSimilarity("c", "a", 0.9)
	assert.Equal(t, 1, g.EdgeCount())
}

func TestGraph_RemoveFile(t *testing.T) {
	g := newTestGraph("a", "b", "c")
	require.True(t, g.AddSimilarity("a", "b", 0.9))
	require.True(t, g.AddSimilarity("a", "c", 0.8))
	require.True(t, g.AddSimilarity("b", "c", 0.75))

	assert.True(t, g.RemoveFile("a"))
	assert.False(t, g.RemoveFile("a"))

	assert.False(t, g.HasNode("a"))
	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, 1, g.EdgeCount())
	assert.Equal(t, 1, g.Degree("b"))
	_, ok := g.Weight("b", "a")
	assert.False(t, ok)
	assert.Equal(t, []Pair{{A: "b", B: "c", Score: 0.75}}, g.MostSimilarPairs(0))
}

func TestGraph_FindSimilarFiles(t *testing.T) {
	g := newTestGraph("a", "b", "c", "d")
	g.AddSimilarity("a", "b", 0.75)
	g.AddSimilarity("a", "c", 0.95)
	g.AddSimilarity("a", "d", 0.85)

	got := g.FindSimilarFiles("a", nil)
	assert.Equal(t, []Neighbor{{"c", 0.95}, {"d", 0.85}, {"b", 0.75}}, got)

	floor := 0.8
	got = g.FindSimilarFiles("a", &floor)
	assert.Equal(t, []Neighbor{{"c", 0.95}, {"d", 0.85}}, got)
	for _, n := range got {
		assert.GreaterOrEqual(t, n.Score, floor)
	}

	assert.Empty(t, g.FindSimilarFiles("missing", nil))
}

func TestGraph_FindClustersTwoGroups(t *testing.T) {
	g := newTestGraph("s0", "s1", "s2", "s3", "s4")
	g.AddSimilarity("s0", "s1", 0.9)
	g.AddSimilarity("s0", "s2", 0.85)
	g.AddSimilarity("s1", "s2", 0.88)
	g.AddSimilarity("s3", "s4", 0.92)

	clusters := g.FindClusters(0.3, 2)
	require.Len(t, clusters, 2)
	assert.Equal(t, []string{"s0", "s1", "s2"}, clusters[0])
	assert.Equal(t, []string{"s3", "s4"}, clusters[1])
}

func TestGraph_FindClustersExcludesIsolatedNodes(t *testing.T) {
	g := newTestGraph("a", "b", "lonely")
	g.AddSimilarity("a", "b", 1.0)

	for _, minSamples := range []int{0, 1, 2} {
		for _, eps := range []float64{0.1, 0.5, 1.0} {
			for _, cluster := range g.FindClusters(eps, minSamples) {
				assert.NotContains(t, cluster, "lonely", "eps=%v minSamples=%d", eps, minSamples)
			}
		}
	}
}

func TestGraph_FindClustersChainsThroughCorePoints(t *testing.T) {
	// a-b and b-c are close, a-c has no edge
	g := newTestGraph("a", "b", "c")
	g.AddSimilarity("a", "b", 0.8)
	g.AddSimilarity("b", "c", 0.8)

	clusters := g.FindClusters(0.25, 2)
	assert.Equal(t, [][]string{{"a", "b", "c"}}, clusters)

	// eps below every distance: all noise
	assert.Empty(t, g.FindClusters(0.1, 2))
	// an edge exactly at 1 - eps still counts
	assert.Len(t, g.FindClusters(0.2, 2), 1)
}

func TestGraph_FindClustersBorderPoint(t *testing.T) {
	// b is core (a, b, c within eps); c only reaches b so it joins as a border point
	g := newTestGraph("a", "b", "c")
	g.AddSimilarity("a", "b", 0.9)
	g.AddSimilarity("b", "c", 0.9)

	clusters := g.FindClusters(0.2, 3)
	assert.Equal(t, [][]string{{"a", "b", "c"}}, clusters)
}

func TestGraph_ConnectedComponents(t *testing.T) {
	g := newTestGraph("a", "b", "c", "d")
	g.AddSimilarity("b", "a", 0.8)
	g.AddSimilarity("b", "c", 0.8)

	assert.Equal(t, [][]string{{"a", "b", "c"}, {"d"}}, g.ConnectedComponents())
}

func TestGraph_MostSimilarPairs(t *testing.T) {
	g := newTestGraph("a", "b", "c")
	g.AddSimilarity("b", "a", 0.8)
	g.AddSimilarity("b", "c", 0.95)
	g.AddSimilarity("a", "c", 0.8)

	assert.Equal(t, []Pair{{"b", "c", 0.95}, {"a", "b", 0.8}}, g.MostSimilarPairs(2))
	assert.Len(t, g.MostSimilarPairs(0), 3)
}

func TestGraph_FileMetrics(t *testing.T) {
	g := newTestGraph("a", "b", "c", "d")
	g.AddSimilarity("a", "b", 0.8)
	g.AddSimilarity("a", "c", 1.0)

	fm, ok := g.FileMetrics("a")
	require.True(t, ok)
	assert.Equal(t, 2, fm.Degree)
	assert.InDelta(t, 0.9, fm.MeanSimilarity, 1e-9)
	assert.Equal(t, 1.0, fm.MaxSimilarity)
	assert.Equal(t, 0.8, fm.MinSimilarity)

	fm, ok = g.FileMetrics("d")
	require.True(t, ok)
	assert.Equal(t, FileMetrics{}, fm)

	_, ok = g.FileMetrics("missing")
	assert.False(t, ok)
}

func TestGraph_Metrics(t *testing.T) {
	g := newTestGraph("a", "b", "c", "d")
	g.AddSimilarity("a", "b", 0.8)
	g.AddSimilarity("b", "c", 0.8)
	g.AddSimilarity("a", "c", 0.8)

	m := g.Metrics()
	assert.Equal(t, 4, m.TotalNodes)
	assert.Equal(t, 3, m.TotalEdges)
	assert.InDelta(t, 1.5, m.AverageDegree, 1e-9)
	assert.InDelta(t, 0.5, m.Density, 1e-9)
	// a, b and c close a triangle, d is isolated
	assert.InDelta(t, 0.75, m.AverageClustering, 1e-9)

	g.Clear()
	assert.Equal(t, Metrics{}, g.Metrics())
}
