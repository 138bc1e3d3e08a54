package graph

import (
	"sort"
	"time"
)

const (
	unassigned = 0
	noise      = -1

	// absorbs rounding in 1 - weight so an edge at exactly 1 - eps qualifies
	distanceTolerance = 1e-9
)

// FindClusters groups submissions with DBSCAN over the distance
// 1 - weight for connected pairs and 1.0 for unconnected ones. A point is
// core when at least minSamples points, itself included, lie within eps.
// Nodes without edges are always noise. Members are sorted and clusters are
// ordered by their first member.
func (g *Graph) FindClusters(eps float64, minSamples int) [][]string {
	start := time.Now()
	defer func() { g.clusteringTime.Add(int64(time.Since(start))) }()

	if minSamples < 1 {
		minSamples = 1
	}

	var ids []string
	for _, id := range g.Nodes() {
		if len(g.adj[id]) > 0 {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	dist := g.distanceMatrix(ids)
	neighborhood := func(i int) []int {
		var within []int
		for j, d := range dist[i] {
			if d <= eps+distanceTolerance {
				within = append(within, j)
			}
		}
		return within
	}

	labels := make([]int, len(ids))
	cluster := 0
	for i := range ids {
		if labels[i] != unassigned {
			continue
		}
		seeds := neighborhood(i)
		if len(seeds) < minSamples {
			labels[i] = noise
			continue
		}

		cluster++
		labels[i] = cluster
		for q := 0; q < len(seeds); q++ {
			p := seeds[q]
			if labels[p] == noise {
				// border point
				labels[p] = cluster
			}
			if labels[p] != unassigned {
				continue
			}
			labels[p] = cluster
			if reach := neighborhood(p); len(reach) >= minSamples {
				seeds = append(seeds, reach...)
			}
		}
	}

	groups := make([][]string, cluster)
	for i, label := range labels {
		if label > 0 {
			groups[label-1] = append(groups[label-1], ids[i])
		}
	}
	// ids are visited in sorted order, so groups are already ordered by their
	// first member; members may arrive out of order through expansion
	for _, members := range groups {
		sort.Strings(members)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
	return groups
}

func (g *Graph) distanceMatrix(ids []string) [][]float64 {
	dist := make([][]float64, len(ids))
	for i, a := range ids {
		dist[i] = make([]float64, len(ids))
		for j, b := range ids {
			if i == j {
				continue
			}
			if w, ok := g.adj[a][b]; ok {
				dist[i][j] = 1 - w
			} else {
				dist[i][j] = 1.0
			}
		}
	}
	return dist
}
