package plagiarism

import (
	"math"
	"sort"

	"github.com/RishiKendai/aegis-dupe/internal/graph"
)

const (
	RiskClean            = "clean"
	RiskSuspicious       = "suspicious"
	RiskHighlySuspicious = "highly suspicious"
	RiskNearCopy         = "near copy"

	// neighbors below this score do not count towards a submission's score
	significantScore = 0.55
	topK             = 3
)

// SubmissionScore rates a submission from its neighbors using the average
// of the top K significant scores plus a boost for every additional peer
func SubmissionScore(neighbors []graph.Neighbor) float64 {
	significant := make([]float64, 0, len(neighbors))
	for _, n := range neighbors {
		if n.Score >= significantScore {
			significant = append(significant, n.Score)
		}
	}

	// If no significant neighbors, return 0
	if len(significant) == 0 {
		return 0.0
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(significant)))
	k := min(topK, len(significant))

	sum := 0.0
	for _, score := range significant[:k] {
		sum += score
	}
	score := sum / float64(k)

	// Frequency boost
	score += math.Min(0.15, 0.05*float64(len(significant)-1))

	// Clamp to [0, 1]
	return math.Max(0.0, math.Min(1.0, score))
}

// GetRiskLevel returns risk level based on a similarity score
func GetRiskLevel(score float64) string {
	if score < 0.3 {
		return RiskClean
	} else if score < 0.6 {
		return RiskSuspicious
	} else if score < 0.85 {
		return RiskHighlySuspicious
	}
	return RiskNearCopy
}
