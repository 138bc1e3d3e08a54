package matcher

import (
	"context"
	"fmt"

	"github.com/RishiKendai/aegis-dupe/internal/workerpool"
	"github.com/rs/zerolog/log"
)

// PatternOffset identifies a match of patterns[Pattern] at text offset Offset
type PatternOffset struct {
	Pattern int `json:"pattern"`
	Offset  int `json:"offset"`
}

type patternResult struct {
	index   int
	matches []Match
	err     error
}

// matchJob evaluates a single pattern. It always reports back, even when the
// evaluation panics.
type matchJob struct {
	matcher       *Matcher
	index         int
	text          []string
	pattern       []string
	minSimilarity float64
	results       chan<- patternResult
}

func (j *matchJob) Execute(ctx context.Context) (err error) {
	res := patternResult{index: j.index}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: pattern %d: %v", ErrPatternPanicked, j.index, r)
		}
		res.err = err
		j.results <- res
	}()

	res.matches = j.matcher.FindMatches(j.text, j.pattern, j.minSimilarity)
	return nil
}

// FindAllMatches evaluates every pattern against text on a pool of workers.
// A pattern that fails is logged and contributes nothing; the result is the
// same for any worker count.
func (m *Matcher) FindAllMatches(text []string, patterns [][]string, minSimilarity float64, workers int) map[PatternOffset]float64 {
	results := make(map[PatternOffset]float64)
	if len(patterns) == 0 {
		return results
	}
	if workers <= 0 {
		workers = workerpool.DefaultSize()
	}
	workers = min(workers, len(patterns))

	out := make(chan patternResult, len(patterns))
	pool := workerpool.New(context.Background(), workers)

	submitted := 0
	for i, pattern := range patterns {
		job := &matchJob{
			matcher:       m,
			index:         i,
			text:          text,
			pattern:       pattern,
			minSimilarity: minSimilarity,
			results:       out,
		}
		if err := pool.Submit(job); err != nil {
			log.Error().Err(err).Int("pattern", i).Msg("Failed to submit pattern")
			continue
		}
		submitted++
	}

	for ; submitted > 0; submitted-- {
		res := <-out
		if res.err != nil {
			continue
		}
		for _, match := range res.matches {
			results[PatternOffset{Pattern: res.index, Offset: match.Offset}] = match.Similarity
		}
	}
	pool.Close()

	return results
}
