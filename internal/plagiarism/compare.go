package plagiarism

import (
	"context"
	"fmt"

	"github.com/RishiKendai/aegis-dupe/internal/workerpool"
	"github.com/rs/zerolog/log"
)

type comparison struct {
	submissionID string
	score        float64
	err          error
}

// comparisonJob scores one stored submission against the incoming tokens
type comparisonJob struct {
	SubmissionID string
	Text         []string
	Pattern      []string
	Score        func(text, pattern []string) float64
	ResultChan   chan<- comparison
}

// Execute always reports a result, recovering a panicking comparison as an error
func (j *comparisonJob) Execute(ctx context.Context) (err error) {
	res := comparison{submissionID: j.SubmissionID}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("comparison with %s panicked: %v", j.SubmissionID, r)
		}
		res.err = err
		j.ResultChan <- res
	}()

	res.score = j.Score(j.Text, j.Pattern)
	return nil
}

// compare scores pattern against the stored tokens of every id in stored and
// returns the best window similarity per id; failed comparisons score 0
func (d *Detector) compare(pattern []string, stored []string) map[string]float64 {
	scores := make(map[string]float64, len(stored))
	if len(stored) == 0 {
		return scores
	}

	resultChan := make(chan comparison, len(stored))
	pool := workerpool.New(context.Background(), min(max(d.opts.Workers, 1), len(stored)))

	submitted := 0
	for _, id := range stored {
		job := &comparisonJob{
			SubmissionID: id,
			Text:         d.tokens[id],
			Pattern:      pattern,
			Score:        d.bestMatch,
			ResultChan:   resultChan,
		}
		if err := pool.Submit(job); err != nil {
			log.Error().Err(err).Str("submissionId", id).Msg("Failed to submit comparison")
			continue
		}
		submitted++
	}

	for ; submitted > 0; submitted-- {
		res := <-resultChan
		if res.err != nil {
			continue
		}
		scores[res.submissionID] = res.score
	}
	pool.Close()

	return scores
}

// bestMatch is the highest similarity of any window of text matching pattern
func (d *Detector) bestMatch(text, pattern []string) float64 {
	best := 0.0
	for _, m := range d.matcher.FindMatches(text, pattern, d.opts.MatchMinSimilarity) {
		best = max(best, m.Similarity)
	}
	return best
}
