package index

import (
	"sync/atomic"
	"time"
)

// Metrics is a point-in-time copy of a tree's performance counters
type Metrics struct {
	Insertions     int64         `json:"insertions"`
	Deletions      int64         `json:"deletions"`
	Searches       int64         `json:"searches"`
	Splits         int64         `json:"splits"`
	Merges         int64         `json:"merges"`
	Borrows        int64         `json:"borrows"`
	ProcessingTime time.Duration `json:"processing_time"`
}

// counters are atomic so concurrent searches can update them
type counters struct {
	insertions atomic.Int64
	deletions  atomic.Int64
	searches   atomic.Int64
	splits     atomic.Int64
	merges     atomic.Int64
	borrows    atomic.Int64
	elapsed    atomic.Int64
}

func (c *counters) observe(start time.Time) {
	c.elapsed.Add(int64(time.Since(start)))
}

func (c *counters) reset() {
	c.insertions.Store(0)
	c.deletions.Store(0)
	c.searches.Store(0)
	c.splits.Store(0)
	c.merges.Store(0)
	c.borrows.Store(0)
	c.elapsed.Store(0)
}

// Metrics returns the tree's performance counters
func (t *Tree[V]) Metrics() Metrics {
	return Metrics{
		Insertions:     t.metrics.insertions.Load(),
		Deletions:      t.metrics.deletions.Load(),
		Searches:       t.metrics.searches.Load(),
		Splits:         t.metrics.splits.Load(),
		Merges:         t.metrics.merges.Load(),
		Borrows:        t.metrics.borrows.Load(),
		ProcessingTime: time.Duration(t.metrics.elapsed.Load()),
	}
}
