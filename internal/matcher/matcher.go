// Package matcher finds windows of a token sequence that resemble a pattern.
//
// Candidate windows are screened with a polynomial rolling fingerprint and
// then verified with a position-weighted token comparison, so a fingerprint
// collision can never produce a match below the requested similarity.
// Windows always have exactly the pattern's length.
package matcher

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultBase  uint64 = 256
	DefaultPrime uint64 = 1_000_000_007

	// keeps every intermediate product of the rolling hash inside uint64
	maxPrime uint64 = 1 << 31
)

// Match is a window of the text starting at Offset
type Match struct {
	Offset     int     `json:"offset"`
	Similarity float64 `json:"similarity"`
}

type Option func(*Matcher)

func WithBase(base uint64) Option {
	return func(m *Matcher) { m.base = base }
}

func WithPrime(prime uint64) Option {
	return func(m *Matcher) { m.prime = prime }
}

func WithTokenHasher(h TokenHasher) Option {
	return func(m *Matcher) { m.hashToken = h }
}

// Matcher owns its fingerprint cache and performance counters. It is safe
// for concurrent use.
type Matcher struct {
	base      uint64
	prime     uint64
	hashToken TokenHasher
	cache     *FingerprintCache

	operations atomic.Int64
	cacheHits  atomic.Int64
	elapsed    atomic.Int64
}

func New(opts ...Option) *Matcher {
	m := &Matcher{
		base:      DefaultBase,
		prime:     DefaultPrime,
		hashToken: ShapeHash,
		cache:     NewFingerprintCache(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.prime < 2 || m.prime > maxPrime {
		log.Warn().Uint64("prime", m.prime).Msg("Rolling hash modulus out of range, using default")
		m.prime = DefaultPrime
	}
	m.base %= m.prime
	if m.base == 0 {
		m.base = DefaultBase % m.prime
	}
	if m.hashToken == nil {
		m.hashToken = ShapeHash
	}
	return m
}

// FindMatches returns every window of text, in offset order, whose weighted
// similarity to pattern is at least minSimilarity
func (m *Matcher) FindMatches(text, pattern []string, minSimilarity float64) []Match {
	if len(text) == 0 || len(pattern) == 0 {
		log.Warn().Int("text", len(text)).Int("pattern", len(pattern)).Msg("Empty text or pattern provided")
		return nil
	}
	if len(pattern) > len(text) {
		log.Warn().Int("text", len(text)).Int("pattern", len(pattern)).Msg("Pattern longer than text")
		return nil
	}

	start := time.Now()
	defer func() { m.elapsed.Add(int64(time.Since(start))) }()

	n := len(pattern)
	patternHash := m.fingerprint(pattern, 0, n)
	windowHash := m.fingerprint(text, 0, n)
	power := m.power(n - 1)

	var matches []Match
	for i := 0; i+n <= len(text); i++ {
		if windowHash == patternHash {
			// equal fingerprints are only candidates
			similarity := WeightedSimilarity(text[i:i+n], pattern)
			if similarity >= minSimilarity {
				matches = append(matches, Match{Offset: i, Similarity: similarity})
			}
		}

		if i+n < len(text) {
			leading := m.tokenValue(text[i]) * power % m.prime
			windowHash = (windowHash + m.prime - leading) % m.prime
			windowHash = (windowHash*m.base + m.tokenValue(text[i+n])) % m.prime
		}
	}
	return matches
}

// fingerprint computes the hash of tokens[start:start+length] from scratch,
// consulting the cache first
func (m *Matcher) fingerprint(tokens []string, start, length int) uint64 {
	k := newCacheKey(tokens, start, length)
	if h, ok := m.cache.get(k); ok {
		m.cacheHits.Add(1)
		return h
	}

	var h uint64
	for _, tok := range tokens[start : start+length] {
		h = (h*m.base + m.tokenValue(tok)) % m.prime
	}

	m.cache.put(k, h)
	m.operations.Add(1)
	return h
}

func (m *Matcher) tokenValue(tok string) uint64 {
	return m.hashToken(tok) % m.prime
}

// power returns base^exp mod prime
func (m *Matcher) power(exp int) uint64 {
	result := uint64(1)
	b := m.base
	for e := exp; e > 0; e >>= 1 {
		if e&1 == 1 {
			result = result * b % m.prime
		}
		b = b * b % m.prime
	}
	return result
}

// WeightedSimilarity compares two equal-length windows token by token. The
// token at position i of a window of length L weighs
// 1 + 0.5*(1 - |i - L/2| / (L/2)), so central tokens count for more.
func WeightedSimilarity(window, pattern []string) float64 {
	if len(window) != len(pattern) || len(pattern) == 0 {
		return 0.0
	}

	half := float64(len(pattern)) / 2
	matched, total := 0.0, 0.0
	for i := range pattern {
		weight := 1.0 + 0.5*(1-math.Abs(float64(i)-half)/half)
		if window[i] == pattern[i] {
			matched += weight
		}
		total += weight
	}
	if total == 0 {
		return 0.0
	}
	return matched / total
}

// ClearCache drops the fingerprint cache and resets the counters
func (m *Matcher) ClearCache() {
	m.cache.Clear()
	m.operations.Store(0)
	m.cacheHits.Store(0)
	m.elapsed.Store(0)
}

// CacheSize returns the number of cached fingerprints
func (m *Matcher) CacheSize() int {
	return m.cache.Len()
}

// Metrics is a point-in-time copy of the matcher's counters
type Metrics struct {
	TotalOperations int64         `json:"total_operations"`
	CacheHits       int64         `json:"cache_hits"`
	CacheHitRatio   float64       `json:"cache_hit_ratio"`
	CacheSize       int           `json:"cache_size"`
	ProcessingTime  time.Duration `json:"processing_time"`
}

func (m *Matcher) Metrics() Metrics {
	ops, hits := m.operations.Load(), m.cacheHits.Load()
	ratio := 0.0
	if lookups := ops + hits; lookups > 0 {
		ratio = float64(hits) / float64(lookups)
	}
	return Metrics{
		TotalOperations: ops,
		CacheHits:       hits,
		CacheHitRatio:   ratio,
		CacheSize:       m.cache.Len(),
		ProcessingTime:  time.Duration(m.elapsed.Load()),
	}
}
