package matcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokens(s string) []string {
	return strings.Fields(s)
}

func TestFindMatches_IdenticalSequences(t *testing.T) {
	m := New()
	seq := tokens("def f ( x ) : return x + 1")

	matches := m.FindMatches(seq, seq, 0.7)
	require.Len(t, matches, 1)
	assert.Equal(t, 0, matches[0].Offset)
	assert.Equal(t, 1.0, matches[0].Similarity)
}

func TestFindMatches_Offsets(t *testing.T) {
	m := New(WithTokenHasher(ExactHash))
	text := tokens("a b c x a b c y a b c")
	pattern := tokens("a b c")

	matches := m.FindMatches(text, pattern, 1.0)
	require.Len(t, matches, 3)
	assert.Equal(t, []int{0, 4, 8}, []int{matches[0].Offset, matches[1].Offset, matches[2].Offset})
}

func TestFindMatches_EmptyOrOversizedInput(t *testing.T) {
	m := New()
	assert.Empty(t, m.FindMatches(nil, tokens("a"), 0.5))
	assert.Empty(t, m.FindMatches(tokens("a"), nil, 0.5))
	assert.Empty(t, m.FindMatches(tokens("a b"), tokens("a b c"), 0.5))
}

func TestFindMatches_CollisionsAreVerified(t *testing.T) {
	// every window collides; only verification can reject them
	m := New(WithTokenHasher(func(string) uint64 { return 1 }))
	text := tokens("p q r s t u")
	pattern := tokens("a b c")

	assert.Empty(t, m.FindMatches(text, pattern, 0.1))

	matches := m.FindMatches(tokens("z a b c"), pattern, 1.0)
	require.Len(t, matches, 1)
	assert.Equal(t, 1, matches[0].Offset)
}

func TestFindMatches_ShapeHashToleratesRenaming(t *testing.T) {
	m := New()
	pattern := tokens("total = total + value")
	text := tokens("sum = sum + item")

	// same shape, different identifiers: a candidate, rejected on verification
	assert.Equal(t,
		m.fingerprint(pattern, 0, len(pattern)),
		m.fingerprint(text, 0, len(text)))
	assert.Empty(t, m.FindMatches(text, pattern, 0.5))

	assert.NotEqual(t,
		m.fingerprint(tokens("a + b"), 0, 3),
		m.fingerprint(tokens("a * b"), 0, 3))
}

func TestWeightedSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, WeightedSimilarity(tokens("a b c d"), tokens("a b c d")))
	assert.Equal(t, 0.0, WeightedSimilarity(tokens("a b"), tokens("a b c")))
	assert.Equal(t, 0.0, WeightedSimilarity(nil, nil))

	// L=4 weights: 1.0 1.25 1.5 1.25, total 5
	assert.InDelta(t, 3.75/5, WeightedSimilarity(tokens("a x c d"), tokens("a b c d")), 1e-9)
	assert.InDelta(t, 3.75/5, WeightedSimilarity(tokens("a b c x"), tokens("a b c d")), 1e-9)
	assert.InDelta(t, 4.0/5, WeightedSimilarity(tokens("x b c d"), tokens("a b c d")), 1e-9)
}

func TestMatcher_CacheAndMetrics(t *testing.T) {
	m := New()
	seq := tokens("for i in range ( n ) : print ( i )")

	m.FindMatches(seq, seq, 0.7)
	first := m.Metrics()
	assert.Equal(t, int64(1), first.TotalOperations, "pattern and first window share a key")
	assert.Equal(t, int64(1), first.CacheHits)
	assert.Equal(t, 1, m.CacheSize())

	m.FindMatches(seq, seq, 0.7)
	assert.Equal(t, int64(3), m.Metrics().CacheHits)

	m.ClearCache()
	assert.Equal(t, 0, m.CacheSize())
	assert.Equal(t, Metrics{}, m.Metrics())
}

func TestNew_RejectsOversizedPrime(t *testing.T) {
	m := New(WithPrime(1<<40), WithBase(0))
	assert.Equal(t, DefaultPrime, m.prime)
	assert.Equal(t, DefaultBase, m.base)
}
