package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindAllMatches_WorkerCountDoesNotChangeResult(t *testing.T) {
	text := tokens("if x > 0 : y = x * 2 else : y = 0 return y if x > 0 : y = x * 2")
	patterns := [][]string{
		tokens("if x > 0 :"),
		tokens("y = x * 2"),
		tokens("return y"),
		tokens("while true"),
		tokens("else : y = 0"),
	}

	serial := New().FindAllMatches(text, patterns, 0.7, 1)
	parallel := New().FindAllMatches(text, patterns, 0.7, 4)

	require.NotEmpty(t, serial)
	assert.Equal(t, serial, parallel)
	assert.Equal(t, 1.0, serial[PatternOffset{Pattern: 0, Offset: 0}])
	assert.Equal(t, 1.0, serial[PatternOffset{Pattern: 0, Offset: 17}])
	assert.NotContains(t, serial, PatternOffset{Pattern: 3, Offset: 0})
}

func TestFindAllMatches_FailingPatternIsIsolated(t *testing.T) {
	m := New(WithTokenHasher(func(tok string) uint64 {
		if tok == "boom" {
			panic("bad token")
		}
		return ExactHash(tok)
	}))
	text := tokens("a b c d")
	patterns := [][]string{
		tokens("a b"),
		tokens("boom b"),
		tokens("c d"),
	}

	results := m.FindAllMatches(text, patterns, 1.0, 2)
	assert.Equal(t, map[PatternOffset]float64{
		{Pattern: 0, Offset: 0}: 1.0,
		{Pattern: 2, Offset: 2}: 1.0,
	}, results)
}

func TestFindAllMatches_NoPatterns(t *testing.T) {
	assert.Empty(t, New().FindAllMatches(tokens("a b"), nil, 0.5, 4))
}
