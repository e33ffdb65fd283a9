package routing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azybler/ch_router/pkg/graph/graphtest"
	"github.com/azybler/ch_router/pkg/weighting"
)

func TestRandomPairsDeterministic(t *testing.T) {
	a := RandomPairs(100, 20, 7)
	b := RandomPairs(100, 20, 7)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, RandomPairs(100, 20, 8))
	for _, p := range a {
		assert.Less(t, p.Source, uint32(100))
		assert.Less(t, p.Target, uint32(100))
	}
	assert.Nil(t, RandomPairs(0, 5, 1))
}

func TestVerifyPreparedGraph(t *testing.T) {
	for _, w := range []weighting.Weighting{weighting.ShortestWeighting{}, weighting.FastestWeighting{}} {
		t.Run(w.Name(), func(t *testing.T) {
			g := prepared(t, graphtest.Grid(12, 12, 17))
			pairs := RandomPairs(g.NumNodes(), 300, 2)

			mismatches, err := Verify(context.Background(), g, w, pairs, 4)
			require.NoError(t, err)
			assert.Empty(t, mismatches)
		})
	}
}

func TestVerifyReportsMismatch(t *testing.T) {
	// Hand-assigned levels with no shortcuts: the upward searches from 5
	// and from 3 never meet, while 4->2 still meets at 4.
	g := graphtest.Example()
	for n, l := range []int32{2, 6, 1, 3, 4, 5} {
		g.SetLevel(uint32(n), l)
	}

	mismatches, err := Verify(context.Background(), g, shortest, []Pair{{5, 3}, {4, 2}}, 2)
	require.NoError(t, err)
	require.Len(t, mismatches, 1)
	m := mismatches[0]
	assert.Equal(t, Pair{5, 3}, m.Pair)
	assert.False(t, m.CHFound)
	assert.True(t, m.BaselineFound)
	assert.Equal(t, 5.0, m.BaselineWeight)
}

func TestVerifyCancelled(t *testing.T) {
	g := prepared(t, graphtest.Grid(5, 5, 1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Verify(ctx, g, shortest, RandomPairs(g.NumNodes(), 10, 1), 2)
	assert.ErrorIs(t, err, context.Canceled)
}
