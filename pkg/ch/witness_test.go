package ch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azybler/ch_router/pkg/ch"
	"github.com/azybler/ch_router/pkg/graph/graphtest"
)

func TestWitnessSkipsExcludedNode(t *testing.T) {
	g := graphtest.Example()
	ws := ch.NewWitnessSearch(g)

	// Without node 3 the only way from 4 to 2 goes over 0.
	res, err := ws.Find(4, 2, 3, 100, 100)
	require.NoError(t, err)
	require.Equal(t, ch.WitnessFound, res.Status)
	assert.Equal(t, 4.0, res.Weight)
	assert.Equal(t, uint32(2), res.Node)
	// The unrestricted distance goes 4-3-2.
	assert.Greater(t, res.Weight, 3.0)

	res, err = ws.Find(4, 1, 3, 10, 100)
	require.NoError(t, err)
	require.Equal(t, ch.WitnessFound, res.Status)
	assert.Equal(t, 4.0, res.Weight)
}

func TestWitnessVisitedLimit(t *testing.T) {
	g := graphtest.Example()
	ws := ch.NewWitnessSearch(g)

	res, err := ws.Find(4, 2, 3, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, ch.WitnessLimitExceeded, res.Status)
	assert.Equal(t, 1, res.Visited)

	res, err = ws.Find(4, 1, 0, 100, 2)
	require.NoError(t, err)
	assert.Equal(t, ch.WitnessLimitExceeded, res.Status)
	assert.NotEqual(t, uint32(1), res.Node)
}

func TestWitnessWeightLimit(t *testing.T) {
	g := graphtest.Example()
	ws := ch.NewWitnessSearch(g)

	res, err := ws.Find(4, 2, 3, 3.5, 100)
	require.NoError(t, err)
	assert.Equal(t, ch.WitnessLimitExceeded, res.Status)

	// A target exactly on the limit counts.
	res, err = ws.Find(4, 2, 3, 4, 100)
	require.NoError(t, err)
	assert.Equal(t, ch.WitnessFound, res.Status)
}

func TestWitnessUnreachable(t *testing.T) {
	g := graphtest.Directed()
	ws := ch.NewWitnessSearch(g)

	res, err := ws.Find(0, 1, 5, 100, 100)
	require.NoError(t, err)
	assert.Equal(t, ch.WitnessUnreachable, res.Status)

	// One-way: 2 reaches 4 but 4 cannot get back to 2 without 5.
	res, err = ws.Find(4, 2, 5, 100, 100)
	require.NoError(t, err)
	assert.Equal(t, ch.WitnessUnreachable, res.Status)
}

func TestWitnessRejectsExcludedEndpoint(t *testing.T) {
	ws := ch.NewWitnessSearch(graphtest.Example())

	_, err := ws.Find(3, 2, 3, 100, 100)
	assert.ErrorIs(t, err, ch.ErrExcludedNodeViolation)
	_, err = ws.Find(4, 3, 3, 100, 100)
	assert.ErrorIs(t, err, ch.ErrExcludedNodeViolation)
}

func TestWitnessIgnoresContractedNodes(t *testing.T) {
	g := graphtest.Example()
	g.SetLevel(0, 1)
	ws := ch.NewWitnessSearch(g)

	res, err := ws.Find(4, 1, 3, 100, 100)
	require.NoError(t, err)
	assert.Equal(t, ch.WitnessUnreachable, res.Status)
}

func TestWitnessReuse(t *testing.T) {
	g := graphtest.Example()
	ws := ch.NewWitnessSearch(g)

	first, err := ws.Find(4, 2, 3, 100, 100)
	require.NoError(t, err)
	for range 3 {
		_, err := ws.Find(5, 3, 2, 100, 100)
		require.NoError(t, err)
		again, err := ws.Find(4, 2, 3, 100, 100)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestWitnessStatusString(t *testing.T) {
	assert.Equal(t, "found", ch.WitnessFound.String())
	assert.Equal(t, "limit exceeded", ch.WitnessLimitExceeded.String())
	assert.Equal(t, "unreachable", ch.WitnessUnreachable.String())
	assert.Equal(t, "WitnessStatus(9)", ch.WitnessStatus(9).String())
}
