package routing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-polyline"
	"go.uber.org/zap/zaptest"

	"github.com/azybler/ch_router/pkg/graph/graphtest"
)

func TestSnapper(t *testing.T) {
	g := graphtest.Grid(4, 4, 2)
	s := NewSnapper(g, 0)
	assert.Equal(t, g.NumOriginalEdges(), s.Len())

	res, err := s.Snap(1.3, 103.8)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), res.Node)
	assert.InDelta(t, 0, res.Dist, 1e-6)

	// A little past the far corner still lands on it.
	res, err = s.Snap(1.3+3*0.0009+0.0001, 103.8+3*0.0009+0.0001)
	require.NoError(t, err)
	assert.Equal(t, uint32(15), res.Node)
	assert.Less(t, res.Dist, 50.0)

	// Halfway along the first row, past the midpoint, picks the far endpoint.
	res, err = s.Snap(1.3, 103.8+0.0006)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), res.Node)

	_, err = s.Snap(10, 10)
	assert.ErrorIs(t, err, ErrPointTooFar)
}

func TestSnapperRadius(t *testing.T) {
	g := graphtest.Grid(2, 2, 2)
	// 0.002 deg of latitude is about 222 m.
	_, err := NewSnapper(g, 100).Snap(1.3-0.002, 103.8)
	assert.ErrorIs(t, err, ErrPointTooFar)
	_, err = NewSnapper(g, 300).Snap(1.3-0.002, 103.8)
	assert.NoError(t, err)
}

func TestEngineRoute(t *testing.T) {
	g := prepared(t, graphtest.Grid(8, 8, 4))
	eng := NewEngine(g, shortest, Options{}, zaptest.NewLogger(t))

	res, err := eng.Route(context.Background(),
		LatLng{Lat: 1.3, Lng: 103.8},
		LatLng{Lat: 1.3 + 7*0.0009, Lng: 103.8 + 7*0.0009})
	require.NoError(t, err)

	want, err := NewDijkstra(g, shortest).FindPath(0, 63)
	require.NoError(t, err)
	require.True(t, want.Found)
	assert.InDelta(t, want.Weight, res.Weight, 1e-9)
	assert.Equal(t, uint32(0), res.Nodes[0])
	assert.Equal(t, uint32(63), res.Nodes[len(res.Nodes)-1])
	assert.Len(t, res.Points, len(res.Nodes))
	assert.Positive(t, res.Visited)

	coords, rest, err := polyline.DecodeCoords([]byte(res.Polyline))
	require.NoError(t, err)
	assert.Empty(t, rest)
	require.Len(t, coords, len(res.Points))
	for i, c := range coords {
		assert.InDelta(t, res.Points[i].Lat, c[0], 1e-5)
		assert.InDelta(t, res.Points[i].Lng, c[1], 1e-5)
	}
}

func TestEngineRouteNodes(t *testing.T) {
	g := prepared(t, graphtest.Directed())
	eng := NewEngine(g, shortest, Options{}, nil)

	res, err := eng.RouteNodes(context.Background(), 4, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint32{4, 3, 5, 2}, res.Nodes)
	assert.Equal(t, 3.0, res.DistanceMeters)

	_, err = eng.RouteNodes(context.Background(), 0, 1)
	assert.ErrorIs(t, err, ErrNoRoute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = eng.RouteNodes(ctx, 4, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngineRouteTooFar(t *testing.T) {
	g := prepared(t, graphtest.Grid(3, 3, 1))
	eng := NewEngine(g, shortest, Options{MaxSnapMeters: 200}, nil)

	_, err := eng.Route(context.Background(), LatLng{Lat: 1.3, Lng: 103.8}, LatLng{Lat: 2, Lng: 104})
	assert.ErrorIs(t, err, ErrPointTooFar)
}

func TestEngineConcurrentRoutes(t *testing.T) {
	g := prepared(t, graphtest.Grid(10, 10, 9))
	eng := NewEngine(g, shortest, Options{}, nil)
	pairs := RandomPairs(g.NumNodes(), 50, 4)

	done := make(chan struct{})
	for range 4 {
		go func() {
			defer func() { done <- struct{}{} }()
			for _, p := range pairs {
				_, _ = eng.RouteNodes(context.Background(), p.Source, p.Target)
			}
		}()
	}
	for range 4 {
		<-done
	}

	mismatches, err := Verify(context.Background(), g, shortest, pairs, 4)
	require.NoError(t, err)
	assert.Empty(t, mismatches)
}
