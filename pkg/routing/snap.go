package routing

import (
	"errors"
	"math"

	"github.com/tidwall/rtree"

	"github.com/azybler/ch_router/pkg/geo"
	"github.com/azybler/ch_router/pkg/graph"
)

// DefaultMaxSnapMeters is the snap radius used when none is configured.
const DefaultMaxSnapMeters = 500.0

// ErrPointTooFar is returned when the query point is too far from any road.
var ErrPointTooFar = errors.New("point too far from road")

// SnapResult is a point snapped to a road segment.
type SnapResult struct {
	Edge  graph.EdgeID // original edge
	Node  uint32       // endpoint closest along the edge
	Ratio float64      // 0 at the edge base, 1 at its adj node
	Dist  float64      // meters from the query point to the segment
}

// Snapper finds the nearest original edge to a coordinate. Edges are indexed
// by their bounding boxes in an R-tree; Snap searches a box of the snap
// radius around the query and ranks hits by exact segment distance.
type Snapper struct {
	tr        rtree.RTreeG[graph.EdgeID]
	g         *graph.Graph
	maxMeters float64
}

// NewSnapper indexes every original edge of g. maxMeters <= 0 selects
// DefaultMaxSnapMeters.
func NewSnapper(g *graph.Graph, maxMeters float64) *Snapper {
	if maxMeters <= 0 {
		maxMeters = DefaultMaxSnapMeters
	}
	s := &Snapper{g: g, maxMeters: maxMeters}
	for id := range graph.EdgeID(g.NumEdges()) {
		e := g.Edge(id)
		if e.Shortcut {
			continue
		}
		uLat, uLon := g.Lat(e.Base), g.Lon(e.Base)
		vLat, vLon := g.Lat(e.Adj), g.Lon(e.Adj)
		s.tr.Insert(
			[2]float64{math.Min(uLon, vLon), math.Min(uLat, vLat)},
			[2]float64{math.Max(uLon, vLon), math.Max(uLat, vLat)},
			id)
	}
	return s
}

// Len returns the number of indexed edges.
func (s *Snapper) Len() int { return s.tr.Len() }

// Snap finds the nearest road segment to the given lat/lng.
func (s *Snapper) Snap(lat, lng float64) (SnapResult, error) {
	minLat, minLon, maxLat, maxLon := geo.BoundingBox(lat, lng, s.maxMeters)

	best := SnapResult{Edge: graph.NoEdge, Dist: math.Inf(1)}
	s.tr.Search([2]float64{minLon, minLat}, [2]float64{maxLon, maxLat},
		func(_, _ [2]float64, id graph.EdgeID) bool {
			e := s.g.Edge(id)
			dist, ratio := geo.PointToSegmentDist(lat, lng,
				s.g.Lat(e.Base), s.g.Lon(e.Base),
				s.g.Lat(e.Adj), s.g.Lon(e.Adj))
			if dist < best.Dist || (dist == best.Dist && id < best.Edge) {
				best = SnapResult{Edge: id, Ratio: ratio, Dist: dist}
			}
			return true
		})

	if best.Edge == graph.NoEdge || best.Dist > s.maxMeters {
		return SnapResult{}, ErrPointTooFar
	}
	e := s.g.Edge(best.Edge)
	best.Node = e.Base
	if best.Ratio > 0.5 {
		best.Node = e.Adj
	}
	return best, nil
}
