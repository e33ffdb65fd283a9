package osm

import (
	"fmt"

	"github.com/paulmach/osm"

	"github.com/azybler/ch_router/pkg/graph"
	"github.com/azybler/ch_router/pkg/weighting"
)

// BuildGraph turns parsed segments into a graph with dense node ids in
// first-seen order. Edge weights come from w; speed and direction are kept
// in the edge flags via weighting.CarFlags. A segment whose weight is not a
// finite non-negative number fails the build.
func BuildGraph(result *ParseResult, w weighting.Weighting) (*graph.Graph, error) {
	nodeSet := make(map[osm.NodeID]uint32)
	var nodeIDs []osm.NodeID
	addNode := func(id osm.NodeID) uint32 {
		if idx, ok := nodeSet[id]; ok {
			return idx
		}
		idx := uint32(len(nodeIDs))
		nodeSet[id] = idx
		nodeIDs = append(nodeIDs, id)
		return idx
	}

	g := graph.NewWithCapacity(len(result.Edges), len(result.Edges))
	for _, e := range result.Edges {
		if !e.Forward && !e.Backward {
			continue
		}
		from, to := addNode(e.FromNodeID), addNode(e.ToNodeID)
		g.SetNode(from, result.NodeLat[e.FromNodeID], result.NodeLon[e.FromNodeID])
		g.SetNode(to, result.NodeLat[e.ToNodeID], result.NodeLon[e.ToNodeID])

		flags := weighting.CarFlags(e.SpeedKmh, e.Forward, e.Backward)
		// Zero-length segments still get a positive weight.
		weight := max(w.CalcWeight(e.DistanceMeters, flags), minWeight)
		if _, err := g.AddEdgeFlags(from, to, weight, flags); err != nil {
			return nil, fmt.Errorf("segment %d->%d: %w", e.FromNodeID, e.ToNodeID, err)
		}
	}
	return g, nil
}

// minWeight is the smallest edge weight BuildGraph stores.
const minWeight = 1e-3
